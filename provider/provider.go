// Package provider defines the structured-storage contract used by the
// facades and ships a SQLite implementation of it.
//
// Relations are addressed with content URIs: content://<authority>/<table>
// names a whole relation and content://<authority>/<table>/<id> a single row.
package provider

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/JiscSD/ammolib/schema"
	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownURI is returned when a URI does not name a known relation.
	ErrUnknownURI = errors.New("unknown content URI")

	// ErrClosed is returned by iterators and streams used after Close.
	ErrClosed = errors.New("provider: use of closed resource")
)

// Resolver gives access to relations by URI.
type Resolver interface {
	Query(ctx context.Context, uri string, projection []string, selection string, args []string, sortOrder string) (Cursor, error)
	Insert(ctx context.Context, uri string, vals types.Values) (string, error)
	Update(ctx context.Context, uri string, vals types.Values, selection string, args []string) (int, error)
	Delete(ctx context.Context, uri string, selection string, args []string) (int, error)

	// OpenWriteStream returns a writer for the out-of-band data of a row.
	// The data is attached to the row when the writer is closed.
	OpenWriteStream(ctx context.Context, uri string) (io.WriteCloser, error)
	OpenReadStream(ctx context.Context, uri string) (io.ReadCloser, error)

	// GetType returns the MIME type of the URI or an empty string.
	GetType(ctx context.Context, uri string) string
}

// Cursor is a forward-only view over query results. Column getters refer to
// the current row and return zero values when the cell is null or cannot
// be converted.
type Cursor interface {
	Count() int
	Next() bool
	Reset()
	Columns() []string
	// ColumnIndex returns -1 when the column is not part of the result.
	ColumnIndex(name string) int
	Value(i int) interface{}
	String(i int) string
	Int(i int) int32
	Long(i int) int64
	Float(i int) float64
	Close() error
}

type contentURI struct {
	authority string
	table     string
	id        int64
	item      bool
}

func (c contentURI) key() string {
	return c.authority + "/" + c.table
}

func parseURI(s string) (contentURI, error) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != schema.ContentScheme || u.Host == "" {
		return contentURI{}, errors.Wrapf(ErrUnknownURI, "%q", s)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch len(segs) {
	case 1:
		if segs[0] == "" {
			break
		}
		return contentURI{authority: u.Host, table: segs[0]}, nil
	case 2:
		id, err := strconv.ParseInt(segs[1], 10, 64)
		if err != nil {
			break
		}
		return contentURI{authority: u.Host, table: segs[0], id: id, item: true}, nil
	}
	return contentURI{}, errors.Wrapf(ErrUnknownURI, "%q", s)
}
