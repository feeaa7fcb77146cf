// Package schema holds the names shared by every component that reads or
// writes the distributor relations: authorities, table and column names,
// content types, sort orders and the enumerated values stored in columns.
package schema

import (
	"strconv"
	"strings"
)

const (
	ContentScheme = "content"

	CursorDirBaseType  = "vnd.android.cursor.dir"
	CursorItemBaseType = "vnd.android.cursor.item"
)

// Affinity is the storage class of a column.
type Affinity string

const (
	Text    Affinity = "TEXT"
	Integer Affinity = "INTEGER"
	Real    Affinity = "REAL"
	Blob    Affinity = "BLOB"
)

type Column struct {
	Name     string
	Affinity Affinity
}

// Relation describes a table published under a content authority.
type Relation struct {
	Authority         string
	Name              string
	Vendor            string
	Columns           []Column
	DefaultSortOrder  string
	PrioritySortOrder string
}

// ContentURI is the collection URI, e.g. content://<authority>/<name>.
func (r Relation) ContentURI() string {
	return ContentScheme + "://" + r.Authority + "/" + r.Name
}

// ItemURI is the URI of the row with the given id.
func (r Relation) ItemURI(id int64) string {
	return r.ContentURI() + "/" + strconv.FormatInt(id, 10)
}

func (r Relation) ContentType() string {
	return CursorDirBaseType + "/" + r.Vendor + "." + r.Name
}

func (r Relation) ContentItemType() string {
	return CursorItemBaseType + "/" + r.Vendor + "." + r.Name
}

// ColumnNames returns the names of the columns in declaration order.
func (r Relation) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the relation declares the column.
func (r Relation) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}
