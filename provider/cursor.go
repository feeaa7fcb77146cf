package provider

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// rowsCursor holds a fully read result set.
type rowsCursor struct {
	cols []string
	rows [][]interface{}
	pos  int
}

var _ Cursor = (*rowsCursor)(nil)

func newCursor(cols []string, rows [][]interface{}) *rowsCursor {
	return &rowsCursor{cols: cols, rows: rows, pos: -1}
}

func readRows(rows *sql.Rows) (*rowsCursor, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "columns")
	}
	var data [][]interface{}
	for rows.Next() {
		row := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return newCursor(cols, data), nil
}

func (c *rowsCursor) Count() int {
	return len(c.rows)
}

func (c *rowsCursor) Next() bool {
	if c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false
	}
	c.pos++
	return true
}

func (c *rowsCursor) Reset() {
	c.pos = -1
}

func (c *rowsCursor) Columns() []string {
	return c.cols
}

func (c *rowsCursor) ColumnIndex(name string) int {
	for i, col := range c.cols {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

func (c *rowsCursor) Value(i int) interface{} {
	if c.pos < 0 || c.pos >= len(c.rows) || i < 0 || i >= len(c.cols) {
		return nil
	}
	return c.rows[c.pos][i]
}

func (c *rowsCursor) String(i int) string {
	switch v := c.Value(i).(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	default:
		return cast.ToString(v)
	}
}

func (c *rowsCursor) Int(i int) int32 {
	return cast.ToInt32(c.textual(i))
}

func (c *rowsCursor) Long(i int) int64 {
	return cast.ToInt64(c.textual(i))
}

func (c *rowsCursor) Float(i int) float64 {
	return cast.ToFloat64(c.textual(i))
}

// textual turns byte cells into strings so cast can convert them.
func (c *rowsCursor) textual(i int) interface{} {
	if b, ok := c.Value(i).([]byte); ok {
		return string(b)
	}
	return c.Value(i)
}

func (c *rowsCursor) Close() error {
	c.rows = nil
	c.pos = -1
	return nil
}
