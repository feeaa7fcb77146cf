package provider

import (
	"github.com/JiscSD/ammolib/types"
)

// EntityIterator walks the rows of a cursor as Values.
type EntityIterator struct {
	c      Cursor
	closed bool
}

func NewEntityIterator(c Cursor) *EntityIterator {
	return &EntityIterator{c: c}
}

// Next advances to the following row. It returns false once the rows are
// exhausted or the iterator is closed.
func (it *EntityIterator) Next() bool {
	if it.closed {
		return false
	}
	return it.c.Next()
}

// Entity returns the current row. Null cells are left out.
func (it *EntityIterator) Entity() (types.Values, error) {
	if it.closed {
		return nil, ErrClosed
	}
	vals := types.NewValues()
	for i, col := range it.c.Columns() {
		v := it.c.Value(i)
		if v == nil {
			continue
		}
		if err := vals.Put(col, v); err != nil {
			vals.PutString(col, it.c.String(i))
		}
	}
	return vals, nil
}

// Reset rewinds the iterator to before the first row.
func (it *EntityIterator) Reset() error {
	if it.closed {
		return ErrClosed
	}
	it.c.Reset()
	return nil
}

func (it *EntityIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.c.Close()
}
