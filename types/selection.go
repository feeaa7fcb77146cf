package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JiscSD/ammolib/parcel"
)

// Query is a parameterized selection clause.
type Query struct {
	Select string
	Args   []string
}

// Form is a string map used as a by-example selection.
type Form map[string]string

func (f Form) keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f Form) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.keys() {
		parts = append(parts, k+"="+f[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (f Form) MarshalParcel(w *parcel.Writer) {
	keys := f.keys()
	w.WriteInt(int32(len(keys)))
	for _, k := range keys {
		w.WriteString(k)
		w.WriteString(f[k])
	}
}

func readFormBody(r *parcel.Reader) Form {
	n := r.ReadInt()
	if r.Err() != nil || n < 0 || int(n) > r.Remaining() {
		return nil
	}
	f := make(Form, n)
	for i := int32(0); i < n; i++ {
		k := r.ReadString()
		f[k] = r.ReadString()
	}
	if r.Err() != nil {
		return nil
	}
	return f
}

// SelectionType is the discriminant of a Selection.
type SelectionType int32

const (
	SelectQuery  SelectionType = 0
	SelectForm   SelectionType = 1
	SelectString SelectionType = 2
)

// Selection restricts the content a request applies to.
type Selection struct {
	typ   SelectionType
	query *Query
	form  Form
	str   string
}

func NewQuerySelection(q *Query) *Selection {
	return &Selection{typ: SelectQuery, query: q}
}

func NewFormSelection(f Form) *Selection {
	return &Selection{typ: SelectForm, form: f}
}

func NewStringSelection(s string) *Selection {
	return &Selection{typ: SelectString, str: s}
}

func (s *Selection) Type() SelectionType {
	return s.typ
}

func (s *Selection) Query() *Query {
	return s.query
}

func (s *Selection) Form() Form {
	return s.form
}

// AsString returns the selection clause. Forms have no clause form.
func (s *Selection) AsString() string {
	switch s.typ {
	case SelectString:
		return s.str
	case SelectQuery:
		if s.query != nil {
			return s.query.Select
		}
	}
	return ""
}

func (s *Selection) String() string {
	switch s.typ {
	case SelectString:
		return "str:" + s.str
	case SelectQuery:
		if s.query == nil {
			return "query:<nil>"
		}
		return fmt.Sprintf("query:%s %v", s.query.Select, s.query.Args)
	case SelectForm:
		return "form:" + s.form.String()
	}
	return fmt.Sprintf("<unknown selection type> %d", int32(s.typ))
}

func (s *Selection) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(s.typ))
	switch s.typ {
	case SelectQuery:
		q := s.query
		if q == nil {
			q = &Query{}
		}
		w.WriteString(q.Select)
		w.WriteStringArray(q.Args)
	case SelectForm:
		s.form.MarshalParcel(w)
	case SelectString:
		w.WriteString(s.str)
	}
}

// WriteSelection writes s preceded by its null flag.
func WriteSelection(w *parcel.Writer, s *Selection) {
	parcel.Write(w, s, s == nil)
}

// ReadSelection reads a selection written by WriteSelection. An unknown
// discriminant yields nil.
func ReadSelection(r *parcel.Reader) *Selection {
	if parcel.IsNull(r) {
		return nil
	}
	typ := SelectionType(r.ReadInt())
	switch typ {
	case SelectQuery:
		sel := r.ReadString()
		args := r.ReadStringArray()
		return NewQuerySelection(&Query{Select: sel, Args: args})
	case SelectForm:
		return NewFormSelection(readFormBody(r))
	case SelectString:
		return NewStringSelection(r.ReadString())
	}
	logger.WithField("type", int32(typ)).Warn("Unknown selection type")
	return nil
}

// Clone returns a copy of f.
func (f Form) Clone() Form {
	if f == nil {
		return nil
	}
	out := make(Form, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of s.
func (s *Selection) Clone() *Selection {
	if s == nil {
		return nil
	}
	cp := *s
	if s.query != nil {
		q := *s.query
		if q.Args != nil {
			q.Args = append([]string(nil), q.Args...)
		}
		cp.query = &q
	}
	cp.form = s.form.Clone()
	return &cp
}
