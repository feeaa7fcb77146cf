package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JiscSD/ammolib/parcel"
)

// Oid is an object identifier, e.g. 1.3.6.1.
type Oid []int32

// ParseOid parses the dotted form of an object identifier.
func ParseOid(s string) (Oid, error) {
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return Oid{}, nil
	}
	parts := strings.Split(s, ".")
	oid := make(Oid, 0, len(parts))
	for _, part := range parts {
		i, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid oid component %q: %v", part, err)
		}
		oid = append(oid, int32(i))
	}
	return oid, nil
}

func (o Oid) String() string {
	parts := make([]string, len(o))
	for i, v := range o {
		parts[i] = strconv.FormatInt(int64(v), 10)
	}
	return strings.Join(parts, ".")
}

func (o Oid) Equal(other Oid) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// TopicType is the discriminant of a Topic.
type TopicType int32

const (
	TopicOid    TopicType = 0
	TopicString TopicType = 1
)

// Topic is a routing key, either a string or an object identifier.
type Topic struct {
	typ TopicType
	str string
	oid Oid
}

func NewTopic(s string) *Topic {
	return &Topic{typ: TopicString, str: s}
}

func NewOidTopic(o Oid) *Topic {
	return &Topic{typ: TopicOid, oid: o}
}

func (t *Topic) Type() TopicType {
	return t.typ
}

func (t *Topic) Oid() Oid {
	return t.oid
}

// AsString returns the canonical wire form of the topic: the string itself or
// the dotted object identifier.
func (t *Topic) AsString() string {
	switch t.typ {
	case TopicString:
		return t.str
	case TopicOid:
		return t.oid.String()
	}
	return ""
}

// String is the debug form, e.g. "str:location" or "oid:1.3.6".
func (t *Topic) String() string {
	switch t.typ {
	case TopicString:
		return "str:" + t.str
	case TopicOid:
		return "oid:" + t.oid.String()
	}
	return fmt.Sprintf("<unknown topic type> %d", int32(t.typ))
}

func (t *Topic) Equal(o *Topic) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.typ != o.typ {
		return false
	}
	if t.typ == TopicOid {
		return t.oid.Equal(o.oid)
	}
	return t.str == o.str
}

func (t *Topic) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(t.typ))
	switch t.typ {
	case TopicOid:
		w.WriteIntArray(t.oid)
	case TopicString:
		w.WriteString(t.str)
	}
}

// WriteTopic writes t preceded by its null flag.
func WriteTopic(w *parcel.Writer, t *Topic) {
	parcel.Write(w, t, t == nil)
}

// ReadTopic reads a topic written by WriteTopic. An unknown discriminant
// yields nil.
func ReadTopic(r *parcel.Reader) *Topic {
	if parcel.IsNull(r) {
		return nil
	}
	typ := TopicType(r.ReadInt())
	switch typ {
	case TopicOid:
		return NewOidTopic(Oid(r.ReadIntArray()))
	case TopicString:
		return NewTopic(r.ReadString())
	}
	logger.WithField("type", int32(typ)).Warn("Unknown topic type")
	return nil
}

// Clone returns a deep copy of t.
func (t *Topic) Clone() *Topic {
	if t == nil {
		return nil
	}
	cp := *t
	if t.oid != nil {
		cp.oid = append(Oid(nil), t.oid...)
	}
	return &cp
}
