package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/JiscSD/ammolib/parcel"

	"github.com/spf13/cast"
)

// Kind enumerates the types a Value may hold.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindBool
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is a single typed entry of a Values map.
type Value struct {
	kind Kind
	v    interface{}
}

func StringValue(s string) Value {
	return Value{KindString, s}
}

func IntValue(i int32) Value {
	return Value{KindInt, i}
}

func LongValue(i int64) Value {
	return Value{KindLong, i}
}

func FloatValue(f float32) Value {
	return Value{KindFloat, f}
}

func DoubleValue(f float64) Value {
	return Value{KindDouble, f}
}

func BoolValue(b bool) Value {
	return Value{KindBool, b}
}

func BytesValue(b []byte) Value {
	return Value{KindBytes, b}
}

// Kind returns the type held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// Interface returns the held value.
func (v Value) Interface() interface{} {
	return v.v
}

// valueOf maps a decoded Go value onto a Value. ok is false for types that
// cannot be stored.
func valueOf(i interface{}) (Value, bool) {
	switch t := i.(type) {
	case string:
		return StringValue(t), true
	case int32:
		return IntValue(t), true
	case int16:
		return IntValue(int32(t)), true
	case int:
		return IntValue(int32(t)), true
	case int64:
		return LongValue(t), true
	case float32:
		return FloatValue(t), true
	case float64:
		return DoubleValue(t), true
	case bool:
		return BoolValue(t), true
	case []byte:
		return BytesValue(t), true
	}
	return Value{}, false
}

// Values is a typed replacement for a dynamic content-value map. Values is
// not safe for concurrent mutation.
type Values map[string]Value

func NewValues() Values {
	return Values{}
}

func (vs Values) PutString(key string, val string) Values {
	vs[key] = StringValue(val)
	return vs
}

func (vs Values) PutInt(key string, val int32) Values {
	vs[key] = IntValue(val)
	return vs
}

func (vs Values) PutLong(key string, val int64) Values {
	vs[key] = LongValue(val)
	return vs
}

func (vs Values) PutFloat(key string, val float32) Values {
	vs[key] = FloatValue(val)
	return vs
}

func (vs Values) PutDouble(key string, val float64) Values {
	vs[key] = DoubleValue(val)
	return vs
}

func (vs Values) PutBool(key string, val bool) Values {
	vs[key] = BoolValue(val)
	return vs
}

func (vs Values) PutBytes(key string, val []byte) Values {
	vs[key] = BytesValue(val)
	return vs
}

// Put stores an untyped value. It fails for types Values cannot hold.
func (vs Values) Put(key string, val interface{}) error {
	v, ok := valueOf(val)
	if !ok {
		return fmt.Errorf("unsupported value type %T for key %q", val, key)
	}
	vs[key] = v
	return nil
}

func (vs Values) Has(key string) bool {
	_, ok := vs[key]
	return ok
}

// Keys returns the keys in sorted order.
func (vs Values) Keys() []string {
	keys := make([]string, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw value stored under key.
func (vs Values) Get(key string) (interface{}, bool) {
	v, ok := vs[key]
	if !ok {
		return nil, false
	}
	return v.v, true
}

func (vs Values) AsString(key string) (string, bool) {
	v, ok := vs[key]
	if !ok {
		return "", false
	}
	if v.kind == KindBytes {
		return string(v.v.([]byte)), true
	}
	s, err := cast.ToStringE(v.v)
	return s, err == nil
}

func (vs Values) AsInt(key string) (int32, bool) {
	v, ok := vs[key]
	if !ok {
		return 0, false
	}
	i, err := cast.ToInt32E(v.v)
	return i, err == nil
}

func (vs Values) AsLong(key string) (int64, bool) {
	v, ok := vs[key]
	if !ok {
		return 0, false
	}
	i, err := cast.ToInt64E(v.v)
	return i, err == nil
}

func (vs Values) AsFloat(key string) (float64, bool) {
	v, ok := vs[key]
	if !ok {
		return 0, false
	}
	f, err := cast.ToFloat64E(v.v)
	return f, err == nil
}

func (vs Values) AsBool(key string) (bool, bool) {
	v, ok := vs[key]
	if !ok {
		return false, false
	}
	b, err := cast.ToBoolE(v.v)
	return b, err == nil
}

func (vs Values) AsBytes(key string) ([]byte, bool) {
	v, ok := vs[key]
	if !ok {
		return nil, false
	}
	switch t := v.v.(type) {
	case []byte:
		return t, true
	case string:
		return []byte(t), true
	}
	return nil, false
}

// Map returns the values as a plain map, e.g. for use as SQL arguments.
func (vs Values) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(vs))
	for k, v := range vs {
		m[k] = v.v
	}
	return m
}

// MarshalJSON encodes the values as a JSON object. Byte values are encoded
// as base64 strings.
func (vs Values) MarshalJSON() ([]byte, error) {
	return json.Marshal(vs.Map())
}

// UnmarshalJSON decodes a flat JSON object. Integral numbers become int
// values (long when outside the int32 range), other numbers double values.
// Nested objects, arrays and nulls are rejected.
func (vs *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	raw := map[string]interface{}{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = StringValue(t)
		case bool:
			out[k] = BoolValue(t)
		case json.Number:
			if i, err := t.Int64(); err == nil {
				if i >= math.MinInt32 && i <= math.MaxInt32 {
					out[k] = IntValue(int32(i))
				} else {
					out[k] = LongValue(i)
				}
				continue
			}
			f, err := t.Float64()
			if err != nil {
				return fmt.Errorf("key %q: %v", k, err)
			}
			out[k] = DoubleValue(f)
		default:
			return fmt.Errorf("key %q: unsupported JSON value %T", k, v)
		}
	}
	*vs = out
	return nil
}

// MarshalParcel writes the entry count followed by key/value pairs in key
// order.
func (vs Values) MarshalParcel(w *parcel.Writer) {
	keys := vs.Keys()
	w.WriteInt(int32(len(keys)))
	for _, k := range keys {
		w.WriteString(k)
		// Every Value holds a type WriteValue supports.
		_ = w.WriteValue(vs[k].v)
	}
}

// ReadValuesBody reads the body written by Values.MarshalParcel. Null
// entries are dropped.
func ReadValuesBody(r *parcel.Reader) Values {
	n := r.ReadInt()
	if r.Err() != nil || n < 0 || int(n) > r.Remaining() {
		return nil
	}
	vs := make(Values, n)
	for i := int32(0); i < n; i++ {
		k := r.ReadString()
		raw := r.ReadValue()
		if r.Err() != nil {
			return nil
		}
		if v, ok := valueOf(raw); ok {
			vs[k] = v
		}
	}
	return vs
}

// Clone returns a copy of vs that shares no storage with it.
func (vs Values) Clone() Values {
	if vs == nil {
		return nil
	}
	out := make(Values, len(vs))
	for k, v := range vs {
		if b, ok := v.v.([]byte); ok && b != nil {
			v = BytesValue(append([]byte(nil), b...))
		}
		out[k] = v
	}
	return out
}
