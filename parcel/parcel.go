// Package parcel implements the byte-oriented wire codec used to marshal
// requests and value types.
//
// Integers are little-endian. Strings, byte arrays and arrays carry an int32
// length prefix where -1 denotes null. Nullable typed values are written with
// a leading int32 tag (see WriteValue).
package parcel

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ErrTruncated is recorded by a Reader when the input ends before a value
// could be read completely.
var ErrTruncated = errors.New("parcel: truncated input")

// Value tags used by WriteValue and ReadValue.
const (
	ValNull      int32 = -1
	ValString    int32 = 0
	ValInteger   int32 = 1
	ValShort     int32 = 5
	ValLong      int32 = 6
	ValFloat     int32 = 7
	ValDouble    int32 = 8
	ValBoolean   int32 = 9
	ValByteArray int32 = 13
)

// Marshaler is implemented by types that know how to write themselves.
type Marshaler interface {
	MarshalParcel(w *Writer)
}

// Writer accumulates an encoded parcel.
type Writer struct {
	buf bytes.Buffer
	tmp [8]byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded parcel.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) WriteByte(b byte) error {
	return w.buf.WriteByte(b)
}

func (w *Writer) WriteInt(v int32) {
	binary.LittleEndian.PutUint32(w.tmp[:4], uint32(v))
	w.buf.Write(w.tmp[:4])
}

func (w *Writer) WriteLong(v int64) {
	binary.LittleEndian.PutUint64(w.tmp[:8], uint64(v))
	w.buf.Write(w.tmp[:8])
}

func (w *Writer) WriteFloat(v float32) {
	w.WriteInt(int32(math.Float32bits(v)))
}

func (w *Writer) WriteDouble(v float64) {
	w.WriteLong(int64(math.Float64bits(v)))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteInt(1)
		return
	}
	w.WriteInt(0)
}

// WriteString writes a non-null string.
func (w *Writer) WriteString(s string) {
	w.WriteInt(int32(len(s)))
	w.buf.WriteString(s)
}

// WriteNullableString writes s, or the null marker when s is nil.
func (w *Writer) WriteNullableString(s *string) {
	if s == nil {
		w.WriteInt(-1)
		return
	}
	w.WriteString(*s)
}

// WriteByteArray writes b; a nil slice is written as null.
func (w *Writer) WriteByteArray(b []byte) {
	if b == nil {
		w.WriteInt(-1)
		return
	}
	w.WriteInt(int32(len(b)))
	w.buf.Write(b)
}

// WriteIntArray writes a; a nil slice is written as null.
func (w *Writer) WriteIntArray(a []int32) {
	if a == nil {
		w.WriteInt(-1)
		return
	}
	w.WriteInt(int32(len(a)))
	for _, v := range a {
		w.WriteInt(v)
	}
}

// WriteStringArray writes a; a nil slice is written as null.
func (w *Writer) WriteStringArray(a []string) {
	if a == nil {
		w.WriteInt(-1)
		return
	}
	w.WriteInt(int32(len(a)))
	for _, s := range a {
		w.WriteString(s)
	}
}

// WriteValue writes a nullable typed value. Supported types are nil, string,
// int, int32, int16, int64, float32, float64, bool, []byte and the pointer
// forms of int32, int64 and string (nil pointers are null).
func (w *Writer) WriteValue(v interface{}) error {
	switch t := v.(type) {
	case nil:
		w.WriteInt(ValNull)
	case string:
		w.WriteInt(ValString)
		w.WriteString(t)
	case *string:
		if t == nil {
			w.WriteInt(ValNull)
			return nil
		}
		w.WriteInt(ValString)
		w.WriteString(*t)
	case int:
		w.WriteInt(ValInteger)
		w.WriteInt(int32(t))
	case int32:
		w.WriteInt(ValInteger)
		w.WriteInt(t)
	case *int32:
		if t == nil {
			w.WriteInt(ValNull)
			return nil
		}
		w.WriteInt(ValInteger)
		w.WriteInt(*t)
	case int16:
		w.WriteInt(ValShort)
		w.WriteInt(int32(t))
	case int64:
		w.WriteInt(ValLong)
		w.WriteLong(t)
	case *int64:
		if t == nil {
			w.WriteInt(ValNull)
			return nil
		}
		w.WriteInt(ValLong)
		w.WriteLong(*t)
	case float32:
		w.WriteInt(ValFloat)
		w.WriteFloat(t)
	case float64:
		w.WriteInt(ValDouble)
		w.WriteDouble(t)
	case bool:
		w.WriteInt(ValBoolean)
		w.WriteBool(t)
	case []byte:
		if t == nil {
			w.WriteInt(ValNull)
			return nil
		}
		w.WriteInt(ValByteArray)
		w.WriteByteArray(t)
	default:
		return errors.Errorf("parcel: unsupported value type %T", v)
	}
	return nil
}

// Reader decodes a parcel. The first error encountered is sticky: every
// subsequent read returns a zero value and Err reports the original cause.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = ErrTruncated
		r.pos = len(r.data)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) ReadByte() (byte, error) {
	b := r.next(1)
	if b == nil {
		return 0, r.err
	}
	return b[0], nil
}

func (r *Reader) ReadInt() int32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (r *Reader) ReadLong() int64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *Reader) ReadFloat() float32 {
	return math.Float32frombits(uint32(r.ReadInt()))
}

func (r *Reader) ReadDouble() float64 {
	return math.Float64frombits(uint64(r.ReadLong()))
}

func (r *Reader) ReadBool() bool {
	return r.ReadInt() != 0
}

// ReadNullableString returns nil when a null string was written.
func (r *Reader) ReadNullableString() *string {
	n := r.ReadInt()
	if r.err != nil || n == -1 {
		return nil
	}
	b := r.next(int(n))
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}

// ReadString reads a string; null is returned as "".
func (r *Reader) ReadString() string {
	s := r.ReadNullableString()
	if s == nil {
		return ""
	}
	return *s
}

func (r *Reader) ReadByteArray() []byte {
	n := r.ReadInt()
	if r.err != nil || n == -1 {
		return nil
	}
	b := r.next(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *Reader) ReadIntArray() []int32 {
	n := r.ReadInt()
	if r.err != nil || n == -1 {
		return nil
	}
	if n < 0 || int(n)*4 > r.Remaining() {
		r.fail(ErrTruncated)
		return nil
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = r.ReadInt()
	}
	return out
}

func (r *Reader) ReadStringArray() []string {
	n := r.ReadInt()
	if r.err != nil || n == -1 {
		return nil
	}
	if n < 0 || int(n)*4 > r.Remaining() {
		r.fail(ErrTruncated)
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = r.ReadString()
	}
	if r.err != nil {
		return nil
	}
	return out
}

// ReadValue reads a value written by WriteValue. Integers are returned as
// int32, shorts as int16, longs as int64.
func (r *Reader) ReadValue() interface{} {
	tag := r.ReadInt()
	if r.err != nil {
		return nil
	}
	switch tag {
	case ValNull:
		return nil
	case ValString:
		return r.ReadNullableStringValue()
	case ValInteger:
		return r.ReadInt()
	case ValShort:
		return int16(r.ReadInt())
	case ValLong:
		return r.ReadLong()
	case ValFloat:
		return r.ReadFloat()
	case ValDouble:
		return r.ReadDouble()
	case ValBoolean:
		return r.ReadBool()
	case ValByteArray:
		return r.ReadByteArray()
	}
	r.fail(errors.Errorf("parcel: unknown value tag %d", tag))
	return nil
}

// ReadNullableStringValue is ReadNullableString flattened to an interface
// value so that a null string reads back as a nil interface.
func (r *Reader) ReadNullableStringValue() interface{} {
	s := r.ReadNullableString()
	if s == nil {
		return nil
	}
	return *s
}

// ReadIntValue reads a nullable integer written with WriteValue.
func (r *Reader) ReadIntValue() *int32 {
	switch v := r.ReadValue().(type) {
	case int32:
		return &v
	case int16:
		i := int32(v)
		return &i
	case int64:
		i := int32(v)
		return &i
	}
	return nil
}

// ReadStringValue reads a nullable string written with WriteValue.
func (r *Reader) ReadStringValue() *string {
	if s, ok := r.ReadValue().(string); ok {
		return &s
	}
	return nil
}

// WriteNullFlag writes the null flag that precedes every value type: 0 for
// null, 1 when a value follows.
func WriteNullFlag(w *Writer, isNull bool) {
	if isNull {
		w.WriteInt(0)
		return
	}
	w.WriteInt(1)
}

// IsNull reads a null flag. A truncated input reads as null.
func IsNull(r *Reader) bool {
	return r.ReadInt() == 0
}

// Write writes m preceded by its null flag.
func Write(w *Writer, m Marshaler, isNull bool) {
	WriteNullFlag(w, isNull)
	if !isNull {
		m.MarshalParcel(w)
	}
}
