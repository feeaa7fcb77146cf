package types

import (
	"bytes"
	"fmt"

	"github.com/JiscSD/ammolib/parcel"
)

// PayloadType is the discriminant of a Payload.
type PayloadType int32

const (
	PayloadNone   PayloadType = 0
	PayloadString PayloadType = 1
	PayloadBytes  PayloadType = 2
	PayloadValues PayloadType = 3
)

func (t PayloadType) String() string {
	switch t {
	case PayloadNone:
		return "none"
	case PayloadString:
		return "str"
	case PayloadBytes:
		return "byte"
	case PayloadValues:
		return "cv"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// Payload carries the data of a request. Exactly one variant is active.
type Payload struct {
	typ    PayloadType
	str    string
	bytes  []byte
	values Values
}

// NonePayload is the payload carrying no data.
var NonePayload = &Payload{typ: PayloadNone}

func NewStringPayload(s string) *Payload {
	return &Payload{typ: PayloadString, str: s}
}

func NewBytesPayload(b []byte) *Payload {
	return &Payload{typ: PayloadBytes, bytes: b}
}

func NewValuesPayload(v Values) *Payload {
	return &Payload{typ: PayloadValues, values: v}
}

func (p *Payload) Type() PayloadType {
	return p.typ
}

func (p *Payload) Values() Values {
	return p.values
}

// Bytes returns a copy of the byte content.
func (p *Payload) Bytes() []byte {
	if p.bytes == nil {
		return nil
	}
	dst := make([]byte, len(p.bytes))
	copy(dst, p.bytes)
	return dst
}

// AsBytes renders the payload as bytes: strings as UTF-8 and values as a JSON
// object. A none payload has no bytes.
func (p *Payload) AsBytes() []byte {
	switch p.typ {
	case PayloadBytes:
		return p.bytes
	case PayloadString:
		return []byte(p.str)
	case PayloadValues:
		b, err := p.values.MarshalJSON()
		if err != nil {
			logger.WithError(err).Warn("Payload values could not be encoded")
			return nil
		}
		return b
	}
	logger.WithField("payload", p.String()).Warn("Invalid bytes payload type")
	return nil
}

// AsString renders the payload as a string. Values are rendered as a JSON
// object.
func (p *Payload) AsString() string {
	switch p.typ {
	case PayloadBytes:
		return string(p.bytes)
	case PayloadString:
		return p.str
	case PayloadValues:
		return string(p.AsBytes())
	}
	logger.WithField("payload", p.String()).Warn("Invalid string payload type")
	return ""
}

// IsSet reports whether the payload carries any data.
func (p *Payload) IsSet() bool {
	return p.WhatContent() != PayloadNone
}

// WhatContent returns the payload type, or PayloadNone when the active
// variant is empty.
func (p *Payload) WhatContent() PayloadType {
	if p == nil {
		return PayloadNone
	}
	switch p.typ {
	case PayloadString:
		if len(p.str) > 0 {
			return PayloadString
		}
	case PayloadBytes:
		if len(p.bytes) > 0 {
			return PayloadBytes
		}
	case PayloadValues:
		if len(p.values) > 0 {
			return PayloadValues
		}
	}
	return PayloadNone
}

// Equal reports structural equality.
func (p *Payload) Equal(o *Payload) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.typ != o.typ {
		return false
	}
	switch p.typ {
	case PayloadString:
		return p.str == o.str
	case PayloadBytes:
		return bytes.Equal(p.bytes, o.bytes)
	case PayloadValues:
		return bytes.Equal(p.AsBytes(), o.AsBytes())
	}
	return true
}

func (p *Payload) String() string {
	switch p.typ {
	case PayloadValues:
		return fmt.Sprintf("cv: [%s]", p.AsString())
	case PayloadBytes:
		return fmt.Sprintf("byte: [%d bytes]", len(p.bytes))
	case PayloadString:
		return fmt.Sprintf("str: [%s]", p.str)
	case PayloadNone:
		return "none"
	}
	return fmt.Sprintf("<unknown payload type> %d", int32(p.typ))
}

func (p *Payload) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(p.typ))
	switch p.typ {
	case PayloadValues:
		p.values.MarshalParcel(w)
	case PayloadBytes:
		w.WriteByteArray(p.bytes)
	case PayloadString:
		w.WriteString(p.str)
	}
}

// WritePayload writes p preceded by its null flag.
func WritePayload(w *parcel.Writer, p *Payload) {
	parcel.Write(w, p, p == nil)
}

// ReadPayload reads a payload written by WritePayload. An unknown
// discriminant yields NonePayload.
func ReadPayload(r *parcel.Reader) *Payload {
	if parcel.IsNull(r) {
		return nil
	}
	typ := PayloadType(r.ReadInt())
	switch typ {
	case PayloadValues:
		return NewValuesPayload(ReadValuesBody(r))
	case PayloadBytes:
		return NewBytesPayload(r.ReadByteArray())
	case PayloadString:
		return NewStringPayload(r.ReadString())
	case PayloadNone:
		return NonePayload
	}
	logger.WithField("type", int32(typ)).Warn("Unknown payload type")
	return NonePayload
}

// Pickle encodes the payload as a standalone parcel.
func (p *Payload) Pickle() []byte {
	w := parcel.NewWriter()
	WritePayload(w, p)
	return w.Bytes()
}

// UnpicklePayload decodes a standalone payload parcel. Malformed input
// yields NonePayload.
func UnpicklePayload(b []byte) *Payload {
	r := parcel.NewReader(b)
	p := ReadPayload(r)
	if r.Err() != nil {
		logger.WithError(r.Err()).Warn("Payload could not be unpickled")
		return NonePayload
	}
	return p
}

// Clone returns a deep copy of p.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	cp := *p
	if p.bytes != nil {
		cp.bytes = append([]byte(nil), p.bytes...)
	}
	cp.values = p.values.Clone()
	return &cp
}
