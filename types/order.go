package types

import (
	"strings"

	"github.com/JiscSD/ammolib/parcel"
)

// Order is the delivery ordering requested for retrieved content.
type Order int32

const (
	OrderOldestFirst Order = 1
	OrderNewestOnly  Order = 2
	OrderNewestFirst Order = 3
)

// OrderDefault is used when no order, or an unknown one, is given.
const OrderDefault = OrderOldestFirst

// ParseOrder interprets a loose textual order: a string containing "L"
// means newest first (last in), "1" newest only, "F" oldest first.
func ParseOrder(s string) Order {
	switch {
	case strings.Contains(s, "L"):
		return OrderNewestFirst
	case strings.Contains(s, "1"):
		return OrderNewestOnly
	case strings.Contains(s, "F"):
		return OrderOldestFirst
	}
	return OrderDefault
}

func (o Order) Valid() bool {
	return o >= OrderOldestFirst && o <= OrderNewestFirst
}

func (o Order) String() string {
	switch o {
	case OrderOldestFirst:
		return "Oldest First"
	case OrderNewestOnly:
		return "Newest Only"
	case OrderNewestFirst:
		return "Newest First"
	}
	return "Unknown Order"
}

func (o Order) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(o))
}

// WriteOrder writes o preceded by its null flag.
func WriteOrder(w *parcel.Writer, o *Order) {
	if o == nil {
		parcel.WriteNullFlag(w, true)
		return
	}
	parcel.Write(w, *o, false)
}

// ReadOrder reads an order written by WriteOrder. An unknown id yields the
// default order.
func ReadOrder(r *parcel.Reader) *Order {
	if parcel.IsNull(r) {
		return nil
	}
	o := Order(r.ReadInt())
	if !o.Valid() {
		logger.WithField("order", int32(o)).Warn("Unknown order, using default")
		o = OrderDefault
	}
	return &o
}

// SerialMoment states when the data behind a provider is serialized.
type SerialMoment int32

const (
	MomentApriori SerialMoment = 1
	MomentEager   SerialMoment = 2
	MomentLazy    SerialMoment = 3
)

// MomentDefault is used when no moment, or an unknown one, is given.
const MomentDefault = MomentLazy

// ParseSerialMoment interprets the first letter of s: A(priori), E(ager) or
// L(azy).
func ParseSerialMoment(s string) SerialMoment {
	if s == "" {
		return MomentDefault
	}
	switch strings.ToUpper(s[:1]) {
	case "A":
		return MomentApriori
	case "E":
		return MomentEager
	case "L":
		return MomentLazy
	}
	return MomentDefault
}

func (m SerialMoment) Valid() bool {
	return m >= MomentApriori && m <= MomentLazy
}

func (m SerialMoment) String() string {
	switch m {
	case MomentApriori:
		return "pre-serialized"
	case MomentEager:
		return "eager"
	case MomentLazy:
		return "lazy"
	}
	return "unknown"
}

func (m SerialMoment) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(m))
}

// WriteSerialMoment writes m preceded by its null flag.
func WriteSerialMoment(w *parcel.Writer, m *SerialMoment) {
	if m == nil {
		parcel.WriteNullFlag(w, true)
		return
	}
	parcel.Write(w, *m, false)
}

// ReadSerialMoment reads a moment written by WriteSerialMoment. An unknown
// id yields the default moment.
func ReadSerialMoment(r *parcel.Reader) *SerialMoment {
	if parcel.IsNull(r) {
		return nil
	}
	m := SerialMoment(r.ReadInt())
	if !m.Valid() {
		logger.WithField("moment", int32(m)).Warn("Unknown serial moment, using default")
		m = MomentDefault
	}
	return &m
}

// DeliveryScope limits how far a request is distributed.
type DeliveryScope int32

const (
	ScopeGlobal DeliveryScope = 1
	ScopeLocal  DeliveryScope = 2
)

const ScopeDefault = ScopeGlobal

// ParseDeliveryScope interprets the first letter of s: G(lobal) or L(ocal).
func ParseDeliveryScope(s string) DeliveryScope {
	if s != "" && strings.ToUpper(s[:1]) == "L" {
		return ScopeLocal
	}
	return ScopeDefault
}

func (s DeliveryScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeLocal:
		return "local"
	}
	return "unknown"
}

func (s DeliveryScope) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(s))
}

// WriteDeliveryScope writes s preceded by its null flag.
func WriteDeliveryScope(w *parcel.Writer, s *DeliveryScope) {
	if s == nil {
		parcel.WriteNullFlag(w, true)
		return
	}
	parcel.Write(w, *s, false)
}

// ReadDeliveryScope reads a scope written by WriteDeliveryScope. An unknown
// id yields the default scope.
func ReadDeliveryScope(r *parcel.Reader) *DeliveryScope {
	if parcel.IsNull(r) {
		return nil
	}
	s := DeliveryScope(r.ReadInt())
	if s != ScopeGlobal && s != ScopeLocal {
		logger.WithField("scope", int32(s)).Warn("Unknown delivery scope, using default")
		s = ScopeDefault
	}
	return &s
}
