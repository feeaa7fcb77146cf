package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JiscSD/ammolib/parcel"
)

// TimeStamp is an absolute point in time with millisecond precision.
type TimeStamp struct {
	millis int64
}

func NewTimeStamp(t time.Time) TimeStamp {
	return TimeStamp{millis: t.UnixNano() / int64(time.Millisecond)}
}

// TimeStampMillis builds a TimeStamp from milliseconds since the epoch.
func TimeStampMillis(ms int64) TimeStamp {
	return TimeStamp{millis: ms}
}

// ParseTimeStamp accepts RFC 3339 or milliseconds since the epoch.
func ParseTimeStamp(s string) (TimeStamp, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TimeStampMillis(ms), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return TimeStamp{}, fmt.Errorf("invalid time stamp %q", s)
	}
	return NewTimeStamp(t), nil
}

func (ts TimeStamp) Millis() int64 {
	return ts.millis
}

func (ts TimeStamp) Time() time.Time {
	return time.Unix(0, ts.millis*int64(time.Millisecond))
}

func (ts TimeStamp) String() string {
	return ts.Time().UTC().Format(time.RFC3339Nano)
}

// TimeInterval is a duration with millisecond precision.
type TimeInterval struct {
	millis int64
}

func NewTimeInterval(d time.Duration) TimeInterval {
	return TimeInterval{millis: int64(d / time.Millisecond)}
}

// ParseTimeInterval accepts a Go duration ("90s") or milliseconds.
func ParseTimeInterval(s string) (TimeInterval, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TimeInterval{millis: ms}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return TimeInterval{}, fmt.Errorf("invalid time interval %q", s)
	}
	return NewTimeInterval(d), nil
}

func (ti TimeInterval) Millis() int64 {
	return ti.millis
}

func (ti TimeInterval) Duration() time.Duration {
	return time.Duration(ti.millis) * time.Millisecond
}

func (ti TimeInterval) String() string {
	return ti.Duration().String()
}

// TimeTriggerType is the discriminant of a TimeTrigger.
type TimeTriggerType int32

const (
	TriggerAbsolute TimeTriggerType = 0
	TriggerRelative TimeTriggerType = 1
)

// TimeTrigger is either an absolute time stamp or an interval relative to
// the time the request is made.
type TimeTrigger struct {
	typ TimeTriggerType
	abs TimeStamp
	rel TimeInterval
}

func NewAbsoluteTrigger(ts TimeStamp) *TimeTrigger {
	return &TimeTrigger{typ: TriggerAbsolute, abs: ts}
}

func NewRelativeTrigger(ti TimeInterval) *TimeTrigger {
	return &TimeTrigger{typ: TriggerRelative, rel: ti}
}

func (t *TimeTrigger) Type() TimeTriggerType {
	return t.typ
}

func (t *TimeTrigger) Absolute() TimeStamp {
	return t.abs
}

func (t *TimeTrigger) Relative() TimeInterval {
	return t.rel
}

// At resolves the trigger against a reference time.
func (t *TimeTrigger) At(ref time.Time) time.Time {
	if t.typ == TriggerRelative {
		return ref.Add(t.rel.Duration())
	}
	return t.abs.Time()
}

func (t *TimeTrigger) String() string {
	if t.typ == TriggerRelative {
		return "rel:" + t.rel.String()
	}
	return "abs:" + t.abs.String()
}

func (t *TimeTrigger) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(t.typ))
	parcel.WriteNullFlag(w, false)
	switch t.typ {
	case TriggerAbsolute:
		w.WriteLong(t.abs.millis)
	case TriggerRelative:
		w.WriteLong(t.rel.millis)
	}
}

// WriteTimeTrigger writes t preceded by its null flag.
func WriteTimeTrigger(w *parcel.Writer, t *TimeTrigger) {
	parcel.Write(w, t, t == nil)
}

// ReadTimeTrigger reads a trigger written by WriteTimeTrigger. An unknown
// discriminant, or a trigger without its time value, yields nil.
func ReadTimeTrigger(r *parcel.Reader) *TimeTrigger {
	if parcel.IsNull(r) {
		return nil
	}
	typ := TimeTriggerType(r.ReadInt())
	// Both variants carry a nullable long, so an unknown one can be skipped.
	var ms int64
	present := !parcel.IsNull(r)
	if present {
		ms = r.ReadLong()
	}
	if typ != TriggerAbsolute && typ != TriggerRelative {
		logger.WithField("type", int32(typ)).Warn("Unknown time trigger type")
		return nil
	}
	if !present {
		return nil
	}
	if typ == TriggerRelative {
		return NewRelativeTrigger(TimeInterval{millis: ms})
	}
	return NewAbsoluteTrigger(TimeStamp{millis: ms})
}

// LimitType selects which end of the available content a Limit keeps.
type LimitType int32

const (
	LimitOldest LimitType = 1
	LimitNewest LimitType = 2
)

// Limit bounds the number of items retrieved.
type Limit struct {
	Type  LimitType
	Count int32
}

// LimitDefault is applied to requests encoded before limits were carried on
// the wire.
var LimitDefault = Limit{Type: LimitNewest, Count: 100}

// Clone returns a copy of l.
func (l *Limit) Clone() *Limit {
	if l == nil {
		return nil
	}
	cp := *l
	return &cp
}

func NewLimit(count int32) *Limit {
	return &Limit{Type: LimitNewest, Count: count}
}

// ParseLimit accepts "<count>", "N:<count>" (newest) or "O:<count>"
// (oldest).
func ParseLimit(s string) (*Limit, error) {
	s = strings.TrimSpace(s)
	typ := LimitNewest
	if i := strings.IndexByte(s, ':'); i >= 0 {
		switch strings.ToUpper(s[:i]) {
		case "N", "NEWEST":
			typ = LimitNewest
		case "O", "OLDEST":
			typ = LimitOldest
		default:
			return nil, fmt.Errorf("invalid limit type %q", s[:i])
		}
		s = s[i+1:]
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid limit count %q", s)
	}
	return &Limit{Type: typ, Count: int32(n)}, nil
}

func (l *Limit) String() string {
	if l.Type == LimitOldest {
		return fmt.Sprintf("O:%d", l.Count)
	}
	return fmt.Sprintf("N:%d", l.Count)
}

func (l *Limit) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(l.Type))
	w.WriteInt(l.Count)
}

// WriteLimit writes l preceded by its null flag.
func WriteLimit(w *parcel.Writer, l *Limit) {
	parcel.Write(w, l, l == nil)
}

// ReadLimit reads a limit written by WriteLimit. An unknown type is read as
// newest.
func ReadLimit(r *parcel.Reader) *Limit {
	if parcel.IsNull(r) {
		return nil
	}
	typ := LimitType(r.ReadInt())
	count := r.ReadInt()
	if typ != LimitOldest && typ != LimitNewest {
		logger.WithField("type", int32(typ)).Warn("Unknown limit type, using newest")
		typ = LimitNewest
	}
	return &Limit{Type: typ, Count: count}
}
