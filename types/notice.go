package types

import (
	"fmt"
	"strings"

	"github.com/JiscSD/ammolib/parcel"
)

// Threshold is a point in the delivery progress of a request at which an
// acknowledgement may be generated.
type Threshold int32

const (
	ThresholdSent           Threshold = 0x01
	ThresholdGateDelivery   Threshold = 0x02
	ThresholdPluginDelivery Threshold = 0x04
	ThresholdDeviceDelivery Threshold = 0x08
)

// Thresholds lists every threshold in wire order.
var Thresholds = []Threshold{
	ThresholdSent,
	ThresholdGateDelivery,
	ThresholdPluginDelivery,
	ThresholdDeviceDelivery,
}

func (t Threshold) index() int {
	switch t {
	case ThresholdSent:
		return 0
	case ThresholdGateDelivery:
		return 1
	case ThresholdPluginDelivery:
		return 2
	case ThresholdDeviceDelivery:
		return 3
	}
	return -1
}

// Valid reports whether t is a known threshold.
func (t Threshold) Valid() bool {
	return t.index() >= 0
}

func (t Threshold) String() string {
	switch t {
	case ThresholdSent:
		return "sent"
	case ThresholdGateDelivery:
		return "gateway in-bound"
	case ThresholdPluginDelivery:
		return "gateway to plugin"
	case ThresholdDeviceDelivery:
		return "handheld delivered"
	}
	return fmt.Sprintf("unknown(%d)", int32(t))
}

// Via is a bitmask of the mechanisms used to notify when a threshold is
// crossed.
type Via int32

const (
	ViaNone            Via = 0x00
	ViaActivity        Via = 0x01
	ViaBroadcast       Via = 0x02
	ViaStickyBroadcast Via = 0x04
	ViaService         Via = 0x08
	ViaHeartbeat       Via = 0x10
)

// IsActive reports whether any mechanism is set.
func (v Via) IsActive() bool {
	return v != ViaNone
}

func (v Via) HasHeartbeat() bool {
	return v&ViaHeartbeat != 0
}

// Bits returns the binary representation of the mask.
func (v Via) Bits() string {
	return fmt.Sprintf("%b", int32(v))
}

func (v Via) String() string {
	if v == ViaNone {
		return "NONE"
	}
	var sb strings.Builder
	sb.WriteByte(':')
	for _, f := range []struct {
		bit  Via
		name string
	}{
		{ViaActivity, "activity"},
		{ViaService, "service"},
		{ViaBroadcast, "broadcast"},
		{ViaStickyBroadcast, "sticky"},
		{ViaHeartbeat, "heartbeat"},
	} {
		if v&f.bit != 0 {
			sb.WriteString(f.name)
			sb.WriteByte(':')
		}
	}
	return sb.String()
}

// DeliveryState is the state reported by an acknowledgement. Every state is
// final except DeliveryRejected: another receiver may still accept.
type DeliveryState int

const (
	DeliverySuccess DeliveryState = iota
	DeliveryFail
	DeliveryUnknown
	DeliveryRejected
)

func (s DeliveryState) String() string {
	switch s {
	case DeliverySuccess:
		return "SUCCESS"
	case DeliveryFail:
		return "FAIL"
	case DeliveryRejected:
		return "REJECTED"
	}
	return "UNKNOWN"
}

// Notice holds a Via for each of the four thresholds. The set is never
// sparse: thresholds that were not set hold ViaNone.
type Notice struct {
	via [4]Via
}

func NewNotice() *Notice {
	return &Notice{}
}

// SetItem adds via to the threshold mask. ViaNone clears it.
func (n *Notice) SetItem(t Threshold, via Via) *Notice {
	ix := t.index()
	if ix < 0 {
		logger.WithField("threshold", int32(t)).Warn("No threshold of this type")
		return n
	}
	if via == ViaNone {
		n.via[ix] = ViaNone
		return n
	}
	n.via[ix] |= via
	return n
}

// SetAggregate replaces the threshold mask.
func (n *Notice) SetAggregate(t Threshold, via Via) *Notice {
	ix := t.index()
	if ix < 0 {
		logger.WithField("threshold", int32(t)).Warn("No threshold of this type")
		return n
	}
	n.via[ix] = via
	return n
}

// Via returns the mask of a threshold.
func (n *Notice) Via(t Threshold) Via {
	ix := t.index()
	if ix < 0 {
		return ViaNone
	}
	return n.via[ix]
}

// IsAckNeeded reports whether any threshold asks for a notification.
func (n *Notice) IsAckNeeded() bool {
	for _, v := range n.via {
		if v.IsActive() {
			return true
		}
	}
	return false
}

// IsRemoteActive reports whether a threshold beyond the local send asks for
// a notification.
func (n *Notice) IsRemoteActive() bool {
	return n.Via(ThresholdGateDelivery).IsActive() ||
		n.Via(ThresholdPluginDelivery).IsActive() ||
		n.Via(ThresholdDeviceDelivery).IsActive()
}

func (n *Notice) String() string {
	var sb strings.Builder
	sb.WriteString("notice :")
	for _, t := range Thresholds {
		fmt.Fprintf(&sb, " @%s->[%s]", t, n.Via(t))
	}
	return sb.String()
}

func (n *Notice) MarshalParcel(w *parcel.Writer) {
	w.WriteInt(int32(len(Thresholds)))
	for _, t := range Thresholds {
		w.WriteInt(int32(t))
		w.WriteInt(int32(n.Via(t)))
	}
}

// WriteNotice writes n preceded by its null flag.
func WriteNotice(w *parcel.Writer, n *Notice) {
	parcel.Write(w, n, n == nil)
}

// ReadNotice reads a notice written by WriteNotice. Unknown thresholds are
// skipped; thresholds absent from the wire hold ViaNone.
func ReadNotice(r *parcel.Reader) *Notice {
	if parcel.IsNull(r) {
		return nil
	}
	n := NewNotice()
	count := r.ReadInt()
	for i := int32(0); i < count && r.Err() == nil; i++ {
		t := Threshold(r.ReadInt())
		via := Via(r.ReadInt())
		if !t.Valid() {
			logger.WithField("threshold", int32(t)).Warn("Skipping unknown notice threshold")
			continue
		}
		n.SetAggregate(t, via)
	}
	return n
}

// Pickle encodes the notice as a standalone parcel, e.g. for a notice
// column.
func (n *Notice) Pickle() []byte {
	w := parcel.NewWriter()
	WriteNotice(w, n)
	return w.Bytes()
}

// UnpickleNotice decodes a standalone notice parcel. Malformed input yields
// nil.
func UnpickleNotice(b []byte) *Notice {
	r := parcel.NewReader(b)
	n := ReadNotice(r)
	if r.Err() != nil {
		logger.WithError(r.Err()).Warn("Notice could not be unpickled")
		return nil
	}
	return n
}

// ParseThreshold accepts the threshold names used on the command line:
// sent, gate, plugin and device.
func ParseThreshold(s string) (Threshold, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sent":
		return ThresholdSent, nil
	case "gate", "gateway":
		return ThresholdGateDelivery, nil
	case "plugin":
		return ThresholdPluginDelivery, nil
	case "device", "handheld":
		return ThresholdDeviceDelivery, nil
	}
	return 0, fmt.Errorf("unknown threshold %q", s)
}

// ParseVia accepts mechanism names joined with "+", e.g. "broadcast+sticky".
// "none" yields ViaNone.
func ParseVia(s string) (Via, error) {
	var via Via
	for _, name := range strings.Split(s, "+") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "none":
		case "activity":
			via |= ViaActivity
		case "broadcast":
			via |= ViaBroadcast
		case "sticky":
			via |= ViaStickyBroadcast
		case "service":
			via |= ViaService
		case "heartbeat":
			via |= ViaHeartbeat
		default:
			return ViaNone, fmt.Errorf("unknown notice mechanism %q", name)
		}
	}
	return via, nil
}
