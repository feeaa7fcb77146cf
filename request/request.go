// Package request implements the request envelope exchanged with the
// distributor, the builder used by applications to produce requests and the
// selection of the transport used to deliver them.
package request

import (
	"fmt"
	"strings"

	"github.com/JiscSD/ammolib/parcel"
	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Version of the envelope produced by this package. Fields are only ever
// appended; older envelopes are decoded with per-field defaults.
const Version byte = 0x03

var (
	// ErrVersionMismatch is returned when an envelope was produced by a newer
	// encoder than this package.
	ErrVersionMismatch = errors.New("request version mismatch")

	// ErrRemoteUnavailable is returned when a request could not be handed to
	// the distributor through any transport.
	ErrRemoteUnavailable = errors.New("remote distributor unavailable")

	// ErrNotImplemented is returned by the operations that are declared but
	// not supported.
	ErrNotImplemented = errors.New("not implemented")
)

// Action is what the distributor is asked to do with a request.
type Action int32

const (
	ActionNone              Action = 0
	ActionPost              Action = 1
	ActionPull              Action = 2
	ActionSubscribe         Action = 3
	ActionPublish           Action = 4
	ActionDirectedPost      Action = 5
	ActionDirectedSubscribe Action = 6
)

var actionNames = map[Action]string{
	ActionNone:              "none",
	ActionPost:              "post",
	ActionPull:              "pull",
	ActionSubscribe:         "subscribe",
	ActionPublish:           "publish",
	ActionDirectedPost:      "directed-post",
	ActionDirectedSubscribe: "directed-subscribe",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int32(a))
}

var actionAliases = map[string]Action{
	"postal":    ActionPost,
	"retrieve":  ActionPull,
	"retrieval": ActionPull,
	"interest":  ActionSubscribe,
}

// ParseAction returns the action named s. "retrieve" and "interest" are
// accepted as aliases of pull and subscribe.
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if a, ok := actionAliases[s]; ok {
		return a, nil
	}
	for a, name := range actionNames {
		if name == s && a != ActionNone {
			return a, nil
		}
	}
	return ActionNone, errors.Errorf("unknown action %q", s)
}

func readAction(r *parcel.Reader, logger logrus.FieldLogger) Action {
	a := Action(r.ReadInt())
	if _, ok := actionNames[a]; !ok {
		logger.WithField("action", int32(a)).Warn("Unknown request action")
		return ActionNone
	}
	return a
}

// Request is the envelope handed to the distributor. Requests are built by a
// Builder or decoded with Unmarshal and should be treated as read-only.
type Request struct {
	UUID       string
	UID        string
	Action     Action
	Provider   *types.Provider
	Payload    *types.Payload
	Moment     types.SerialMoment
	Topic      *types.Topic
	Subtopic   *types.Topic
	Downsample *int32
	Durability *int32
	Priority   int32
	Order      types.Order
	Start      *types.TimeTrigger
	Expire     *types.TimeTrigger
	Limit      *types.Limit
	Scope      types.DeliveryScope
	Throttle   *int32
	Worth      int32
	Notice     *types.Notice
	Selection  *types.Selection
	Projection []string
}

func (req *Request) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "uuid=%s uid=%s action=%s", req.UUID, req.UID, req.Action)
	if req.Topic != nil {
		fmt.Fprintf(&sb, " topic=%s", req.Topic.AsString())
	}
	if req.Subtopic != nil {
		fmt.Fprintf(&sb, " subtopic=%s", req.Subtopic.AsString())
	}
	if req.Provider != nil {
		fmt.Fprintf(&sb, " provider=%s", req.Provider.AsString())
	}
	return sb.String()
}

// Replace is declared for parity with the distributor API but is not
// supported.
func (req *Request) Replace(uuid string) (*Request, error) {
	return nil, ErrNotImplemented
}

// Cancel is declared for parity with the distributor API but is not
// supported.
func (req *Request) Cancel() error {
	return ErrNotImplemented
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// MarshalParcel writes the envelope, version byte first.
func (req *Request) MarshalParcel(w *parcel.Writer) {
	_ = w.WriteByte(Version)

	_ = w.WriteValue(nullableString(req.UUID))
	_ = w.WriteValue(nullableString(req.UID))
	w.WriteInt(int32(req.Action))

	types.WriteProvider(w, req.Provider)
	types.WritePayload(w, req.Payload)
	moment := req.Moment
	types.WriteSerialMoment(w, &moment)
	types.WriteTopic(w, req.Topic)
	types.WriteTopic(w, req.Subtopic)

	_ = w.WriteValue(req.Downsample)
	_ = w.WriteValue(req.Durability)

	_ = w.WriteValue(req.Priority)
	order := req.Order
	types.WriteOrder(w, &order)

	types.WriteTimeTrigger(w, req.Start)
	types.WriteTimeTrigger(w, req.Expire)
	types.WriteLimit(w, req.Limit)

	scope := req.Scope
	types.WriteDeliveryScope(w, &scope)
	_ = w.WriteValue(req.Throttle)
	_ = w.WriteValue(req.Worth)

	types.WriteNotice(w, req.Notice)

	types.WriteSelection(w, req.Selection)
	w.WriteStringArray(req.Projection)
}

// Marshal encodes the request.
func Marshal(req *Request) []byte {
	w := parcel.NewWriter()
	req.MarshalParcel(w)
	return w.Bytes()
}

// Unmarshal decodes an envelope using the package logger.
func Unmarshal(data []byte) (*Request, error) {
	return Decode(data, logrus.StandardLogger())
}

// Decode decodes an envelope. Envelopes from a newer encoder are rejected with
// ErrVersionMismatch. Envelopes from an older encoder are decoded with the
// defaults of the fields they lack: version 2 and older carry no uid (the
// uuid is used) nor moment (lazy), version 1 carries no limit (newest 100).
func Decode(data []byte, logger logrus.FieldLogger) (*Request, error) {
	r := parcel.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "error reading request version")
	}
	switch {
	case version > Version:
		logger.WithFields(logrus.Fields{"received": version, "expected": Version}).Warn("Request version mismatch")
		return nil, errors.Wrapf(ErrVersionMismatch, "received %d, expected %d", version, Version)
	case version < Version:
		logger.WithFields(logrus.Fields{"received": version, "expected": Version}).Warn("Request version mismatch, applying defaults")
	default:
		logger.WithField("version", version).Debug("Request version match")
	}

	req := &Request{}
	req.UUID = derefString(r.ReadStringValue())
	if version < 3 {
		req.UID = req.UUID
	} else {
		req.UID = derefString(r.ReadStringValue())
	}
	req.Action = readAction(r, logger)

	req.Provider = types.ReadProvider(r)
	req.Payload = types.ReadPayload(r)
	req.Moment = types.MomentLazy
	if version >= 3 {
		if m := types.ReadSerialMoment(r); m != nil {
			req.Moment = *m
		} else {
			req.Moment = types.MomentDefault
		}
	}
	req.Topic = types.ReadTopic(r)
	req.Subtopic = types.ReadTopic(r)

	req.Downsample = r.ReadIntValue()
	req.Durability = r.ReadIntValue()

	if p := r.ReadIntValue(); p != nil {
		req.Priority = *p
	}
	req.Order = types.OrderDefault
	if o := types.ReadOrder(r); o != nil {
		req.Order = *o
	}

	req.Start = types.ReadTimeTrigger(r)
	req.Expire = types.ReadTimeTrigger(r)
	if version < 2 {
		limit := types.LimitDefault
		req.Limit = &limit
	} else {
		req.Limit = types.ReadLimit(r)
	}

	req.Scope = types.ScopeDefault
	if s := types.ReadDeliveryScope(r); s != nil {
		req.Scope = *s
	}
	req.Throttle = r.ReadIntValue()
	if v := r.ReadIntValue(); v != nil {
		req.Worth = *v
	}

	req.Notice = types.ReadNotice(r)
	if req.Notice == nil {
		req.Notice = types.NewNotice()
	}

	req.Selection = types.ReadSelection(r)
	req.Projection = r.ReadStringArray()

	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "error decoding request")
	}
	logger.WithField("request", req).Debug("Request decoded")
	return req, nil
}
