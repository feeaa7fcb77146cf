package request

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// MakeRequestAction names the command used for indirect delivery.
const MakeRequestAction = "edu.vu.isis.ammo.api.MAKE_REQUEST"

// Distributor is a direct handle to the remote distributor.
type Distributor interface {
	MakeRequest(ctx context.Context, req *Request) (string, error)
}

// Command packages a request for indirect, fire-and-forget delivery.
type Command struct {
	Action  string
	Request *Request
}

// Commander delivers commands when no direct handle is available.
type Commander interface {
	StartCommand(ctx context.Context, cmd Command) error
}

// Mode is the state of the transport selection.
type Mode int32

const (
	ModeUnbound Mode = iota
	ModeBound
	ModePeek
	ModeCommand
)

func (m Mode) String() string {
	switch m {
	case ModeUnbound:
		return "unbound"
	case ModeBound:
		return "bound"
	case ModePeek:
		return "peek"
	case ModeCommand:
		return "command"
	}
	return "unknown"
}

// EventType tells connection notifications apart.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
)

// Event notifies the builder that a direct handle became available or was
// lost. Handle is only meaningful for EventConnected.
type Event struct {
	Type   EventType
	Handle Distributor
}

// Peeker performs a non-owning lookup of a direct handle. It returns nil when
// no distributor is reachable.
type Peeker func(ctx context.Context) Distributor

// handleSlot wraps the handle so atomic.Value always stores the same
// concrete type, including when the handle is cleared.
type handleSlot struct {
	d Distributor
}

// transport selects how requests reach the distributor. The handle is read
// without holding a lock across its use; it may be cleared or replaced
// concurrently.
type transport struct {
	logger     logrus.FieldLogger
	mode       int32
	handle     atomic.Value
	commander  Commander
	dispatched *prometheus.CounterVec

	stop     chan chan struct{}
	stopOnce sync.Once
}

func newTransport(logger logrus.FieldLogger, commander Commander, dispatched *prometheus.CounterVec) *transport {
	t := &transport{
		logger:     logger,
		mode:       int32(ModeUnbound),
		commander:  commander,
		dispatched: dispatched,
	}
	t.handle.Store(handleSlot{})
	return t
}

func (t *transport) Mode() Mode {
	return Mode(atomic.LoadInt32(&t.mode))
}

func (t *transport) set(mode Mode, d Distributor) {
	t.handle.Store(handleSlot{d: d})
	atomic.StoreInt32(&t.mode, int32(mode))
}

func (t *transport) current() Distributor {
	return t.handle.Load().(handleSlot).d
}

// peek resolves the transport synchronously: PEEK when the lookup yields a
// handle, COMMAND otherwise. It is never retried.
func (t *transport) peek(ctx context.Context, peeker Peeker) {
	d := peeker(ctx)
	if d == nil {
		t.logger.Warn("Distributor not peekable")
		t.set(ModeCommand, nil)
		return
	}
	t.logger.Info("Distributor available")
	t.set(ModePeek, d)
}

// bind consumes connection events until the channel is closed or the
// transport is released.
func (t *transport) bind(events <-chan Event) {
	t.stop = make(chan chan struct{})
	go t.loop(events)
}

func (t *transport) loop(events <-chan Event) {
	for {
		select {
		case ch := <-t.stop:
			close(ch)
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			t.handleEvent(ev)
		}
	}
}

func (t *transport) handleEvent(ev Event) {
	switch ev.Type {
	case EventConnected:
		t.logger.Debug("Distributor connected")
		t.set(ModeBound, ev.Handle)
	case EventDisconnected:
		t.logger.Debug("Distributor disconnected")
		t.set(ModeCommand, nil)
	}
}

// release stops the event loop, if any, and clears the handle.
func (t *transport) release() {
	t.stopOnce.Do(func() {
		if t.stop != nil {
			ch := make(chan struct{})
			t.stop <- ch
			<-ch
		}
		t.set(ModeUnbound, nil)
	})
}

// dispatch hands the request to the distributor. There is no retry: a failed
// direct call is reported as ErrRemoteUnavailable.
func (t *transport) dispatch(ctx context.Context, req *Request) error {
	mode := t.Mode()
	switch mode {
	case ModeBound, ModePeek:
		if d := t.current(); d != nil {
			t.count(mode)
			ident, err := d.MakeRequest(ctx, req)
			if err != nil {
				return errors.Wrapf(ErrRemoteUnavailable, "%s: %v", req.Action, err)
			}
			t.logger.WithFields(logrus.Fields{"request": req.UUID, "ident": ident}).Info("Request delivered")
			return nil
		}
		mode = ModeCommand
	}
	t.count(mode)
	if t.commander == nil {
		t.logger.WithField("request", req.UUID).Error("No transport available for request")
		return errors.Wrap(ErrRemoteUnavailable, "no commander")
	}
	err := t.commander.StartCommand(ctx, Command{Action: MakeRequestAction, Request: req})
	if err != nil {
		t.logger.WithField("request", req.UUID).WithError(err).Error("Service command failed")
		return errors.Wrapf(ErrRemoteUnavailable, "command: %v", err)
	}
	t.logger.WithField("request", req.UUID).Debug("Service command sent")
	return nil
}

func (t *transport) count(mode Mode) {
	if t.dispatched == nil {
		return
	}
	t.dispatched.WithLabelValues(mode.String()).Inc()
}
