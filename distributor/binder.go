package distributor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/JiscSD/ammolib/request"

	"github.com/cenkalti/backoff/v3"
	"github.com/sirupsen/logrus"
)

const defaultProbeInterval = 30 * time.Second

// Binder watches a remote distributor and reports when it becomes
// available or goes away. A Connected event carries the distributor as its
// handle.
type Binder struct {
	remote     Remote
	events     chan request.Event
	interval   time.Duration
	newBackOff func() backoff.BackOff
	logger     logrus.FieldLogger

	connected int32
	probeNow  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

type BinderOption func(*Binder)

func WithProbeInterval(d time.Duration) BinderOption {
	return func(b *Binder) {
		b.interval = d
	}
}

// WithBackOff sets the policy used to retry a failed probe before the
// distributor is reported as gone.
func WithBackOff(fn func() backoff.BackOff) BinderOption {
	return func(b *Binder) {
		b.newBackOff = fn
	}
}

func WithBinderLogger(logger logrus.FieldLogger) BinderOption {
	return func(b *Binder) {
		b.logger = logger
	}
}

// NewBinder starts probing remote until Stop is called.
func NewBinder(ctx context.Context, remote Remote, opts ...BinderOption) *Binder {
	b := &Binder{
		remote:   remote,
		events:   make(chan request.Event, 1),
		interval: defaultProbeInterval,
		logger:   logrus.StandardLogger(),
		probeNow: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	b.newBackOff = func() backoff.BackOff {
		return &backoff.ExponentialBackOff{
			InitialInterval:     500 * time.Millisecond,
			RandomizationFactor: 0.5,
			Multiplier:          1.5,
			MaxInterval:         5 * time.Second,
			MaxElapsedTime:      b.interval / 2,
			Clock:               backoff.SystemClock,
		}
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	go b.loop()
	return b
}

// Events delivers availability changes. The channel is closed once the
// binder stops.
func (b *Binder) Events() <-chan request.Event {
	return b.events
}

// Done is closed when the binder has stopped.
func (b *Binder) Done() <-chan struct{} {
	return b.done
}

// Connected reports the outcome of the last probe.
func (b *Binder) Connected() bool {
	return atomic.LoadInt32(&b.connected) == 1
}

// Probe asks for a probe without waiting for the next tick.
func (b *Binder) Probe() {
	select {
	case b.probeNow <- struct{}{}:
	default:
	}
}

// Stop blocks until the probing loop has exited.
func (b *Binder) Stop() {
	b.cancel()
	<-b.done
}

func (b *Binder) loop() {
	defer close(b.done)
	defer close(b.events)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		b.probe()
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
		case <-b.probeNow:
		}
	}
}

func (b *Binder) probe() {
	bo := backoff.WithContext(b.newBackOff(), b.ctx)
	err := backoff.Retry(func() error {
		return b.remote.Ping(b.ctx)
	}, bo)
	if b.ctx.Err() != nil {
		return
	}

	connected := b.Connected()
	switch {
	case err == nil && !connected:
		b.logger.Info("Distributor is available")
		atomic.StoreInt32(&b.connected, 1)
		b.emit(request.Event{Type: request.EventConnected, Handle: b.remote})
	case err != nil && connected:
		b.logger.WithError(err).Warn("Distributor is gone")
		atomic.StoreInt32(&b.connected, 0)
		b.emit(request.Event{Type: request.EventDisconnected})
	case err != nil:
		b.logger.WithError(err).Debug("Distributor is still unavailable")
	}
}

func (b *Binder) emit(ev request.Event) {
	select {
	case b.events <- ev:
	case <-b.ctx.Done():
	}
}
