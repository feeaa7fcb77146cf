package request

import (
	"context"
	"strings"

	"github.com/JiscSD/ammolib/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// TypeResolver resolves the MIME type of the content behind a provider URI.
type TypeResolver interface {
	GetType(ctx context.Context, uri string) string
}

// Option configures a Builder.
type Option func(*Builder)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithEvents puts the builder in bind mode: the transport starts unbound and
// follows the connection events received on ch.
func WithEvents(ch <-chan Event) Option {
	return func(b *Builder) {
		b.events = ch
	}
}

// WithPeeker puts the builder in peek mode: the handle is looked up once,
// when the builder is created.
func WithPeeker(p Peeker) Option {
	return func(b *Builder) {
		b.peeker = p
	}
}

// WithCommander sets the indirect transport.
func WithCommander(c Commander) Option {
	return func(b *Builder) {
		b.commander = c
	}
}

func WithTypeResolver(r TypeResolver) Option {
	return func(b *Builder) {
		b.resolver = r
	}
}

// WithDispatchCounter counts dispatched requests by transport mode. The
// counter must have a single "mode" label.
func WithDispatchCounter(c *prometheus.CounterVec) Option {
	return func(b *Builder) {
		b.dispatched = c
	}
}

// Builder assembles requests and hands them to the distributor. A Builder is
// not safe for concurrent use; its transport is.
type Builder struct {
	logger     logrus.FieldLogger
	events     <-chan Event
	peeker     Peeker
	commander  Commander
	resolver   TypeResolver
	dispatched *prometheus.CounterVec
	transport  *transport

	err error

	uid        string
	provider   *types.Provider
	payload    *types.Payload
	moment     types.SerialMoment
	topic      *types.Topic
	subtopic   *types.Topic
	downsample *int32
	durability *int32
	priority   int32
	order      types.Order
	start      *types.TimeTrigger
	expire     *types.TimeTrigger
	limit      *types.Limit
	scope      types.DeliveryScope
	throttle   *int32
	worth      int32
	notice     *types.Notice
	selection  *types.Selection
	projection []string
}

// NewBuilder returns a reset builder. In peek mode the lookup is performed
// with ctx before NewBuilder returns.
func NewBuilder(ctx context.Context, opts ...Option) *Builder {
	b := &Builder{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(b)
	}
	b.transport = newTransport(b.logger, b.commander, b.dispatched)
	switch {
	case b.events != nil:
		b.transport.bind(b.events)
	case b.peeker != nil:
		b.transport.peek(ctx, b.peeker)
	}
	return b.Reset()
}

// Mode returns the current transport mode.
func (b *Builder) Mode() Mode {
	return b.transport.Mode()
}

// Reset restores every field to its default.
func (b *Builder) Reset() *Builder {
	b.err = nil
	b.uid = ""
	b.provider = nil
	b.payload = types.NonePayload
	b.moment = types.MomentDefault
	b.topic = nil
	b.subtopic = nil
	b.downsample = nil
	b.durability = nil
	b.priority = 0
	b.order = types.OrderDefault
	b.start = nil
	b.expire = nil
	b.limit = nil
	b.scope = types.ScopeDefault
	b.throttle = nil
	b.worth = 0
	b.notice = types.NewNotice()
	b.selection = nil
	b.projection = nil
	return b
}

// Err returns the first error recorded by a string setter since the last
// reset.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(field, val string, err error) *Builder {
	if b.err == nil {
		b.err = errors.Wrapf(err, "invalid %s %q", field, val)
	}
	return b
}

func (b *Builder) parseInt(field, val string) (*int32, bool) {
	if val == "" {
		return nil, false
	}
	i, err := cast.ToInt32E(strings.TrimSpace(val))
	if err != nil {
		b.fail(field, val, err)
		return nil, false
	}
	return &i, true
}

func (b *Builder) Downsample(max int32) *Builder {
	b.downsample = &max
	return b
}

func (b *Builder) DownsampleString(s string) *Builder {
	if i, ok := b.parseInt("downsample", s); ok {
		b.downsample = i
	}
	return b
}

func (b *Builder) Durability(val int32) *Builder {
	b.durability = &val
	return b
}

func (b *Builder) DurabilityString(s string) *Builder {
	if i, ok := b.parseInt("durability", s); ok {
		b.durability = i
	}
	return b
}

func (b *Builder) Order(o types.Order) *Builder {
	b.order = o
	return b
}

func (b *Builder) OrderString(s string) *Builder {
	if s == "" {
		return b
	}
	return b.Order(types.ParseOrder(s))
}

func (b *Builder) PayloadString(s string) *Builder {
	if s == "" {
		return b
	}
	b.payload = types.NewStringPayload(s)
	return b
}

func (b *Builder) PayloadBytes(p []byte) *Builder {
	if p == nil {
		return b
	}
	b.payload = types.NewBytesPayload(p)
	return b
}

func (b *Builder) PayloadValues(vs types.Values) *Builder {
	if vs == nil {
		return b
	}
	b.payload = types.NewValuesPayload(vs)
	return b
}

func (b *Builder) Moment(m types.SerialMoment) *Builder {
	b.moment = m
	return b
}

func (b *Builder) MomentString(s string) *Builder {
	if s == "" {
		return b
	}
	return b.Moment(types.ParseSerialMoment(s))
}

func (b *Builder) Priority(val int32) *Builder {
	b.priority = val
	return b
}

func (b *Builder) PriorityString(s string) *Builder {
	if i, ok := b.parseInt("priority", s); ok {
		b.priority = *i
	}
	return b
}

// Provider sets the content provider URI. The content behind a provider is
// serialized before the request is made, so the moment becomes apriori.
func (b *Builder) Provider(uri string) *Builder {
	if uri == "" {
		return b
	}
	b.provider = types.NewProvider(uri)
	b.moment = types.MomentApriori
	return b
}

func (b *Builder) Scope(s types.DeliveryScope) *Builder {
	b.scope = s
	return b
}

func (b *Builder) ScopeString(s string) *Builder {
	if s == "" {
		return b
	}
	return b.Scope(types.ParseDeliveryScope(s))
}

func (b *Builder) Throttle(val int32) *Builder {
	b.throttle = &val
	return b
}

func (b *Builder) ThrottleString(s string) *Builder {
	if i, ok := b.parseInt("throttle", s); ok {
		b.throttle = i
	}
	return b
}

func (b *Builder) Topic(s string) *Builder {
	b.topic = types.NewTopic(s)
	return b
}

func (b *Builder) TopicOid(o types.Oid) *Builder {
	b.topic = types.NewOidTopic(o)
	return b
}

func (b *Builder) Subtopic(s string) *Builder {
	b.subtopic = types.NewTopic(s)
	return b
}

func (b *Builder) SubtopicOid(o types.Oid) *Builder {
	b.subtopic = types.NewOidTopic(o)
	return b
}

// TopicFromProvider uses the MIME type of the provider content as topic. The
// provider must be set first.
func (b *Builder) TopicFromProvider(ctx context.Context) *Builder {
	if b.provider == nil {
		b.logger.Error("The provider must be set before deriving the topic")
		return b
	}
	if b.resolver == nil {
		b.logger.Error("No type resolver available to derive the topic")
		return b
	}
	return b.Topic(b.resolver.GetType(ctx, b.provider.AsString()))
}

func (b *Builder) UID(s string) *Builder {
	b.uid = s
	return b
}

func (b *Builder) StartAt(ts types.TimeStamp) *Builder {
	b.start = types.NewAbsoluteTrigger(ts)
	return b
}

func (b *Builder) StartAfter(ti types.TimeInterval) *Builder {
	b.start = types.NewRelativeTrigger(ti)
	return b
}

// StartString accepts a time stamp or, failing that, a relative interval.
func (b *Builder) StartString(s string) *Builder {
	if t, ok := b.parseTrigger("start", s); ok {
		b.start = t
	}
	return b
}

func (b *Builder) ExpireAt(ts types.TimeStamp) *Builder {
	b.expire = types.NewAbsoluteTrigger(ts)
	return b
}

func (b *Builder) ExpireAfter(ti types.TimeInterval) *Builder {
	b.expire = types.NewRelativeTrigger(ti)
	return b
}

// ExpireString accepts a time stamp or, failing that, a relative interval.
func (b *Builder) ExpireString(s string) *Builder {
	if t, ok := b.parseTrigger("expire", s); ok {
		b.expire = t
	}
	return b
}

func (b *Builder) parseTrigger(field, s string) (*types.TimeTrigger, bool) {
	if s == "" {
		return nil, false
	}
	if ts, err := types.ParseTimeStamp(s); err == nil {
		return types.NewAbsoluteTrigger(ts), true
	}
	ti, err := types.ParseTimeInterval(s)
	if err != nil {
		b.fail(field, s, err)
		return nil, false
	}
	return types.NewRelativeTrigger(ti), true
}

func (b *Builder) Limit(l *types.Limit) *Builder {
	b.limit = l
	return b
}

// LimitCount keeps the newest n items.
func (b *Builder) LimitCount(n int32) *Builder {
	return b.Limit(types.NewLimit(n))
}

func (b *Builder) LimitString(s string) *Builder {
	if s == "" {
		return b
	}
	l, err := types.ParseLimit(s)
	if err != nil {
		return b.fail("limit", s, err)
	}
	return b.Limit(l)
}

func (b *Builder) Project(cols []string) *Builder {
	b.projection = cols
	return b
}

// ProjectString splits s on its first character, e.g. ",name,rank".
func (b *Builder) ProjectString(s string) *Builder {
	if len(s) < 1 {
		return b
	}
	return b.Project(strings.Split(s[1:], s[:1]))
}

func (b *Builder) SelectString(s string) *Builder {
	if s == "" {
		return b
	}
	b.selection = types.NewStringSelection(s)
	return b
}

func (b *Builder) SelectQuery(q *types.Query) *Builder {
	b.selection = types.NewQuerySelection(q)
	return b
}

func (b *Builder) SelectForm(f types.Form) *Builder {
	b.selection = types.NewFormSelection(f)
	return b
}

func (b *Builder) Worth(val int32) *Builder {
	b.worth = val
	return b
}

func (b *Builder) WorthString(s string) *Builder {
	if i, ok := b.parseInt("worth", s); ok {
		b.worth = *i
	}
	return b
}

// Notice adds via to a threshold. It is cumulative; use SetNotice to replace
// or clear the whole notice.
func (b *Builder) Notice(t types.Threshold, via types.Via) *Builder {
	b.notice.SetItem(t, via)
	return b
}

// SetNotice replaces the notice. A nil notice clears it.
func (b *Builder) SetNotice(n *types.Notice) *Builder {
	if n == nil {
		b.notice = types.NewNotice()
		return b
	}
	cp := *n
	b.notice = &cp
	return b
}

func (b *Builder) build(action Action) *Request {
	notice := *b.notice
	req := &Request{
		UUID:       uuid.New().String(),
		UID:        b.uid,
		Action:     action,
		Provider:   b.provider,
		Payload:    b.payload.Clone(),
		Moment:     b.moment,
		Topic:      b.topic.Clone(),
		Subtopic:   b.subtopic.Clone(),
		Downsample: b.downsample,
		Durability: b.durability,
		Priority:   b.priority,
		Order:      b.order,
		Start:      b.start,
		Expire:     b.expire,
		Limit:      b.limit.Clone(),
		Scope:      b.scope,
		Throttle:   b.throttle,
		Worth:      b.worth,
		Notice:     &notice,
		Selection:  b.selection.Clone(),
	}
	if b.projection != nil {
		req.Projection = append([]string(nil), b.projection...)
	}
	return req
}

// makeRequest builds the request and hands it to the transport. The request
// is returned even when the transport fails, so the caller can inspect it.
func (b *Builder) makeRequest(ctx context.Context, action Action) (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	req := b.build(action)
	if err := b.transport.dispatch(ctx, req); err != nil {
		return req, err
	}
	return req, nil
}

func (b *Builder) Post(ctx context.Context) (*Request, error) {
	return b.makeRequest(ctx, ActionPost)
}

// Retrieve pulls content from the distributor.
func (b *Builder) Retrieve(ctx context.Context) (*Request, error) {
	return b.makeRequest(ctx, ActionPull)
}

func (b *Builder) Subscribe(ctx context.Context) (*Request, error) {
	return b.Interest(ctx)
}

func (b *Builder) Interest(ctx context.Context) (*Request, error) {
	return b.makeRequest(ctx, ActionSubscribe)
}

func (b *Builder) Publish(ctx context.Context) (*Request, error) {
	return b.makeRequest(ctx, ActionPublish)
}

func (b *Builder) DirectedPost(ctx context.Context) (*Request, error) {
	return b.makeRequest(ctx, ActionDirectedPost)
}

func (b *Builder) DirectedSubscribe(ctx context.Context) (*Request, error) {
	return b.makeRequest(ctx, ActionDirectedSubscribe)
}

// Do runs the terminal operation of an action.
func (b *Builder) Do(ctx context.Context, action Action) (*Request, error) {
	if action == ActionNone {
		return nil, errors.New("no action given")
	}
	if _, ok := actionNames[action]; !ok {
		return nil, errors.Errorf("unknown action %d", int32(action))
	}
	return b.makeRequest(ctx, action)
}

// Duplicate is not supported.
func (b *Builder) Duplicate(ctx context.Context) (*Request, error) {
	return nil, ErrNotImplemented
}

// GetInstance is not supported.
func (b *Builder) GetInstance(ctx context.Context, uuid string) (*Request, error) {
	return nil, ErrNotImplemented
}

// Release unbinds from the distributor and stops the event loop.
func (b *Builder) Release() {
	b.transport.release()
}
