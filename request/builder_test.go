package request

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type distributorStub struct {
	mu   sync.Mutex
	reqs []*Request
	err  error
}

func (d *distributorStub) MakeRequest(ctx context.Context, req *Request) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.reqs = append(d.reqs, req)
	return "ident-" + req.UUID, nil
}

func (d *distributorStub) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reqs)
}

type commanderStub struct {
	cmds []Command
	err  error
}

func (c *commanderStub) StartCommand(ctx context.Context, cmd Command) error {
	if c.err != nil {
		return c.err
	}
	c.cmds = append(c.cmds, cmd)
	return nil
}

type typeResolverStub map[string]string

func (r typeResolverStub) GetType(ctx context.Context, uri string) string {
	return r[uri]
}

func newTestBuilder(opts ...Option) *Builder {
	logger, _ := test.NewNullLogger()
	return NewBuilder(context.Background(), append([]Option{WithLogger(logger)}, opts...)...)
}

func TestBuilder_Defaults(t *testing.T) {
	cmd := &commanderStub{}
	b := newTestBuilder(WithCommander(cmd))

	req, err := b.Post(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, req.UUID)
	assert.Equal(t, ActionPost, req.Action)
	assert.Equal(t, types.NonePayload, req.Payload)
	assert.Equal(t, types.MomentDefault, req.Moment)
	assert.Equal(t, types.OrderDefault, req.Order)
	assert.Equal(t, types.ScopeDefault, req.Scope)
	assert.Equal(t, types.NewNotice(), req.Notice)
	assert.Nil(t, req.Limit)
	require.Len(t, cmd.cmds, 1)
	assert.Equal(t, MakeRequestAction, cmd.cmds[0].Action)
	assert.Equal(t, req, cmd.cmds[0].Request)
}

func TestBuilder_FreshUUIDs(t *testing.T) {
	b := newTestBuilder(WithCommander(&commanderStub{}))

	r1, err := b.Post(context.Background())
	require.NoError(t, err)
	r2, err := b.Post(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, r1.UUID, r2.UUID)
}

func TestBuilder_ProviderSetsMoment(t *testing.T) {
	b := newTestBuilder().Moment(types.MomentEager).Provider("content://a/b")
	assert.Equal(t, types.MomentApriori, b.moment)

	b.Reset().Moment(types.MomentEager).Provider("")
	assert.Equal(t, types.MomentEager, b.moment)
	assert.Nil(t, b.provider)
}

func TestBuilder_TolerantSetters(t *testing.T) {
	b := newTestBuilder().
		Downsample(4).DownsampleString("").
		Priority(2).PriorityString("").
		OrderString("").
		PayloadString("keep").PayloadString("").
		LimitString("").
		ProjectString("")

	assert.Equal(t, int32(4), *b.downsample)
	assert.Equal(t, int32(2), b.priority)
	assert.Equal(t, types.OrderDefault, b.order)
	assert.Equal(t, "keep", b.payload.AsString())
	assert.Nil(t, b.limit)
	assert.Nil(t, b.projection)
	assert.NoError(t, b.Err())
}

func TestBuilder_ParseFailure(t *testing.T) {
	cmd := &commanderStub{}
	b := newTestBuilder(WithCommander(cmd)).WorthString("lots").ThrottleString("x")

	req, err := b.Post(context.Background())

	assert.Nil(t, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worth")
	assert.Empty(t, cmd.cmds)

	_, err = b.Reset().Post(context.Background())
	assert.NoError(t, err)
}

func TestBuilder_StringSetters(t *testing.T) {
	b := newTestBuilder().
		DownsampleString("10").
		DurabilityString("3").
		PriorityString("5").
		OrderString("LIFO").
		MomentString("eager").
		ScopeString("local").
		ThrottleString("7").
		WorthString("9").
		StartString("2020-01-02T03:04:05Z").
		ExpireString("90s").
		LimitString("O:5").
		ProjectString("|name|rank").
		SelectString("name = 'fred'")

	require.NoError(t, b.Err())
	req := b.build(ActionPull)
	assert.Equal(t, int32(10), *req.Downsample)
	assert.Equal(t, int32(3), *req.Durability)
	assert.Equal(t, int32(5), req.Priority)
	assert.Equal(t, types.OrderNewestFirst, req.Order)
	assert.Equal(t, types.MomentEager, req.Moment)
	assert.Equal(t, types.ScopeLocal, req.Scope)
	assert.Equal(t, int32(7), *req.Throttle)
	assert.Equal(t, int32(9), req.Worth)
	assert.Equal(t, types.TriggerAbsolute, req.Start.Type())
	assert.Equal(t, types.TriggerRelative, req.Expire.Type())
	assert.Equal(t, 90*time.Second, req.Expire.Relative().Duration())
	assert.Equal(t, &types.Limit{Type: types.LimitOldest, Count: 5}, req.Limit)
	assert.Equal(t, []string{"name", "rank"}, req.Projection)
	assert.Equal(t, "name = 'fred'", req.Selection.AsString())
}

func TestBuilder_RequestIsolatedFromCaller(t *testing.T) {
	ctx := context.Background()
	cmd := &commanderStub{}
	b := newTestBuilder(WithCommander(cmd))

	vs := types.NewValues().PutString("a", "1")
	form := types.Form{"k": "v"}
	limit := &types.Limit{Type: types.LimitOldest, Count: 5}
	oid := types.Oid{1, 3, 6}
	req, err := b.PayloadValues(vs).SelectForm(form).Limit(limit).TopicOid(oid).Post(ctx)
	require.NoError(t, err)

	vs.PutString("a", "changed")
	form["k"] = "changed"
	limit.Count = 500
	oid[0] = 9

	a, _ := req.Payload.Values().AsString("a")
	assert.Equal(t, "1", a)
	assert.Equal(t, "v", req.Selection.Form()["k"])
	assert.Equal(t, int32(5), req.Limit.Count)
	assert.Equal(t, "1.3.6", req.Topic.AsString())
	require.Len(t, cmd.cmds, 1)
	assert.Same(t, req, cmd.cmds[0].Request)

	args := []string{"fred"}
	req, err = b.Reset().SelectQuery(&types.Query{Select: "name = ?", Args: args}).Post(ctx)
	require.NoError(t, err)
	args[0] = "barney"
	assert.Equal(t, []string{"fred"}, req.Selection.Query().Args)
}

func TestBuilder_LimitCount(t *testing.T) {
	b := newTestBuilder().LimitCount(12)
	assert.Equal(t, &types.Limit{Type: types.LimitNewest, Count: 12}, b.limit)
}

func TestBuilder_Notice(t *testing.T) {
	b := newTestBuilder().
		Notice(types.ThresholdSent, types.ViaActivity).
		Notice(types.ThresholdSent, types.ViaBroadcast)

	req := b.build(ActionPost)
	assert.Equal(t, types.ViaActivity|types.ViaBroadcast, req.Notice.Via(types.ThresholdSent))

	// Later changes to the builder do not leak into built requests.
	b.Notice(types.ThresholdGateDelivery, types.ViaService)
	assert.Equal(t, types.ViaNone, req.Notice.Via(types.ThresholdGateDelivery))

	b.SetNotice(nil)
	assert.False(t, b.notice.IsAckNeeded())

	n := types.NewNotice().SetItem(types.ThresholdDeviceDelivery, types.ViaHeartbeat)
	b.SetNotice(n)
	assert.Equal(t, types.ViaHeartbeat, b.notice.Via(types.ThresholdDeviceDelivery))
}

func TestBuilder_TopicFromProvider(t *testing.T) {
	resolver := typeResolverStub{"content://a/b": "application/vnd.a.b"}
	b := newTestBuilder(WithTypeResolver(resolver))

	b.TopicFromProvider(context.Background())
	assert.Nil(t, b.topic)

	b.Provider("content://a/b").TopicFromProvider(context.Background())
	require.NotNil(t, b.topic)
	assert.Equal(t, "application/vnd.a.b", b.topic.AsString())
}

func TestBuilder_Extras(t *testing.T) {
	vals, err := ParsePairs([]string{
		"topic=location",
		"subtopic=squad1",
		"payload=hello",
		"priority=3",
		"notice=device:broadcast+sticky",
		"notice=sent:activity",
	})
	require.NoError(t, err)

	e, err := DecodeExtras(vals)
	require.NoError(t, err)

	req := newTestBuilder().Extras(e).build(ActionPost)
	assert.Equal(t, "location", req.Topic.AsString())
	assert.Equal(t, "squad1", req.Subtopic.AsString())
	assert.Equal(t, "hello", req.Payload.AsString())
	assert.Equal(t, int32(3), req.Priority)
	assert.Equal(t, types.ViaBroadcast|types.ViaStickyBroadcast, req.Notice.Via(types.ThresholdDeviceDelivery))
	assert.Equal(t, types.ViaActivity, req.Notice.Via(types.ThresholdSent))
}

func TestDecodeExtras_Invalid(t *testing.T) {
	_, err := ParsePairs([]string{"novalue"})
	assert.Error(t, err)

	_, err = DecodeExtras(url.Values{"colour": []string{"red"}})
	assert.Error(t, err)

	e := &Extras{Notice: []string{"device"}}
	b := newTestBuilder().Extras(e)
	assert.Error(t, b.Err())
}

func TestBuilder_Peek(t *testing.T) {
	d := &distributorStub{}
	b := newTestBuilder(WithPeeker(func(ctx context.Context) Distributor { return d }))
	require.Equal(t, ModePeek, b.Mode())

	req, err := b.Retrieve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionPull, req.Action)
	assert.Equal(t, 1, d.count())
}

func TestBuilder_PeekFailure(t *testing.T) {
	cmd := &commanderStub{}
	b := newTestBuilder(
		WithPeeker(func(ctx context.Context) Distributor { return nil }),
		WithCommander(cmd))
	require.Equal(t, ModeCommand, b.Mode())

	_, err := b.Subscribe(context.Background())

	require.NoError(t, err)
	require.Len(t, cmd.cmds, 1)
	assert.Equal(t, ActionSubscribe, cmd.cmds[0].Request.Action)
}

func TestBuilder_Bind(t *testing.T) {
	events := make(chan Event)
	cmd := &commanderStub{}
	d := &distributorStub{}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dispatched"}, []string{"mode"})
	b := newTestBuilder(WithEvents(events), WithCommander(cmd), WithDispatchCounter(counter))
	defer b.Release()

	require.Equal(t, ModeUnbound, b.Mode())
	_, err := b.Post(context.Background())
	require.NoError(t, err)
	assert.Len(t, cmd.cmds, 1)

	events <- Event{Type: EventConnected, Handle: d}
	require.Eventually(t, func() bool { return b.Mode() == ModeBound }, time.Second, time.Millisecond)
	_, err = b.Publish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.count())

	events <- Event{Type: EventDisconnected}
	require.Eventually(t, func() bool { return b.Mode() == ModeCommand }, time.Second, time.Millisecond)
	_, err = b.DirectedPost(context.Background())
	require.NoError(t, err)
	assert.Len(t, cmd.cmds, 2)

	assert.Equal(t, float64(1), promtest.ToFloat64(counter.WithLabelValues("unbound")))
	assert.Equal(t, float64(1), promtest.ToFloat64(counter.WithLabelValues("bound")))
	assert.Equal(t, float64(1), promtest.ToFloat64(counter.WithLabelValues("command")))
}

func TestBuilder_BoundWithoutHandle(t *testing.T) {
	events := make(chan Event)
	cmd := &commanderStub{}
	b := newTestBuilder(WithEvents(events), WithCommander(cmd))
	defer b.Release()

	events <- Event{Type: EventConnected}
	require.Eventually(t, func() bool { return b.Mode() == ModeBound }, time.Second, time.Millisecond)

	_, err := b.DirectedSubscribe(context.Background())
	require.NoError(t, err)
	assert.Len(t, cmd.cmds, 1)
}

func TestBuilder_RemoteUnavailable(t *testing.T) {
	d := &distributorStub{err: errors.New("dead object")}
	b := newTestBuilder(WithPeeker(func(ctx context.Context) Distributor { return d }))

	req, err := b.Post(context.Background())
	require.Error(t, err)
	assert.NotNil(t, req)
	assert.Equal(t, ErrRemoteUnavailable, errors.Cause(err))

	b = newTestBuilder()
	_, err = b.Post(context.Background())
	assert.Equal(t, ErrRemoteUnavailable, errors.Cause(err))

	b = newTestBuilder(WithCommander(&commanderStub{err: errors.New("no service")}))
	_, err = b.Post(context.Background())
	assert.Equal(t, ErrRemoteUnavailable, errors.Cause(err))
}

func TestBuilder_NotImplemented(t *testing.T) {
	b := newTestBuilder()

	_, err := b.Duplicate(context.Background())
	assert.Equal(t, ErrNotImplemented, err)
	_, err = b.GetInstance(context.Background(), "abc")
	assert.Equal(t, ErrNotImplemented, err)
}

func TestBuilder_Do(t *testing.T) {
	b := newTestBuilder(WithCommander(&commanderStub{}))

	req, err := b.Do(context.Background(), ActionPublish)
	require.NoError(t, err)
	assert.Equal(t, ActionPublish, req.Action)

	_, err = b.Do(context.Background(), ActionNone)
	assert.Error(t, err)
}

func TestBuilder_ReleaseIdempotent(t *testing.T) {
	b := newTestBuilder(WithEvents(make(chan Event)))
	b.Release()
	b.Release()
	assert.Equal(t, ModeUnbound, b.Mode())
}
