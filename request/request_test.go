package request

import (
	"bytes"
	"testing"

	"github.com/JiscSD/ammolib/parcel"
	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int32p(i int32) *int32 {
	return &i
}

func fullRequest() *Request {
	return &Request{
		UUID:       "0b3c5a26-1f0e-4c39-9b1f-7a3b3c0f8c11",
		UID:        "my-uid",
		Action:     ActionPost,
		Provider:   types.NewProvider("content://edu.vu.isis.ammo.test/item/4"),
		Payload:    types.NewValuesPayload(types.NewValues().PutString("name", "fred").PutInt("age", 33)),
		Moment:     types.MomentEager,
		Topic:      types.NewTopic("application/vnd.edu.vu.isis.ammo.test"),
		Subtopic:   types.NewOidTopic(types.Oid{1, 3, 6}),
		Downsample: int32p(10),
		Durability: int32p(3),
		Priority:   5,
		Order:      types.OrderNewestFirst,
		Start:      types.NewAbsoluteTrigger(types.TimeStampMillis(1500000000000)),
		Expire:     types.NewRelativeTrigger(types.TimeInterval{}),
		Limit:      &types.Limit{Type: types.LimitOldest, Count: 20},
		Scope:      types.ScopeLocal,
		Throttle:   int32p(7),
		Worth:      9,
		Notice:     types.NewNotice().SetItem(types.ThresholdDeviceDelivery, types.ViaBroadcast),
		Selection:  types.NewQuerySelection(&types.Query{Select: "name = ?", Args: []string{"fred"}}),
		Projection: []string{"name", "age"},
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	req := fullRequest()

	out, err := Unmarshal(Marshal(req))

	require.NoError(t, err)
	assert.Equal(t, req.UUID, out.UUID)
	assert.Equal(t, req.UID, out.UID)
	assert.Equal(t, req.Action, out.Action)
	assert.Equal(t, req.Provider, out.Provider)
	assert.True(t, req.Payload.Equal(out.Payload))
	assert.Equal(t, req.Moment, out.Moment)
	assert.True(t, req.Topic.Equal(out.Topic))
	assert.True(t, req.Subtopic.Equal(out.Subtopic))
	assert.Equal(t, req.Downsample, out.Downsample)
	assert.Equal(t, req.Durability, out.Durability)
	assert.Equal(t, req.Priority, out.Priority)
	assert.Equal(t, req.Order, out.Order)
	assert.Equal(t, req.Start, out.Start)
	assert.Equal(t, req.Expire, out.Expire)
	assert.Equal(t, req.Limit, out.Limit)
	assert.Equal(t, req.Scope, out.Scope)
	assert.Equal(t, req.Throttle, out.Throttle)
	assert.Equal(t, req.Worth, out.Worth)
	assert.Equal(t, req.Notice, out.Notice)
	assert.Equal(t, req.Selection, out.Selection)
	assert.Equal(t, req.Projection, out.Projection)
}

func TestMarshalUnmarshal_Sparse(t *testing.T) {
	req := &Request{
		Action:  ActionPull,
		Payload: types.NonePayload,
		Moment:  types.MomentLazy,
		Order:   types.OrderDefault,
		Scope:   types.ScopeDefault,
	}

	out, err := Unmarshal(Marshal(req))

	require.NoError(t, err)
	assert.Equal(t, "", out.UUID)
	assert.Equal(t, "", out.UID)
	assert.Nil(t, out.Provider)
	assert.Nil(t, out.Topic)
	assert.Nil(t, out.Downsample)
	assert.Nil(t, out.Limit)
	assert.Nil(t, out.Projection)
	assert.Equal(t, types.NewNotice(), out.Notice)
}

// legacy encodes req the way older encoders did: version 2 lacks the uid and
// the moment, version 1 also lacks the limit.
func legacy(req *Request, version byte) []byte {
	w := parcel.NewWriter()
	_ = w.WriteByte(version)
	_ = w.WriteValue(req.UUID)
	w.WriteInt(int32(req.Action))
	types.WriteProvider(w, req.Provider)
	types.WritePayload(w, req.Payload)
	types.WriteTopic(w, req.Topic)
	types.WriteTopic(w, req.Subtopic)
	_ = w.WriteValue(req.Downsample)
	_ = w.WriteValue(req.Durability)
	_ = w.WriteValue(req.Priority)
	order := req.Order
	types.WriteOrder(w, &order)
	types.WriteTimeTrigger(w, req.Start)
	types.WriteTimeTrigger(w, req.Expire)
	if version >= 2 {
		types.WriteLimit(w, req.Limit)
	}
	scope := req.Scope
	types.WriteDeliveryScope(w, &scope)
	_ = w.WriteValue(req.Throttle)
	_ = w.WriteValue(req.Worth)
	types.WriteNotice(w, req.Notice)
	types.WriteSelection(w, req.Selection)
	w.WriteStringArray(req.Projection)
	return w.Bytes()
}

func TestDecode_UnknownTriggerType(t *testing.T) {
	req := fullRequest()
	data := Marshal(req)

	// Locate the start trigger and give it a type no decoder knows.
	w := parcel.NewWriter()
	w.WriteInt(int32(types.TriggerAbsolute))
	parcel.WriteNullFlag(w, false)
	w.WriteLong(1500000000000)
	i := bytes.Index(data, w.Bytes())
	require.True(t, i > 0)
	data[i] = 7

	out, err := Unmarshal(data)

	require.NoError(t, err)
	assert.Nil(t, out.Start)
	assert.Equal(t, req.Expire, out.Expire)
	assert.Equal(t, req.Limit, out.Limit)
	assert.Equal(t, req.Scope, out.Scope)
	assert.Equal(t, req.Notice, out.Notice)
	assert.Equal(t, req.Selection, out.Selection)
	assert.Equal(t, req.Projection, out.Projection)
}

func TestDecode_OlderVersions(t *testing.T) {
	req := fullRequest()

	tests := []struct {
		version   byte
		wantLimit *types.Limit
	}{
		{2, req.Limit},
		{1, &types.Limit{Type: types.LimitNewest, Count: 100}},
	}
	for _, tc := range tests {
		logger, hook := test.NewNullLogger()

		out, err := Decode(legacy(req, tc.version), logger)

		require.NoError(t, err, "version %d", tc.version)
		assert.Equal(t, req.UUID, out.UID, "uid defaults to the uuid")
		assert.Equal(t, types.MomentLazy, out.Moment)
		assert.Equal(t, tc.wantLimit, out.Limit)
		assert.Equal(t, req.Projection, out.Projection)
		assert.Equal(t, req.Worth, out.Worth)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	}
}

func TestDecode_NewerVersion(t *testing.T) {
	data := Marshal(fullRequest())
	data[0] = Version + 1

	out, err := Unmarshal(data)

	assert.Nil(t, out)
	require.Error(t, err)
	assert.Equal(t, ErrVersionMismatch, errors.Cause(err))
}

func TestDecode_Truncated(t *testing.T) {
	data := Marshal(fullRequest())

	for _, n := range []int{0, 1, 10, len(data) - 1} {
		out, err := Unmarshal(data[:n])
		assert.Nil(t, out, "length %d", n)
		assert.Error(t, err, "length %d", n)
	}
}

func TestDecode_UnknownAction(t *testing.T) {
	req := fullRequest()
	req.Action = Action(42)

	out, err := Unmarshal(Marshal(req))

	require.NoError(t, err)
	assert.Equal(t, ActionNone, out.Action)
	assert.Equal(t, req.Projection, out.Projection)
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"post", ActionPost},
		{"Pull", ActionPull},
		{"retrieve", ActionPull},
		{"interest", ActionSubscribe},
		{"publish", ActionPublish},
		{"directed-subscribe", ActionDirectedSubscribe},
	}
	for _, tc := range tests {
		got, err := ParseAction(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParseAction("none")
	assert.Error(t, err)
}

func TestRequest_NotImplemented(t *testing.T) {
	req := fullRequest()

	_, err := req.Replace("other")
	assert.Equal(t, ErrNotImplemented, err)
	assert.Equal(t, ErrNotImplemented, req.Cancel())
}
