package preference

import (
	"context"
	"sync"
	"testing"

	"github.com/JiscSD/ammolib/internal/testutil"
	"github.com/JiscSD/ammolib/provider"
	"github.com/JiscSD/ammolib/schema"
	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	intents []*types.Intent
	err     error
}

func (r *recorder) Broadcast(ctx context.Context, intent *types.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
	return r.err
}

func resolver(t *testing.T) *provider.SQLiteResolver {
	t.Helper()
	r, _ := testutil.Store(t)
	return r
}

func TestPreference_Defaults(t *testing.T) {
	ctx := context.Background()
	p := New(resolver(t), "com.example.app")

	assert.False(t, p.Writable())
	assert.Equal(t, "fallback", p.GetString(ctx, schema.PrefOperatorID, "fallback"))
	assert.Equal(t, true, p.GetBool(ctx, schema.PrefServerEnabled, true))
	assert.Equal(t, float32(1.5), p.GetFloat(ctx, "ratio", 1.5))
	assert.Equal(t, int32(schema.DefaultGatewayPort), p.GetInt(ctx, schema.PrefGatewayPort, schema.DefaultGatewayPort))
	assert.Equal(t, int64(7), p.GetLong(ctx, "big", 7))
}

func TestPreference_ReadOnly(t *testing.T) {
	ctx := context.Background()
	p := New(resolver(t), "com.example.app")

	assert.Equal(t, ErrReadOnlyAccess, p.PutString(ctx, "k", "v"))
	assert.Equal(t, ErrReadOnlyAccess, p.PutBool(ctx, "k", true))
	assert.Equal(t, ErrReadOnlyAccess, p.PutFloat(ctx, "k", 1))
	assert.Equal(t, ErrReadOnlyAccess, p.PutInt(ctx, "k", 1))
	assert.Equal(t, ErrReadOnlyAccess, p.PutLong(ctx, "k", 1))
}

func TestPreference_PutGet(t *testing.T) {
	ctx := context.Background()
	r := resolver(t)
	rec := &recorder{}
	logger, _ := test.NewNullLogger()
	writer := New(r, "edu.vu.isis.ammo.core.distributor", WithBroadcaster(rec), WithLogger(logger))
	reader := New(r, "com.example.app")

	require.True(t, writer.Writable())
	require.NoError(t, writer.PutString(ctx, schema.PrefOperatorID, "fred"))
	require.NoError(t, writer.PutBool(ctx, schema.PrefServerEnabled, false))
	require.NoError(t, writer.PutFloat(ctx, "ratio", 0.25))
	require.NoError(t, writer.PutInt(ctx, schema.PrefGatewayPort, 4000))
	require.NoError(t, writer.PutLong(ctx, "big", 1<<40))

	assert.Equal(t, "fred", reader.GetString(ctx, schema.PrefOperatorID, ""))
	assert.Equal(t, false, reader.GetBool(ctx, schema.PrefServerEnabled, true))
	assert.Equal(t, float32(0.25), reader.GetFloat(ctx, "ratio", 0))
	assert.Equal(t, int32(4000), reader.GetInt(ctx, schema.PrefGatewayPort, 0))
	assert.Equal(t, int64(1<<40), reader.GetLong(ctx, "big", 0))

	// A value of the wrong type falls back to the default.
	assert.Equal(t, int32(9), reader.GetInt(ctx, schema.PrefOperatorID, 9))

	require.Len(t, rec.intents, 5)
	first := rec.intents[0]
	assert.Equal(t, schema.PreferenceChangedAction, first.Action)
	assert.Equal(t, schema.PrefOperatorID, first.Extras[schema.ExtraPrefChangedKey])
	assert.Equal(t, "fred", first.Extras[schema.ExtraPrefChangedValue])
}

func TestPreference_BroadcastFailureIsNotFatal(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rec := &recorder{err: errors.New("no receivers")}
	p := New(resolver(t), WriterPackagePrefix, WithBroadcaster(rec), WithLogger(logger))

	require.NoError(t, p.PutString(context.Background(), "k", "v"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Preference change notification failed", hook.LastEntry().Message)
}

type unavailable struct {
	provider.Resolver
}

func (unavailable) Query(ctx context.Context, uri string, projection []string, selection string, args []string, sortOrder string) (provider.Cursor, error) {
	return nil, errors.New("no provider")
}

func (unavailable) Update(ctx context.Context, uri string, vals types.Values, selection string, args []string) (int, error) {
	return 0, errors.New("no provider")
}

func TestPreference_Unavailable(t *testing.T) {
	p := New(unavailable{}, WriterPackagePrefix)

	assert.Equal(t, "d", p.GetString(context.Background(), "k", "d"))
	err := p.PutString(context.Background(), "k", "v")
	require.Error(t, err)
	assert.NotEqual(t, ErrReadOnlyAccess, errors.Cause(err))
}
