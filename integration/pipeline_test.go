package integration

import (
	"context"
	"flag"
	"io/ioutil"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JiscSD/ammolib/command"
	"github.com/JiscSD/ammolib/command/commandmock"
	"github.com/JiscSD/ammolib/dispatcher"
	"github.com/JiscSD/ammolib/distributor"
	"github.com/JiscSD/ammolib/distributor/distributormock"
	"github.com/JiscSD/ammolib/integration/cli"
	"github.com/JiscSD/ammolib/internal/testutil"
	"github.com/JiscSD/ammolib/preference"
	"github.com/JiscSD/ammolib/presence"
	"github.com/JiscSD/ammolib/provider"
	"github.com/JiscSD/ammolib/request"
	"github.com/JiscSD/ammolib/schema"
	"github.com/JiscSD/ammolib/types"

	"github.com/cenkalti/backoff/v3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var flagCLI = flag.Bool("cli", false, "run the command line tests against the installed binary")

type env struct {
	logger logrus.FieldLogger
	mock   *distributormock.Server
	client *distributor.Client
	store  *provider.SQLiteResolver
	dbPath string
}

func setUp(t *testing.T) *env {
	t.Helper()
	logger, _ := test.NewNullLogger()

	mock := distributormock.New()
	mock.Logger = logger
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	client, err := distributor.NewClient(srv.URL, distributor.WithClientLogger(logger))
	require.NoError(t, err)

	store, dbPath := testutil.Store(t, provider.WithLogger(logger))

	return &env{logger: logger, mock: mock, client: client, store: store, dbPath: dbPath}
}

// TestPostalQueue confirms that data queued with the dispatcher, inline or
// out-of-band, reaches the distributor once a builder is bound to it.
func TestPostalQueue(t *testing.T) {
	e := setUp(t)
	ctx := context.Background()

	d := dispatcher.New(e.store, dispatcher.WithLogger(e.logger))
	large := strings.Repeat("x", dispatcher.MaximumFieldSize+1)
	require.True(t, d.PostString(ctx, "text/plain", "small"))
	require.True(t, d.PostString(ctx, "text/x-large", large))

	binder := distributor.NewBinder(ctx, e.client,
		distributor.WithProbeInterval(10*time.Millisecond),
		distributor.WithBackOff(func() backoff.BackOff { return &backoff.StopBackOff{} }),
		distributor.WithBinderLogger(e.logger))
	defer binder.Stop()
	b := request.NewBuilder(ctx, request.WithLogger(e.logger), request.WithEvents(binder.Events()))
	defer b.Release()
	require.Eventually(t, func() bool { return b.Mode() == request.ModeBound }, time.Second, 5*time.Millisecond)

	cur, err := e.store.Query(ctx, schema.Postal.ContentURI(),
		[]string{schema.ColID, schema.ColCPType}, schema.ColDisposition+"=?",
		[]string{"0"}, "")
	require.NoError(t, err)
	it := provider.NewEntityIterator(cur)
	defer it.Close()

	var sent int
	for it.Next() {
		row, err := it.Entity()
		require.NoError(t, err)
		id, _ := row.AsLong(schema.ColID)
		mime, _ := row.AsString(schema.ColCPType)
		rowURI := schema.Postal.ItemURI(id)

		r, err := e.store.OpenReadStream(ctx, rowURI)
		require.NoError(t, err)
		data, err := ioutil.ReadAll(r)
		r.Close()
		require.NoError(t, err)

		_, err = b.Reset().Topic(mime).PayloadBytes(data).Post(ctx)
		require.NoError(t, err)

		n, err := e.store.Update(ctx, rowURI,
			types.NewValues().PutInt(schema.ColDisposition, int32(schema.DispositionSent)), "", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		sent++
	}
	assert.Equal(t, 2, sent)

	got := e.mock.Requests()
	require.Len(t, got, 2)
	payloads := map[string]int{}
	for _, req := range got {
		payloads[req.Topic.AsString()] = len(req.Payload.AsBytes())
	}
	assert.Equal(t, map[string]int{"text/plain": 5, "text/x-large": len(large)}, payloads)

	cur, err = e.store.Query(ctx, schema.Postal.ContentURI(), nil, schema.ColDisposition+"=?", []string{"0"}, "")
	require.NoError(t, err)
	defer cur.Close()
	assert.Equal(t, 0, cur.Count())
}

// TestCommandFallback confirms that a builder with no distributor handle
// sends commands that a receiver relays to the distributor, once.
func TestCommandFallback(t *testing.T) {
	e := setUp(t)
	ctx := context.Background()

	topic := commandmock.NewTopic()
	queue := commandmock.NewQueue()
	topic.SubscribeQueue(queue)

	b := request.NewBuilder(ctx,
		request.WithLogger(e.logger),
		request.WithCommander(command.NewPublisher(e.logger, topic, "arn:aws:sns:us-east-1:123456789012:ammo")))
	defer b.Release()
	require.Equal(t, request.ModeUnbound, b.Mode())

	req, err := b.Topic("application/vnd.com.aterrasys.nevada.locations").
		PayloadValues(types.NewValues().PutString("name", "fred").PutDouble("lat", 51.5)).
		Subscribe(ctx)
	require.NoError(t, err)

	metrics := command.NewMetrics(nil)
	recv := command.NewReceiver(e.logger, queue, "queue", nil, e.client, metrics)
	done := make(chan struct{})
	go func() {
		recv.Run()
		close(done)
	}()
	defer func() {
		recv.Stop()
		<-done
	}()

	require.Eventually(t, func() bool { return len(e.mock.Requests()) == 1 }, time.Second, 5*time.Millisecond)
	got := e.mock.Requests()[0]
	assert.Equal(t, req.UUID, got.UUID)
	assert.Equal(t, request.ActionSubscribe, got.Action)
	name, _ := got.Payload.Values().AsString("name")
	assert.Equal(t, "fred", name)
}

// TestPreferenceAndPresence shares one database between a preference writer,
// a preference reader and the presence facade.
func TestPreferenceAndPresence(t *testing.T) {
	e := setUp(t)
	ctx := context.Background()

	writer := preference.New(e.store, preference.WriterPackagePrefix+".distributor", preference.WithLogger(e.logger))
	require.NoError(t, writer.PutInt(ctx, schema.PrefGatewayPort, 4000))

	other, err := provider.NewSQLiteResolver(ctx, e.dbPath, provider.WithLogger(e.logger))
	require.NoError(t, err)
	defer other.Close()
	reader := preference.New(other, "com.example.app")
	assert.Equal(t, int32(4000), reader.GetInt(ctx, schema.PrefGatewayPort, schema.DefaultGatewayPort))
	assert.Equal(t, preference.ErrReadOnlyAccess, reader.PutInt(ctx, schema.PrefGatewayPort, 1))

	for op, state := range map[string]types.TemporalState{"fred": types.StatePresent, "wilma": types.StateLost} {
		_, err := e.store.Insert(ctx, schema.Presence.ContentURI(), types.NewValues().
			PutString(schema.ColOperator, op).
			PutInt(schema.ColState, state.Code()))
		require.NoError(t, err)
	}

	p := presence.New(other, e.logger)
	assert.Equal(t, presence.Present, p.GetUserPresenceStatus(ctx, "fred"))
	assert.Equal(t, presence.Lost, p.GetUserPresenceStatus(ctx, "wilma"))
	assert.Equal(t, presence.UnknownStatus, p.GetUserPresenceStatus(ctx, "barney"))
	assert.Len(t, p.GetAllAvailableUsers(ctx), 2)
}

// TestCLIRequest builds a request with the installed binary and decodes it
// back.
func TestCLIRequest(t *testing.T) {
	if !*flagCLI || testing.Short() {
		t.Skip("skipping command line test, use -cli")
	}
	if !cli.Available() {
		t.Skip("ammolib binary not found in $PATH")
	}
	dir := t.TempDir()
	file := filepath.Join(dir, "req.parcel")
	storeEnv := "AMMOLIB_STORE_PATH=" + filepath.Join(dir, "ammolib.db")

	out := cli.Command("request", "publish", "topic=text/plain", "payload=hi", "--out", file).
		WithEnv(storeEnv).InDir(dir).RunOrFail(t)
	uuid := strings.TrimSpace(out)

	out = cli.Command("inspect", "--file", file, "--format", "logfmt").
		WithEnv(storeEnv).InDir(dir).RunOrFail(t)
	assert.Contains(t, out, "uuid="+uuid)
	assert.Contains(t, out, "action=publish")
}
