package app

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JiscSD/ammolib/distributor/distributormock"
	"github.com/JiscSD/ammolib/request"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command line with an isolated store and no .env file.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	args = append(args, "--env-file", "")
	err := Run(args, &out, ioutil.Discard)
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AMMOLIB_STORE_PATH", filepath.Join(dir, "ammolib.db"))
	t.Setenv("HOME", dir)
	return dir
}

func TestMainHelp(t *testing.T) {
	var (
		output    bytes.Buffer
		errOutput bytes.Buffer
	)
	err := Run([]string{"help"}, &output, &errOutput)

	require.NoError(t, err)
	assert.Contains(t, output.String(), "Available Commands")
	assert.Empty(t, errOutput.String())
}

func TestMainUnknownCommand(t *testing.T) {
	err := Run([]string{"unknown"}, ioutil.Discard, ioutil.Discard)

	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		c := Config{}
		c.Store.Path = "ammolib.db"
		c.Store.BlobBackend = BlobBackendFS
		c.Distributor.Transport = TransportBind
		c.Distributor.ProbeInterval = time.Second
		return c
	}
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"peek", func(c *Config) { c.Distributor.Transport = TransportPeek }, false},
		{"unknown transport", func(c *Config) { c.Distributor.Transport = "carrier-pigeon" }, true},
		{"command without topic", func(c *Config) { c.Distributor.Transport = TransportCommand }, true},
		{"command with topic", func(c *Config) {
			c.Distributor.Transport = TransportCommand
			c.Command.TopicARN = "arn:aws:sns:us-east-1:123456789012:ammo"
		}, false},
		{"unknown backend", func(c *Config) { c.Store.BlobBackend = "tape" }, true},
		{"s3 without bucket", func(c *Config) { c.Store.BlobBackend = BlobBackendS3 }, true},
		{"s3 with bucket", func(c *Config) {
			c.Store.BlobBackend = BlobBackendS3
			c.Store.BlobBucket = "blobs"
		}, false},
		{"no store path", func(c *Config) { c.Store.Path = "" }, true},
		{"no probe interval", func(c *Config) { c.Distributor.ProbeInterval = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.modify(&c)
			assert.Equal(t, tt.wantErr, c.Validate() != nil)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := isolate(t)
	t.Setenv("AMMOLIB_DISTRIBUTOR_TRANSPORT", "peek")
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, ioutil.WriteFile(envFile, []byte("AMMOLIB_METRICS_ADDR=:7070\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("AMMOLIB_METRICS_ADDR") })

	c := &Config{}
	require.NoError(t, loadConfig(c, "", envFile))

	assert.Equal(t, TransportPeek, c.Distributor.Transport)
	assert.Equal(t, ":7070", c.Metrics.Addr)
	assert.Equal(t, 30*time.Second, c.Distributor.ProbeInterval)
	assert.Equal(t, uint32(3), c.Distributor.BreakerFailures)
	assert.Equal(t, "ammolib_commands", c.Command.RepositoryTable)
	assert.Contains(t, c.String(), "[distributor]")
}

func TestLoadConfig_File(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "custom.toml")
	require.NoError(t, ioutil.WriteFile(file, []byte("[distributor]\ntransport = \"nope\"\n"), 0644))

	err := loadConfig(&Config{}, file, "")
	assert.Error(t, err)

	err = loadConfig(&Config{}, filepath.Join(dir, "missing.toml"), "")
	assert.Error(t, err)
}

func TestCmdVersion(t *testing.T) {
	isolate(t)
	out, err := run(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "dev")
	assert.Contains(t, out, "request envelope v3")
}

func TestCmdConfig(t *testing.T) {
	isolate(t)
	out, err := run(t, "config")

	require.NoError(t, err)
	assert.Contains(t, out, "[command]")
}

func TestDoValidate(t *testing.T) {
	fs := afero.NewMemMapFs()
	schema := `{
  "type": "object",
  "properties": {"name": {"type": "string"}, "age": {"type": "integer", "minimum": 0}},
  "required": ["name"]
}`
	require.NoError(t, afero.WriteFile(fs, "schema.json", []byte(schema), 0644))
	require.NoError(t, afero.WriteFile(fs, "good.json", []byte(`{"name": "fred", "age": 7}`), 0644))
	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(`{"age": -1}`), 0644))
	require.NoError(t, afero.WriteFile(fs, "nested.json", []byte(`{"name": {"first": "fred"}}`), 0644))

	var out bytes.Buffer
	require.NoError(t, doValidate(&out, fs, &validateOptions{schema: "schema.json", file: "good.json"}))
	assert.Contains(t, out.String(), "The payload is valid.")

	out.Reset()
	err := doValidate(&out, fs, &validateOptions{schema: "schema.json", file: "bad.json"})
	require.Error(t, err)
	assert.Contains(t, out.String(), "The payload is invalid!")
	assert.Contains(t, err.Error(), "2 validation issues")

	assert.Error(t, doValidate(&out, fs, &validateOptions{schema: "schema.json", file: "nested.json"}))
	assert.Error(t, doValidate(&out, fs, &validateOptions{schema: "schema.json", file: "missing.json"}))
	assert.Error(t, doValidate(&out, fs, &validateOptions{}))
}

func TestCmdRequest_OutAndInspect(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "req.parcel")

	out, err := run(t, "request", "post", "topic=text/plain", "payload=hello", "priority=3", "notice=device:broadcast", "--out", file)
	require.NoError(t, err)
	uuid := strings.TrimSpace(out)
	assert.Len(t, uuid, 36)

	out, err = run(t, "inspect", "--file", file, "--format", "logfmt")
	require.NoError(t, err)
	assert.Contains(t, out, "uuid="+uuid)
	assert.Contains(t, out, "action=post")
	assert.Contains(t, out, "topic=text/plain")
	assert.Contains(t, out, "payload=hello")
	assert.Contains(t, out, "priority=3")

	out, err = run(t, "inspect", "--file", file)
	require.NoError(t, err)
	fields := map[string]string{}
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	assert.Equal(t, uuid, fields["uuid"])
	assert.Equal(t, "post", fields["action"])

	_, err = run(t, "inspect", "--file", file, "--format", "yaml")
	assert.Error(t, err)
}

func TestCmdRequest_Errors(t *testing.T) {
	isolate(t)
	tests := [][]string{
		{"request", "launch"},
		{"request", "post", "topic"},
		{"request", "post", "colour=red"},
		{"request", "post", "priority=high", "--out", "x"},
	}
	for _, args := range tests {
		_, err := run(t, args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestCmdRequest_Distributor(t *testing.T) {
	isolate(t)
	mock := distributormock.New()
	logger, _ := test.NewNullLogger()
	mock.Logger = logger
	srv := httptest.NewServer(mock)
	defer srv.Close()
	t.Setenv("AMMOLIB_DISTRIBUTOR_URL", srv.URL)
	t.Setenv("AMMOLIB_DISTRIBUTOR_TRANSPORT", "peek")

	out, err := run(t, "request", "subscribe", "topic=text/plain", "select=name='fred'")
	require.NoError(t, err)

	got := mock.Requests()
	require.Len(t, got, 1)
	assert.Equal(t, strings.TrimSpace(out), got[0].UUID)
	assert.Equal(t, request.ActionSubscribe, got[0].Action)

	// Without a distributor or a command topic there is nowhere to go.
	mock.SetDown(true)
	_, err = run(t, "request", "post", "topic=text/plain")
	assert.Error(t, err)
}

func TestCmdStore(t *testing.T) {
	isolate(t)

	out, err := run(t, "store", "post", "--mime", "text/plain", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Queued.\n", out)

	_, err = run(t, "store", "subscribe", "--mime", "text/plain", "content://example/items")
	require.NoError(t, err)
	_, err = run(t, "store", "unsubscribe", "content://example/items")
	require.NoError(t, err)

	_, err = run(t, "store", "pref", "set", "operator_id", "fred")
	require.NoError(t, err)
	out, err = run(t, "store", "pref", "get", "operator_id")
	require.NoError(t, err)
	assert.Equal(t, "fred\n", out)
	out, err = run(t, "store", "pref", "get", "missing", "--default", "none")
	require.NoError(t, err)
	assert.Equal(t, "none\n", out)

	out, err = run(t, "store", "presence")
	require.NoError(t, err)
	assert.Empty(t, out)
	out, err = run(t, "store", "presence", "fred")
	require.NoError(t, err)
	assert.Equal(t, "fred\tUNKNOWN\n", out)
}

func TestServerMux(t *testing.T) {
	srv := httptest.NewServer(serverMux(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := ioutil.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
