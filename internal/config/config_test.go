package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, TransportWebsocket, cfg.Server.Transport)
	assert.Equal(t, 100*time.Millisecond, cfg.Sync.Debounce)
	assert.Equal(t, []string{"layer3"}, cfg.Sync.SuppressRelationTypes)
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_AllBlocks(t *testing.T) {
	t.Setenv("TOPO_TOKEN", "secret")
	src := `
server {
  url                  = "wss://analyzer:8082/ws/subscriber"
  transport            = "socketio"
  namespace            = "/topology"
  headers              = { Authorization = "Bearer ${env("TOPO_TOKEN")}" }
  insecure_skip_verify = true
  reconnect_delay      = "500ms"
}

sync {
  at                      = 1700000000000
  debounce                = "250ms"
  alert_ttl               = "2s"
  redraw_on               = ["State"]
  suppress_relation_types = []
}

positions {
  backend        = "badger"
  path           = "/var/lib/topomirror"
  ttl            = "24h"
  flush_interval = "10s"
}

ops {
  port = 9100
}

log {
  level  = "debug"
  format = "json"
}
`
	cfg, err := Parse([]byte(src), "full.hcl")
	require.NoError(t, err)

	assert.Equal(t, "wss://analyzer:8082/ws/subscriber", cfg.Server.URL)
	assert.Equal(t, TransportSocketIO, cfg.Server.Transport)
	assert.Equal(t, "/topology", cfg.Server.Namespace)
	assert.Equal(t, "message", cfg.Server.Event, "unset attributes keep defaults")
	assert.Equal(t, "Bearer secret", cfg.Server.Headers["Authorization"])
	assert.True(t, cfg.Server.InsecureSkipVerify)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.ReconnectDelay)

	assert.Equal(t, int64(1700000000000), cfg.Sync.At)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.Debounce)
	assert.Equal(t, 2*time.Second, cfg.Sync.AlertTTL)
	assert.Equal(t, []string{"State"}, cfg.Sync.RedrawOn)
	assert.Empty(t, cfg.Sync.SuppressRelationTypes, "an explicit empty list overrides the default")

	assert.Equal(t, BackendBadger, cfg.Positions.Backend)
	assert.Equal(t, "/var/lib/topomirror", cfg.Positions.Path)
	assert.Equal(t, 24*time.Hour, cfg.Positions.TTL)
	assert.Equal(t, 10*time.Second, cfg.Positions.FlushInterval)

	assert.Equal(t, 9100, cfg.Ops.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_EnvFallback(t *testing.T) {
	src := `server { url = env("TOPO_UNSET_URL", "ws://fallback:1/ws") }`
	cfg, err := Parse([]byte(src), "env.hcl")
	require.NoError(t, err)
	assert.Equal(t, "ws://fallback:1/ws", cfg.Server.URL)
}

func TestParse_RFC3339Instant(t *testing.T) {
	cfg, err := Parse([]byte(`sync { at = "2023-11-14T22:13:20Z" }`), "at.hcl")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), cfg.Sync.At)
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `server {`, "failed to parse"},
		{"unknown attribute", `server { port = 1 }`, "failed to decode"},
		{"bad duration", `sync { debounce = "soon" }`, "sync.debounce"},
		{"bad instant", `sync { at = "yesterday" }`, "sync.at"},
		{"bad transport", `server { transport = "pigeon" }`, "server.transport"},
		{"bad backend", `positions { backend = "floppy" }`, "positions.backend"},
		{"bad port", `ops { port = 70000 }`, "ops.port"},
		{"bad level", `log { level = "loud" }`, "log.level"},
		{"zero debounce", `sync { debounce = "0s" }`, "sync.debounce"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), "bad.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseInstant(t *testing.T) {
	for in, want := range map[string]int64{
		"":                     0,
		"live":                 0,
		"42":                   42,
		"1970-01-01T00:00:01Z": 1000,
	} {
		got, err := ParseInstant(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "sync.alert_ttl", fieldPath("Config.Sync.AlertTTL"))
	assert.Equal(t, "server.url", fieldPath("Config.Server.URL"))
	assert.Equal(t, "server.insecure_skip_verify", fieldPath("Config.Server.InsecureSkipVerify"))
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topomirror.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`sync { at = 1 }`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got atomic.Int64
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg Config) { got.Store(cfg.Sync.At) })
	}()

	assert.Eventually(t, func() bool {
		// Rewrite until the watcher is registered and picks it up.
		_ = os.WriteFile(path, []byte(`sync { at = 5 }`), 0o600)
		return got.Load() == 5
	}, 5*time.Second, 200*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return")
	}
}

func TestWatch_SkipsInvalidEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topomirror.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`sync { at = 1 }`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go func() { _ = Watch(ctx, path, func(Config) { calls.Add(1) }) }()

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`sync {`), 0o600))
	time.Sleep(500 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
