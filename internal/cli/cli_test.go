package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/topomirror/internal/config"
)

func TestParse_DefaultsToWatch(t *testing.T) {
	cmd, shouldExit, err := Parse(nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, CommandWatch, cmd.Name)
	assert.Equal(t, config.Default(), cmd.Config.Config)
	assert.Empty(t, cmd.Config.Path)
}

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}
	cmd, shouldExit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cmd)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "snapshot")
}

func TestParse_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topomirror.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  url       = "ws://from-file:8082/ws"
  transport = "socketio"
}
log {
  level = "warn"
}
`), 0o600))

	cmd, _, err := Parse([]string{
		"watch", "-c", path,
		"--url", "ws://from-flag:8082/ws",
		"--at", "2023-11-14T22:13:20Z",
		"--ops-port", "9100",
		"--log-format", "JSON",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	cfg := cmd.Config
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "ws://from-flag:8082/ws", cfg.Server.URL)
	assert.Equal(t, config.TransportSocketIO, cfg.Server.Transport, "file values survive")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, int64(1700000000000), cfg.Sync.At)
	assert.Equal(t, 9100, cfg.Ops.Port)
}

func TestParse_Snapshot(t *testing.T) {
	cmd, _, err := Parse([]string{"snapshot", "-o", "yaml", "--timeout", "5s", "--positions", "none"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, CommandSnapshot, cmd.Name)
	assert.Equal(t, "yaml", cmd.Format)
	assert.Equal(t, 5*time.Second, cmd.Timeout)
	assert.Equal(t, config.BackendNone, cmd.Config.Positions.Backend)
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--nope"}, "unknown flag: --nope"},
		{"bad transport", []string{"--transport", "pigeon"}, "server.transport"},
		{"bad level", []string{"--log-level", "loud"}, "log.level"},
		{"bad instant", []string{"--at", "yesterday"}, "invalid at"},
		{"bad format", []string{"snapshot", "--format", "xml"}, "invalid format"},
		{"missing config", []string{"-c", "/does/not/exist.hcl"}, "failed to read config"},
		{"stray argument", []string{"watch", "extra"}, "unknown command"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}
