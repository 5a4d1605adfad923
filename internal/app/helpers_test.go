package app

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/topomirror/internal/config"
	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/protocol"
	"github.com/specialistvlad/topomirror/internal/testutil"
)

// SetupAppTest creates an app driven by a fake channel, logging at debug
// into a buffer that is dumped when TOPOMIRROR_TEST_LOGS is set.
func SetupAppTest(t *testing.T, mutate ...func(*Config)) (*App, *testutil.FakeChannel, *testutil.SafeBuffer) {
	t.Helper()

	cfg := Config{Config: config.Default()}
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"
	cfg.Positions.Backend = config.BackendNone
	cfg.Sync.Debounce = 5 * time.Millisecond
	for _, fn := range mutate {
		fn(&cfg)
	}
	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &testutil.SafeBuffer{}
	ch := testutil.NewFakeChannel()
	a, err := NewApp(logBuffer, validated, WithChannel(ch))
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("TOPOMIRROR_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return a, ch, logBuffer
}

func twoNodeReply() protocol.Message {
	msg := testutil.Message(protocol.NamespaceGraph, protocol.TypeSyncReply, protocol.GraphObj{
		Nodes: []protocol.NodeObj{
			{ID: "n1", Host: "h1", Metadata: graph.Metadata{"Type": "host", "Name": "h1"}},
			{ID: "n2", Host: "h1", Metadata: graph.Metadata{"Type": "veth"}},
		},
		Edges: []protocol.EdgeObj{{ID: "e1", Parent: "n1", Child: "n2"}},
	})
	msg.Status = protocol.StatusOK
	return msg
}
