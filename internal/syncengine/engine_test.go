package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/metrics"
	"github.com/specialistvlad/topomirror/internal/protocol"
	tu "github.com/specialistvlad/topomirror/internal/testutil"
)

const scenarioReply = `{"Namespace":"Graph","Type":"SyncReply","Status":200,"Obj":{
	"Nodes":{"n1":{"ID":"n1","Host":"h1"},"n2":{"ID":"n2","Host":"h1"}},
	"Edges":{"e1":{"ID":"e1","Parent":"n1","Child":"n2"}}}}`

func sentTime(t *testing.T, msg protocol.Message) *int64 {
	t.Helper()
	require.Equal(t, protocol.TypeSyncRequest, msg.Type)
	var obj protocol.SyncRequestObj
	require.NoError(t, json.Unmarshal(msg.Obj, &obj))
	return obj.Time
}

func TestNew_RequiresChannel(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestEngine_ConnectSendsSyncRequest(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Disconnected, h.e.State())

	h.ch.Open()
	h.drain()

	assert.Equal(t, ConnectedUnsynced, h.e.State())
	sent := h.ch.Sent()
	require.Len(t, sent, 1)
	assert.Nil(t, sentTime(t, sent[0]), "live requests omit Time")
}

func TestEngine_ConnectCarriesConfiguredInstant(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.At = 1700000000000 })

	h.ch.Open()
	h.drain()

	sent := h.ch.Sent()
	require.Len(t, sent, 1)
	at := sentTime(t, sent[0])
	require.NotNil(t, at)
	assert.Equal(t, int64(1700000000000), *at)
}

func TestEngine_SnapshotThenDelete(t *testing.T) {
	h := newHarness(t)
	h.ch.Open()
	h.drain()

	h.deliverJSON(scenarioReply)
	assert.Equal(t, ConnectedSynced, h.e.State())
	assert.Equal(t, 2, h.e.store.NodeCount())
	assert.Equal(t, 1, h.e.store.EdgeCount())

	h.deliverJSON(`{"Namespace":"Graph","Type":"NodeDeleted","Obj":{"ID":"n1"}}`)
	assert.Equal(t, 1, h.e.store.NodeCount())
	assert.Equal(t, 0, h.e.store.EdgeCount())
	_, ok := h.e.store.GetNode("n2")
	assert.True(t, ok)

	h.fire()
	require.Equal(t, 1, h.r.FrameCount())
	assert.Equal(t, 1, h.r.LastFrame().Nodes)
	assert.Equal(t, []string{"e1"}, h.r.EdgesRemoved)
	assert.Equal(t, []string{"n1"}, h.r.NodesRemoved)
}

func TestEngine_ResyncClearsStaleState(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply(
		[]protocol.NodeObj{{ID: "A"}, {ID: "B"}},
		[]protocol.EdgeObj{{ID: "AB", Parent: "A", Child: "B"}},
	))

	h.deliver(syncReply([]protocol.NodeObj{{ID: "C"}}, nil))

	nodes := h.e.store.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "C", nodes[0].ID)
	assert.Equal(t, 0, h.e.store.EdgeCount())
	assert.ElementsMatch(t, []string{"A", "B"}, h.r.NodesRemoved)
	assert.Equal(t, []string{"AB"}, h.r.EdgesRemoved)
}

func TestEngine_StaleMutationDropped(t *testing.T) {
	h := newHarness(t)
	added := graphMsg(protocol.TypeNodeAdded, protocol.NodeObj{ID: "n1"})

	h.deliver(added)
	h.ch.Open()
	h.drain()
	h.deliver(added)

	assert.Equal(t, 0, h.e.store.NodeCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.m.Dropped.WithLabelValues(metrics.ReasonStale)))
	assert.Empty(t, h.timers.pending)
}

func TestEngine_EdgeWithUnknownEndpointIsDropped(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1"}}, nil))
	h.fire()

	h.deliver(graphMsg(protocol.TypeEdgeAdded, protocol.EdgeObj{ID: "e1", Parent: "n1", Child: "ghost"}))

	assert.Equal(t, 0, h.e.store.EdgeCount())
	n1, _ := h.e.store.GetNode("n1")
	assert.Empty(t, n1.Edges)
	assert.Empty(t, h.timers.pending)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.Dropped.WithLabelValues(metrics.ReasonViolation)))
}

func TestEngine_UnknownTargetsAreSkipped(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1"}}, nil))
	h.fire()

	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{ID: "ghost"}))
	h.deliver(graphMsg(protocol.TypeNodeDeleted, protocol.NodeObj{ID: "ghost"}))
	h.deliver(graphMsg(protocol.TypeEdgeUpdated, protocol.EdgeObj{ID: "ghost"}))
	h.deliver(graphMsg(protocol.TypeEdgeDeleted, protocol.EdgeObj{ID: "ghost"}))
	h.deliver(graphMsg("HostGraphDeleted", protocol.NodeObj{ID: "n1"}))

	assert.Equal(t, 1, h.e.store.NodeCount())
	assert.Empty(t, h.timers.pending)
	assert.Equal(t, 4.0, testutil.ToFloat64(h.m.Dropped.WithLabelValues(metrics.ReasonViolation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.Dropped.WithLabelValues(metrics.ReasonUnknown)))
}

func TestEngine_DuplicateNodeAddedKeepsOriginal(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1", Host: "h1", Metadata: graph.Metadata{"Name": "eth0"}}}, nil))
	h.fire()
	h.r.Reset()

	h.deliver(graphMsg(protocol.TypeNodeAdded, protocol.NodeObj{ID: "n1", Host: "h2", Metadata: graph.Metadata{"Name": "other"}}))

	assert.Empty(t, h.timers.pending, "a duplicate arms no redraw")
	h.fire()
	n1, _ := h.e.store.GetNode("n1")
	assert.Equal(t, "h1", n1.Host)
	assert.Equal(t, "eth0", n1.Metadata.Name())
	assert.Empty(t, h.r.NodesAdded)
	assert.Zero(t, h.r.FrameCount())
}

func TestEngine_BatchingBound(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1", Metadata: graph.Metadata{"Status": "INIT"}}}, nil))
	h.fire()
	h.r.Reset()

	statuses := []string{"UP", "DOWN", "UP", "DEGRADED", "DOWN"}
	for i, s := range statuses {
		h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{
			ID:       "n1",
			Metadata: graph.Metadata{"Status": s, "Seq": float64(i)},
		}))
	}

	require.Len(t, h.timers.pending, 1, "one flush armed per window")
	n1, _ := h.e.store.GetNode("n1")
	assert.Equal(t, "INIT", n1.Metadata.String("Status"), "structural updates wait for the flush")

	h.fire()

	assert.Equal(t, 1, h.r.FrameCount())
	assert.Len(t, h.r.NodesUpdated, len(statuses))
	assert.Equal(t, "DOWN", n1.Metadata.String("Status"))
	assert.Equal(t, "4", n1.Metadata.String("Seq"))
	assert.Equal(t, float64(len(statuses)), testutil.ToFloat64(h.m.Flushed))
}

func TestEngine_NonStructuralUpdateAppliesImmediately(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1", Metadata: graph.Metadata{"Status": "UP"}}}, nil))
	h.fire()

	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{
		ID:       "n1",
		Metadata: graph.Metadata{"Status": "UP", "RX": 42.0},
	}))

	assert.Empty(t, h.timers.pending)
	n1, _ := h.e.store.GetNode("n1")
	assert.Equal(t, "42", n1.Metadata.String("RX"))
}

func TestEngine_UpdatesKeepArrivalOrder(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1", Metadata: graph.Metadata{"Status": "UP"}}}, nil))
	h.fire()

	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{ID: "n1", Metadata: graph.Metadata{"Status": "DOWN"}}))
	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{ID: "n1", Metadata: graph.Metadata{"Status": "UP", "Note": "x"}}))
	h.fire()

	n1, _ := h.e.store.GetNode("n1")
	assert.Equal(t, "UP", n1.Metadata.String("Status"))
	assert.Equal(t, "x", n1.Metadata.String("Note"))
}

func TestEngine_QueuedUpdateDoesNotReachReaddedNode(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "a", Metadata: graph.Metadata{"Status": "UP"}}}, nil))
	h.fire()
	h.r.Reset()

	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{ID: "a", Metadata: graph.Metadata{"Status": "DOWN", "Name": "old"}}))
	h.deliver(graphMsg(protocol.TypeNodeDeleted, protocol.NodeObj{ID: "a"}))
	h.deliver(graphMsg(protocol.TypeNodeAdded, protocol.NodeObj{ID: "a", Metadata: graph.Metadata{"Status": "UP", "Name": "new"}}))
	h.fire()

	a, ok := h.e.store.GetNode("a")
	require.True(t, ok)
	assert.Equal(t, "new", a.Metadata.Name())
	assert.Equal(t, "UP", a.Metadata.String("Status"))
	assert.Empty(t, h.r.NodesUpdated)
	assert.Equal(t, []string{"a"}, h.r.NodesRemoved)
	assert.Equal(t, []string{"a"}, h.r.NodesAdded)
	assert.Equal(t, 1, h.r.FrameCount())
}

func TestEngine_QueuedUpdateDroppedWithNode(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "a", Metadata: graph.Metadata{"Status": "UP"}}}, nil))
	h.fire()
	h.r.Reset()

	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{ID: "a", Metadata: graph.Metadata{"Status": "DOWN"}}))
	h.deliver(graphMsg(protocol.TypeNodeDeleted, protocol.NodeObj{ID: "a"}))
	assert.Empty(t, h.e.pendingUpdates)
	h.fire()

	_, ok := h.e.store.GetNode("a")
	assert.False(t, ok)
	assert.Empty(t, h.r.NodesUpdated)
	assert.Equal(t, []string{"a"}, h.r.NodesRemoved)

	// A later update for the gone ID is a violation, not a queued change.
	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{ID: "a", Metadata: graph.Metadata{"Status": "UP"}}))
	assert.Empty(t, h.timers.pending)
}

func TestEngine_CustomRedrawOn(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RedrawOn = []string{"State"} })
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1", Metadata: graph.Metadata{"State": "UP"}}}, nil))
	h.fire()

	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{ID: "n1", Metadata: graph.Metadata{"State": "UP", "Status": "x"}}))
	assert.Empty(t, h.timers.pending)

	h.deliver(graphMsg(protocol.TypeNodeUpdated, protocol.NodeObj{ID: "n1", Metadata: graph.Metadata{"State": "DOWN"}}))
	assert.Len(t, h.timers.pending, 1)
}

func TestEngine_SyncFailure(t *testing.T) {
	h := newHarness(t)
	h.ch.Open()
	h.drain()

	h.deliverJSON(`{"Namespace":"Graph","Type":"SyncReply","Status":500}`)

	assert.Equal(t, ConnectedUnsynced, h.e.State())
	notes := h.n.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, slog.LevelError, notes[0].Level)
	assert.Contains(t, notes[0].Message, "500")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.SyncReplies.WithLabelValues("500")))
	assert.Len(t, h.ch.Sent(), 1, "no automatic retry")
}

func TestEngine_DisconnectInvalidates(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1"}}, nil))
	require.Len(t, h.timers.pending, 1)

	h.ch.Drop()
	h.drain()

	assert.Equal(t, Disconnected, h.e.State())
	notes := h.n.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, slog.LevelWarn, notes[0].Level)

	h.deliver(graphMsg(protocol.TypeNodeAdded, protocol.NodeObj{ID: "n2"}))
	assert.Equal(t, 1, h.e.store.NodeCount())

	assert.NotPanics(t, h.fire, "a pending flush completes after disconnect")
	assert.Equal(t, 1, h.r.FrameCount())

	h.ch.Open()
	h.drain()
	assert.Equal(t, ConnectedUnsynced, h.e.State())
	assert.Len(t, h.ch.Sent(), 2)
}

func TestEngine_TimeTravel(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1"}}, nil))

	h.e.requestSync(h.ctx, 1000, false)
	require.Len(t, h.ch.Sent(), 2)
	assert.Equal(t, int64(1000), *sentTime(t, h.ch.Sent()[1]))
	assert.Equal(t, ConnectedUnsynced, h.e.State())

	h.e.requestSync(h.ctx, 1000, false)
	assert.Len(t, h.ch.Sent(), 2, "same instant is a no-op")

	h.deliver(syncReply([]protocol.NodeObj{{ID: "past"}}, nil))
	h.deliver(graphMsg(protocol.TypeNodeAdded, protocol.NodeObj{ID: "live"}))
	_, ok := h.e.store.GetNode("live")
	assert.False(t, ok, "live deltas do not apply to a past instant")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.Dropped.WithLabelValues(metrics.ReasonTimeTravel)))

	h.e.requestSync(h.ctx, 0, false)
	h.e.requestSync(h.ctx, 0, false)
	sent := h.ch.Sent()
	require.Len(t, sent, 4, "live requests are always sent")
	assert.Nil(t, sentTime(t, sent[3]))
}

func TestEngine_RequestWhileDisconnectedIsSentOnConnect(t *testing.T) {
	h := newHarness(t)

	h.e.requestSync(h.ctx, 42, false)
	assert.Empty(t, h.ch.Sent())

	h.ch.Open()
	h.drain()
	sent := h.ch.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), *sentTime(t, sent[0]))
}

func TestEngine_FailedRequestCanBeRepeated(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1"}}, nil))

	h.ch.FailSends(errors.New("write: broken pipe"))
	h.e.requestSync(h.ctx, 1000, false)
	assert.Len(t, h.ch.Sent(), 1)
	assert.Equal(t, ConnectedSynced, h.e.State())

	h.ch.FailSends(nil)
	h.e.requestSync(h.ctx, 1000, false)
	sent := h.ch.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, int64(1000), *sentTime(t, sent[1]))

	h.e.requestSync(h.ctx, 1000, false)
	assert.Len(t, h.ch.Sent(), 2, "a delivered instant is not sent twice")
}

func TestEngine_PinArmsRedraw(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1", Host: "h1"}}, nil))
	h.fire()
	h.r.Reset()

	h.e.setPinned("n1", true)
	require.Len(t, h.timers.pending, 1)
	h.fire()

	n1, _ := h.e.store.GetNode("n1")
	assert.True(t, n1.Pos.Pinned)
	assert.Equal(t, 1, h.r.FrameCount())

	h.e.setPinned("missing", true)
	assert.Empty(t, h.timers.pending)
}

func TestEngine_AlertArmsRedraw(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply([]protocol.NodeObj{{ID: "n1"}}, nil))
	h.fire()

	h.deliverJSON(`{"Namespace":"Alert","Type":"Alert","Obj":{"ReasonData":{"ID":"n1"}}}`)
	require.Len(t, h.timers.pending, 1)
	h.fire()

	assert.Equal(t, []string{"n1"}, h.r.LastFrame().Alerts)
}

func TestEngine_GroupsWrittenOnFlush(t *testing.T) {
	h := newHarness(t)
	h.connect(syncReply(
		[]protocol.NodeObj{
			{ID: "H", Metadata: graph.Metadata{"Type": "host"}},
			{ID: "B", Metadata: graph.Metadata{"Type": "bridge"}},
			{ID: "I", Metadata: graph.Metadata{"Type": "veth"}},
		},
		[]protocol.EdgeObj{
			{ID: "e1", Parent: "H", Child: "B"},
			{ID: "e2", Parent: "B", Child: "I"},
		},
	))
	h.fire()

	frame := h.r.LastFrame()
	require.Len(t, frame.Groups, 2)
	assert.Equal(t, "B", frame.Groups[0].ID)
	assert.Equal(t, []string{"B", "I"}, frame.Groups[0].Members)
	assert.Equal(t, "H", frame.Groups[1].ID)
	assert.Equal(t, []string{"B", "H", "I"}, frame.Groups[1].Members)

	i, _ := h.e.store.GetNode("I")
	assert.Equal(t, "H", i.Group)
}

func TestEngine_RunLifecycle(t *testing.T) {
	ch := tu.NewFakeChannel()
	rec := &tu.RecordingRenderer{}
	logger, logs := tu.NewLogger()
	e, err := New(Options{
		Channel:  ch,
		Renderer: rec,
		Logger:   logger,
		Debounce: 5 * time.Millisecond,
		AlertTTL: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	assert.Eventually(t, func() bool { return e.State() == Connecting }, time.Second, 5*time.Millisecond)

	ch.Open()
	assert.Eventually(t, func() bool { return len(ch.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	ch.Deliver(syncReply([]protocol.NodeObj{{ID: "n1", Metadata: graph.Metadata{"Type": "netns"}}}, nil))

	select {
	case <-e.Synced():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sync")
	}

	require.NoError(t, e.MovePosition(ctx, "n1", 10, 20))
	require.NoError(t, e.SetPinned(ctx, "n1", true))
	require.NoError(t, e.ToggleCollapse(ctx, "n1"))

	replica, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, ConnectedSynced.String(), replica.State)
	require.Len(t, replica.Graph.Nodes, 1)
	assert.Equal(t, &graph.Position{X: 10, Y: 20, Pinned: true}, replica.Graph.Nodes[0].Pos)

	ch.Deliver(testMessage(`{"Namespace":"Alert","Type":"Alert","Obj":{"ReasonData":{"ID":"n1"}}}`))
	assert.Eventually(t, func() bool {
		return len(rec.LastFrame().Alerts) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return len(rec.LastFrame().Alerts) == 0
	}, 2*time.Second, 10*time.Millisecond, "alert expiry triggers a redraw")

	require.NoError(t, e.SyncRequest(ctx, 5))
	assert.Eventually(t, func() bool { return len(ch.Sent()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Contains(t, logs.String(), "component=syncengine")

	_, err = e.Snapshot(context.Background())
	assert.Error(t, err, "the loop is gone")
}

func testMessage(frame string) protocol.Message {
	msg, err := protocol.Decode([]byte(frame))
	if err != nil {
		panic(err)
	}
	return msg
}
