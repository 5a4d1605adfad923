package syncengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/topomirror/internal/metrics"
	"github.com/specialistvlad/topomirror/internal/protocol"
	"github.com/specialistvlad/topomirror/internal/testutil"
)

// manualTimers captures debounce callbacks so tests decide when a flush
// happens.
type manualTimers struct {
	pending []func()
}

type noopStopper struct{}

func (noopStopper) Stop() bool { return true }

func (m *manualTimers) after(_ time.Duration, f func()) stopper {
	m.pending = append(m.pending, f)
	return noopStopper{}
}

// harness drives an Engine on the test goroutine without Run: events are
// executed by drain, flushes by fire.
type harness struct {
	t      *testing.T
	ctx    context.Context
	e      *Engine
	ch     *testutil.FakeChannel
	r      *testutil.RecordingRenderer
	n      *testutil.RecordingNotifier
	m      *metrics.Metrics
	timers *manualTimers
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	logger, _ := testutil.NewLogger()
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		ch:     testutil.NewFakeChannel(),
		r:      &testutil.RecordingRenderer{},
		n:      &testutil.RecordingNotifier{},
		m:      metrics.NewUnregistered(),
		timers: &manualTimers{},
	}
	opts := Options{
		Channel:  h.ch,
		Renderer: h.r,
		Notifier: h.n,
		Metrics:  h.m,
		Logger:   logger,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	e.afterFunc = h.timers.after
	h.e = e
	return h
}

func (h *harness) drain() {
	for {
		select {
		case ev := <-h.e.inbox:
			ev(h.ctx)
		default:
			return
		}
	}
}

func (h *harness) deliver(msg protocol.Message) {
	h.ch.Deliver(msg)
	h.drain()
}

func (h *harness) deliverJSON(frame string) {
	h.ch.DeliverJSON(frame)
	h.drain()
}

// fire runs every pending debounce callback and the flushes they post.
func (h *harness) fire() {
	pending := h.timers.pending
	h.timers.pending = nil
	for _, f := range pending {
		f()
	}
	h.drain()
}

// connect opens the channel and sends the reply as the SyncReply.
func (h *harness) connect(reply protocol.Message) {
	h.ch.Open()
	h.drain()
	h.deliver(reply)
	require.Equal(h.t, ConnectedSynced, h.e.State())
}

func syncReply(nodes []protocol.NodeObj, edges []protocol.EdgeObj) protocol.Message {
	msg := testutil.Message(protocol.NamespaceGraph, protocol.TypeSyncReply, protocol.GraphObj{Nodes: nodes, Edges: edges})
	msg.Status = protocol.StatusOK
	return msg
}

func graphMsg(typ string, obj any) protocol.Message {
	return testutil.Message(protocol.NamespaceGraph, typ, obj)
}
