package testutil

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/specialistvlad/topomirror/internal/channel"
	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/protocol"
	"github.com/specialistvlad/topomirror/internal/render"
)

// FakeChannel is a channel.Channel driven by the test. Connect blocks
// until its context is done; Open, Drop and Deliver fire the handlers.
type FakeChannel struct {
	channel.Handlers

	mu        sync.Mutex
	sent      []protocol.Message
	connected bool
	sendErr   error
}

var _ channel.Channel = (*FakeChannel)(nil)

func NewFakeChannel() *FakeChannel {
	return &FakeChannel{}
}

func (c *FakeChannel) Connect(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (c *FakeChannel) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return channel.ErrNotConnected
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

// Open simulates an established connection.
func (c *FakeChannel) Open() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.EmitConnect()
}

// FailSends makes Send return err while the connection stays up. A nil err
// restores normal sends.
func (c *FakeChannel) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Drop simulates a lost connection.
func (c *FakeChannel) Drop() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.EmitDisconnect()
}

// Deliver hands msg to the message handlers.
func (c *FakeChannel) Deliver(msg protocol.Message) {
	c.EmitMessage(msg)
}

// DeliverJSON decodes a wire frame and delivers it.
func (c *FakeChannel) DeliverJSON(frame string) {
	msg, err := protocol.Decode([]byte(frame))
	if err != nil {
		panic(err)
	}
	c.EmitMessage(msg)
}

// Sent returns a copy of the messages sent so far.
func (c *FakeChannel) Sent() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// Message builds an envelope around obj, panicking on encode failure.
func Message(namespace, typ string, obj any) protocol.Message {
	raw, err := json.Marshal(obj)
	if err != nil {
		panic(err)
	}
	return protocol.Message{Namespace: namespace, Type: typ, Obj: raw}
}

// RecordingRenderer records every notification. Safe for concurrent use.
type RecordingRenderer struct {
	mu           sync.Mutex
	NodesAdded   []string
	NodesRemoved []string
	NodesUpdated []string
	EdgesAdded   []string
	EdgesRemoved []string
	Frames       []render.Frame
}

var _ render.Renderer = (*RecordingRenderer)(nil)

func (r *RecordingRenderer) NodeAdded(n graph.NodeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NodesAdded = append(r.NodesAdded, n.ID)
}

func (r *RecordingRenderer) NodeRemoved(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NodesRemoved = append(r.NodesRemoved, id)
}

func (r *RecordingRenderer) NodeUpdated(n graph.NodeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NodesUpdated = append(r.NodesUpdated, n.ID)
}

func (r *RecordingRenderer) EdgeAdded(e graph.EdgeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EdgesAdded = append(r.EdgesAdded, e.ID)
}

func (r *RecordingRenderer) EdgeRemoved(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EdgesRemoved = append(r.EdgesRemoved, id)
}

func (r *RecordingRenderer) Redraw(f render.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, f)
}

// FrameCount returns the number of redraws so far.
func (r *RecordingRenderer) FrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Frames)
}

// LastFrame returns the most recent frame, or the zero Frame.
func (r *RecordingRenderer) LastFrame() render.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Frames) == 0 {
		return render.Frame{}
	}
	return r.Frames[len(r.Frames)-1]
}

// Reset forgets everything recorded so far.
func (r *RecordingRenderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NodesAdded, r.NodesRemoved, r.NodesUpdated = nil, nil, nil
	r.EdgesAdded, r.EdgesRemoved = nil, nil
	r.Frames = nil
}

// Notification is one recorded Notify call.
type Notification struct {
	Level   slog.Level
	Message string
}

// RecordingNotifier records notifications. Safe for concurrent use.
type RecordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (n *RecordingNotifier) Notify(level slog.Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notification{Level: level, Message: msg})
}

// Notifications returns a copy of the recorded notifications.
func (n *RecordingNotifier) Notifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}
