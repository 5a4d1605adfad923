package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jellydator/ttlcache/v3"

	"github.com/specialistvlad/topomirror/internal/ctxlog"
	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/metrics"
	"github.com/specialistvlad/topomirror/internal/protocol"
)

func (e *Engine) drop(ctx context.Context, msg protocol.Message, reason string, err error) {
	e.opts.Metrics.Dropped.WithLabelValues(reason).Inc()
	ctxlog.FromContext(ctx).Debug("Dropping message",
		"namespace", msg.Namespace, "type", msg.Type, "reason", reason, "error", err)
}

// handleMessage applies one inbound message. It never fails: violations and
// stale deltas are dropped.
func (e *Engine) handleMessage(ctx context.Context, msg protocol.Message) {
	e.opts.Metrics.Messages.WithLabelValues(msg.Namespace, msg.Type).Inc()

	switch msg.Namespace {
	case protocol.NamespaceAlert:
		e.handleAlert(ctx, msg)
		return
	case protocol.NamespaceGraph:
	default:
		e.drop(ctx, msg, metrics.ReasonUnknown, nil)
		return
	}

	if err := msg.Validate(); err != nil {
		e.drop(ctx, msg, metrics.ReasonUnknown, err)
		return
	}
	if msg.Type == protocol.TypeSyncReply {
		e.handleSyncReply(ctx, msg)
		return
	}
	if e.State() != ConnectedSynced {
		e.drop(ctx, msg, metrics.ReasonStale, nil)
		return
	}
	if e.at != 0 {
		e.drop(ctx, msg, metrics.ReasonTimeTravel, nil)
		return
	}

	var err error
	switch msg.Type {
	case protocol.TypeNodeAdded:
		err = e.nodeAdded(msg)
	case protocol.TypeNodeUpdated:
		err = e.nodeUpdated(msg)
	case protocol.TypeNodeDeleted:
		err = e.nodeDeleted(msg)
	case protocol.TypeEdgeAdded:
		err = e.edgeAdded(msg)
	case protocol.TypeEdgeUpdated:
		err = e.edgeUpdated(msg)
	case protocol.TypeEdgeDeleted:
		err = e.edgeDeleted(msg)
	}
	if err != nil {
		e.drop(ctx, msg, metrics.ReasonViolation, err)
	}
}

func (e *Engine) handleSyncReply(ctx context.Context, msg protocol.Message) {
	logger := ctxlog.FromContext(ctx)
	e.opts.Metrics.SyncReplies.WithLabelValues(strconv.Itoa(msg.Status)).Inc()

	if msg.Status != protocol.StatusOK {
		if e.State() == ConnectedSynced {
			e.setState(ConnectedUnsynced)
		}
		e.opts.Notifier.Notify(slog.LevelError, fmt.Sprintf("Unable to init topology: sync failed with status %d", msg.Status))
		return
	}

	var obj protocol.GraphObj
	if err := msg.DecodeObj(&obj); err != nil {
		e.drop(ctx, msg, metrics.ReasonMalformed, err)
		e.opts.Notifier.Notify(slog.LevelError, "Unable to init topology: malformed SyncReply")
		return
	}

	e.setState(ConnectedUnsynced)
	e.queue = nil
	clear(e.pendingUpdates)
	e.view.clear()
	e.store.Clear()

	skipped := e.store.InitFromSnapshot(obj.Snapshot())
	if skipped > 0 {
		e.opts.Metrics.Dropped.WithLabelValues(metrics.ReasonViolation).Add(float64(skipped))
	}
	for _, n := range e.store.Nodes() {
		e.placeNode(ctx, n)
		e.view.addNode(n.ID)
	}
	for _, edge := range e.store.Edges() {
		e.view.addEdge(edge.ID)
	}

	e.setState(ConnectedSynced)
	e.syncedOnce.Do(func() { close(e.synced) })
	logger.Info("Replica synchronized",
		"nodes", e.store.NodeCount(), "edges", e.store.EdgeCount(), "skipped_edges", skipped, "at", e.at)
	e.arm()
}

func (e *Engine) nodeAdded(msg protocol.Message) error {
	var obj protocol.NodeObj
	if err := msg.DecodeObj(&obj); err != nil {
		return err
	}
	n, created := e.store.NewNode(obj.ID, obj.Host)
	if !created {
		return nil
	}
	if obj.Metadata != nil {
		n.Metadata = obj.Metadata
	}
	e.enqueue(addNodeAction(obj.ID))
	return nil
}

func (e *Engine) nodeUpdated(msg protocol.Message) error {
	var obj protocol.NodeObj
	if err := msg.DecodeObj(&obj); err != nil {
		return err
	}
	n, ok := e.store.GetNode(obj.ID)
	if !ok {
		return fmt.Errorf("update of unknown node %q", obj.ID)
	}

	// An update queued behind a pending one must stay behind it.
	if _, pending := e.pendingUpdates[obj.ID]; pending || e.needsRedraw(n.Metadata, obj.Metadata) {
		e.pendingUpdates[obj.ID] = struct{}{}
		e.enqueue(updateNodeAction(obj.ID, obj.Metadata))
		return nil
	}
	e.store.SetNodeMetadata(obj.ID, obj.Metadata)
	return nil
}

func (e *Engine) needsRedraw(current, incoming graph.Metadata) bool {
	for _, key := range e.opts.RedrawOn {
		if !current.Equal(incoming, key) {
			return true
		}
	}
	return false
}

func (e *Engine) nodeDeleted(msg protocol.Message) error {
	var obj protocol.NodeObj
	if err := msg.DecodeObj(&obj); err != nil {
		return err
	}
	removed, ok := e.store.DelNode(obj.ID)
	if !ok {
		return fmt.Errorf("delete of unknown node %q", obj.ID)
	}
	e.dropQueuedUpdates(obj.ID)
	for _, edge := range removed {
		e.enqueue(delEdgeAction(edge.ID, edge.Parent, edge.Child))
	}
	e.enqueue(delNodeAction(obj.ID))
	return nil
}

func (e *Engine) edgeAdded(msg protocol.Message) error {
	var obj protocol.EdgeObj
	if err := msg.DecodeObj(&obj); err != nil {
		return err
	}
	_, existed := e.store.GetEdge(obj.ID)
	edge, err := e.store.NewEdge(obj.ID, obj.Parent, obj.Child, obj.Host)
	if err != nil {
		return err
	}
	if !existed && obj.Metadata != nil {
		edge.Metadata = obj.Metadata
	}
	e.enqueue(addEdgeAction(obj.ID))
	return nil
}

func (e *Engine) edgeUpdated(msg protocol.Message) error {
	var obj protocol.EdgeObj
	if err := msg.DecodeObj(&obj); err != nil {
		return err
	}
	if !e.store.SetEdgeMetadata(obj.ID, obj.Metadata) {
		return fmt.Errorf("update of unknown edge %q", obj.ID)
	}
	e.enqueue(refreshEdgeAction(obj.ID))
	return nil
}

func (e *Engine) edgeDeleted(msg protocol.Message) error {
	var obj protocol.EdgeObj
	if err := msg.DecodeObj(&obj); err != nil {
		return err
	}
	edge, ok := e.store.DelEdge(obj.ID)
	if !ok {
		return fmt.Errorf("delete of unknown edge %q", obj.ID)
	}
	e.enqueue(delEdgeAction(edge.ID, edge.Parent, edge.Child))
	return nil
}

func (e *Engine) handleAlert(ctx context.Context, msg protocol.Message) {
	var obj protocol.AlertObj
	if err := msg.DecodeObj(&obj); err != nil {
		e.drop(ctx, msg, metrics.ReasonMalformed, err)
		return
	}
	if obj.ReasonData.ID == "" {
		e.drop(ctx, msg, metrics.ReasonViolation, fmt.Errorf("alert without ReasonData.ID"))
		return
	}
	e.alerts.Set(obj.ReasonData.ID, obj, ttlcache.DefaultTTL)
	e.arm()
}
