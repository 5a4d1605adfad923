package syncengine

import (
	"context"
	"slices"

	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/grouping"
	"github.com/specialistvlad/topomirror/internal/render"
)

type actionKind int

const (
	actAddNode actionKind = iota
	actUpdateNode
	actDelNode
	actAddEdge
	actRefreshEdge
	actDelEdge
)

// action is a queued view change. Targets are referenced by ID and looked
// up again when the action runs.
type action struct {
	kind     actionKind
	id       string
	parent   string
	child    string
	metadata graph.Metadata
}

func addNodeAction(id string) action { return action{kind: actAddNode, id: id} }
func delNodeAction(id string) action { return action{kind: actDelNode, id: id} }
func addEdgeAction(id string) action { return action{kind: actAddEdge, id: id} }

func updateNodeAction(id string, md graph.Metadata) action {
	return action{kind: actUpdateNode, id: id, metadata: md}
}

func refreshEdgeAction(id string) action { return action{kind: actRefreshEdge, id: id} }

func delEdgeAction(id, parent, child string) action {
	return action{kind: actDelEdge, id: id, parent: parent, child: child}
}

// enqueue queues a and arms the flush.
func (e *Engine) enqueue(a action) {
	e.queue = append(e.queue, a)
	e.arm()
}

// dropQueuedUpdates discards queued metadata replacements for id. They
// belong to a node that no longer exists and must not reach a later node
// with the same ID.
func (e *Engine) dropQueuedUpdates(id string) {
	if _, ok := e.pendingUpdates[id]; !ok {
		return
	}
	delete(e.pendingUpdates, id)
	e.queue = slices.DeleteFunc(e.queue, func(a action) bool {
		return a.kind == actUpdateNode && a.id == id
	})
}

// arm schedules a flush unless one is already pending.
func (e *Engine) arm() {
	if e.armed {
		return
	}
	e.armed = true
	e.timer = e.afterFunc(e.opts.Debounce, func() { e.post(e.flush) })
}

// flush applies the queued actions in order, regroups and emits one frame.
func (e *Engine) flush(ctx context.Context) {
	e.armed = false
	e.timer = nil
	queue := e.queue
	e.queue = nil
	clear(e.pendingUpdates)

	for _, a := range queue {
		e.apply(ctx, a)
	}
	e.opts.Metrics.Flushed.Add(float64(len(queue)))
	e.redraw()
}

func (e *Engine) apply(ctx context.Context, a action) {
	switch a.kind {
	case actAddNode:
		if n, ok := e.store.GetNode(a.id); ok {
			e.placeNode(ctx, n)
			e.view.addNode(a.id)
		}
	case actUpdateNode:
		if e.store.SetNodeMetadata(a.id, a.metadata) {
			e.view.updateNode(a.id)
		}
	case actDelNode:
		e.view.delNode(a.id)
	case actAddEdge:
		e.view.addEdge(a.id)
	case actRefreshEdge:
		e.view.refreshEdge(a.id)
	case actDelEdge:
		e.view.delEdge(a.id, a.parent, a.child)
	}
}

// redraw regroups the surfaced nodes and hands the frame to the renderer.
func (e *Engine) redraw() {
	res := grouping.Compute(e.store, grouping.Options{Include: e.view.surfacedNode})
	for _, n := range e.store.Nodes() {
		n.Group = res.Primary[n.ID]
	}

	frame := render.Frame{
		Groups: res.Groups,
		Alerts: e.activeAlerts(),
		Nodes:  e.store.NodeCount(),
		Edges:  e.store.EdgeCount(),
	}
	e.opts.Metrics.Redraws.Inc()
	e.opts.Metrics.Nodes.Set(float64(frame.Nodes))
	e.opts.Metrics.Edges.Set(float64(frame.Edges))
	e.opts.Renderer.Redraw(frame)
}

func (e *Engine) activeAlerts() []string {
	var ids []string
	for id, item := range e.alerts.Items() {
		if !item.IsExpired() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
