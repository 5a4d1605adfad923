package syncengine

import (
	"context"

	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/grouping"
)

// The setters below are safe from any goroutine; each runs on the loop.
// They return once the change is applied or ctx is done.

// SetPinned fixes or releases a node's position. Touching the layout turns
// on position persistence.
func (e *Engine) SetPinned(ctx context.Context, id string, pinned bool) error {
	return e.call(ctx, func(context.Context) { e.setPinned(id, pinned) })
}

func (e *Engine) setPinned(id string, pinned bool) {
	n, ok := e.store.GetNode(id)
	if !ok || n.Pos == nil {
		return
	}
	n.Pos.Pinned = pinned
	e.keepLayout = true
	e.view.updateNode(id)
	e.arm()
}

// MovePosition sets a node's coordinates, keeping its pinned flag.
func (e *Engine) MovePosition(ctx context.Context, id string, x, y float64) error {
	return e.call(ctx, func(context.Context) {
		n, ok := e.store.GetNode(id)
		if !ok {
			return
		}
		pinned := n.Pos != nil && n.Pos.Pinned
		n.Pos = &graph.Position{X: x, Y: y, Pinned: pinned}
		e.keepLayout = true
		e.view.updateNode(id)
		e.arm()
	})
}

// ToggleCollapse folds or unfolds a namespace or host node.
func (e *Engine) ToggleCollapse(ctx context.Context, id string) error {
	return e.call(ctx, func(context.Context) {
		if e.toggleCollapse(id) {
			e.arm()
		}
	})
}

// SyncRequest asks for the graph at the given epoch-millisecond instant,
// or live when at is zero. Asking again for the current instant is a no-op.
func (e *Engine) SyncRequest(ctx context.Context, at int64) error {
	return e.call(ctx, func(ctx context.Context) {
		e.requestSync(ctx, at, false)
	})
}

// Replica is a point-in-time copy of the engine's view of the topology.
type Replica struct {
	State  string           `json:"state" yaml:"state"`
	At     int64            `json:"at,omitempty" yaml:"at,omitempty"`
	Graph  graph.Snapshot   `json:"graph" yaml:"graph"`
	Groups []grouping.Group `json:"groups" yaml:"groups"`
	Alerts []string         `json:"alerts,omitempty" yaml:"alerts,omitempty"`
}

// Snapshot returns a deep copy of the replica with a fresh grouping.
func (e *Engine) Snapshot(ctx context.Context) (Replica, error) {
	var r Replica
	err := e.call(ctx, func(context.Context) {
		res := grouping.Compute(e.store, grouping.Options{Include: e.view.surfacedNode})
		r = Replica{
			State:  e.State().String(),
			At:     e.at,
			Graph:  e.store.Snapshot(),
			Groups: res.Groups,
			Alerts: e.activeAlerts(),
		}
	})
	return r, err
}
