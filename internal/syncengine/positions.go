package syncengine

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	"github.com/specialistvlad/topomirror/internal/ctxlog"
	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/poscache"
)

// Seed placement spreads hosts around a circle so that nodes of one host
// start out together.
const (
	seedRadius = 500.0
	seedSlots  = 100
)

// placeNode restores a node's cached position, or seeds one from its host.
func (e *Engine) placeNode(ctx context.Context, n *graph.Node) {
	if n.Pos != nil {
		return
	}
	if e.opts.Positions != nil {
		pos, ok, err := e.opts.Positions.Get(ctx, poscache.Key(n))
		if err != nil {
			ctxlog.FromContext(ctx).Debug("Position cache lookup failed", "node", n.ID, "error", err)
		}
		if ok {
			n.Pos = &pos
			return
		}
	}
	n.Pos = seedPosition(n.Host)
}

func seedPosition(host string) *graph.Position {
	slot := float64(xxhash.Sum64String(host) % seedSlots)
	angle := slot / seedSlots * 2 * math.Pi
	return &graph.Position{
		X: math.Cos(angle)*seedRadius + rand.Float64(),
		Y: math.Sin(angle)*seedRadius + rand.Float64(),
	}
}

type savedPosition struct {
	key string
	pos graph.Position
}

// persistPositions saves every surfaced position once the user has moved
// or pinned a node. Writes run in the background on a copy; a flush still
// running when the next tick comes is not doubled up.
func (e *Engine) persistPositions(ctx context.Context) {
	if !e.keepLayout || e.opts.Positions == nil {
		return
	}

	var batch []savedPosition
	for _, n := range e.view.surfacedNodes() {
		if n.Pos != nil {
			batch = append(batch, savedPosition{key: poscache.Key(n), pos: *n.Pos})
		}
	}
	if len(batch) == 0 {
		return
	}

	cache, ttl := e.opts.Positions, e.opts.PositionTTL
	logger := ctxlog.FromContext(ctx)
	started := e.flushers.TryGo(func() error {
		for _, p := range batch {
			if err := cache.Set(ctx, p.key, p.pos, ttl); err != nil {
				logger.Warn("Failed to save position", "key", p.key, "error", err)
				return err
			}
		}
		logger.Debug("Positions saved", "count", len(batch))
		return nil
	})
	if !started {
		logger.Debug("Position flush still running, skipping tick")
	}
}
