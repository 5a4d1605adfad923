// Package poscache defines the key-value store that persists node layout
// positions across sessions. Entries expire after a TTL so stale layouts of
// nodes that no longer exist eventually disappear.
package poscache

import (
	"context"
	"time"

	"github.com/specialistvlad/topomirror/internal/graph"
)

// DefaultTTL is how long a saved layout survives without being refreshed.
const DefaultTTL = 7 * 24 * time.Hour

// Position is the cached value.
type Position = graph.Position

// Cache is a position store. Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the cached position; ok is false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (pos Position, ok bool, err error)
	// Set stores pos under key. A ttl of zero means the backend default.
	Set(ctx context.Context, key string, pos Position, ttl time.Duration) error
	Close() error
}

// Key is the cache key of a node: its TID when present, since TIDs are
// stable across agent restarts, otherwise its ID.
func Key(n *graph.Node) string {
	if tid := n.Metadata.TID(); tid != "" {
		return tid
	}
	return n.ID
}
