// Package render is the boundary between the replica and whatever draws it.
// Renderers receive read-only copies and never mutate the replica; UI
// changes go back through the sync engine's setters.
package render

import (
	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/grouping"
)

// Frame is delivered once per deferred-action flush.
type Frame struct {
	Groups []grouping.Group `json:"groups" yaml:"groups"`
	// Alerts holds the IDs of nodes with an active alert, sorted.
	Alerts []string `json:"alerts" yaml:"alerts"`
	Nodes  int      `json:"nodes" yaml:"nodes"`
	Edges  int      `json:"edges" yaml:"edges"`
}

// Renderer receives view changes. Node and edge values are copies.
type Renderer interface {
	NodeAdded(n graph.NodeRecord)
	NodeRemoved(id string)
	NodeUpdated(n graph.NodeRecord)
	EdgeAdded(e graph.EdgeRecord)
	EdgeRemoved(id string)
	Redraw(f Frame)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) NodeAdded(graph.NodeRecord)   {}
func (Nop) NodeRemoved(string)           {}
func (Nop) NodeUpdated(graph.NodeRecord) {}
func (Nop) EdgeAdded(graph.EdgeRecord)   {}
func (Nop) EdgeRemoved(string)           {}
func (Nop) Redraw(Frame)                 {}

var _ Renderer = Nop{}
