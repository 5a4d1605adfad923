package syncengine

import (
	"github.com/specialistvlad/topomirror/internal/graph"
)

const fabricEdgeType = "fabric"

// toggleCollapse folds or unfolds a namespace or host. It reports whether
// anything changed.
func (e *Engine) toggleCollapse(id string) bool {
	n, ok := e.store.GetNode(id)
	if !ok || !e.view.surfacedNode(n) {
		return false
	}
	switch n.Metadata.Type() {
	case graph.TypeNetNS:
		e.collapseNetNS(n)
	case graph.TypeHost:
		e.collapseHost(n)
	default:
		return false
	}
	return true
}

// collapseNetNS toggles the children that hang off the namespace by a
// single edge.
func (e *Engine) collapseNetNS(ns *graph.Node) {
	for _, edge := range e.store.GetNeighbors(ns.ID) {
		if edge.Child == ns.ID {
			continue
		}
		child, ok := e.store.GetNode(edge.Child)
		if !ok || len(child.Edges) != 1 {
			continue
		}
		child.Visible = !child.Visible
		edge.Visible = !edge.Visible
		ns.Collapsed = !child.Visible
		e.view.updateNode(child.ID)
	}
}

// collapseHost hides or shows every other node of the host and their edges.
// Nodes with a fabric link stay visible so the fabric keeps its endpoints.
func (e *Engine) collapseHost(host *graph.Node) {
	collapsed := !host.Collapsed

	for _, n := range e.view.surfacedNodes() {
		if n.ID == host.ID || n.Host != host.Host {
			continue
		}

		fabricAttached := false
		for _, edge := range e.store.GetNeighbors(n.ID) {
			if edge.Metadata.Type() == fabricEdgeType {
				fabricAttached = true
				continue
			}
			if (edge.Parent == host.ID || edge.Child == host.ID) && e.hasFabricEdge(edge.Child) {
				continue
			}
			edge.Visible = !collapsed
		}

		if fabricAttached {
			continue
		}
		n.Visible = !collapsed
		e.view.updateNode(n.ID)
	}

	host.Collapsed = collapsed
	e.view.updateNode(host.ID)
}

func (e *Engine) hasFabricEdge(id string) bool {
	for _, edge := range e.store.GetNeighbors(id) {
		if edge.Metadata.Type() == fabricEdgeType {
			return true
		}
	}
	return false
}
