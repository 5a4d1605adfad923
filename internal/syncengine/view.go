package syncengine

import (
	"slices"

	"github.com/specialistvlad/topomirror/internal/graph"
	"github.com/specialistvlad/topomirror/internal/render"
)

// view tracks what has been handed to the renderer. Every edge the view
// learns about is recorded; only those passing the suppression policy are
// surfaced. Keeping the two sets apart lets a suppressed edge come back
// once the structure that made it redundant is gone.
type view struct {
	store    *graph.Graph
	renderer render.Renderer
	suppress []string

	nodes    map[string]struct{}
	recorded map[string]struct{}
	surfaced map[string]struct{}
}

func newView(store *graph.Graph, r render.Renderer, suppress []string) *view {
	v := &view{store: store, renderer: r, suppress: suppress}
	v.reset()
	return v
}

func (v *view) reset() {
	v.nodes = make(map[string]struct{})
	v.recorded = make(map[string]struct{})
	v.surfaced = make(map[string]struct{})
}

// clear withdraws everything from the renderer.
func (v *view) clear() {
	for _, id := range sortedKeys(v.surfaced) {
		v.renderer.EdgeRemoved(id)
	}
	for _, id := range sortedKeys(v.nodes) {
		v.renderer.NodeRemoved(id)
	}
	v.reset()
}

func (v *view) surfacedNode(n *graph.Node) bool {
	_, ok := v.nodes[n.ID]
	return ok
}

func (v *view) isSurfacedEdge(id string) bool {
	_, ok := v.surfaced[id]
	return ok
}

func (v *view) addNode(id string) {
	if _, ok := v.nodes[id]; ok {
		return
	}
	n, ok := v.store.GetNode(id)
	if !ok {
		return
	}
	v.nodes[id] = struct{}{}
	v.renderer.NodeAdded(n.Record())

	for _, e := range v.store.GetNeighbors(id) {
		v.evaluate(e.ID)
	}
}

func (v *view) updateNode(id string) {
	if _, ok := v.nodes[id]; !ok {
		return
	}
	if n, ok := v.store.GetNode(id); ok {
		v.renderer.NodeUpdated(n.Record())
	}
}

func (v *view) delNode(id string) {
	if _, ok := v.nodes[id]; !ok {
		return
	}
	delete(v.nodes, id)
	v.renderer.NodeRemoved(id)
}

func (v *view) addEdge(id string) {
	if _, ok := v.recorded[id]; ok {
		return
	}
	e, ok := v.store.GetEdge(id)
	if !ok {
		return
	}
	v.recorded[id] = struct{}{}
	v.evaluate(id)
	v.evaluateHostEdges(e.Parent)
	v.evaluateHostEdges(e.Child)
}

// refreshEdge re-applies the policy after an edge's metadata changed.
func (v *view) refreshEdge(id string) {
	if _, ok := v.recorded[id]; !ok {
		return
	}
	v.evaluate(id)
}

// delEdge forgets an edge already removed from the store. parent and child
// are its former endpoints.
func (v *view) delEdge(id, parent, child string) {
	if _, ok := v.recorded[id]; !ok {
		return
	}
	delete(v.recorded, id)
	if _, ok := v.surfaced[id]; ok {
		delete(v.surfaced, id)
		v.renderer.EdgeRemoved(id)
	}
	v.evaluateHostEdges(parent)
	v.evaluateHostEdges(child)
}

// evaluateHostEdges re-applies the policy to every recorded edge between
// node id and a host, since their redundancy depends on id's edge counts.
func (v *view) evaluateHostEdges(id string) {
	for _, e := range v.store.GetNeighbors(id) {
		if v.isHost(e.Parent) || v.isHost(e.Child) {
			v.evaluate(e.ID)
		}
	}
}

// evaluate surfaces or withdraws a recorded edge to match the policy.
func (v *view) evaluate(id string) {
	if _, ok := v.recorded[id]; !ok {
		return
	}
	e, ok := v.store.GetEdge(id)
	if !ok {
		return
	}

	_, surfaced := v.surfaced[id]
	want := v.endpointsSurfaced(e) && !v.suppressed(e)
	switch {
	case want && !surfaced:
		v.surfaced[id] = struct{}{}
		v.renderer.EdgeAdded(e.Record())
	case !want && surfaced:
		delete(v.surfaced, id)
		v.renderer.EdgeRemoved(id)
	}
}

func (v *view) endpointsSurfaced(e *graph.Edge) bool {
	_, p := v.nodes[e.Parent]
	_, c := v.nodes[e.Child]
	return p && c
}

// suppressed reports whether policy hides e. Relation types in the
// suppress list never show. A host edge is hidden when its child is an OVS
// bridge or namespace, a bridge with more than one edge, or an interface
// reachable through redundant parents.
func (v *view) suppressed(e *graph.Edge) bool {
	if slices.Contains(v.suppress, e.Metadata.RelationType()) {
		return true
	}
	if !v.isHost(e.Parent) {
		return false
	}
	child, ok := v.store.GetNode(e.Child)
	if !ok {
		return false
	}

	switch child.Metadata.Type() {
	case graph.TypeOVSBridge, graph.TypeNetNS:
		return true
	case graph.TypeBridge:
		if len(child.Edges) > 1 {
			return true
		}
	}

	parents := len(v.store.GetParents(child.ID))
	return parents > 2 || (parents > 1 && len(v.store.GetChildren(child.ID)) > 0)
}

func (v *view) isHost(id string) bool {
	n, ok := v.store.GetNode(id)
	return ok && n.Metadata.Type() == graph.TypeHost
}

// surfacedNodes returns the surfaced nodes in ID order.
func (v *view) surfacedNodes() []*graph.Node {
	out := make([]*graph.Node, 0, len(v.nodes))
	for _, id := range sortedKeys(v.nodes) {
		if n, ok := v.store.GetNode(id); ok {
			out = append(out, n)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
