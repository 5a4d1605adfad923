package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEndpointNotFound is returned by NewEdge when the parent or child node
// is not in the graph.
var ErrEndpointNotFound = errors.New("edge endpoint not found")

// Graph is the replica store. See the package documentation for its
// invariants and threading model.
type Graph struct {
	nodes map[string]*Node
	edges map[string]*Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}
}

// NewNode creates and indexes a node. If id is already present the stored
// node is returned untouched and created is false.
func (g *Graph) NewNode(id, host string) (n *Node, created bool) {
	if existing, ok := g.nodes[id]; ok {
		return existing, false
	}
	n = newNode(id, host)
	g.nodes[id] = n
	return n, true
}

// NewEdge creates an edge between two existing nodes and registers it on
// both endpoints. Re-adding an existing ID returns the stored edge.
func (g *Graph) NewEdge(id, parent, child, host string) (*Edge, error) {
	if existing, ok := g.edges[id]; ok {
		return existing, nil
	}
	p, ok := g.nodes[parent]
	if !ok {
		return nil, fmt.Errorf("edge %q: parent %q: %w", id, parent, ErrEndpointNotFound)
	}
	c, ok := g.nodes[child]
	if !ok {
		return nil, fmt.Errorf("edge %q: child %q: %w", id, child, ErrEndpointNotFound)
	}

	e := newEdge(id, parent, child, host)
	g.edges[id] = e
	p.Edges[id] = struct{}{}
	c.Edges[id] = struct{}{}
	return e, nil
}

// DelNode removes every edge touching the node, then the node itself.
// It returns the removed edges; deleting an absent node is a no-op.
func (g *Graph) DelNode(id string) (removed []*Edge, ok bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	for _, eid := range n.EdgeIDs() {
		if e, deleted := g.DelEdge(eid); deleted {
			removed = append(removed, e)
		}
	}
	delete(g.nodes, id)
	return removed, true
}

// DelEdge unregisters the edge from both endpoints and the edge table.
// Deleting an absent edge is a no-op.
func (g *Graph) DelEdge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return nil, false
	}
	if p, ok := g.nodes[e.Parent]; ok {
		delete(p.Edges, id)
	}
	if c, ok := g.nodes[e.Child]; ok {
		delete(c.Edges, id)
	}
	delete(g.edges, id)
	return e, true
}

// GetNode looks a node up by ID. Callers must check ok.
func (g *Graph) GetNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// GetEdge looks an edge up by ID. Callers must check ok.
func (g *Graph) GetEdge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// GetNeighbors returns every edge the node takes part in, ordered by ID.
func (g *Graph) GetNeighbors(id string) []*Edge {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Edge, 0, len(n.Edges))
	for _, eid := range n.EdgeIDs() {
		out = append(out, g.edges[eid])
	}
	return out
}

// GetParents returns the nodes at the parent end of edges whose child is id.
func (g *Graph) GetParents(id string) []*Node {
	return g.endpoints(id, func(e *Edge) (string, bool) {
		return e.Parent, e.Child == id
	})
}

// GetChildren returns the nodes at the child end of edges whose parent is id.
func (g *Graph) GetChildren(id string) []*Node {
	return g.endpoints(id, func(e *Edge) (string, bool) {
		return e.Child, e.Parent == id
	})
}

func (g *Graph) endpoints(id string, pick func(*Edge) (string, bool)) []*Node {
	var out []*Node
	for _, e := range g.GetNeighbors(id) {
		other, ok := pick(e)
		if !ok {
			continue
		}
		if n, ok := g.nodes[other]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Nodes returns all nodes ordered by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges ordered by ID.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// SetNodeMetadata replaces the metadata of an existing node.
func (g *Graph) SetNodeMetadata(id string, md Metadata) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	if md == nil {
		md = Metadata{}
	}
	n.Metadata = md
	return true
}

// SetEdgeMetadata replaces the metadata of an existing edge.
func (g *Graph) SetEdgeMetadata(id string, md Metadata) bool {
	e, ok := g.edges[id]
	if !ok {
		return false
	}
	if md == nil {
		md = Metadata{}
	}
	e.Metadata = md
	return true
}

// Clear drops every node and edge.
func (g *Graph) Clear() {
	g.nodes = make(map[string]*Node)
	g.edges = make(map[string]*Edge)
}
