package graph

import (
	"slices"
	"sort"
)

// Node types the rest of the module makes decisions on.
const (
	TypeHost      = "host"
	TypeNetNS     = "netns"
	TypeBridge    = "bridge"
	TypeOVSBridge = "ovsbridge"
	TypeOVSPort   = "ovsport"
	TypeVeth      = "veth"

	ProbeFabric = "fabric"
)

var captureAllowedTypes = []string{"device", "veth", "ovsbridge", "internal", "tun", "bridge"}

// Position is a node's layout coordinate. Its lifecycle belongs to the
// position cache, not to the protocol.
type Position struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Pinned bool    `json:"pinned" yaml:"pinned"`
}

// Node is a vertex of the replica.
type Node struct {
	ID       string
	Host     string
	Metadata Metadata
	// Edges is the set of IDs of edges this node is an endpoint of.
	Edges map[string]struct{}

	// Visible and Collapsed are UI state and never affect structural queries.
	Visible   bool
	Collapsed bool
	// Group is the primary group the last grouping pass placed this node in.
	Group string
	// Pos is nil until the node has been placed.
	Pos *Position
}

func newNode(id, host string) *Node {
	return &Node{
		ID:       id,
		Host:     host,
		Metadata: Metadata{},
		Edges:    make(map[string]struct{}),
		Visible:  true,
	}
}

// EdgeIDs returns the node's edge IDs in sorted order.
func (n *Node) EdgeIDs() []string {
	ids := make([]string, 0, len(n.Edges))
	for id := range n.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Positioned reports whether the node has valid layout coordinates.
func (n *Node) Positioned() bool {
	return n.Pos != nil
}

// IsCaptureOn reports whether a packet capture is active on the node.
func (n *Node) IsCaptureOn() bool {
	return n.Metadata.Has(KeyCaptureID)
}

// IsCaptureAllowed reports whether the node's type supports captures.
func (n *Node) IsCaptureAllowed() bool {
	return slices.Contains(captureAllowedTypes, n.Metadata.Type())
}

// Edge is a directed parent→child relation. Direction matters for
// structural queries only; renderers draw it undirected.
type Edge struct {
	ID       string
	Host     string
	Metadata Metadata
	Parent   string
	Child    string
	Visible  bool
}

func newEdge(id, parent, child, host string) *Edge {
	return &Edge{
		ID:       id,
		Host:     host,
		Metadata: Metadata{},
		Parent:   parent,
		Child:    child,
		Visible:  true,
	}
}

// Other returns the endpoint of e that is not id.
func (e *Edge) Other(id string) string {
	if e.Parent == id {
		return e.Child
	}
	return e.Parent
}
