package graph

// Reader is the read-only view of a Graph handed to consumers that must not
// mutate the replica, such as the grouping pass.
type Reader interface {
	Nodes() []*Node
	GetNode(id string) (*Node, bool)
	GetEdge(id string) (*Edge, bool)
	GetNeighbors(id string) []*Edge
	GetParents(id string) []*Node
	GetChildren(id string) []*Node
}

var _ Reader = (*Graph)(nil)
