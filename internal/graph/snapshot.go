package graph

// NodeRecord is the serializable form of a node.
type NodeRecord struct {
	ID       string    `json:"ID" yaml:"id"`
	Host     string    `json:"Host,omitempty" yaml:"host,omitempty"`
	Metadata Metadata  `json:"Metadata,omitempty" yaml:"metadata,omitempty"`
	Pos      *Position `json:"Position,omitempty" yaml:"position,omitempty"`

	// View state. Ignored by InitFromSnapshot.
	Hidden    bool   `json:"Hidden,omitempty" yaml:"hidden,omitempty"`
	Collapsed bool   `json:"Collapsed,omitempty" yaml:"collapsed,omitempty"`
	Group     string `json:"Group,omitempty" yaml:"group,omitempty"`
}

// EdgeRecord is the serializable form of an edge.
type EdgeRecord struct {
	ID       string   `json:"ID" yaml:"id"`
	Parent   string   `json:"Parent" yaml:"parent"`
	Child    string   `json:"Child" yaml:"child"`
	Host     string   `json:"Host,omitempty" yaml:"host,omitempty"`
	Metadata Metadata `json:"Metadata,omitempty" yaml:"metadata,omitempty"`
	Hidden   bool     `json:"Hidden,omitempty" yaml:"hidden,omitempty"`
}

// Snapshot is a full-graph representation, used both to initialize the
// replica and to hand read-only copies to other goroutines.
type Snapshot struct {
	Nodes []NodeRecord `json:"Nodes" yaml:"nodes"`
	Edges []EdgeRecord `json:"Edges" yaml:"edges"`
}

// InitFromSnapshot bulk-loads nodes, then edges. Edges whose endpoints are
// not in the snapshot are skipped rather than failing the whole load; the
// number skipped is returned.
func (g *Graph) InitFromSnapshot(s Snapshot) (skipped int) {
	for _, rec := range s.Nodes {
		n, _ := g.NewNode(rec.ID, rec.Host)
		if rec.Metadata != nil {
			n.Metadata = rec.Metadata
		}
	}
	for _, rec := range s.Edges {
		e, err := g.NewEdge(rec.ID, rec.Parent, rec.Child, rec.Host)
		if err != nil {
			skipped++
			continue
		}
		if rec.Metadata != nil {
			e.Metadata = rec.Metadata
		}
	}
	return skipped
}

// Snapshot returns a deep copy of the graph, ordered by ID.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Nodes: make([]NodeRecord, 0, len(g.nodes)),
		Edges: make([]EdgeRecord, 0, len(g.edges)),
	}
	for _, n := range g.Nodes() {
		s.Nodes = append(s.Nodes, n.Record())
	}
	for _, e := range g.Edges() {
		s.Edges = append(s.Edges, e.Record())
	}
	return s
}

// Record returns a deep copy of the node.
func (n *Node) Record() NodeRecord {
	rec := NodeRecord{
		ID:        n.ID,
		Host:      n.Host,
		Metadata:  n.Metadata.Clone(),
		Hidden:    !n.Visible,
		Collapsed: n.Collapsed,
		Group:     n.Group,
	}
	if n.Pos != nil {
		pos := *n.Pos
		rec.Pos = &pos
	}
	return rec
}

// Record returns a deep copy of the edge.
func (e *Edge) Record() EdgeRecord {
	return EdgeRecord{
		ID:       e.ID,
		Parent:   e.Parent,
		Child:    e.Child,
		Host:     e.Host,
		Metadata: e.Metadata.Clone(),
		Hidden:   !e.Visible,
	}
}
