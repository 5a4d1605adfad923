package grouping

import (
	"sort"

	"github.com/specialistvlad/topomirror/internal/graph"
)

// Group types.
const (
	TypeFabric    = "fabric"
	TypeHost      = graph.TypeHost
	TypeVM        = "vm"
	TypeNetNS     = graph.TypeNetNS
	TypeOVSBridge = graph.TypeOVSBridge
	TypeBridge    = graph.TypeBridge
)

// Hull padding around each member, by group type.
const (
	PadDefault = 24.0
	PadHost    = 48.0
	PadFabric  = 60.0
)

// Group is one visual cluster.
type Group struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
	// Members are node IDs in sorted order.
	Members []string `json:"members" yaml:"members"`
	// Points holds the four padded corners of every member.
	Points []Point `json:"-" yaml:"-"`
	Hull   []Point `json:"hull" yaml:"hull"`
}

// Options tunes a pass.
type Options struct {
	// Include restricts the pass to a subset of nodes, typically those the
	// view currently surfaces. Nil includes every node.
	Include func(*graph.Node) bool
}

// Result is the output of a pass.
type Result struct {
	// Groups sorted by ID.
	Groups []Group
	// Primary maps a member node to the last group it was placed in.
	Primary map[string]string
}

type builder struct {
	r       graph.Reader
	groups  map[string]*Group
	members map[string]map[string]struct{}
	primary map[string]string
}

// Compute runs a full grouping pass over r.
func Compute(r graph.Reader, opts Options) Result {
	b := &builder{
		r:       r,
		groups:  make(map[string]*Group),
		members: make(map[string]map[string]struct{}),
		primary: make(map[string]string),
	}

	var nodes []*graph.Node
	for _, n := range r.Nodes() {
		if opts.Include == nil || opts.Include(n) {
			nodes = append(nodes, n)
		}
	}

	for _, n := range nodes {
		b.anchor(n)
	}
	for _, n := range nodes {
		b.ascend(n)
	}
	return b.result()
}

func (b *builder) anchor(n *graph.Node) {
	md := n.Metadata
	if md.Probe() == graph.ProbeFabric {
		id := md.Group()
		if id == "" {
			id = TypeFabric
		}
		b.add(id, TypeFabric, n)
		return
	}

	switch md.Type() {
	case graph.TypeHost:
		if _, ok := md.InstanceID(); ok {
			b.add(n.ID, TypeVM, n)
			return
		}
		b.add(n.ID, TypeHost, n)
	case graph.TypeOVSBridge, graph.TypeNetNS, graph.TypeBridge:
		b.add(n.ID, md.Type(), n)
	}
}

func (b *builder) ascend(n *graph.Node) {
	visited := map[string]struct{}{n.ID: {}}
	for p := BestParent(b.r, n); p != nil; p = BestParent(b.r, p) {
		if _, seen := visited[p.ID]; seen {
			return
		}
		visited[p.ID] = struct{}{}

		if g, ok := b.groups[p.ID]; ok {
			b.add(g.ID, g.Type, n)
		}
		if p.Metadata.Type() == graph.TypeHost {
			return
		}
	}
}

// add creates the group on first use and places n in it when n is visible
// and positioned.
func (b *builder) add(id, typ string, n *graph.Node) {
	g, ok := b.groups[id]
	if !ok {
		g = &Group{ID: id, Type: typ}
		b.groups[id] = g
		b.members[id] = make(map[string]struct{})
	}
	if _, member := b.members[id][n.ID]; member {
		return
	}
	if !n.Visible || !n.Positioned() {
		return
	}

	b.members[id][n.ID] = struct{}{}
	b.primary[n.ID] = id

	pad := padding(g.Type)
	x, y := n.Pos.X, n.Pos.Y
	g.Points = append(g.Points,
		Point{x - pad, y - pad},
		Point{x - pad, y + pad},
		Point{x + pad, y - pad},
		Point{x + pad, y + pad},
	)
}

func padding(typ string) float64 {
	switch typ {
	case TypeHost, TypeVM:
		return PadHost
	case TypeFabric:
		return PadFabric
	default:
		return PadDefault
	}
}

func (b *builder) result() Result {
	res := Result{Primary: b.primary}
	for id, g := range b.groups {
		if len(b.members[id]) == 0 {
			continue
		}
		for m := range b.members[id] {
			g.Members = append(g.Members, m)
		}
		sort.Strings(g.Members)
		g.Hull = ConvexHull(g.Points)
		res.Groups = append(res.Groups, *g)
	}
	sort.Slice(res.Groups, func(i, j int) bool { return res.Groups[i].ID < res.Groups[j].ID })
	return res
}

// BestParent picks the parent a node is grouped under, or nil.
func BestParent(r graph.Reader, n *graph.Node) *graph.Node {
	var candidate *graph.Node
	for _, e := range r.GetNeighbors(n.ID) {
		if e.Parent == n.ID {
			continue
		}
		parent, ok := r.GetNode(e.Parent)
		if !ok || parent.Metadata.Probe() == graph.ProbeFabric {
			continue
		}

		switch parent.Metadata.Type() {
		case graph.TypeOVSPort:
			if n.Metadata.IfIndex() {
				continue
			}
			return parent
		case graph.TypeOVSBridge, graph.TypeNetNS, graph.TypeBridge:
			return parent
		default:
			candidate = parent
		}
	}
	return candidate
}
