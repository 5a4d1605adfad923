package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/specialistvlad/topomirror/internal/graph"
)

// NodeObj is the payload of NodeAdded, NodeUpdated and NodeDeleted.
type NodeObj struct {
	ID       string         `json:"ID"`
	Host     string         `json:"Host,omitempty"`
	Metadata graph.Metadata `json:"Metadata,omitempty"`
}

// EdgeObj is the payload of EdgeAdded, EdgeUpdated and EdgeDeleted.
type EdgeObj struct {
	ID       string         `json:"ID"`
	Parent   string         `json:"Parent"`
	Child    string         `json:"Child"`
	Host     string         `json:"Host,omitempty"`
	Metadata graph.Metadata `json:"Metadata,omitempty"`
}

// GraphObj is the SyncReply payload. Servers send Nodes and Edges either as
// an object keyed by ID or as a plain array; both forms are accepted.
type GraphObj struct {
	Nodes []NodeObj
	Edges []EdgeObj
}

type rawGraphObj struct {
	Nodes json.RawMessage `json:"Nodes"`
	Edges json.RawMessage `json:"Edges"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *GraphObj) UnmarshalJSON(data []byte) error {
	var raw rawGraphObj
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nodes, err := decodeSet[NodeObj](raw.Nodes)
	if err != nil {
		return fmt.Errorf("nodes: %w", err)
	}
	edges, err := decodeSet[EdgeObj](raw.Edges)
	if err != nil {
		return fmt.Errorf("edges: %w", err)
	}
	g.Nodes, g.Edges = nodes, edges
	return nil
}

// MarshalJSON emits the ID-keyed object form.
func (g GraphObj) MarshalJSON() ([]byte, error) {
	nodes := make(map[string]NodeObj, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}
	edges := make(map[string]EdgeObj, len(g.Edges))
	for _, e := range g.Edges {
		edges[e.ID] = e
	}
	return json.Marshal(struct {
		Nodes map[string]NodeObj `json:"Nodes"`
		Edges map[string]EdgeObj `json:"Edges"`
	}{nodes, edges})
}

// decodeSet accepts null, an array, or an object whose values are T. Object
// entries are returned in key order so loading is deterministic.
func decodeSet[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []T
		err := json.Unmarshal(trimmed, &out)
		return out, err
	}

	var byID map[string]T
	if err := json.Unmarshal(trimmed, &byID); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(byID))
	for k := range byID {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, byID[k])
	}
	return out, nil
}

// Snapshot converts the payload into the store's bulk-load format.
func (g GraphObj) Snapshot() graph.Snapshot {
	s := graph.Snapshot{
		Nodes: make([]graph.NodeRecord, 0, len(g.Nodes)),
		Edges: make([]graph.EdgeRecord, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		s.Nodes = append(s.Nodes, graph.NodeRecord{ID: n.ID, Host: n.Host, Metadata: n.Metadata})
	}
	for _, e := range g.Edges {
		s.Edges = append(s.Edges, graph.EdgeRecord{
			ID:       e.ID,
			Parent:   e.Parent,
			Child:    e.Child,
			Host:     e.Host,
			Metadata: e.Metadata,
		})
	}
	return s
}

// AlertObj is the payload of an Alert namespace message. Only the node ID
// the alert is about is interpreted; the rest is kept as-is.
type AlertObj struct {
	ReasonData struct {
		ID string `json:"ID"`
	} `json:"ReasonData"`
	Raw map[string]any `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AlertObj) UnmarshalJSON(data []byte) error {
	type plain AlertObj
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.Raw); err != nil {
		return err
	}
	*a = AlertObj(p)
	return nil
}

// SyncRequestObj is the SyncRequest payload. A nil Time asks for the live
// graph; otherwise the graph as of Time (epoch milliseconds).
type SyncRequestObj struct {
	Time *int64 `json:"Time,omitempty"`
}

// NewSyncRequest builds an outbound SyncRequest. at is epoch milliseconds;
// zero means live.
func NewSyncRequest(at int64) Message {
	obj := SyncRequestObj{}
	if at != 0 {
		obj.Time = &at
	}
	// SyncRequestObj always marshals.
	msg, _ := NewMessage(NamespaceGraph, TypeSyncRequest, obj)
	return msg
}
