// Package graph holds the local replica of the server-side topology graph.
//
// # Why Graph Package Exists
//
// The topology server is authoritative: it owns the real graph and streams
// a full snapshot followed by incremental mutations. This package is the
// client's copy of that graph, kept free of any network or UI awareness so
// that the sync engine, the grouping pass and the tests can all work against
// the same structure.
//
// # Arena and Index
//
// The Graph owns every Node and Edge in two maps keyed by ID. Nodes and
// edges never hold live pointers to each other; an Edge references its
// endpoints by ID, and a Node keeps the set of IDs of the edges it takes
// part in. This removes the Node↔Edge↔Graph reference cycle and keeps a
// snapshot trivially serializable.
//
// # Invariants
//
//   - An edge's Parent and Child always name nodes present in the same Graph.
//     NewEdge refuses dangling endpoints and DelNode cascades to every edge
//     touching the node.
//   - IDs are unique. Re-adding an existing node or edge is a no-op that
//     returns the stored entity.
//   - Edge sets are symmetric: an edge ID is in a node's Edges iff the node
//     is one of its endpoints and the edge is in the edge table.
//
// # Thread-Safety
//
// A Graph is not safe for concurrent use. It has exactly one writer, the
// sync engine loop, and every other goroutine works on Snapshot copies.
//
// # Lifecycle
//
//  1. **Created** empty when the sync engine starts.
//  2. **Populated** from the first SyncReply via InitFromSnapshot.
//  3. **Mutated** by incremental messages for the rest of the sync period.
//  4. **Cleared** and rebuilt on every later SyncReply.
package graph
