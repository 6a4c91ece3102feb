// Package topology implements the undirected adjacency map learned through
// flood discovery (spec.md §3/§4.2) and the BFS shortest-path lookup used by
// the endpoint send pipeline (spec.md §4.4).
//
// This corresponds to the teacher's contact.ContactManager in spirit (a
// single-task-owned, mutex-guarded store with a read/write API) but models a
// graph rather than a flat contact list, grounded in the Rust
// simulation_controller's NetworkGraph minus its GUI rendering concerns —
// the drawing library (petgraph/egui_graphs) has no place in a headless core,
// so only the adjacency-list and BFS logic survive the transplant.
package topology

import (
	"log/slog"
	"sync"

	"github.com/dronemesh/overlay/core"
)

// Map is an undirected node->neighbors graph, safe for concurrent use.
// Mutations are local to the owning node (spec.md §5); BFS reads a
// consistent snapshot by holding the lock for the duration of the search.
type Map struct {
	log *slog.Logger
	mu  sync.RWMutex
	adj map[core.NodeID]map[core.NodeID]struct{}
	// kinds records the type of any client/server observed along a flood
	// path trace (spec.md §4.2 "Record the type of any server/client").
	kinds map[core.NodeID]core.Kind
}

// New creates an empty topology map.
func New(log *slog.Logger) *Map {
	if log == nil {
		log = slog.Default()
	}
	return &Map{
		log:   log.WithGroup("topology"),
		adj:   make(map[core.NodeID]map[core.NodeID]struct{}),
		kinds: make(map[core.NodeID]core.Kind),
	}
}

// AddEdge records a bidirectional edge a-b, creating both endpoints if
// absent.
func (m *Map) AddEdge(a, b core.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addNodeLocked(a)
	m.addNodeLocked(b)
	m.adj[a][b] = struct{}{}
	m.adj[b][a] = struct{}{}
}

func (m *Map) addNodeLocked(n core.NodeID) {
	if _, ok := m.adj[n]; !ok {
		m.adj[n] = make(map[core.NodeID]struct{})
	}
}

// SetKind records the kind of a node observed along a flood path trace.
func (m *Map) SetKind(n core.NodeID, k core.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[n] = k
}

// Kind returns the recorded kind for n, and whether it is known.
func (m *Map) Kind(n core.NodeID) (core.Kind, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.kinds[n]
	return k, ok
}

// RemoveNode deletes a node and every edge touching it — used when a
// forwarding attempt to a neighbor fails, indicating it crashed or its link
// was severed (spec.md §4.2 "Discovery is re-issued whenever...").
func (m *Map) RemoveNode(n core.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for neighbor := range m.adj[n] {
		delete(m.adj[neighbor], n)
	}
	delete(m.adj, n)
}

// Neighbors returns a snapshot of n's neighbor set.
func (m *Map) Neighbors(n core.NodeID) []core.NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.NodeID, 0, len(m.adj[n]))
	for neigh := range m.adj[n] {
		out = append(out, neigh)
	}
	return out
}

// HasEdge reports whether a-b is a known edge.
func (m *Map) HasEdge(a, b core.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.adj[a][b]
	return ok
}

// Snapshot returns a deep copy of the adjacency map, for UI collaborators
// (spec.md §9 "cloned read-only snapshots taken under a short-lived lock").
func (m *Map) Snapshot() map[core.NodeID][]core.NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[core.NodeID][]core.NodeID, len(m.adj))
	for n, neighbors := range m.adj {
		ns := make([]core.NodeID, 0, len(neighbors))
		for neigh := range neighbors {
			ns = append(ns, neigh)
		}
		out[n] = ns
	}
	return out
}

// ErrNoRoute is returned by ShortestPath when no path connects src and dst.
type ErrNoRoute struct {
	Src, Dst core.NodeID
}

func (e *ErrNoRoute) Error() string {
	return "topology: no route"
}

// ShortestPath runs BFS from src to dst and returns the hop sequence
// (inclusive of both endpoints), satisfying spec.md §8 invariant 2: for all
// i, edge (R[i], R[i+1]) is in the graph, R[0]=src, R[-1]=dst.
func (m *Map) ShortestPath(src, dst core.NodeID) ([]core.NodeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if src == dst {
		return []core.NodeID{src}, nil
	}

	prev := make(map[core.NodeID]core.NodeID)
	visited := map[core.NodeID]bool{src: true}
	queue := []core.NodeID{src}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for neigh := range m.adj[n] {
			if visited[neigh] {
				continue
			}
			visited[neigh] = true
			prev[neigh] = n
			if neigh == dst {
				return reconstruct(prev, src, dst), nil
			}
			queue = append(queue, neigh)
		}
	}
	return nil, &ErrNoRoute{Src: src, Dst: dst}
}

func reconstruct(prev map[core.NodeID]core.NodeID, src, dst core.NodeID) []core.NodeID {
	path := []core.NodeID{dst}
	for path[len(path)-1] != src {
		n := path[len(path)-1]
		path = append(path, prev[n])
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
