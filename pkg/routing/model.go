// Package routing holds per-node routing tables announced by the backend and
// the edge-node lists derived from them.
package routing

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Syracusa/ce-ef/pkg/observability"
)

var (
	ErrUnknownNode   = errors.New("routing: node not registered")
	ErrUnknownTarget = errors.New("routing: target not registered")
	ErrInvalidEntry  = errors.New("routing: invalid route entry")
)

// Entry is the route from one node to a target: HopCount hops through the
// relays in Path. HopCount 0 with an empty path means the route is unknown.
type Entry struct {
	HopCount int   `json:"hopCount"`
	Path     []int `json:"path"`
}

func (e Entry) Known() bool { return e.HopCount > 0 }

func (e Entry) clone() Entry {
	return Entry{HopCount: e.HopCount, Path: slices.Clone(e.Path)}
}

// Table is indexed by target node. It only grows.
type Table []Entry

func (t Table) clone() Table {
	out := make(Table, len(t))
	for i, e := range t {
		out[i] = e.clone()
	}
	return out
}

// Snapshot is a point-in-time copy of one node's table and the edge list
// computed from that same table. Version increases with every change to the
// model, so two snapshots of a node can be ordered.
type Snapshot struct {
	Node    int    `json:"node"`
	Version uint64 `json:"version"`
	Table   Table  `json:"table"`
	Edges   []int  `json:"edges"`
}

// Model is the shared routing state. Writers apply one entry and recompute
// the owner's edge list under a single lock; readers only get copies.
type Model struct {
	mu       sync.RWMutex
	tables   []Table
	edges    [][]int
	versions []uint64
	seq      uint64
}

func NewModel() *Model { return &Model{} }

// Len reports how many nodes the model tracks.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}

// EnsureNodes grows the model to at least n nodes. Every edge list covers
// all known nodes, so they are all recomputed.
func (m *Model) EnsureNodes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= len(m.tables) {
		return
	}
	for len(m.tables) < n {
		m.tables = append(m.tables, Table{})
		m.edges = append(m.edges, nil)
		m.versions = append(m.versions, 0)
	}
	m.seq++
	for i := range m.tables {
		m.edges[i] = ComputeEdgeNodes(i, m.tables)
		m.versions[i] = m.seq
	}
}

// ApplyRoute stores e as node's route to target, replacing any previous
// entry, and recomputes node's edge list. The table grows on demand up to
// target. Unregistered indices and malformed entries are rejected and leave
// the model untouched. A well-formed entry lists exactly HopCount-1 relays
// (none for HopCount 0 or 1), never the target itself.
func (m *Model) ApplyRoute(node, target int, e Entry) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.tables)
	if node < 0 || node >= n {
		return Snapshot{}, fmt.Errorf("%w: %d (have %d)", ErrUnknownNode, node, n)
	}
	if target < 0 || target >= n {
		return Snapshot{}, fmt.Errorf("%w: %d (have %d)", ErrUnknownTarget, target, n)
	}
	if err := validate(e, n); err != nil {
		return Snapshot{}, err
	}

	t := m.tables[node]
	for len(t) <= target {
		t = append(t, Entry{})
	}
	t[target] = e.clone()
	m.tables[node] = t
	m.edges[node] = ComputeEdgeNodes(node, m.tables)
	m.seq++
	m.versions[node] = m.seq
	observability.RouteUpdates.Inc()
	return m.snapshotLocked(node), nil
}

func validate(e Entry, n int) error {
	if e.HopCount < 0 {
		return fmt.Errorf("%w: hop count %d", ErrInvalidEntry, e.HopCount)
	}
	if want := max(e.HopCount-1, 0); len(e.Path) != want {
		return fmt.Errorf("%w: %d hops need %d relays, got %d", ErrInvalidEntry, e.HopCount, want, len(e.Path))
	}
	for _, p := range e.Path {
		if p < 0 || p >= n {
			return fmt.Errorf("%w: relay %d not registered", ErrInvalidEntry, p)
		}
	}
	return nil
}

// Snapshot returns node's current table and edge list.
func (m *Model) Snapshot(node int) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if node < 0 || node >= len(m.tables) {
		return Snapshot{}, false
	}
	return m.snapshotLocked(node), true
}

// Snapshots returns every node's snapshot taken under one read lock.
func (m *Model) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, len(m.tables))
	for i := range m.tables {
		out[i] = m.snapshotLocked(i)
	}
	return out
}

func (m *Model) snapshotLocked(node int) Snapshot {
	return Snapshot{
		Node:    node,
		Version: m.versions[node],
		Table:   m.tables[node].clone(),
		Edges:   slices.Clone(m.edges[node]),
	}
}
