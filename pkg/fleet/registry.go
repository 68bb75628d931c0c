// Package fleet is the node registry: index assignment, current positions
// and the selected-node predicate used by the renderer.
package fleet

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/geo"
)

var ErrNoSuchNode = errors.New("fleet: no such node")

// PositionSource reports a node's current position, or false when it is
// not available right now.
type PositionSource interface {
	Position() (geo.Position, bool)
}

// Node is a registered vehicle. Index is assigned in registration order and
// never changes.
type Node struct {
	Index int
	Name  string
	src   PositionSource
}

func (n Node) Position() (geo.Position, bool) {
	if n.src == nil {
		return geo.Position{}, false
	}
	return n.src.Position()
}

// Source returns the position source given at registration.
func (n Node) Source() PositionSource { return n.src }

// Observer is told about every registration. count is the registry size
// after the new node was added.
type Observer interface {
	NodeRegistered(n Node, count int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(n Node, count int)

func (f ObserverFunc) NodeRegistered(n Node, count int) { f(n, count) }

type Registry struct {
	mu        sync.RWMutex
	nodes     []Node
	observers []Observer
	selected  int
}

func NewRegistry() *Registry { return &Registry{selected: -1} }

// OnRegister adds o to the observers notified by Register.
func (r *Registry) OnRegister(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// Register adds a node and returns it with its new index. Observers run
// after the registry lock is released.
func (r *Registry) Register(name string, src PositionSource) Node {
	r.mu.Lock()
	n := Node{Index: len(r.nodes), Name: name, src: src}
	r.nodes = append(r.nodes, n)
	count := len(r.nodes)
	obs := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	zap.L().Info("node registered", zap.Int("index", n.Index), zap.String("name", name))
	for _, o := range obs {
		o.NodeRegistered(n, count)
	}
	return n
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func (r *Registry) Node(i int) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.nodes) {
		return Node{}, false
	}
	return r.nodes[i], true
}

func (r *Registry) Nodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Node(nil), r.nodes...)
}

// Position looks up node i's current position.
func (r *Registry) Position(i int) (geo.Position, bool) {
	n, ok := r.Node(i)
	if !ok {
		return geo.Position{}, false
	}
	return n.Position()
}

// Select marks node i as the one whose routes are drawn.
func (r *Registry) Select(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.nodes) {
		return fmt.Errorf("%w: %d", ErrNoSuchNode, i)
	}
	r.selected = i
	return nil
}

func (r *Registry) ClearSelection() {
	r.mu.Lock()
	r.selected = -1
	r.mu.Unlock()
}

func (r *Registry) Selected() (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected, r.selected >= 0
}

func (r *Registry) IsSelected(i int) bool {
	s, ok := r.Selected()
	return ok && s == i
}
