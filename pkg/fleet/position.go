package fleet

import (
	"sync"

	"github.com/Syracusa/ce-ef/pkg/geo"
)

// StaticPosition never moves.
type StaticPosition geo.Position

func (p StaticPosition) Position() (geo.Position, bool) { return geo.Position(p), true }

// MovablePosition is updated from outside, e.g. by the rendering bridge.
// The zero value has no position.
type MovablePosition struct {
	mu  sync.RWMutex
	pos geo.Position
	ok  bool
}

func NewMovablePosition(p geo.Position) *MovablePosition {
	return &MovablePosition{pos: p, ok: true}
}

func (m *MovablePosition) Set(p geo.Position) {
	m.mu.Lock()
	m.pos, m.ok = p, true
	m.mu.Unlock()
}

// Clear marks the position unavailable.
func (m *MovablePosition) Clear() {
	m.mu.Lock()
	m.ok = false
	m.mu.Unlock()
}

func (m *MovablePosition) Position() (geo.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos, m.ok
}
