package fleet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syracusa/ce-ef/pkg/geo"
)

func TestRegisterAssignsIndicesInOrder(t *testing.T) {
	r := NewRegistry()
	var seen []int
	r.OnRegister(ObserverFunc(func(n Node, count int) {
		assert.Equal(t, n.Index+1, count)
		seen = append(seen, n.Index)
	}))

	a := r.Register("av-0", StaticPosition{Lon: 127, Lat: 36})
	b := r.Register("av-1", nil)
	assert.Equal(t, 0, a.Index)
	assert.Equal(t, 1, b.Index)
	assert.Equal(t, []int{0, 1}, seen)
	assert.Equal(t, 2, r.Count())

	names := []string{}
	for _, n := range r.Nodes() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"av-0", "av-1"}, names)
}

func TestPositionLookup(t *testing.T) {
	r := NewRegistry()
	mv := NewMovablePosition(geo.Position{Lon: 1, Lat: 2, Alt: 3})
	r.Register("static", StaticPosition{Lon: 127, Lat: 36, Alt: 100})
	r.Register("movable", mv)
	r.Register("blind", nil)

	p, ok := r.Position(0)
	require.True(t, ok)
	assert.Equal(t, geo.Position{Lon: 127, Lat: 36, Alt: 100}, p)

	mv.Set(geo.Position{Lon: 5})
	p, ok = r.Position(1)
	require.True(t, ok)
	assert.Equal(t, 5.0, p.Lon)

	mv.Clear()
	_, ok = r.Position(1)
	assert.False(t, ok)

	_, ok = r.Position(2)
	assert.False(t, ok)
	_, ok = r.Position(3)
	assert.False(t, ok)
}

func TestSelection(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Selected()
	assert.False(t, ok)

	r.Register("a", nil)
	r.Register("b", nil)
	require.NoError(t, r.Select(1))
	assert.True(t, r.IsSelected(1))
	assert.False(t, r.IsSelected(0))

	err := r.Select(2)
	assert.True(t, errors.Is(err, ErrNoSuchNode))
	assert.True(t, r.IsSelected(1))

	r.ClearSelection()
	assert.False(t, r.IsSelected(1))
}
