package versionmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationBytes(t *testing.T) {
	g := newGeneration(0, false)
	r := NewIndexRecord(nil, 1, 1, 1)

	g.put("a", r)
	assert.Equal(t, entryBytes("a", r), g.bytes.Load())
	g.put("a", r)
	assert.Equal(t, entryBytes("a", r), g.bytes.Load(), "replacing must not count twice")

	g.remove("a")
	g.remove("a")
	assert.Zero(t, g.bytes.Load())
}

func TestSafeAccessInheritance(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(g *generation)
		inherited bool
		expected  bool
	}{
		{"fresh", func(g *generation) {}, false, false},
		{"enforced", func(g *generation) { g.needsSafeAccess.Store(true) }, false, true},
		{"enforced with writes", func(g *generation) {
			g.needsSafeAccess.Store(true)
			g.put("a", NewIndexRecord(nil, 1, 1, 1))
		}, false, true},
		{"inherited and idle", func(g *generation) {}, true, true},
		{"inherited with writes", func(g *generation) { g.put("a", NewIndexRecord(nil, 1, 1, 1)) }, true, false},
		{"inherited and unsafe", func(g *generation) { g.unsafe.Store(true) }, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGeneration(0, tt.inherited)
			tt.setup(g)
			assert.Equal(t, tt.expected, g.shouldInheritSafeAccess())

			next := (&generations{current: g}).buildTransition()
			assert.Equal(t, tt.expected, next.current.isSafeAccessMode())
			assert.Same(t, g, next.old)
		})
	}
}

func TestGenerationsTransition(t *testing.T) {
	gs := &generations{current: newGeneration(0, false)}
	gs.current.put("a", NewIndexRecord(nil, 1, 1, 1))
	gs.current.unsafe.Store(true)
	require.True(t, gs.isUnsafe())
	require.Zero(t, gs.refreshingBytes())

	next := gs.buildTransition()
	assert.True(t, next.isUnsafe(), "old generation is still unsafe")
	assert.Equal(t, gs.current.bytes.Load(), next.refreshingBytes())
	assert.Zero(t, next.current.entries.Size())

	done := next.invalidateOld()
	assert.False(t, done.isUnsafe())
	assert.Nil(t, done.old)
	assert.Zero(t, done.refreshingBytes())
}

func TestEnforceSafeAccessDuringTransition(t *testing.T) {
	vm := NewVersionMap(nil).(*mapImpl)

	// enforce between building the next generations and publishing them
	m := vm.maps.Load()
	next := m.buildTransition()
	vm.EnforceSafeAccess()
	vm.installTransition(m, next)

	assert.True(t, vm.IsSafeAccessRequired(), "refresh started")
	vm.AfterRefresh(true)
	assert.True(t, vm.IsSafeAccessRequired(), "refresh done")

	// an empty cycle keeps the inherited state
	vm.BeforeRefresh()
	vm.AfterRefresh(true)
	assert.True(t, vm.IsSafeAccessRequired(), "empty cycle")
}

func TestEnforceSafeAccessAfterTransition(t *testing.T) {
	vm := NewVersionMap(nil).(*mapImpl)

	m := vm.maps.Load()
	vm.installTransition(m, m.buildTransition())
	vm.EnforceSafeAccess()

	assert.True(t, vm.maps.Load().current.needsSafeAccess.Load())
	assert.True(t, vm.IsSafeAccessRequired())
}
