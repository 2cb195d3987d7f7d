package versionmap

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Generation (one refresh cycle worth of records)
// --------------------------------------------------------------------------

// generation holds the records written between two refreshes
type generation struct {
	entries *xsync.MapOf[string, VersionRecord]
	bytes   atomic.Int64 // Estimated heap size of entries

	// unsafe is set when a write of this generation skipped the map
	unsafe atomic.Bool
	// needsSafeAccess is set when safe access was enforced during this generation
	needsSafeAccess atomic.Bool
	// inheritedSafeAccess is set when safe access was carried over from an earlier generation
	inheritedSafeAccess atomic.Bool
}

func newGeneration(presize int, inheritSafeAccess bool) *generation {
	g := &generation{}
	if presize > 0 {
		g.entries = xsync.NewMapOf[string, VersionRecord](xsync.WithPresize(presize))
	} else {
		g.entries = xsync.NewMapOf[string, VersionRecord]()
	}
	g.inheritedSafeAccess.Store(inheritSafeAccess)
	return g
}

// put stores the record and adjusts the ram estimate
func (g *generation) put(key string, r VersionRecord) {
	prev, loaded := g.entries.LoadAndStore(key, r)
	delta := entryBytes(key, r)
	if loaded {
		delta -= entryBytes(key, prev)
	}
	g.bytes.Add(delta)
}

// remove deletes the record and adjusts the ram estimate
func (g *generation) remove(key string) {
	if prev, loaded := g.entries.LoadAndDelete(key); loaded {
		g.bytes.Add(-entryBytes(key, prev))
	}
}

func (g *generation) get(key string) (VersionRecord, bool) {
	return g.entries.Load(key)
}

// isSafeAccessMode returns true if every conditional write to this generation has to be tracked
func (g *generation) isSafeAccessMode() bool {
	return g.needsSafeAccess.Load() || g.inheritedSafeAccess.Load()
}

/*
	shouldInheritSafeAccess decides whether the next generation starts in safe access mode:

	- safe access was enforced during this generation -> keep it, the reason for
	  enforcing it (updates, deletes) most likely still holds
	- this generation saw no writes at all and inherited safe access itself -> keep it,
	  an idle refresh is no evidence that the workload became append-only

	Otherwise the generation showed that writes did not need to be tracked and the next
	generation starts in unsafe (append-only) mode again.
*/
func (g *generation) shouldInheritSafeAccess() bool {
	return g.needsSafeAccess.Load() || (g.isEmpty() && g.inheritedSafeAccess.Load())
}

// isEmpty returns true if this generation has not seen any (tracked or untracked) write
func (g *generation) isEmpty() bool {
	return g.entries.Size() == 0 && !g.unsafe.Load()
}

// --------------------------------------------------------------------------
// Generations (the current/old pair)
// --------------------------------------------------------------------------

// generations is an immutable snapshot of the current and the old generation.
// It is replaced as a whole, never modified.
type generations struct {
	current *generation
	old     *generation // nil when no refresh is in progress
}

// isUnsafe returns true if any live generation skipped a write
func (gs *generations) isUnsafe() bool {
	return gs.current.unsafe.Load() || (gs.old != nil && gs.old.unsafe.Load())
}

// buildTransition moves the current generation to old and starts a new one
func (gs *generations) buildTransition() *generations {
	return &generations{
		current: newGeneration(gs.current.entries.Size(), gs.current.shouldInheritSafeAccess()),
		old:     gs.current,
	}
}

// invalidateOld drops the old generation
func (gs *generations) invalidateOld() *generations {
	return &generations{current: gs.current}
}

// refreshingBytes returns the ram estimate of the old generation
func (gs *generations) refreshingBytes() int64 {
	if gs.old == nil {
		return 0
	}
	return gs.old.bytes.Load()
}
