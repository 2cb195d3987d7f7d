package versionmap

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ValentinKolb/liveversion/lib/lockmgr"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("versionmap")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a version map during initialization
type Options struct {
	Name        string               // Name used in logs and as metrics label
	AssertLocks bool                 // Panic if an UnderLock method is called while no goroutine holds the key lock (ownership is not checked)
	Locks       lockmgr.ILockManager // Lock manager for the document ids (nil = new in-process manager)
}

// DefaultOptions returns the default version map options
func DefaultOptions() *Options {
	return &Options{
		Name:        "default",
		AssertLocks: false,
	}
}

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// mapImpl implements IVersionMap with two generations behind an atomic pointer
// and a refresh independent tombstone map
type mapImpl struct {
	name        string
	assertLocks bool
	locks       lockmgr.ILockManager

	maps           atomic.Pointer[generations]
	tombstones     *xsync.MapOf[string, VersionRecord]
	tombstoneBytes atomic.Int64

	metrics *mapMetrics
}

// NewVersionMap creates a new version map with the specified options (optional)
func NewVersionMap(opts *Options) IVersionMap {
	if opts == nil {
		opts = DefaultOptions()
	}

	locks := opts.Locks
	if locks == nil {
		locks = lockmgr.NewLockManager()
	}

	vm := &mapImpl{
		name:        opts.Name,
		assertLocks: opts.AssertLocks,
		locks:       locks,
		tombstones:  xsync.NewMapOf[string, VersionRecord](),
	}
	vm.maps.Store(&generations{current: newGeneration(0, false)})
	vm.metrics = newMapMetrics(vm)

	return vm
}

// assertLocked panics if lock assertions are enabled and nobody holds the lock for key.
// It cannot tell whether the caller is the goroutine holding it.
func (vm *mapImpl) assertLocked(key string) {
	if vm.assertLocks && !vm.locks.IsHeld(key) {
		panic(fmt.Sprintf("versionmap %s: lock for key %q is not held by any goroutine", vm.name, key))
	}
}

// assertKind panics if the record is of the wrong kind (programming error)
func assertKind(r VersionRecord, kind Kind) {
	if r.Kind != kind {
		panic(fmt.Sprintf("versionmap: expected %s record, got %s", kind, r))
	}
}

// --------------------------------------------------------------------------
// Write Path
// --------------------------------------------------------------------------

// AcquireLock blocks until the caller holds the lock for key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (vm *mapImpl) AcquireLock(key string) lockmgr.Releaser {
	return vm.locks.Acquire(key)
}

// GetUnderLock resolves key in priority order current, old, tombstones
//
// Thread-safety: The caller must hold the lock for key.
func (vm *mapImpl) GetUnderLock(key string) (VersionRecord, bool) {
	vm.assertLocked(key)

	m := vm.maps.Load()
	if r, ok := m.current.get(key); ok {
		return r, true
	}
	if m.old != nil {
		if r, ok := m.old.get(key); ok {
			return r, true
		}
	}
	return vm.tombstones.Load(key)
}

// PutIndexUnderLock stores the record in the current generation.
// An index always supersedes a previous delete, so the tombstone is removed.
//
// Thread-safety: The caller must hold the lock for key.
func (vm *mapImpl) PutIndexUnderLock(key string, r VersionRecord) {
	vm.assertLocked(key)
	assertKind(r, KindIndex)

	vm.withStableGenerations(func(m *generations) {
		m.current.put(key, r)
	})
	vm.removeTombstone(key)
}

// MaybePutIndexUnderLock stores the record only in safe access mode.
// In unsafe mode the record is dropped, but every older record of the key
// (tombstone or index) is still removed so that lookups never return a
// superseded record.
//
// Thread-safety: The caller must hold the lock for key.
func (vm *mapImpl) MaybePutIndexUnderLock(key string, r VersionRecord) {
	vm.assertLocked(key)
	assertKind(r, KindIndex)

	stored := false
	vm.withStableGenerations(func(m *generations) {
		stored = m.current.isSafeAccessMode()
		if stored {
			m.current.put(key, r)
			return
		}

		// same order as in PutDeleteUnderLock
		if m.old != nil {
			m.old.remove(key)
		}
		m.current.remove(key)
		m.current.unsafe.Store(true)
	})
	vm.removeTombstone(key)

	if !stored {
		vm.metrics.unsafePuts.Inc()
	}
}

// PutDeleteUnderLock installs the tombstone and evicts the key from both generations.
//
// Thread-safety: The caller must hold the lock for key.
func (vm *mapImpl) PutDeleteUnderLock(key string, r VersionRecord) {
	vm.assertLocked(key)
	assertKind(r, KindDelete)

	vm.putTombstone(key, r)

	/*
		Note: old is cleared before current. A failed refresh merges old back into
		current and only does so if the key is still present in old. Clearing old
		first guarantees that the merge either sees the key gone or finishes before
		the removal from current below.
	*/
	vm.withStableGenerations(func(m *generations) {
		if m.old != nil {
			m.old.remove(key)
		}
		m.current.remove(key)
	})
}

// RemoveTombstoneUnderLock removes the tombstone of key (no-op if absent)
//
// Thread-safety: The caller must hold the lock for key.
func (vm *mapImpl) RemoveTombstoneUnderLock(key string) {
	vm.assertLocked(key)
	vm.removeTombstone(key)
}

// withStableGenerations runs fn until the generations did not change while it ran.
// A write that raced with a refresh may have landed in a generation that was
// already merged back or dropped, so it is repeated on the new generations.
// fn must be idempotent.
func (vm *mapImpl) withStableGenerations(fn func(m *generations)) {
	for {
		m := vm.maps.Load()
		fn(m)
		if vm.maps.Load() == m {
			return
		}
	}
}

// --------------------------------------------------------------------------
// Refresh Lifecycle
// --------------------------------------------------------------------------

// BeforeRefresh moves the current generation to old and installs an empty one.
//
// Thread-safety: Safe to call concurrently with writers, but refreshes
// themselves must be serialized by the caller.
func (vm *mapImpl) BeforeRefresh() {
	m := vm.maps.Load()
	if m.old != nil {
		// the previous refresh was never completed, treat it as failed
		Logger.Warningf("%s: refresh started while another one is in progress", vm.name)
		vm.AfterRefresh(false)
		m = vm.maps.Load()
	}

	next := m.buildTransition()
	vm.installTransition(m, next)

	Logger.Debugf("%s: before refresh (refreshing %d entries, %d bytes)", vm.name, m.current.entries.Size(), next.refreshingBytes())
}

// installTransition publishes next, which was built from m.
// An EnforceSafeAccess that ran after buildTransition read the flags of m.current
// still sees m as the live pointer and does not retry, so the flag is carried
// over here. Either this load or the retry in EnforceSafeAccess observes the other side.
func (vm *mapImpl) installTransition(m, next *generations) {
	vm.maps.Store(next)
	if m.current.needsSafeAccess.Load() {
		next.current.inheritedSafeAccess.Store(true)
	}
}

// AfterRefresh retires the old generation. If the refresh did not succeed, the
// records of the old generation that were not superseded or deleted are merged
// back into the current generation. In both cases the unsafe state of the old
// generation is dropped and safe access keeps the state decided by BeforeRefresh.
//
// Thread-safety: Safe to call concurrently with writers, but refreshes
// themselves must be serialized by the caller.
func (vm *mapImpl) AfterRefresh(refreshSucceeded bool) {
	m := vm.maps.Load()
	if m.old == nil {
		return
	}

	if refreshSucceeded {
		vm.metrics.refreshesSucceeded.Inc()
	} else {
		merged := vm.mergeBack(m)
		vm.metrics.refreshesFailed.Inc()
		Logger.Infof("%s: refresh failed, merged %d of %d entries back", vm.name, merged, m.old.entries.Size())
	}

	vm.maps.Store(m.invalidateOld())
	Logger.Debugf("%s: after refresh (succeeded=%t)", vm.name, refreshSucceeded)
}

// mergeBack copies every record of the old generation that has no newer record in
// the current generation into the current generation. Returns the number of merged records.
func (vm *mapImpl) mergeBack(m *generations) int {
	merged := 0
	m.old.entries.Range(func(key string, _ VersionRecord) bool {
		var (
			stored bool
			record VersionRecord
		)
		m.current.entries.Compute(key, func(curr VersionRecord, loaded bool) (VersionRecord, bool) {
			// a newer write wins
			if loaded {
				return curr, false
			}

			// the key was deleted in the meantime (see PutDeleteUnderLock)
			r, ok := m.old.entries.Load(key)
			if !ok {
				return curr, true // set delete to true because else the value will be created
			}

			stored = true
			record = r
			return r, false
		})

		if stored {
			m.current.bytes.Add(entryBytes(key, record))
			merged++
		}
		return true
	})
	return merged
}

// --------------------------------------------------------------------------
// Safe Access
// --------------------------------------------------------------------------

// EnforceSafeAccess makes all following conditional writes tracked
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (vm *mapImpl) EnforceSafeAccess() {
	vm.withStableGenerations(func(m *generations) {
		m.current.needsSafeAccess.Store(true)
	})
}

func (vm *mapImpl) IsSafeAccessRequired() bool {
	return vm.maps.Load().current.isSafeAccessMode()
}

func (vm *mapImpl) IsUnsafe() bool {
	return vm.maps.Load().isUnsafe()
}

// --------------------------------------------------------------------------
// Memory Accounting
// --------------------------------------------------------------------------

func (vm *mapImpl) RamBytesUsed() int64 {
	m := vm.maps.Load()
	return m.current.bytes.Load() + m.refreshingBytes() + vm.tombstoneBytes.Load()
}

func (vm *mapImpl) RefreshingBytes() int64 {
	return vm.maps.Load().refreshingBytes()
}

func (vm *mapImpl) RamBytesUsedForTombstones() int64 {
	return vm.tombstoneBytes.Load()
}

// --------------------------------------------------------------------------
// Diagnostics
// --------------------------------------------------------------------------

// GetAllCurrent returns a point in time copy of the current generation
func (vm *mapImpl) GetAllCurrent() map[string]VersionRecord {
	return snapshot(vm.maps.Load().current.entries)
}

// GetAllTombstones returns a point in time copy of the tombstones
func (vm *mapImpl) GetAllTombstones() map[string]VersionRecord {
	return snapshot(vm.tombstones)
}

func (vm *mapImpl) WritePrometheus(w io.Writer) {
	vm.metrics.set.WritePrometheus(w)
}

func snapshot(m *xsync.MapOf[string, VersionRecord]) map[string]VersionRecord {
	result := make(map[string]VersionRecord, m.Size())
	m.Range(func(key string, r VersionRecord) bool {
		result[key] = r
		return true
	})
	return result
}
