package lockmgr

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyLock is the lock for one key. refs counts the goroutines holding or
// waiting for mu and is only changed inside locks.Compute for that key.
type keyLock struct {
	mu   sync.Mutex
	refs int
	held atomic.Bool
}

type lockMgrImpl struct {
	locks *xsync.MapOf[string, *keyLock]
}

// NewLockManager creates a new in-process keyed lock manager.
//
// Thread-safety: The returned manager is safe for concurrent use.
func NewLockManager() ILockManager {
	return &lockMgrImpl{
		locks: xsync.NewMapOf[string, *keyLock](),
	}
}

// Acquire blocks until the lock for key is held.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (lm *lockMgrImpl) Acquire(key string) Releaser {
	l := lm.ref(key)
	l.mu.Lock()
	l.held.Store(true)
	return &guard{mgr: lm, key: key, lock: l}
}

// TryAcquire acquires the lock for key only if nobody holds it.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (lm *lockMgrImpl) TryAcquire(key string) (Releaser, bool) {
	l := lm.ref(key)
	if !l.mu.TryLock() {
		lm.unref(key)
		return nil, false
	}
	l.held.Store(true)
	return &guard{mgr: lm, key: key, lock: l}, true
}

func (lm *lockMgrImpl) IsHeld(key string) bool {
	l, ok := lm.locks.Load(key)
	return ok && l.held.Load()
}

func (lm *lockMgrImpl) Size() int {
	return lm.locks.Size()
}

// ref returns the lock for key and registers the caller as a user of it.
// The lock is created if it does not exist yet.
func (lm *lockMgrImpl) ref(key string) *keyLock {
	var l *keyLock
	lm.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			old = &keyLock{}
		}
		old.refs++
		l = old
		return old, false
	})
	return l
}

// unref drops the callers reference and removes the lock once it is unused.
func (lm *lockMgrImpl) unref(key string) {
	lm.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			panic("lockmgr: release of unknown key " + key)
		}
		old.refs--
		return old, old.refs == 0
	})
}

// --------------------------------------------------------------------------
// Guard
// --------------------------------------------------------------------------

// guard is the Releaser handed out for one successful acquisition
type guard struct {
	mgr      *lockMgrImpl
	key      string
	lock     *keyLock
	released atomic.Bool
}

func (g *guard) Release() {
	// only the first release unlocks
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.lock.held.Store(false)
	g.lock.mu.Unlock()
	g.mgr.unref(g.key)
}
