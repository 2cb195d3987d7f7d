// Package lockmgr implements in-process locks scoped to a single key
// (for example a document id). Goroutines operating on the same key are
// serialized while unrelated keys proceed without contention.
//
// Core Functionality:
//   - Blocking acquisition (Acquire) and non-blocking acquisition (TryAcquire)
//   - Guards that release exactly once, no matter how often Release is called
//   - IsHeld for debug assertions in code that must run under a key lock
//
// Implementation Approach:
//
//	Locks are created lazily and kept in an xsync.MapOf. Each lock carries a
//	reference count of the goroutines that hold or wait for it. The count is
//	only changed inside MapOf.Compute for the key, which runs under the
//	bucket lock of the map:
//
//	- Acquire: increments the reference count (creating the lock if needed)
//	  and then blocks on the per-key mutex.
//
//	- Release: unlocks the mutex and decrements the reference count. When the
//	  count drops to zero the lock is removed from the map, so memory is
//	  bounded by the number of keys that are in use right now, not by the
//	  number of keys ever locked.
//
//	- TryAcquire: registers like Acquire, but gives the reference back
//	  immediately if the mutex is already taken.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager()
//
//	lock := locks.Acquire("doc-1")
//	defer lock.Release()
//	// ... read-modify-write state that belongs to "doc-1"
//
// Thread Safety:
//
//	All methods are safe for concurrent use. The locks are not reentrant:
//	acquiring a key twice from the same goroutine deadlocks.
package lockmgr
