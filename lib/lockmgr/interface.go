package lockmgr

// ILockManager provides mutual exclusion scoped to a single key.
// Goroutines locking the same key are serialized, distinct keys never block each other.
type ILockManager interface {
	// Acquire blocks until the lock for the given key is held by the caller.
	// The returned Releaser must be released on every exit path.
	Acquire(key string) (lock Releaser)

	// TryAcquire acquires the lock for the given key only if it is free.
	// The boolean indicates whether the lock was acquired, the Releaser is nil otherwise.
	TryAcquire(key string) (lock Releaser, ok bool)

	// IsHeld returns whether some goroutine currently holds the lock for the given key.
	// It is meant for assertions, the answer may be stale as soon as it is returned.
	IsHeld(key string) (held bool)

	// Size returns the number of keys that are currently locked or waited on.
	Size() (size int)
}

// Releaser releases a lock acquired from an ILockManager.
type Releaser interface {
	// Release unlocks the key. Calling Release more than once has no effect.
	Release()
}
