package lockmgr

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestAcquireRelease(t *testing.T) {
	locks := NewLockManager()

	lock := locks.Acquire("a")
	assert.True(t, locks.IsHeld("a"))
	assert.False(t, locks.IsHeld("b"))
	assert.Equal(t, 1, locks.Size())

	lock.Release()
	assert.False(t, locks.IsHeld("a"))
	assert.Equal(t, 0, locks.Size(), "unused locks must be removed")
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	locks := NewLockManager()

	first := locks.Acquire("a")
	first.Release()
	second := locks.Acquire("a")
	first.Release() // must not unlock the second holder

	assert.True(t, locks.IsHeld("a"))
	_, ok := locks.TryAcquire("a")
	assert.False(t, ok)

	second.Release()
	assert.Equal(t, 0, locks.Size())
}

func TestTryAcquire(t *testing.T) {
	locks := NewLockManager()

	lock, ok := locks.TryAcquire("a")
	require.True(t, ok)
	require.NotNil(t, lock)

	// another goroutine must not get the same key
	done := make(chan bool)
	go func() {
		_, ok := locks.TryAcquire("a")
		done <- ok
	}()
	assert.False(t, <-done)

	// but a different key is free
	other, ok := locks.TryAcquire("b")
	require.True(t, ok)
	other.Release()

	lock.Release()
	assert.Equal(t, 0, locks.Size())
}

func TestDistinctKeysDoNotBlock(t *testing.T) {
	locks := NewLockManager()

	held := locks.Acquire("a")
	defer held.Release()

	acquired := make(chan struct{})
	go func() {
		lock := locks.Acquire("b")
		lock.Release()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different key was blocked")
	}
}

func TestSameKeyBlocks(t *testing.T) {
	locks := NewLockManager()

	held := locks.Acquire("a")

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		lock := locks.Acquire("a")
		acquired.Store(true)
		lock.Release()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load(), "second acquire must wait for the release")

	held.Release()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was never woken up")
	}
	assert.True(t, acquired.Load())
	assert.Equal(t, 0, locks.Size())
}

func TestMutualExclusionUnderContention(t *testing.T) {
	locks := NewLockManager()

	const (
		numGoroutines = 8
		numIncrements = 2000
		numKeys       = 4
	)

	// unsynchronized counters, only protected by the key lock
	counters := make([]int, numKeys)

	var g errgroup.Group
	for i := 0; i < numGoroutines; i++ {
		g.Go(func() error {
			for j := 0; j < numIncrements; j++ {
				k := j % numKeys
				lock := locks.Acquire(strconv.Itoa(k))
				counters[k]++
				lock.Release()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for k, c := range counters {
		assert.Equal(t, numGoroutines*numIncrements/numKeys, c, "counter %d", k)
	}
	assert.Equal(t, 0, locks.Size())
}

func TestReleaseOnPanic(t *testing.T) {
	locks := NewLockManager()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { _ = recover() }()
		lock := locks.Acquire("a")
		defer lock.Release()
		panic("boom")
	}()
	wg.Wait()

	lock, ok := locks.TryAcquire("a")
	require.True(t, ok, "lock must be released on panic")
	lock.Release()
}
