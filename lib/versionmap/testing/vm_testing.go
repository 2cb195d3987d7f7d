package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/liveversion/lib/translog"
	"github.com/ValentinKolb/liveversion/lib/versionmap"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// RunVersionMapTests runs a comprehensive test suite for a IVersionMap implementation.
func RunVersionMapTests(t *testing.T, name string, factory MapFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Basics", func(t *testing.T) {
			testBasics(t, factory())
		})

		t.Run("RoundTrip", func(t *testing.T) {
			testRoundTrip(t, factory())
		})

		t.Run("RemoveTombstone", func(t *testing.T) {
			testRemoveTombstone(t, factory())
		})

		t.Run("IndexSupersedesDelete", func(t *testing.T) {
			testIndexSupersedesDelete(t, factory())
		})

		t.Run("RefreshingBytes", func(t *testing.T) {
			testRefreshingBytes(t, factory())
		})

		t.Run("RamAccounting", func(t *testing.T) {
			testRamAccounting(t, factory())
		})

		t.Run("IdempotentRefresh", func(t *testing.T) {
			testIdempotentRefresh(t, factory())
		})

		t.Run("FailedRefreshKeepsRecords", func(t *testing.T) {
			testFailedRefreshKeepsRecords(t, factory())
		})

		t.Run("BeforeRefreshTwice", func(t *testing.T) {
			testBeforeRefreshTwice(t, factory())
		})

		t.Run("RefreshTransition", func(t *testing.T) {
			testRefreshTransition(t, factory())
		})

		t.Run("CarryOnSafeAccess", func(t *testing.T) {
			testCarryOnSafeAccess(t, factory)
		})

		t.Run("SafeAccessExample", func(t *testing.T) {
			testSafeAccessExample(t, factory)
		})

		t.Run("UnsafePutRemovesStaleRecords", func(t *testing.T) {
			testUnsafePutRemovesStaleRecords(t, factory())
		})

		t.Run("PruneTombstones", func(t *testing.T) {
			testPruneTombstones(t, factory())
		})

		t.Run("RandomlyIndexDeleteAndRefresh", func(t *testing.T) {
			testRandomlyIndexDeleteAndRefresh(t, factory())
		})

		t.Run("Concurrently", func(t *testing.T) {
			testConcurrently(t, factory())
		})

		t.Run("AddAndDeleteRefreshConcurrently", func(t *testing.T) {
			testAddAndDeleteRefreshConcurrently(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("Metrics", func(t *testing.T) {
			testMetrics(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// requireRecord checks under lock that key resolves to expected
func requireRecord(t testing.TB, vm versionmap.IVersionMap, key string, expected versionmap.VersionRecord) {
	t.Helper()
	actual, ok := vm.GetUnderLock(key)
	require.True(t, ok, "no record for key %q", key)
	require.Equal(t, expected, actual)
}

// requireMissing checks under lock that key does not resolve to any record
func requireMissing(t testing.TB, vm versionmap.IVersionMap, key string) {
	t.Helper()
	actual, ok := vm.GetUnderLock(key)
	require.False(t, ok, "unexpected record for key %q: %s", key, actual)
}

// put installs a record of any kind while holding the lock of key
func put(vm versionmap.IVersionMap, key string, r versionmap.VersionRecord) {
	lock := vm.AcquireLock(key)
	defer lock.Release()
	if r.IsDelete() {
		vm.PutDeleteUnderLock(key, r)
	} else {
		vm.PutIndexUnderLock(key, r)
	}
}

func maybePut(vm versionmap.IVersionMap, key string, r versionmap.VersionRecord) {
	lock := vm.AcquireLock(key)
	defer lock.Release()
	vm.MaybePutIndexUnderLock(key, r)
}

func get(vm versionmap.IVersionMap, key string) (versionmap.VersionRecord, bool) {
	lock := vm.AcquireLock(key)
	defer lock.Release()
	return vm.GetUnderLock(key)
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testBasics(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()

	lock := vm.AcquireLock("test")
	defer lock.Release()

	loc := translog.NewLocation(1, 128, 64)
	index := versionmap.NewIndexRecord(loc, 1, 1, 1)
	vm.PutIndexUnderLock("test", index)
	requireRecord(t, vm, "test", versionmap.NewIndexRecord(translog.NewLocation(1, 128, 64), 1, 1, 1))

	vm.BeforeRefresh()
	requireRecord(t, vm, "test", index)
	vm.AfterRefresh(true)
	requireMissing(t, vm, "test")

	del := versionmap.NewDeleteRecord(1, 1, 1, 1)
	vm.PutDeleteUnderLock("test", del)
	requireRecord(t, vm, "test", del)

	vm.BeforeRefresh()
	requireRecord(t, vm, "test", del)
	vm.AfterRefresh(rng.Intn(2) == 0)
	requireRecord(t, vm, "test", del)

	// seqNo 1 is above the bound
	vm.PruneTombstones(2, 0)
	requireRecord(t, vm, "test", del)

	vm.PruneTombstones(2, 1)
	requireMissing(t, vm, "test")
}

func testRoundTrip(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()

	for _, key := range RandomKeys(rng, 100) {
		record := RandomIndexRecord(rng)

		lock := vm.AcquireLock(key)
		vm.PutIndexUnderLock(key, record)
		requireRecord(t, vm, key, record)
		lock.Release()
	}
	assert.Len(t, vm.GetAllCurrent(), 100)
	assert.Empty(t, vm.GetAllTombstones())
}

func testRemoveTombstone(t *testing.T, vm versionmap.IVersionMap) {
	lock := vm.AcquireLock("a")
	defer lock.Release()

	vm.PutDeleteUnderLock("a", versionmap.NewDeleteRecord(2, 5, 1, 10))
	require.Len(t, vm.GetAllTombstones(), 1)
	require.Positive(t, vm.RamBytesUsedForTombstones())

	vm.RemoveTombstoneUnderLock("a")
	requireMissing(t, vm, "a")
	assert.Empty(t, vm.GetAllTombstones())
	assert.Zero(t, vm.RamBytesUsedForTombstones())

	// no-op if absent
	vm.RemoveTombstoneUnderLock("a")
	assert.Zero(t, vm.RamBytesUsedForTombstones())
}

func testIndexSupersedesDelete(t *testing.T, vm versionmap.IVersionMap) {
	lock := vm.AcquireLock("a")
	defer lock.Release()

	vm.PutIndexUnderLock("a", versionmap.NewIndexRecord(nil, 1, 1, 1))
	vm.PutDeleteUnderLock("a", versionmap.NewDeleteRecord(2, 2, 1, 1))
	assert.Empty(t, vm.GetAllCurrent(), "delete must evict the index record")
	requireRecord(t, vm, "a", versionmap.NewDeleteRecord(2, 2, 1, 1))

	index := versionmap.NewIndexRecord(translog.NewLocation(3, 0, 12), 3, 3, 1)
	vm.PutIndexUnderLock("a", index)
	requireRecord(t, vm, "a", index)
	assert.Empty(t, vm.GetAllTombstones(), "index must remove the tombstone")
	assert.Zero(t, vm.RamBytesUsedForTombstones())
}

func testRefreshingBytes(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()

	put(vm, RandomKey(rng, 10, 20), RandomIndexRecord(rng))
	assert.Zero(t, vm.RefreshingBytes())

	vm.BeforeRefresh()
	assert.Positive(t, vm.RefreshingBytes())
	vm.AfterRefresh(true)
	assert.Zero(t, vm.RefreshingBytes())

	put(vm, RandomKey(rng, 10, 20), RandomIndexRecord(rng))
	vm.BeforeRefresh()
	assert.Positive(t, vm.RefreshingBytes())
	vm.AfterRefresh(false)
	assert.Zero(t, vm.RefreshingBytes())
}

func testRamAccounting(t *testing.T, vm versionmap.IVersionMap) {
	require.Zero(t, vm.RamBytesUsed())

	put(vm, "a", versionmap.NewIndexRecord(nil, 1, 1, 1))
	withoutLocation := vm.RamBytesUsed()
	require.Positive(t, withoutLocation)

	// replacing a record with one of the same size does not change the estimate
	put(vm, "a", versionmap.NewIndexRecord(nil, 2, 2, 1))
	assert.Equal(t, withoutLocation, vm.RamBytesUsed())

	// a location adds to the estimate
	put(vm, "a", versionmap.NewIndexRecord(translog.NewLocation(1, 2, 3), 3, 3, 1))
	assert.Greater(t, vm.RamBytesUsed(), withoutLocation)

	// a longer key adds to the estimate
	put(vm, "aaaaaaaaaa", versionmap.NewIndexRecord(nil, 1, 4, 1))
	twoKeys := vm.RamBytesUsed()

	// moving records to the old generation does not change the total
	vm.BeforeRefresh()
	assert.Equal(t, twoKeys, vm.RamBytesUsed())
	assert.Equal(t, twoKeys, vm.RefreshingBytes())
	vm.AfterRefresh(true)
	assert.Zero(t, vm.RamBytesUsed())

	put(vm, "a", versionmap.NewDeleteRecord(5, 5, 1, 1))
	assert.Equal(t, vm.RamBytesUsed(), vm.RamBytesUsedForTombstones())
	vm.PruneTombstones(1, 5)
	assert.Zero(t, vm.RamBytesUsed())
}

func testIdempotentRefresh(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()

	for _, key := range RandomKeys(rng, 200) {
		if rng.Intn(3) == 0 {
			put(vm, key, RandomDeleteRecord(rng))
		} else {
			put(vm, key, RandomIndexRecord(rng))
		}
	}

	// a failed refresh leaves everything in place
	current, tombstones, ram := vm.GetAllCurrent(), vm.GetAllTombstones(), vm.RamBytesUsed()
	vm.BeforeRefresh()
	vm.AfterRefresh(false)
	assert.Equal(t, current, vm.GetAllCurrent())
	assert.Equal(t, tombstones, vm.GetAllTombstones())
	assert.Equal(t, ram, vm.RamBytesUsed())
	assert.Zero(t, vm.RefreshingBytes())

	// a refresh cycle without writes is idempotent
	vm.BeforeRefresh()
	vm.AfterRefresh(true)
	current, tombstones, ram = vm.GetAllCurrent(), vm.GetAllTombstones(), vm.RamBytesUsed()
	for i := 0; i < 3; i++ {
		vm.BeforeRefresh()
		vm.AfterRefresh(true)
		assert.Equal(t, current, vm.GetAllCurrent())
		assert.Equal(t, tombstones, vm.GetAllTombstones())
		assert.Equal(t, ram, vm.RamBytesUsed())
		assert.Zero(t, vm.RefreshingBytes())
	}
}

func testFailedRefreshKeepsRecords(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()
	keys := RandomKeys(rng, 300)
	latest := make(map[string]versionmap.VersionRecord, len(keys))

	for _, key := range keys[:200] {
		latest[key] = RandomIndexRecord(rng)
		put(vm, key, latest[key])
	}

	vm.BeforeRefresh()

	// overwrite, delete and add while the refresh is in progress
	for i, key := range keys {
		switch {
		case i < 50:
			latest[key] = RandomIndexRecord(rng)
			put(vm, key, latest[key])
		case i < 100:
			latest[key] = RandomDeleteRecord(rng)
			put(vm, key, latest[key])
		case i >= 200:
			latest[key] = RandomIndexRecord(rng)
			put(vm, key, latest[key])
		}
	}

	vm.AfterRefresh(false)
	assert.Zero(t, vm.RefreshingBytes())
	for _, key := range keys {
		actual, ok := get(vm, key)
		require.True(t, ok, "lost record of %q", key)
		require.Equal(t, latest[key], actual)
	}
	assert.Len(t, vm.GetAllCurrent(), 250)
	assert.Len(t, vm.GetAllTombstones(), 50)

	// unsafe is reset by a failed refresh as well
	maybePut(vm, "unsafe", RandomIndexRecord(rng))
	require.True(t, vm.IsUnsafe())
	vm.BeforeRefresh()
	assert.True(t, vm.IsUnsafe())
	vm.AfterRefresh(false)
	assert.False(t, vm.IsUnsafe())
}

func testBeforeRefreshTwice(t *testing.T, vm versionmap.IVersionMap) {
	first := versionmap.NewIndexRecord(nil, 1, 1, 1)
	second := versionmap.NewIndexRecord(nil, 1, 2, 1)

	put(vm, "first", first)
	vm.BeforeRefresh()
	put(vm, "second", second)

	// the unfinished refresh is treated as failed
	vm.BeforeRefresh()
	lock := vm.AcquireLock("first")
	requireRecord(t, vm, "first", first)
	lock.Release()
	lock = vm.AcquireLock("second")
	requireRecord(t, vm, "second", second)
	lock.Release()

	vm.AfterRefresh(true)
	assert.Empty(t, vm.GetAllCurrent())
	assert.Zero(t, vm.RefreshingBytes())

	// finishing twice is a no-op
	vm.AfterRefresh(true)
	assert.Zero(t, vm.RamBytesUsed())
}

func testRefreshTransition(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()

	lock := vm.AcquireLock("1")
	defer lock.Release()

	vm.MaybePutIndexUnderLock("1", RandomIndexRecord(rng))
	assert.True(t, vm.IsUnsafe())
	requireMissing(t, vm, "1")

	vm.BeforeRefresh()
	assert.True(t, vm.IsUnsafe())
	requireMissing(t, vm, "1")
	vm.AfterRefresh(rng.Intn(2) == 0)
	requireMissing(t, vm, "1")
	assert.False(t, vm.IsUnsafe())

	vm.EnforceSafeAccess()
	vm.MaybePutIndexUnderLock("1", RandomIndexRecord(rng))
	assert.False(t, vm.IsUnsafe())
	_, ok := vm.GetUnderLock("1")
	assert.True(t, ok)

	vm.BeforeRefresh()
	assert.False(t, vm.IsUnsafe())
	assert.True(t, vm.IsSafeAccessRequired())
	_, ok = vm.GetUnderLock("1")
	assert.True(t, ok)

	vm.AfterRefresh(true)
	requireMissing(t, vm, "1")
	assert.False(t, vm.IsUnsafe())
	assert.True(t, vm.IsSafeAccessRequired())
}

func testCarryOnSafeAccess(t *testing.T, factory MapFactory) {
	rng := newRand()

	// run with both refresh outcomes
	for i := 0; i < 10; i++ {
		vm := factory()
		require.False(t, vm.IsUnsafe())
		require.False(t, vm.IsSafeAccessRequired())

		vm.EnforceSafeAccess()
		require.True(t, vm.IsSafeAccessRequired())
		require.False(t, vm.IsUnsafe())

		// without any writes safe access stays required
		for j := 0; j < 1+rng.Intn(5); j++ {
			vm.BeforeRefresh()
			vm.AfterRefresh(rng.Intn(2) == 0)
			require.True(t, vm.IsSafeAccessRequired(), "failed in iteration %d", j)
		}

		maybePut(vm, "", RandomIndexRecord(rng))
		require.False(t, vm.IsUnsafe())
		require.Len(t, vm.GetAllCurrent(), 1)

		// the generation only inherited safe access, so it is not passed on
		vm.BeforeRefresh()
		vm.AfterRefresh(rng.Intn(2) == 0)
		require.False(t, vm.IsUnsafe())
		require.False(t, vm.IsSafeAccessRequired())

		maybePut(vm, "", RandomIndexRecord(rng))
		require.True(t, vm.IsUnsafe())
		require.False(t, vm.IsSafeAccessRequired())
		require.Empty(t, vm.GetAllCurrent())
	}
}

func testSafeAccessExample(t *testing.T, factory MapFactory) {
	rng := newRand()

	vm := factory()
	require.False(t, vm.IsUnsafe())
	require.False(t, vm.IsSafeAccessRequired())

	maybePut(vm, "new", RandomIndexRecord(rng))
	assert.True(t, vm.IsUnsafe())
	assert.Empty(t, vm.GetAllCurrent())

	vm.EnforceSafeAccess()
	maybePut(vm, "new", RandomIndexRecord(rng))
	assert.Len(t, vm.GetAllCurrent(), 1)
	assert.True(t, vm.IsUnsafe(), "unsafe stays set until the next refresh")

	// a map that enforces safe access before its first write never becomes unsafe
	vm = factory()
	vm.EnforceSafeAccess()
	maybePut(vm, "new", RandomIndexRecord(rng))
	assert.False(t, vm.IsUnsafe())
	assert.Len(t, vm.GetAllCurrent(), 1)
}

func testUnsafePutRemovesStaleRecords(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()
	require.False(t, vm.IsSafeAccessRequired())

	put(vm, "deleted", RandomDeleteRecord(rng))
	maybePut(vm, "deleted", RandomIndexRecord(rng))
	_, ok := get(vm, "deleted")
	assert.False(t, ok, "the tombstone must not shadow the dropped index")
	assert.Empty(t, vm.GetAllTombstones())

	put(vm, "indexed", RandomIndexRecord(rng))
	vm.BeforeRefresh()
	put(vm, "indexed", RandomIndexRecord(rng))
	maybePut(vm, "indexed", RandomIndexRecord(rng))
	_, ok = get(vm, "indexed")
	assert.False(t, ok, "older index records must be removed")

	vm.AfterRefresh(false)
	_, ok = get(vm, "indexed")
	assert.False(t, ok, "older index records must not be merged back")
	assert.Zero(t, vm.RamBytesUsed())
}

func testPruneTombstones(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()
	keys := RandomKeys(rng, 200)
	tombstones := make(map[string]versionmap.VersionRecord, len(keys))

	for _, key := range keys {
		r := versionmap.NewDeleteRecord(uint64(rng.Intn(10)), uint64(rng.Intn(100)), 1, rng.Int63n(100))
		tombstones[key] = r
		put(vm, key, r)
	}
	before := vm.RamBytesUsedForTombstones()

	const (
		maxTimestamp = 50
		maxSeqNo     = 50
	)
	vm.PruneTombstones(maxTimestamp, maxSeqNo)

	remaining := vm.GetAllTombstones()
	for key, r := range tombstones {
		_, ok := remaining[key]
		if r.Timestamp <= maxTimestamp && r.SeqNo <= maxSeqNo {
			assert.False(t, ok, "%s should have been pruned", r)
		} else {
			assert.True(t, ok, "%s should have been kept", r)
		}
	}
	assert.Less(t, vm.RamBytesUsedForTombstones(), before)

	vm.PruneTombstones(100, 100)
	assert.Empty(t, vm.GetAllTombstones())
	assert.Zero(t, vm.RamBytesUsedForTombstones())
}

func testRandomlyIndexDeleteAndRefresh(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()
	const key = "1"
	var latest versionmap.VersionRecord

	for i := 0; i < 1000; i++ {
		if rng.Intn(2) == 0 {
			vm.BeforeRefresh()
			vm.AfterRefresh(rng.Intn(2) == 0)
		}
		if rng.Intn(2) == 0 {
			vm.EnforceSafeAccess()
		}

		lock := vm.AcquireLock(key)
		switch rng.Intn(3) {
		case 0:
			latest = RandomDeleteRecord(rng)
			vm.PutDeleteUnderLock(key, latest)
			requireRecord(t, vm, key, latest)
		case 1:
			latest = RandomIndexRecord(rng)
			vm.MaybePutIndexUnderLock(key, latest)
			if vm.IsSafeAccessRequired() {
				requireRecord(t, vm, key, latest)
			} else {
				requireMissing(t, vm, key)
			}
		}
		if actual, ok := vm.GetUnderLock(key); ok {
			require.Equal(t, latest, actual)
		}
		lock.Release()
	}
}

func testConcurrently(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()
	keys := RandomKeys(rng, 50+rng.Intn(150))
	values := xsync.NewMapOf[string, versionmap.VersionRecord]()
	deletes := xsync.NewMapOf[string, versionmap.VersionRecord]()

	var (
		clock               atomic.Int64
		maxSeqNo            atomic.Uint64
		lastPrunedTimestamp atomic.Int64
		lastPrunedSeqNo     atomic.Uint64
	)
	lastPrunedTimestamp.Store(-1)

	numThreads := 2 + rng.Intn(4)
	opsPerThread := 5000 + rng.Intn(5000)

	var g errgroup.Group
	for i := 0; i < numThreads; i++ {
		wrng := rand.New(rand.NewSource(rng.Int63()))
		g.Go(func() error {
			for j := 0; j < opsPerThread; j++ {
				key := keys[wrng.Intn(len(keys))]

				lock := vm.AcquireLock(key)
				prev, ok := values.Load(key)
				if !ok {
					prev = versionmap.NewIndexRecord(RandomLocation(wrng), uint64(wrng.Intn(1000)), maxSeqNo.Add(1), uint64(wrng.Intn(10)))
				}

				isDelete := prev.IsDelete()
				if isDelete {
					vm.RemoveTombstoneUnderLock(key)
					deletes.Delete(key)
				}

				var next versionmap.VersionRecord
				if !isDelete && wrng.Intn(10) == 0 {
					next = versionmap.NewDeleteRecord(prev.Version+1, maxSeqNo.Add(1), prev.Term, clock.Add(1)-1)
					deletes.Store(key, next)
					vm.PutDeleteUnderLock(key, next)
				} else {
					next = versionmap.NewIndexRecord(RandomLocation(wrng), prev.Version+1, maxSeqNo.Add(1), prev.Term)
					vm.PutIndexUnderLock(key, next)
				}
				values.Store(key, next)
				lock.Release()

				if wrng.Intn(10) == 0 {
					pruneSeqNo := uint64(wrng.Int63n(int64(maxSeqNo.Load()) + 1))
					clockTick := wrng.Int63n(clock.Load() + 1)
					vm.PruneTombstones(clockTick, pruneSeqNo)
					updateMaxInt64(&lastPrunedTimestamp, clockTick)
					updateMaxUint64(&lastPrunedSeqNo, pruneSeqNo)
				}
			}
			return nil
		})
	}

	writersDone := make(chan struct{})
	go func() {
		defer close(writersDone)
		_ = g.Wait()
	}()

	for running := true; running; {
		select {
		case <-writersDone:
			running = false
		default:
		}

		snapshot := vm.GetAllCurrent()
		vm.BeforeRefresh()
		for key, r := range snapshot {
			// the key may have been deleted and pruned in the meantime
			if actual, ok := get(vm, key); ok {
				require.LessOrEqual(t, r.Version, actual.Version)
			}
		}

		vm.AfterRefresh(rng.Intn(2) == 0)
		for key, r := range snapshot {
			if actual, ok := get(vm, key); ok {
				require.LessOrEqual(t, r.Version, actual.Version)
			}
		}
	}
	require.NoError(t, g.Wait())

	for key, r := range vm.GetAllCurrent() {
		expected, ok := values.Load(key)
		require.True(t, ok)
		require.Equal(t, expected, r)
	}

	assertTombstones := func() {
		for key, r := range vm.GetAllTombstones() {
			expected, ok := values.Load(key)
			require.True(t, ok)
			require.Equal(t, expected, r)
			require.True(t, expected.IsDelete())
		}
	}
	assertTombstones()
	vm.BeforeRefresh()
	assertTombstones()
	vm.AfterRefresh(false)
	assertTombstones()

	// deletes that are no longer visible must have been pruned
	deletes.Range(func(key string, del versionmap.VersionRecord) bool {
		actual, ok := get(vm, key)
		if ok {
			require.Equal(t, del, actual)
		} else {
			require.LessOrEqual(t, del.Timestamp, lastPrunedTimestamp.Load(), del.String())
			require.LessOrEqual(t, del.SeqNo, lastPrunedSeqNo.Load(), del.String())
		}
		return true
	})

	vm.PruneTombstones(clock.Add(1), maxSeqNo.Load())
	assert.Empty(t, vm.GetAllTombstones())
	assert.Zero(t, vm.RamBytesUsedForTombstones())
}

func testAddAndDeleteRefreshConcurrently(t *testing.T, vm versionmap.IVersionMap) {
	rng := newRand()
	const key = "1"
	numIters := 1000 + rng.Intn(4000)

	var version atomic.Uint64
	initial := versionmap.NewIndexRecord(RandomLocation(rng), version.Add(1), 1, 1)
	put(vm, key, initial)

	var (
		g    errgroup.Group
		done atomic.Bool
	)
	wrng := rand.New(rand.NewSource(rng.Int63()))
	g.Go(func() error {
		defer done.Store(true)

		next := initial
		for i := 0; i < numIters; i++ {
			err := func() error {
				lock := vm.AcquireLock(key)
				defer lock.Release()

				actual, ok := vm.GetUnderLock(key)
				if ok {
					if !actual.Equal(next) {
						return fmt.Errorf("iteration %d: expected %s, got %s", i, next, actual)
					}
				} else {
					actual = next
				}

				if actual.IsDelete() || wrng.Intn(2) == 0 {
					next = versionmap.NewIndexRecord(RandomLocation(wrng), version.Add(1), 1, 1)
					vm.PutIndexUnderLock(key, next)
				} else {
					next = versionmap.NewDeleteRecord(version.Add(1), 1, 1, 0)
					vm.PutDeleteUnderLock(key, next)
				}
				return nil
			}()
			if err != nil {
				return err
			}
		}
		return nil
	})

	for !done.Load() {
		vm.BeforeRefresh()
		vm.AfterRefresh(false)
	}
	require.NoError(t, g.Wait())

	if actual, ok := get(vm, key); ok {
		assert.Equal(t, version.Load(), actual.Version)
	}
}

func testInfo(t *testing.T, vm versionmap.IVersionMap) {
	put(vm, "a", versionmap.NewIndexRecord(nil, 1, 1, 1))
	put(vm, "b", versionmap.NewDeleteRecord(1, 2, 1, 1))
	maybePut(vm, "c", versionmap.NewIndexRecord(nil, 1, 3, 1))

	vm.BeforeRefresh()
	put(vm, "d", versionmap.NewIndexRecord(nil, 1, 4, 1))

	info := vm.GetInfo()
	assert.Equal(t, 1, info.CurrentEntries)
	assert.Equal(t, 1, info.RefreshingEntries)
	assert.Equal(t, 1, info.Tombstones)
	assert.True(t, info.Refreshing)
	assert.True(t, info.Unsafe)
	assert.False(t, info.SafeAccessRequired)
	assert.Equal(t, vm.RamBytesUsed(), info.RamBytes)
	assert.Equal(t, vm.RefreshingBytes(), info.RefreshingBytes)
	assert.Equal(t, vm.RamBytesUsedForTombstones(), info.TombstoneBytes)
	assert.Equal(t, uint64(1), info.UnsafePuts)

	vm.AfterRefresh(false)
	vm.BeforeRefresh()
	vm.AfterRefresh(true)
	vm.PruneTombstones(1, 2)

	info = vm.GetInfo()
	assert.False(t, info.Refreshing)
	assert.Zero(t, info.CurrentEntries)
	assert.Zero(t, info.Tombstones)
	assert.Equal(t, uint64(1), info.RefreshesSucceeded)
	assert.Equal(t, uint64(1), info.RefreshesFailed)
	assert.Equal(t, uint64(1), info.TombstonesPruned)
	assert.Contains(t, info.String(), "Version Map")
}

func testMetrics(t *testing.T, vm versionmap.IVersionMap) {
	put(vm, "a", versionmap.NewIndexRecord(nil, 1, 1, 1))
	vm.BeforeRefresh()
	vm.AfterRefresh(true)

	var buf bytes.Buffer
	vm.WritePrometheus(&buf)
	out := buf.String()

	for _, name := range []string{
		"versionmap_ram_bytes{",
		"versionmap_refreshing_bytes{",
		"versionmap_tombstone_bytes{",
		"versionmap_current_entries{",
		"versionmap_tombstones{",
		"versionmap_refreshes_total{",
		"versionmap_tombstones_pruned_total{",
		"versionmap_unsafe_puts_total{",
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, `outcome="success"} 1`)
}
