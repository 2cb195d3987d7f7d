package versionmap_test

import (
	"math/rand"
	"runtime"
	"testing"

	"github.com/ValentinKolb/liveversion/lib/lockmgr"
	"github.com/ValentinKolb/liveversion/lib/versionmap"
	vmtesting "github.com/ValentinKolb/liveversion/lib/versionmap/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	vmtesting.RunVersionMapTests(t, "VersionMap", func() versionmap.IVersionMap {
		return versionmap.NewVersionMap(nil)
	})

	vmtesting.RunVersionMapTests(t, "VersionMap(AssertLocks)", func() versionmap.IVersionMap {
		return versionmap.NewVersionMap(&versionmap.Options{
			Name:        "asserted",
			AssertLocks: true,
			Locks:       lockmgr.NewLockManager(),
		})
	})
}

func Benchmark(b *testing.B) {
	vmtesting.RunVersionMapBenchmarks(b, func() versionmap.IVersionMap {
		return versionmap.NewVersionMap(nil)
	})
}

func heapAlloc() int64 {
	runtime.GC()
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapAlloc)
}

func TestRamBytesUsed(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	fill := func(vm versionmap.IVersionMap) {
		for i := 0; i < 10_000; i++ {
			key := vmtesting.RandomKey(rng, 10, 20)
			lock := vm.AcquireLock(key)
			vm.PutIndexUnderLock(key, vmtesting.RandomIndexRecord(rng))
			lock.Release()
		}
	}

	base := heapAlloc()
	vm := versionmap.NewVersionMap(nil)
	fill(vm)

	actual := heapAlloc() - base
	estimated := vm.RamBytesUsed()
	t.Logf("actual: %d, estimated: %d", actual, estimated)
	assert.InDelta(t, actual, estimated, float64(actual)/2, "estimate is more than 50%% off")

	vm.BeforeRefresh()
	vm.AfterRefresh(true)
	fill(vm)

	actual = heapAlloc() - base
	estimated = vm.RamBytesUsed()
	t.Logf("actual: %d, estimated: %d", actual, estimated)
	assert.InDelta(t, actual, estimated, float64(actual)/2, "estimate is more than 50%% off")

	runtime.KeepAlive(vm)
}

func TestAssertLocks(t *testing.T) {
	vm := versionmap.NewVersionMap(&versionmap.Options{Name: "asserted", AssertLocks: true})
	index := versionmap.NewIndexRecord(nil, 1, 1, 1)
	del := versionmap.NewDeleteRecord(1, 1, 1, 1)

	tests := []struct {
		name string
		op   func()
	}{
		{"GetUnderLock", func() { vm.GetUnderLock("a") }},
		{"PutIndexUnderLock", func() { vm.PutIndexUnderLock("a", index) }},
		{"MaybePutIndexUnderLock", func() { vm.MaybePutIndexUnderLock("a", index) }},
		{"PutDeleteUnderLock", func() { vm.PutDeleteUnderLock("a", del) }},
		{"RemoveTombstoneUnderLock", func() { vm.RemoveTombstoneUnderLock("a") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.op, "calling without the lock must panic")

			lock := vm.AcquireLock("a")
			defer lock.Release()
			assert.NotPanics(t, tt.op)
		})
	}

	// the lock of another key does not count
	lock := vm.AcquireLock("b")
	defer lock.Release()
	assert.Panics(t, func() { vm.PutIndexUnderLock("a", index) })

	// the assertion checks that the key is locked, not who holds the lock
	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		lock := vm.AcquireLock("c")
		close(held)
		<-done
		lock.Release()
	}()
	<-held
	assert.NotPanics(t, func() { vm.GetUnderLock("c") })
	close(done)
}

func TestWrongRecordKind(t *testing.T) {
	vm := versionmap.NewVersionMap(nil)
	lock := vm.AcquireLock("a")
	defer lock.Release()

	assert.Panics(t, func() { vm.PutIndexUnderLock("a", versionmap.NewDeleteRecord(1, 1, 1, 1)) })
	assert.Panics(t, func() { vm.MaybePutIndexUnderLock("a", versionmap.NewDeleteRecord(1, 1, 1, 1)) })
	assert.Panics(t, func() { vm.PutDeleteUnderLock("a", versionmap.NewIndexRecord(nil, 1, 1, 1)) })

	_, ok := vm.GetUnderLock("a")
	require.False(t, ok)
}

func TestSharedLockManager(t *testing.T) {
	locks := lockmgr.NewLockManager()
	vm := versionmap.NewVersionMap(&versionmap.Options{Name: "shared", Locks: locks})

	lock := vm.AcquireLock("a")
	assert.True(t, locks.IsHeld("a"))
	_, ok := locks.TryAcquire("a")
	assert.False(t, ok)

	lock.Release()
	assert.Zero(t, locks.Size())
}
