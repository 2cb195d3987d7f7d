package testing

import (
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/liveversion/lib/versionmap"
)

// Benchmark is a named benchmark that runs against a fresh version map
type Benchmark struct {
	Name string
	Run  func(b *testing.B, vm versionmap.IVersionMap)
}

// Benchmarks returns all benchmarks of the suite in a stable order
func Benchmarks() []Benchmark {
	return []Benchmark{
		{Name: "PutIndex", Run: benchmarkPutIndex},
		{Name: "PutIndexExisting", Run: benchmarkPutIndexExisting},
		{Name: "MaybePutIndex", Run: benchmarkMaybePutIndex},
		{Name: "MaybePutIndexSafe", Run: benchmarkMaybePutIndexSafe},
		{Name: "PutDelete", Run: benchmarkPutDelete},
		{Name: "GetUnderLock", Run: benchmarkGetUnderLock},
		{Name: "MixedUsage", Run: benchmarkMixedUsage},
		{Name: "MixedUsageWithRefresh", Run: benchmarkMixedUsageWithRefresh},
	}
}

// RunVersionMapBenchmarks runs all benchmarks for a version map implementation
func RunVersionMapBenchmarks(b *testing.B, factory MapFactory) {
	for _, bm := range Benchmarks() {
		b.Run(bm.Name, func(b *testing.B) {
			bm.Run(b, factory())
		})
	}
}

const benchmarkKeys = 10_000

func benchmarkPutIndex(b *testing.B, vm versionmap.IVersionMap) {
	rng := newRand()
	keys := RandomKeys(rng, benchmarkKeys)
	record := RandomIndexRecord(rng)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[i%len(keys)]
		lock := vm.AcquireLock(key)
		vm.PutIndexUnderLock(key, record)
		lock.Release()

		// keep the map from only replacing records
		if i%len(keys) == len(keys)-1 {
			vm.BeforeRefresh()
			vm.AfterRefresh(true)
		}
	}
}

func benchmarkPutIndexExisting(b *testing.B, vm versionmap.IVersionMap) {
	rng := newRand()
	keys := RandomKeys(rng, benchmarkKeys)
	record := RandomIndexRecord(rng)
	for _, key := range keys {
		put(vm, key, record)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[i%len(keys)]
		lock := vm.AcquireLock(key)
		vm.PutIndexUnderLock(key, record)
		lock.Release()
	}
}

func benchmarkMaybePutIndex(b *testing.B, vm versionmap.IVersionMap) {
	rng := newRand()
	keys := RandomKeys(rng, benchmarkKeys)
	record := RandomIndexRecord(rng)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[i%len(keys)]
		lock := vm.AcquireLock(key)
		vm.MaybePutIndexUnderLock(key, record)
		lock.Release()
	}
}

func benchmarkMaybePutIndexSafe(b *testing.B, vm versionmap.IVersionMap) {
	vm.EnforceSafeAccess()
	benchmarkMaybePutIndex(b, vm)
}

func benchmarkPutDelete(b *testing.B, vm versionmap.IVersionMap) {
	rng := newRand()
	keys := RandomKeys(rng, benchmarkKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[i%len(keys)]
		lock := vm.AcquireLock(key)
		vm.PutDeleteUnderLock(key, versionmap.NewDeleteRecord(uint64(i), uint64(i), 1, int64(i)))
		lock.Release()

		if i%len(keys) == len(keys)-1 {
			vm.PruneTombstones(int64(i), uint64(i))
		}
	}
}

func benchmarkGetUnderLock(b *testing.B, vm versionmap.IVersionMap) {
	rng := newRand()
	keys := RandomKeys(rng, benchmarkKeys)
	for i, key := range keys {
		if i%4 == 0 {
			put(vm, key, RandomDeleteRecord(rng))
		} else {
			put(vm, key, RandomIndexRecord(rng))
		}
	}
	// half of the records are in the old generation
	vm.BeforeRefresh()
	for _, key := range keys[:len(keys)/2] {
		put(vm, key, RandomIndexRecord(rng))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[i%len(keys)]
		lock := vm.AcquireLock(key)
		_, _ = vm.GetUnderLock(key)
		lock.Release()
	}
}

// mixedUsage runs a parallel workload of 60% index, 20% get, 15% delete and 5% prune
func mixedUsage(b *testing.B, vm versionmap.IVersionMap, keys []string) {
	var (
		seeds atomic.Int64
		seqNo atomic.Uint64
	)

	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(seeds.Add(1)))
		for pb.Next() {
			key := keys[rng.Intn(len(keys))]
			op := rng.Intn(100)

			lock := vm.AcquireLock(key)
			switch {
			case op < 60:
				vm.PutIndexUnderLock(key, versionmap.NewIndexRecord(nil, 1, seqNo.Add(1), 1))
			case op < 80:
				_, _ = vm.GetUnderLock(key)
			case op < 95:
				s := seqNo.Add(1)
				vm.PutDeleteUnderLock(key, versionmap.NewDeleteRecord(1, s, 1, int64(s)))
			}
			lock.Release()

			if op >= 95 {
				s := seqNo.Load()
				vm.PruneTombstones(int64(s/2), s/2)
			}
		}
	})
}

func benchmarkMixedUsage(b *testing.B, vm versionmap.IVersionMap) {
	keys := RandomKeys(newRand(), benchmarkKeys)

	b.ResetTimer()
	mixedUsage(b, vm, keys)
}

func benchmarkMixedUsageWithRefresh(b *testing.B, vm versionmap.IVersionMap) {
	keys := RandomKeys(newRand(), benchmarkKeys)

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				vm.BeforeRefresh()
				vm.AfterRefresh(i%10 != 0)
			}
		}
	}()

	b.ResetTimer()
	mixedUsage(b, vm, keys)
	b.StopTimer()

	close(stop)
	<-stopped
}
