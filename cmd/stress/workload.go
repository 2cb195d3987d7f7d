package stress

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/liveversion/lib/common"
	"github.com/ValentinKolb/liveversion/lib/translog"
	"github.com/ValentinKolb/liveversion/lib/versionmap"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

// workload simulates the write path and the refresh coordinator of a storage engine
type workload struct {
	vm   versionmap.IVersionMap
	conf *common.WorkloadConfig
	keys []string

	// last write per key, only modified while holding the key lock
	reference *xsync.MapOf[string, versionmap.VersionRecord]

	seqNo atomic.Uint64
	clock atomic.Int64 // logical clock for delete timestamps

	indexOps  atomic.Int64
	deleteOps atomic.Int64
	pruneOps  atomic.Int64
	refreshes atomic.Int64
	failed    atomic.Int64

	// only accessed by the refresh coordinator
	pauses     []float64 // duration of BeforeRefresh + AfterRefresh in µs
	ramSamples []float64 // RamBytesUsed before every refresh
}

// result summarizes a finished run
type result struct {
	duration  time.Duration
	indexOps  int64
	deleteOps int64
	pruneOps  int64
	refreshes int64
	failed    int64
	verified  int
	pauses    sampleStats
	ram       sampleStats
}

func (r result) String() string {
	var sb strings.Builder
	ops := r.indexOps + r.deleteOps
	sb.WriteString("RESULT\n")
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Duration", r.duration))
	sb.WriteString(fmt.Sprintf("  %-22s: %d index, %d delete, %d prune\n", "Operations", r.indexOps, r.deleteOps, r.pruneOps))
	sb.WriteString(fmt.Sprintf("  %-22s: %.0f ops/sec\n", "Throughput", float64(ops)/r.duration.Seconds()))
	sb.WriteString(fmt.Sprintf("  %-22s: %d (%d failed)\n", "Refreshes", r.refreshes, r.failed))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Refresh Pause", r.pauses.format("µs")))
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Ram Estimate", r.ram.format("B")))
	sb.WriteString(fmt.Sprintf("  %-22s: %d records\n", "Verified", r.verified))
	return sb.String()
}

func newWorkload(vm versionmap.IVersionMap, conf *common.WorkloadConfig) *workload {
	rng := rand.New(rand.NewSource(conf.Seed))
	keys := make([]string, conf.Keys)
	for i := range keys {
		keys[i] = fmt.Sprintf("doc-%d-%d", i, rng.Intn(1_000_000))
	}

	return &workload{
		vm:        vm,
		conf:      conf,
		keys:      keys,
		reference: xsync.NewMapOf[string, versionmap.VersionRecord](xsync.WithPresize(conf.Keys)),
	}
}

// run starts the writers and drives refreshes until all writers are done,
// then checks the final state of the map against the reference
func (w *workload) run(ctx context.Context) (result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.conf.Threads; i++ {
		rng := rand.New(rand.NewSource(w.conf.Seed + int64(i) + 1))
		g.Go(func() error {
			return w.write(gctx, rng)
		})
	}

	writersDone := make(chan struct{})
	go func() {
		defer close(writersDone)
		_ = g.Wait()
	}()

	w.refresh(writersDone, rand.New(rand.NewSource(w.conf.Seed)))
	if err := g.Wait(); err != nil {
		return result{}, err
	}
	duration := time.Since(start)

	verified, err := w.verify()
	if err != nil {
		return result{}, err
	}

	return result{
		duration:  duration,
		indexOps:  w.indexOps.Load(),
		deleteOps: w.deleteOps.Load(),
		pruneOps:  w.pruneOps.Load(),
		refreshes: w.refreshes.Load(),
		failed:    w.failed.Load(),
		verified:  verified,
		pauses:    newSampleStats(w.pauses),
		ram:       newSampleStats(w.ramSamples),
	}, nil
}

// write performs the operations of one writer goroutine
func (w *workload) write(ctx context.Context, rng *rand.Rand) error {
	for i := 0; i < w.conf.OpsPerThread; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := w.keys[rng.Intn(len(w.keys))]
		if err := w.writeKey(key, rng); err != nil {
			return err
		}

		if rng.Float64() < w.conf.PruneRatio {
			w.prune(rng)
		}
	}
	return nil
}

// writeKey indexes or deletes key the way an engine does: look up the current
// version under lock, then install the next one
func (w *workload) writeKey(key string, rng *rand.Rand) error {
	lock := w.vm.AcquireLock(key)
	defer lock.Release()

	latest, written := w.reference.Load(key)
	actual, found := w.vm.GetUnderLock(key)
	if found && !actual.Equal(latest) {
		return fmt.Errorf("key %s: expected %s, got %s", key, latest, actual)
	}

	version := uint64(1)
	if written {
		version = latest.Version + 1

		// updates and deletes need lookups from now on
		if !w.vm.IsSafeAccessRequired() {
			w.vm.EnforceSafeAccess()
		}
	}

	var next versionmap.VersionRecord
	switch {
	case written && !latest.IsDelete() && rng.Float64() < w.conf.DeleteRatio:
		next = versionmap.NewDeleteRecord(version, w.seqNo.Add(1), 1, w.clock.Add(1))
		w.vm.PutDeleteUnderLock(key, next)
		w.deleteOps.Add(1)
	case !written:
		next = versionmap.NewIndexRecord(w.location(rng), version, w.seqNo.Add(1), 1)
		w.vm.MaybePutIndexUnderLock(key, next)
		w.indexOps.Add(1)
	default:
		next = versionmap.NewIndexRecord(w.location(rng), version, w.seqNo.Add(1), 1)
		w.vm.PutIndexUnderLock(key, next)
		w.indexOps.Add(1)
	}

	w.reference.Store(key, next)
	return nil
}

func (w *workload) location(rng *rand.Rand) *translog.Location {
	return translog.NewLocation(1, w.seqNo.Load()*64, int32(32+rng.Intn(512)))
}

// prune removes tombstones older than a random point of the logical clock
func (w *workload) prune(rng *rand.Rand) {
	maxTimestamp := rng.Int63n(w.clock.Load() + 1)
	maxSeqNo := uint64(rng.Int63n(int64(w.seqNo.Load()) + 1))
	w.vm.PruneTombstones(maxTimestamp, maxSeqNo)
	w.pruneOps.Add(1)
}

// refresh drives the refresh cycle until done is closed
func (w *workload) refresh(done <-chan struct{}, rng *rand.Rand) {
	ticker := time.NewTicker(w.conf.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		w.ramSamples = append(w.ramSamples, float64(w.vm.RamBytesUsed()))

		start := time.Now()
		w.vm.BeforeRefresh()
		succeeded := rng.Float64() >= w.conf.RefreshFailureRate
		w.vm.AfterRefresh(succeeded)
		w.pauses = append(w.pauses, float64(time.Since(start).Microseconds()))

		w.refreshes.Add(1)
		if !succeeded {
			w.failed.Add(1)
		}
		Logger.Debugf("refresh %d done (succeeded=%t, ram=%d bytes)", w.refreshes.Load(), succeeded, w.vm.RamBytesUsed())
	}
}

// verify compares the map with the reference after all writers finished
func (w *workload) verify() (int, error) {
	verified := 0

	for key, r := range w.vm.GetAllCurrent() {
		expected, ok := w.reference.Load(key)
		if !ok || !expected.Equal(r) {
			return verified, fmt.Errorf("current entry of %s is %s, last write was %s", key, r, expected)
		}
		verified++
	}

	for key, r := range w.vm.GetAllTombstones() {
		expected, ok := w.reference.Load(key)
		if !ok || !expected.Equal(r) || !r.IsDelete() {
			return verified, fmt.Errorf("tombstone of %s is %s, last write was %s", key, r, expected)
		}
		verified++
	}

	Logger.Infof("verified %d records", verified)
	return verified, nil
}
