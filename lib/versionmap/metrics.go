package versionmap

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// mapMetrics holds the metrics set of one version map.
// Every map has its own set so that maps can be created and dropped freely.
type mapMetrics struct {
	set *metrics.Set

	refreshesSucceeded *metrics.Counter
	refreshesFailed    *metrics.Counter
	tombstonesPruned   *metrics.Counter
	unsafePuts         *metrics.Counter
}

func newMapMetrics(vm *mapImpl) *mapMetrics {
	s := metrics.NewSet()
	label := fmt.Sprintf(`map=%q`, vm.name)

	s.NewGauge(fmt.Sprintf(`versionmap_ram_bytes{%s}`, label), func() float64 {
		return float64(vm.RamBytesUsed())
	})
	s.NewGauge(fmt.Sprintf(`versionmap_refreshing_bytes{%s}`, label), func() float64 {
		return float64(vm.RefreshingBytes())
	})
	s.NewGauge(fmt.Sprintf(`versionmap_tombstone_bytes{%s}`, label), func() float64 {
		return float64(vm.RamBytesUsedForTombstones())
	})
	s.NewGauge(fmt.Sprintf(`versionmap_current_entries{%s}`, label), func() float64 {
		return float64(vm.maps.Load().current.entries.Size())
	})
	s.NewGauge(fmt.Sprintf(`versionmap_tombstones{%s}`, label), func() float64 {
		return float64(vm.tombstones.Size())
	})

	return &mapMetrics{
		set:                s,
		refreshesSucceeded: s.NewCounter(fmt.Sprintf(`versionmap_refreshes_total{%s,outcome="success"}`, label)),
		refreshesFailed:    s.NewCounter(fmt.Sprintf(`versionmap_refreshes_total{%s,outcome="failure"}`, label)),
		tombstonesPruned:   s.NewCounter(fmt.Sprintf(`versionmap_tombstones_pruned_total{%s}`, label)),
		unsafePuts:         s.NewCounter(fmt.Sprintf(`versionmap_unsafe_puts_total{%s}`, label)),
	}
}
