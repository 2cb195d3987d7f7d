package versionmap

import (
	"fmt"
	"strings"
)

// Info is a point in time summary of a version map
type Info struct {
	Name string `json:"name"`

	CurrentEntries    int  `json:"current_entries"`
	RefreshingEntries int  `json:"refreshing_entries"`
	Tombstones        int  `json:"tombstones"`
	Refreshing        bool `json:"refreshing"`

	RamBytes        int64 `json:"ram_bytes"`
	RefreshingBytes int64 `json:"refreshing_bytes"`
	TombstoneBytes  int64 `json:"tombstone_bytes"`

	SafeAccessRequired bool `json:"safe_access_required"`
	Unsafe             bool `json:"unsafe"`

	RefreshesSucceeded uint64 `json:"refreshes_succeeded"`
	RefreshesFailed    uint64 `json:"refreshes_failed"`
	TombstonesPruned   uint64 `json:"tombstones_pruned"`
	UnsafePuts         uint64 `json:"unsafe_puts"`
}

// GetInfo returns statistics about the map. The values are read one after another,
// so they are not a consistent snapshot while writers are active.
func (vm *mapImpl) GetInfo() Info {
	m := vm.maps.Load()

	info := Info{
		Name:               vm.name,
		CurrentEntries:     m.current.entries.Size(),
		Tombstones:         vm.tombstones.Size(),
		Refreshing:         m.old != nil,
		RamBytes:           m.current.bytes.Load() + m.refreshingBytes() + vm.tombstoneBytes.Load(),
		RefreshingBytes:    m.refreshingBytes(),
		TombstoneBytes:     vm.tombstoneBytes.Load(),
		SafeAccessRequired: m.current.isSafeAccessMode(),
		Unsafe:             m.isUnsafe(),
		RefreshesSucceeded: vm.metrics.refreshesSucceeded.Get(),
		RefreshesFailed:    vm.metrics.refreshesFailed.Get(),
		TombstonesPruned:   vm.metrics.tombstonesPruned.Get(),
		UnsafePuts:         vm.metrics.unsafePuts.Get(),
	}
	if m.old != nil {
		info.RefreshingEntries = m.old.entries.Size()
	}
	return info
}

func (i Info) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Version Map %q\n", i.Name))

	sb.WriteString("Entries:\n")
	sb.WriteString(fmt.Sprintf("  current:     %d\n", i.CurrentEntries))
	sb.WriteString(fmt.Sprintf("  refreshing:  %d (in progress: %t)\n", i.RefreshingEntries, i.Refreshing))
	sb.WriteString(fmt.Sprintf("  tombstones:  %d\n", i.Tombstones))

	sb.WriteString("Memory:\n")
	sb.WriteString(fmt.Sprintf("  total:       %s\n", formatBytes(i.RamBytes)))
	sb.WriteString(fmt.Sprintf("  refreshing:  %s\n", formatBytes(i.RefreshingBytes)))
	sb.WriteString(fmt.Sprintf("  tombstones:  %s\n", formatBytes(i.TombstoneBytes)))

	sb.WriteString("Safety:\n")
	sb.WriteString(fmt.Sprintf("  safe access: %t\n", i.SafeAccessRequired))
	sb.WriteString(fmt.Sprintf("  unsafe:      %t\n", i.Unsafe))

	sb.WriteString("Counters:\n")
	sb.WriteString(fmt.Sprintf("  refreshes:   %d ok / %d failed\n", i.RefreshesSucceeded, i.RefreshesFailed))
	sb.WriteString(fmt.Sprintf("  pruned:      %d\n", i.TombstonesPruned))
	sb.WriteString(fmt.Sprintf("  unsafe puts: %d\n", i.UnsafePuts))

	return sb.String()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
