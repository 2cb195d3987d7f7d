package versionmap

import (
	"io"

	"github.com/ValentinKolb/liveversion/lib/lockmgr"
)

// IVersionMap tracks the latest version of every document id that was written since
// the last refresh of the searchable view, plus tombstones of deleted ids.
//
// All methods ending in UnderLock must be called while holding the lock returned by
// AcquireLock for the same key.
type IVersionMap interface {

	// --------------------------------------------------------------------------
	// Write Path
	// --------------------------------------------------------------------------

	// AcquireLock blocks until the caller holds the lock for key.
	// Distinct keys never block each other.
	AcquireLock(key string) (lock lockmgr.Releaser)

	// GetUnderLock returns the record of the current generation, else of the old generation,
	// else the tombstone. The boolean indicates whether a record was found.
	GetUnderLock(key string) (record VersionRecord, loaded bool)

	// PutIndexUnderLock stores an index record and removes a tombstone of the same key.
	PutIndexUnderLock(key string, record VersionRecord)

	// MaybePutIndexUnderLock stores the index record only if safe access is required.
	// Otherwise the record is dropped and the map is marked as unsafe: a missing key is then
	// no proof that the document does not exist.
	MaybePutIndexUnderLock(key string, record VersionRecord)

	// PutDeleteUnderLock stores a tombstone for key. Lookups resolve to the tombstone afterwards.
	PutDeleteUnderLock(key string, record VersionRecord)

	// RemoveTombstoneUnderLock removes the tombstone of key if there is one.
	RemoveTombstoneUnderLock(key string)

	// --------------------------------------------------------------------------
	// Refresh Lifecycle
	// --------------------------------------------------------------------------

	// BeforeRefresh freezes the current generation and starts a new, empty one.
	// The frozen generation stays readable until AfterRefresh.
	BeforeRefresh()

	// AfterRefresh retires the frozen generation. If the refresh did not succeed, its
	// records are merged back so that nothing is lost.
	AfterRefresh(refreshSucceeded bool)

	// --------------------------------------------------------------------------
	// Tombstones
	// --------------------------------------------------------------------------

	// PruneTombstones removes all tombstones whose timestamp is <= maxTimestamp
	// and whose sequence number is <= maxSeqNo.
	PruneTombstones(maxTimestamp int64, maxSeqNo uint64)

	// --------------------------------------------------------------------------
	// Safe Access
	// --------------------------------------------------------------------------

	// EnforceSafeAccess makes all following conditional writes tracked.
	EnforceSafeAccess()

	// IsSafeAccessRequired returns whether conditional writes are tracked.
	IsSafeAccessRequired() (required bool)

	// IsUnsafe returns whether a conditional write skipped the map in a live generation.
	IsUnsafe() (unsafe bool)

	// --------------------------------------------------------------------------
	// Memory Accounting
	// --------------------------------------------------------------------------

	// RamBytesUsed returns the estimated heap size of both generations and the tombstones.
	RamBytesUsed() (bytes int64)

	// RefreshingBytes returns the estimated heap size of the frozen generation (0 if none).
	RefreshingBytes() (bytes int64)

	// RamBytesUsedForTombstones returns the estimated heap size of the tombstones.
	RamBytesUsedForTombstones() (bytes int64)

	// --------------------------------------------------------------------------
	// Diagnostics
	// --------------------------------------------------------------------------

	// GetAllCurrent returns a copy of the current generation.
	GetAllCurrent() (records map[string]VersionRecord)

	// GetAllTombstones returns a copy of all tombstones.
	GetAllTombstones() (records map[string]VersionRecord)

	// GetInfo returns statistics about the map.
	GetInfo() (info Info)

	// WritePrometheus writes the metrics of this map in Prometheus text format.
	WritePrometheus(w io.Writer)
}
