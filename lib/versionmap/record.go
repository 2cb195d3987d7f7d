package versionmap

import (
	"fmt"
	"unsafe"

	"github.com/ValentinKolb/liveversion/lib/translog"
)

// --------------------------------------------------------------------------
// Record Kind
// --------------------------------------------------------------------------

// Kind tells whether a VersionRecord stems from an index or a delete operation
type Kind uint8

const (
	KindIndex Kind = iota
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindIndex:
		return "Index"
	case KindDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// VersionRecord
// --------------------------------------------------------------------------

// VersionRecord is the outcome of an accepted write for one document id.
// Records are values: a newer write supersedes a record, it never modifies it.
type VersionRecord struct {
	Version uint64 // Per-key version, increases with every write
	SeqNo   uint64 // Sequence number assigned by the engine
	Term    uint64 // Primary term the write was accepted under

	Timestamp int64              // Delete only: logical clock value used for pruning
	Location  *translog.Location // Index only: where the operation was logged (nil = not logged)

	Kind Kind
}

// NewIndexRecord creates the record of an index operation
func NewIndexRecord(loc *translog.Location, version, seqNo, term uint64) VersionRecord {
	return VersionRecord{
		Version:  version,
		SeqNo:    seqNo,
		Term:     term,
		Location: loc,
		Kind:     KindIndex,
	}
}

// NewDeleteRecord creates the record of a delete operation
func NewDeleteRecord(version, seqNo, term uint64, timestamp int64) VersionRecord {
	return VersionRecord{
		Version:   version,
		SeqNo:     seqNo,
		Term:      term,
		Timestamp: timestamp,
		Kind:      KindDelete,
	}
}

// IsDelete returns whether the record stems from a delete operation
func (r VersionRecord) IsDelete() bool {
	return r.Kind == KindDelete
}

// Equal compares two records field by field. Locations are compared by value.
func (r VersionRecord) Equal(other VersionRecord) bool {
	if r.Kind != other.Kind || r.Version != other.Version || r.SeqNo != other.SeqNo || r.Term != other.Term {
		return false
	}
	switch r.Kind {
	case KindDelete:
		return r.Timestamp == other.Timestamp
	default:
		if r.Location == nil || other.Location == nil {
			return r.Location == other.Location
		}
		return *r.Location == *other.Location
	}
}

func (r VersionRecord) String() string {
	switch r.Kind {
	case KindDelete:
		return fmt.Sprintf("Delete{Version: %d, SeqNo: %d, Term: %d, Timestamp: %d}", r.Version, r.SeqNo, r.Term, r.Timestamp)
	default:
		return fmt.Sprintf("Index{Version: %d, SeqNo: %d, Term: %d, %s}", r.Version, r.SeqNo, r.Term, r.Location)
	}
}

// ramBytesUsed returns the heap size of the record including its location
func (r VersionRecord) ramBytesUsed() int64 {
	return bytesPerRecord + r.Location.RamBytesUsed()
}

// --------------------------------------------------------------------------
// RAM accounting
// --------------------------------------------------------------------------

/*
	The estimate follows the layout of xsync.MapOf: every entry is a separately
	allocated {key, value} pair referenced from a bucket slot. Buckets are one
	cache line with five slots and the table is grown at 75% load, so an entry
	pays for roughly a third of a bucket. The key bytes are allocated separately
	from the string header stored in the entry.
*/
const (
	bytesPerStringHeader = int64(unsafe.Sizeof(""))
	bytesPerBucketShare  = 32
	bytesPerEntry        = bytesPerStringHeader + bytesPerBucketShare
	bytesPerRecord       = int64(unsafe.Sizeof(VersionRecord{}))
)

// entryBytes returns the estimated heap size of one map entry
func entryBytes(key string, r VersionRecord) int64 {
	return bytesPerEntry + int64(len(key)) + r.ramBytesUsed()
}
