package versionmap

import (
	"testing"

	"github.com/ValentinKolb/liveversion/lib/translog"
	"github.com/stretchr/testify/assert"
)

func TestRecordEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  VersionRecord
		equal bool
	}{
		{"same index", NewIndexRecord(nil, 1, 2, 3), NewIndexRecord(nil, 1, 2, 3), true},
		{"locations by value", NewIndexRecord(translog.NewLocation(1, 2, 3), 1, 2, 3), NewIndexRecord(translog.NewLocation(1, 2, 3), 1, 2, 3), true},
		{"different location", NewIndexRecord(translog.NewLocation(1, 2, 3), 1, 2, 3), NewIndexRecord(translog.NewLocation(1, 2, 4), 1, 2, 3), false},
		{"nil location", NewIndexRecord(translog.NewLocation(1, 2, 3), 1, 2, 3), NewIndexRecord(nil, 1, 2, 3), false},
		{"different version", NewIndexRecord(nil, 1, 2, 3), NewIndexRecord(nil, 2, 2, 3), false},
		{"different seqNo", NewIndexRecord(nil, 1, 2, 3), NewIndexRecord(nil, 1, 3, 3), false},
		{"different term", NewIndexRecord(nil, 1, 2, 3), NewIndexRecord(nil, 1, 2, 4), false},
		{"same delete", NewDeleteRecord(1, 2, 3, 4), NewDeleteRecord(1, 2, 3, 4), true},
		{"different timestamp", NewDeleteRecord(1, 2, 3, 4), NewDeleteRecord(1, 2, 3, 5), false},
		{"different kind", NewIndexRecord(nil, 1, 2, 3), NewDeleteRecord(1, 2, 3, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			assert.Equal(t, tt.equal, tt.b.Equal(tt.a))
		})
	}
}

func TestRecordKind(t *testing.T) {
	assert.False(t, NewIndexRecord(nil, 1, 1, 1).IsDelete())
	assert.True(t, NewDeleteRecord(1, 1, 1, 1).IsDelete())
	assert.Equal(t, "Index", KindIndex.String())
	assert.Equal(t, "Delete", KindDelete.String())
	assert.Equal(t, "Unknown", Kind(7).String())
}

func TestRecordString(t *testing.T) {
	assert.Equal(t, "Delete{Version: 1, SeqNo: 2, Term: 3, Timestamp: 4}", NewDeleteRecord(1, 2, 3, 4).String())
	assert.Equal(t, "Index{Version: 1, SeqNo: 2, Term: 3, Location{}}", NewIndexRecord(nil, 1, 2, 3).String())
	assert.Contains(t, NewIndexRecord(translog.NewLocation(7, 8, 9), 1, 2, 3).String(), "Generation: 7")
}

func TestEntryBytes(t *testing.T) {
	withoutLocation := entryBytes("key", NewIndexRecord(nil, 1, 1, 1))
	assert.Equal(t, bytesPerEntry+3+bytesPerRecord, withoutLocation)

	withLocation := entryBytes("key", NewIndexRecord(translog.NewLocation(1, 1, 1), 1, 1, 1))
	assert.Equal(t, withoutLocation+translog.NewLocation(0, 0, 0).RamBytesUsed(), withLocation)

	assert.Equal(t, withoutLocation+7, entryBytes("longer-key", NewIndexRecord(nil, 1, 1, 1)))
	assert.Equal(t, withoutLocation, entryBytes("key", NewDeleteRecord(1, 1, 1, 1)))
}
