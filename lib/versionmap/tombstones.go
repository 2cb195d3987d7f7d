package versionmap

// --------------------------------------------------------------------------
// Tombstones
// --------------------------------------------------------------------------

// putTombstone stores the delete record and adjusts the ram estimate
func (vm *mapImpl) putTombstone(key string, r VersionRecord) {
	prev, loaded := vm.tombstones.LoadAndStore(key, r)
	delta := entryBytes(key, r)
	if loaded {
		delta -= entryBytes(key, prev)
	}
	vm.tombstoneBytes.Add(delta)
}

// removeTombstone removes the delete record of key (if any) and adjusts the ram estimate
func (vm *mapImpl) removeTombstone(key string) {
	if prev, loaded := vm.tombstones.LoadAndDelete(key); loaded {
		vm.tombstoneBytes.Add(-entryBytes(key, prev))
	}
}

// PruneTombstones removes all tombstones with Timestamp <= maxTimestamp and SeqNo <= maxSeqNo.
// Key locks are not taken: a tombstone is only removed if it is still the exact record that
// was inspected, so a concurrently replaced or removed tombstone is left alone.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (vm *mapImpl) PruneTombstones(maxTimestamp int64, maxSeqNo uint64) {
	pruned := 0
	vm.tombstones.Range(func(key string, r VersionRecord) bool {
		if r.Timestamp > maxTimestamp || r.SeqNo > maxSeqNo {
			return true
		}

		removed := false
		vm.tombstones.Compute(key, func(curr VersionRecord, loaded bool) (VersionRecord, bool) {
			if !loaded {
				return curr, true // set delete to true because else the value will be created
			}
			if !curr.Equal(r) {
				return curr, false
			}
			removed = true
			return curr, true
		})

		if removed {
			vm.tombstoneBytes.Add(-entryBytes(key, r))
			pruned++
		}
		return true
	})

	if pruned > 0 {
		vm.metrics.tombstonesPruned.Add(pruned)
		Logger.Debugf("%s: pruned %d tombstones (maxTimestamp=%d, maxSeqNo=%d)", vm.name, pruned, maxTimestamp, maxSeqNo)
	}
}
