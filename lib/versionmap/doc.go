/*
Package versionmap tracks the latest accepted write of every document id until the write
becomes visible through a refreshed view of the storage engine.

Records live in two generations. Writes go to the current generation; BeforeRefresh freezes
it as the old generation and starts a new one, AfterRefresh drops the old one once the
refreshed view covers it. Deletes are tracked as tombstones independent of refreshes and are
removed by PruneTombstones.

Basic usage:

	vm := versionmap.NewVersionMap(nil)

	lock := vm.AcquireLock("doc-1")
	vm.PutIndexUnderLock("doc-1", versionmap.NewIndexRecord(nil, 1, 0, 1))
	rec, ok := vm.GetUnderLock("doc-1")
	lock.Release()

	vm.BeforeRefresh()
	// ... refresh the searchable view ...
	vm.AfterRefresh(true)

Append-only workloads may skip tracking with MaybePutIndexUnderLock. Once a caller relies on
lookups (updates, deletes) it calls EnforceSafeAccess, after which every write is tracked
again.
*/
package versionmap
