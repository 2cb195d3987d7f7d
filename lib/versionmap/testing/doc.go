/*
Package testing provides a reusable test and benchmark suite for implementations of
versionmap.IVersionMap.

Usage:

	func Test(t *testing.T) {
		vmtesting.RunVersionMapTests(t, "VersionMap", func() versionmap.IVersionMap {
			return versionmap.NewVersionMap(nil)
		})
	}

The helpers for random keys and records are shared with the perf command.
*/
package testing
