// Package cmd implements the command-line interface lvmap. It drives a version map
// with simulated storage engine workloads.
//
// The package is organized into several subpackages:
//
//   - stress: Randomized concurrent writers plus a refresh coordinator, verified against a reference
//   - perf: Benchmarks of the single map operations and of mixed workloads
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See lvmap -help for a list of all commands.
package cmd
