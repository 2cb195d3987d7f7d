// Package translog holds the types the write-ahead log hands out to other
// components. The log itself lives outside this module; the version map only
// needs the Location token to remember where an accepted write was logged.
package translog
