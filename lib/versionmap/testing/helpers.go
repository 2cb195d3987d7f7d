package testing

import (
	"math/rand"
	"sync/atomic"

	"github.com/ValentinKolb/liveversion/lib/translog"
	"github.com/ValentinKolb/liveversion/lib/versionmap"
)

// MapFactory is a function that creates a new instance of a IVersionMap implementation
type MapFactory func() versionmap.IVersionMap

// seed for all randomized tests, fixed so that failures can be reproduced
const seed = 1337

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// RandomKey returns a random lowercase key with a length in [minLen, maxLen]
func RandomKey(rng *rand.Rand, minLen, maxLen int) string {
	b := make([]byte, minLen+rng.Intn(maxLen-minLen+1))
	for i := range b {
		b[i] = byte('a' + rng.Intn(26))
	}
	return string(b)
}

// RandomKeys returns n distinct random keys
func RandomKeys(rng *rand.Rand, n int) []string {
	seen := make(map[string]struct{}, n)
	keys := make([]string, 0, n)
	for len(keys) < n {
		key := RandomKey(rng, 10, 20)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// RandomLocation returns a random write-ahead-log location or nil (50%)
func RandomLocation(rng *rand.Rand) *translog.Location {
	if rng.Intn(2) == 0 {
		return nil
	}
	return translog.NewLocation(uint64(rng.Int63()), uint64(rng.Int63()), rng.Int31())
}

// RandomIndexRecord returns an index record with random values
func RandomIndexRecord(rng *rand.Rand) versionmap.VersionRecord {
	return versionmap.NewIndexRecord(RandomLocation(rng), uint64(rng.Int63()), uint64(rng.Int63()), uint64(rng.Int63()))
}

// RandomDeleteRecord returns a delete record with random values
func RandomDeleteRecord(rng *rand.Rand) versionmap.VersionRecord {
	return versionmap.NewDeleteRecord(uint64(rng.Int63()), uint64(rng.Int63()), uint64(rng.Int63()), rng.Int63())
}

func updateMaxInt64(v *atomic.Int64, candidate int64) {
	for {
		prev := v.Load()
		if candidate <= prev || v.CompareAndSwap(prev, candidate) {
			return
		}
	}
}

func updateMaxUint64(v *atomic.Uint64, candidate uint64) {
	for {
		prev := v.Load()
		if candidate <= prev || v.CompareAndSwap(prev, candidate) {
			return
		}
	}
}
