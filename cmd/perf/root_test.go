package perf

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/liveversion/lib/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldSkip(t *testing.T) {
	perfConfig = &common.WorkloadConfig{BenchmarkSkips: []string{"PutDelete", " mixedusage"}}

	assert.True(t, shouldSkip("PutDelete"))
	assert.True(t, shouldSkip("MixedUsage"))
	assert.False(t, shouldSkip("PutIndex"))
}

func TestWriteResultsToCSV(t *testing.T) {
	perfConfig = &common.WorkloadConfig{Threads: 2}
	path := filepath.Join(t.TempDir(), "results.csv")

	results := map[string]testing.BenchmarkResult{
		"PutIndex":  {N: 1000, T: time.Millisecond},
		"PutDelete": {},
	}
	require.NoError(t, writeResultsToCSV(path, results))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Test", rows[0][0])
	assert.Equal(t, []string{"PutIndex", "1000", "1µs", "1000000", "false", "2", "false"}, rows[1])
	assert.Equal(t, "PutDelete", rows[2][0])
	assert.Equal(t, "true", rows[2][4])
}
