package stress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleStats(t *testing.T) {
	assert.Equal(t, sampleStats{}, newSampleStats(nil))
	assert.Equal(t, "no samples", newSampleStats(nil).format("µs"))

	s := newSampleStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Count)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Equal(t, 5.0, s.Mean)
	assert.InDelta(t, 2.0, s.StdDeviation, 1e-9)
	assert.Equal(t, "min 2B, mean 5B, max 9B, stddev 2B (8 samples)", s.format("B"))
}
