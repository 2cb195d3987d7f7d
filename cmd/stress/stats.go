package stress

import (
	"fmt"
	"math"
)

// sampleStats summarizes a series of samples (refresh pauses, ram estimates)
type sampleStats struct {
	Count        int     `json:"count"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	StdDeviation float64 `json:"std_deviation"`
}

// newSampleStats computes min, max, mean and the (population) standard deviation
func newSampleStats(values []float64) sampleStats {
	if len(values) == 0 {
		return sampleStats{}
	}

	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	mean := sum / float64(len(values))

	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	return sampleStats{
		Count:        len(values),
		Min:          minV,
		Max:          maxV,
		Mean:         mean,
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(values))),
	}
}

// format renders the stats with the given unit, e.g. "µs"
func (s sampleStats) format(unit string) string {
	if s.Count == 0 {
		return "no samples"
	}
	return fmt.Sprintf("min %.0f%s, mean %.0f%s, max %.0f%s, stddev %.0f%s (%d samples)",
		s.Min, unit, s.Mean, unit, s.Max, unit, s.StdDeviation, unit, s.Count)
}
