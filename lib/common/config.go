package common

import (
	"fmt"
	"strings"
	"time"
)

// WorkloadConfig holds the parameters of a simulated storage engine
// that drives a version map (used by the stress and perf commands)
type WorkloadConfig struct {
	// writers
	Threads      int // Number of concurrent writer goroutines
	Keys         int // Size of the shared key set
	OpsPerThread int // Operations every writer performs
	DeleteRatio  float64
	PruneRatio   float64 // Probability that a writer prunes tombstones after an operation

	// refresh coordinator
	RefreshInterval    time.Duration
	RefreshFailureRate float64 // Probability that a refresh is reported as failed
	AppendOnly         bool    // Start without safe access (MaybePutIndexUnderLock fast path)

	// output
	LogLevel       string
	PrintMetrics   bool
	MapName        string
	AssertLocks    bool
	Seed           int64
	CSVPath        string
	BenchmarkSkips []string
}

// Validate checks the configuration for values that cannot be used
func (c *WorkloadConfig) Validate() error {
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	if c.Keys <= 0 {
		return fmt.Errorf("keys must be positive, got %d", c.Keys)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh-interval must be positive, got %s", c.RefreshInterval)
	}
	for name, p := range map[string]float64{
		"delete-ratio":         c.DeleteRatio,
		"prune-ratio":          c.PruneRatio,
		"refresh-failure-rate": c.RefreshFailureRate,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, p)
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *WorkloadConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Writers")
	addField("Threads", fmt.Sprintf("%d", c.Threads))
	addField("Keys", fmt.Sprintf("%d", c.Keys))
	addField("Ops per Thread", fmt.Sprintf("%d", c.OpsPerThread))
	addField("Delete Ratio", fmt.Sprintf("%.2f", c.DeleteRatio))
	addField("Prune Ratio", fmt.Sprintf("%.2f", c.PruneRatio))

	addSection("Refresh")
	addField("Interval", c.RefreshInterval.String())
	addField("Failure Rate", fmt.Sprintf("%.2f", c.RefreshFailureRate))
	addField("Append Only", fmt.Sprintf("%t", c.AppendOnly))

	addSection("Version Map")
	addField("Name", c.MapName)
	addField("Assert Locks", fmt.Sprintf("%t", c.AssertLocks))
	addField("Seed", fmt.Sprintf("%d", c.Seed))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
