package perf

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/liveversion/cmd/util"
	"github.com/ValentinKolb/liveversion/lib/common"
	"github.com/ValentinKolb/liveversion/lib/versionmap"
	vmtesting "github.com/ValentinKolb/liveversion/lib/versionmap/testing"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var (
	Logger = logger.GetLogger("perf")

	perfConfig = &common.WorkloadConfig{}
	PerfCmd    = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the version map",
		Long:    `Runs the benchmarks of the version map and prints ns/op and ops/sec for each of them. The configuration can be set via command line flags or environment variables (LVMAP_<FLAG>)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	util.SetupMapFlags(PerfCmd)

	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. PutDelete,MixedUsage)"))

	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// the perf command does not use the writer settings of the stress command
	perfConfig = util.GetWorkloadConfig()
	perfConfig.Keys = 1
	perfConfig.RefreshInterval = time.Millisecond
	if err := perfConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return common.InitLoggers(perfConfig.LogLevel)
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for the version map")
	fmt.Println()
	fmt.Printf("Threads: %d, Map: %s, Assert Locks: %t\n", perfConfig.Threads, perfConfig.MapName, perfConfig.AssertLocks)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range vmtesting.Benchmarks() {
		if shouldSkip(bm.Name) {
			results[bm.Name] = testing.BenchmarkResult{}
			printResult(bm.Name, results[bm.Name])
			continue
		}

		Logger.Debugf("running benchmark %s", bm.Name)
		result := testing.Benchmark(func(b *testing.B) {
			b.SetParallelism(perfConfig.Threads)
			bm.Run(b, newMap())
		})

		results[bm.Name] = result
		printResult(bm.Name, result)
	}

	if perfConfig.CSVPath != "" {
		if err := writeResultsToCSV(perfConfig.CSVPath, results); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", perfConfig.CSVPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func newMap() versionmap.IVersionMap {
	return versionmap.NewVersionMap(&versionmap.Options{
		Name:        perfConfig.MapName,
		AssertLocks: perfConfig.AssertLocks,
	})
}

func shouldSkip(test string) bool {
	for _, skip := range perfConfig.BenchmarkSkips {
		if strings.EqualFold(strings.TrimSpace(skip), test) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-24sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-24s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped", "Threads", "AssertLocks"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// keep the order of the benchmark suite
	for _, bm := range vmtesting.Benchmarks() {
		result, ok := results[bm.Name]
		if !ok {
			continue
		}

		var nsPerOp, opsPerSec float64
		skipped := result.NsPerOp() == 0
		if !skipped {
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			bm.Name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.FormatBool(skipped),
			strconv.Itoa(perfConfig.Threads),
			strconv.FormatBool(perfConfig.AssertLocks),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", bm.Name, err)
		}
	}

	return writer.Error()
}
