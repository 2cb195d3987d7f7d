package stress

import (
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/liveversion/cmd/util"
	"github.com/ValentinKolb/liveversion/lib/common"
	"github.com/ValentinKolb/liveversion/lib/versionmap"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var (
	Logger = logger.GetLogger("stress")

	stressConfig = &common.WorkloadConfig{}
	StressCmd    = &cobra.Command{
		Use:   "stress",
		Short: "Run a randomized concurrent workload against a version map",
		Long: `Simulates a storage engine: writer goroutines index and delete documents of a shared key set
while a refresh coordinator repeatedly refreshes the map (some refreshes fail on purpose).
Every lookup is checked against a reference of the last write per key. The configuration can be set
via command line flags or environment variables (LVMAP_<FLAG>, e.g. LVMAP_DELETE_RATIO=0.2)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	util.SetupMapFlags(StressCmd)

	key := "keys"
	StressCmd.Flags().Int(key, 1000, util.WrapString("Size of the shared key set"))

	key = "ops"
	StressCmd.Flags().Int(key, 100_000, util.WrapString("Operations per writer goroutine"))

	key = "delete-ratio"
	StressCmd.Flags().Float64(key, 0.1, util.WrapString("Probability that an operation deletes the document"))

	key = "prune-ratio"
	StressCmd.Flags().Float64(key, 0.01, util.WrapString("Probability that a writer prunes tombstones after an operation"))

	key = "refresh-interval"
	StressCmd.Flags().Duration(key, time.Millisecond, util.WrapString("Pause between two refreshes"))

	key = "refresh-failure-rate"
	StressCmd.Flags().Float64(key, 0.2, util.WrapString("Probability that a refresh is reported as failed"))

	key = "append-only"
	StressCmd.Flags().Bool(key, false, util.WrapString("Start in append-only mode: new documents skip the map until an update or delete enforces safe access"))

	key = "metrics"
	StressCmd.Flags().Bool(key, false, util.WrapString("Print the metrics of the map in Prometheus format after the run"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	stressConfig = util.GetWorkloadConfig()
	if stressConfig.Seed == 0 {
		stressConfig.Seed = time.Now().UnixNano()
	}
	if err := stressConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return common.InitLoggers(stressConfig.LogLevel)
}

func run(cmd *cobra.Command, _ []string) error {
	fmt.Println("Stress test for the live version map")
	fmt.Println(stressConfig.String())

	vm := versionmap.NewVersionMap(&versionmap.Options{
		Name:        stressConfig.MapName,
		AssertLocks: stressConfig.AssertLocks,
	})
	if !stressConfig.AppendOnly {
		vm.EnforceSafeAccess()
	}

	result, err := newWorkload(vm, stressConfig).run(cmd.Context())
	if err != nil {
		return fmt.Errorf("stress test failed: %w", err)
	}

	fmt.Println()
	fmt.Println(result.String())
	fmt.Println(vm.GetInfo().String())

	if stressConfig.PrintMetrics {
		vm.WritePrometheus(os.Stdout)
	}

	return nil
}
