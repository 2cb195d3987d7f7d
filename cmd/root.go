package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/liveversion/cmd/perf"
	"github.com/ValentinKolb/liveversion/cmd/stress"
	"github.com/ValentinKolb/liveversion/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lvmap",
		Short: "live version map workload tool",
		Long: fmt.Sprintf(`lvmap (v%s)

Drives the live version map of a document store the way a storage engine does:
concurrent writers, refresh cycles and tombstone pruning.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lvmap",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lvmap v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(stress.StressCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
