package util

import (
	"strings"

	"github.com/ValentinKolb/liveversion/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and maps environment variables (LVMAP_<FLAG>) to flags
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("lvmap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupMapFlags adds the flags that configure the version map under test
func SetupMapFlags(cmd *cobra.Command) {
	key := "map-name"
	cmd.PersistentFlags().String(key, "default", WrapString("Name of the version map (used in logs and as metrics label)"))

	key = "assert-locks"
	cmd.PersistentFlags().Bool(key, false, WrapString("Panic if a map operation is called without holding the key lock (slow, for debugging)"))

	key = "threads"
	cmd.PersistentFlags().Int(key, 8, WrapString("Number of concurrent writer goroutines"))

	key = "seed"
	cmd.PersistentFlags().Int64(key, 0, WrapString("Seed for the random workload (0 = random seed)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (debug, info, warn, error)"))
}

// GetWorkloadConfig reads the workload configuration from viper
func GetWorkloadConfig() *common.WorkloadConfig {
	conf := &common.WorkloadConfig{
		Threads:            viper.GetInt("threads"),
		Keys:               viper.GetInt("keys"),
		OpsPerThread:       viper.GetInt("ops"),
		DeleteRatio:        viper.GetFloat64("delete-ratio"),
		PruneRatio:         viper.GetFloat64("prune-ratio"),
		RefreshInterval:    viper.GetDuration("refresh-interval"),
		RefreshFailureRate: viper.GetFloat64("refresh-failure-rate"),
		AppendOnly:         viper.GetBool("append-only"),
		LogLevel:           viper.GetString("log-level"),
		PrintMetrics:       viper.GetBool("metrics"),
		MapName:            viper.GetString("map-name"),
		AssertLocks:        viper.GetBool("assert-locks"),
		Seed:               viper.GetInt64("seed"),
		CSVPath:            viper.GetString("csv"),
	}

	if skip := viper.GetString("skip"); skip != "" {
		conf.BenchmarkSkips = strings.Split(skip, ",")
	}

	return conf
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
