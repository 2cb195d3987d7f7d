package util

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
	assert.Empty(t, WrapString(""))
}

func TestGetWorkloadConfig(t *testing.T) {
	defer viper.Reset()

	cmd := &cobra.Command{Use: "test"}
	SetupMapFlags(cmd)
	cmd.Flags().AddFlagSet(cmd.PersistentFlags())
	cmd.Flags().Int("keys", 10, "")
	cmd.Flags().String("skip", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--threads=3", "--map-name=test", "--skip=get,prune"}))
	require.NoError(t, BindCommandFlags(cmd))

	conf := GetWorkloadConfig()
	assert.Equal(t, 3, conf.Threads)
	assert.Equal(t, 10, conf.Keys)
	assert.Equal(t, "test", conf.MapName)
	assert.Equal(t, "info", conf.LogLevel)
	assert.Equal(t, []string{"get", "prune"}, conf.BenchmarkSkips)
}

func TestInitConfigEnv(t *testing.T) {
	defer viper.Reset()
	t.Setenv("LVMAP_MAP_NAME", "from-env")

	InitConfig()
	assert.Equal(t, "from-env", viper.GetString("map-name"))
}
