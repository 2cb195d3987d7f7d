package common

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *WorkloadConfig {
	return &WorkloadConfig{
		Threads:            4,
		Keys:               100,
		OpsPerThread:       1000,
		DeleteRatio:        0.1,
		PruneRatio:         0.01,
		RefreshInterval:    time.Millisecond,
		RefreshFailureRate: 0.2,
		LogLevel:           "info",
		MapName:            "stress",
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logger.LogLevel
		wantErr  bool
	}{
		{"debug", logger.DEBUG, false},
		{"INFO", logger.INFO, false},
		{"warn", logger.WARNING, false},
		{"warning", logger.WARNING, false},
		{"error", logger.ERROR, false},
		{"verbose", logger.INFO, true},
		{"", logger.INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lvl, err := ParseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, lvl)
		})
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := &lvLogger{name: "versionmap", level: logger.INFO, logger: log.New(&buf, "", 0)}

	l.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	l.Infof("refresh %s", "done")
	assert.Equal(t, "INFO  | versionmap   | refresh done\n", buf.String())

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Warningf("hidden")
	l.Errorf("broken")
	assert.Equal(t, "ERROR | versionmap   | broken\n", buf.String())

	assert.Panics(t, func() { l.Panicf("boom") })
}

func TestInitLoggers(t *testing.T) {
	assert.Error(t, InitLoggers("loud"))
	assert.NoError(t, InitLoggers("error"))
}

func TestWorkloadConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *WorkloadConfig)
	}{
		{"no threads", func(c *WorkloadConfig) { c.Threads = 0 }},
		{"no keys", func(c *WorkloadConfig) { c.Keys = -1 }},
		{"delete ratio", func(c *WorkloadConfig) { c.DeleteRatio = 1.5 }},
		{"prune ratio", func(c *WorkloadConfig) { c.PruneRatio = -0.1 }},
		{"failure rate", func(c *WorkloadConfig) { c.RefreshFailureRate = 2 }},
		{"no refresh interval", func(c *WorkloadConfig) { c.RefreshInterval = 0 }},
		{"negative refresh interval", func(c *WorkloadConfig) { c.RefreshInterval = -time.Second }},
		{"log level", func(c *WorkloadConfig) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestWorkloadConfigString(t *testing.T) {
	s := validConfig().String()
	for _, section := range []string{"WRITERS", "REFRESH", "VERSION MAP", "LOGGING"} {
		assert.Contains(t, s, section)
	}
	assert.Contains(t, s, "stress")
	assert.Contains(t, s, "1ms")
}
