package stress

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/liveversion/lib/common"
	"github.com/ValentinKolb/liveversion/lib/versionmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *common.WorkloadConfig {
	return &common.WorkloadConfig{
		Threads:            4,
		Keys:               50,
		OpsPerThread:       5000,
		DeleteRatio:        0.2,
		PruneRatio:         0.05,
		RefreshInterval:    100 * time.Microsecond,
		RefreshFailureRate: 0.3,
		LogLevel:           "error",
		MapName:            "stress-test",
		Seed:               7,
	}
}

func TestWorkload(t *testing.T) {
	tests := []struct {
		name       string
		appendOnly bool
	}{
		{"SafeAccess", false},
		{"AppendOnly", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfig()
			conf.AppendOnly = tt.appendOnly

			vm := versionmap.NewVersionMap(&versionmap.Options{Name: conf.MapName, AssertLocks: true})
			if !conf.AppendOnly {
				vm.EnforceSafeAccess()
			}

			res, err := newWorkload(vm, conf).run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(conf.Threads*conf.OpsPerThread), res.indexOps+res.deleteOps)
			assert.Positive(t, res.deleteOps)
			assert.Contains(t, res.String(), "RESULT")
			assert.Equal(t, res.refreshes, int64(vm.GetInfo().RefreshesSucceeded+vm.GetInfo().RefreshesFailed))
		})
	}
}

func TestWorkloadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vm := versionmap.NewVersionMap(nil)
	_, err := newWorkload(vm, testConfig()).run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
