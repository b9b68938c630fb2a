package autoscaler

import (
	"context"
	"testing"

	"gridpool/internal/model"
	"gridpool/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func growConfig(callQueue, queuedJobs int64, gridMinutes float64) *config.ScalerConfig {
	return &config.ScalerConfig{
		CallQueueThreshold:   callQueue,
		GridMinutesThreshold: gridMinutes,
		QueuedJobsThreshold:  queuedJobs,
	}
}

func checkByName(t *testing.T, d GrowDecision, name string) GrowCheck {
	t.Helper()
	for _, c := range d.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not present in decision", name)
	return GrowCheck{}
}

func TestEvaluateGrow_CallQueueOnly(t *testing.T) {
	// jobs = [{calls=100, outstanding=50, duration=5000, allocation=5}] with
	// only the call-queue threshold enabled trips grow through that check.
	m := Aggregate([]model.Job{
		{CallDurationMs: 5000, TotalCalls: 100, OutstandingCalls: 50, Allocation: 5},
	})

	d := EvaluateGrow(context.Background(), m, 0, growConfig(40, 0, 0))

	require.True(t, d.Triggered)
	assert.True(t, checkByName(t, d, CheckCallQueue).Tripped)
	assert.False(t, checkByName(t, d, CheckGridMinutes).Enabled)
	assert.False(t, checkByName(t, d, CheckQueuedJobs).Enabled)
	assert.Equal(t, "threshold tripped: call_queue", d.Reason())
}

func TestEvaluateGrow_AllThresholdsDisabled(t *testing.T) {
	m := Aggregate([]model.Job{
		{CallDurationMs: 60000, TotalCalls: 1000, OutstandingCalls: 900, Allocation: 1},
	})

	d := EvaluateGrow(context.Background(), m, 50, growConfig(0, 0, 0))

	assert.False(t, d.Triggered)
	for _, c := range d.Checks {
		assert.False(t, c.Enabled, "check %s should be disabled", c.Name)
	}
}

func TestEvaluateGrow_GridMinutesOnly(t *testing.T) {
	// 60s per call * 100 outstanding / 2 cores = 3000s = 50min
	m := Aggregate([]model.Job{
		{CallDurationMs: 60000, TotalCalls: 120, OutstandingCalls: 100, Allocation: 2},
	})

	d := EvaluateGrow(context.Background(), m, 0, growConfig(0, 0, 45))

	require.True(t, d.Triggered)
	assert.True(t, checkByName(t, d, CheckGridMinutes).Tripped)
	assert.False(t, checkByName(t, d, CheckCallQueue).Enabled)
}

func TestEvaluateGrow_QueuedJobsOnly(t *testing.T) {
	d := EvaluateGrow(context.Background(), ClusterMetrics{}, 7, growConfig(0, 5, 0))

	require.True(t, d.Triggered)
	assert.True(t, checkByName(t, d, CheckQueuedJobs).Tripped)
}

func TestEvaluateGrow_ThresholdMetExactly(t *testing.T) {
	// The checks trip on meets-or-exceeds, not strictly-greater
	m := ClusterMetrics{OutstandingCalls: 40}

	d := EvaluateGrow(context.Background(), m, 0, growConfig(40, 0, 0))

	assert.True(t, d.Triggered)
}

func TestEvaluateGrow_BelowAllThresholds(t *testing.T) {
	m := ClusterMetrics{OutstandingCalls: 39, GridRemainingMinutes: 14.99}

	d := EvaluateGrow(context.Background(), m, 4, growConfig(40, 5, 15))

	assert.False(t, d.Triggered)
	assert.Equal(t, "no threshold tripped", d.Reason())
	for _, c := range d.Checks {
		assert.True(t, c.Enabled)
		assert.False(t, c.Tripped)
	}
}

func TestEvaluateGrow_MultipleChecksTripped(t *testing.T) {
	m := ClusterMetrics{OutstandingCalls: 100, GridRemainingMinutes: 30}

	d := EvaluateGrow(context.Background(), m, 9, growConfig(40, 5, 15))

	require.True(t, d.Triggered)
	assert.Equal(t, "threshold tripped: call_queue, grid_minutes, queued_jobs", d.Reason())
}
