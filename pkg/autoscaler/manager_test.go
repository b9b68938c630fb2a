package autoscaler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpool/internal/model"
	"gridpool/internal/service"
	"gridpool/pkg/config"
	redisstore "gridpool/pkg/store/redis"
)

func managerConfig() *config.Config {
	return &config.Config{
		Scaler: config.ScalerConfig{
			Enabled:              true,
			Interval:             30,
			NodeGroup:            "compute",
			CallQueueThreshold:   100,
			GridMinutesThreshold: 5,
			InitialGrowCount:     2,
			IncrementalGrowCount: 1,
			ShrinkDebounce:       2,
		},
	}
}

func newTestManager(cfg *config.Config, provider *fakeProvider, stateRepo *redisstore.ScalerStateRepository) *Manager {
	history := service.NewHistoryService(nil)
	exec := NewExecutor(provider, history, nil, cfg)
	return NewManager(cfg, provider, exec, nil, stateRepo, nil)
}

func newMiniredisState(t *testing.T) (*redis.Client, *redisstore.ScalerStateRepository) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return client, redisstore.NewScalerStateRepository(client)
}

func TestManager_GrowCycleLeavesIdleStreakUntouched(t *testing.T) {
	provider := newFakeProvider()
	provider.jobs = []model.Job{
		{ID: "job-1", State: model.JobStateRunning, TotalCalls: 200, OutstandingCalls: 150, Allocation: 4, CallDurationMs: 2000},
	}
	provider.nodes = []model.Node{
		{Name: "cn-10", State: model.NodeStateNotDeployed, Cores: 8},
	}

	m := newTestManager(managerConfig(), provider, nil)
	m.idleStreak = 2 // carried over from earlier quiet cycles

	require.NoError(t, m.runOnce(context.Background()))

	status := m.Status()
	assert.Equal(t, EventActionGrow, status.LastDecision)
	assert.Equal(t, 2, status.IdleStreak, "a grow cycle never touches the idle streak")
	assert.Equal(t, int64(150), status.LastMetrics.OutstandingCalls)
	assert.NotEmpty(t, status.LastCycleID)

	assert.Equal(t, []string{
		"query_jobs",
		"query_nodes:",
		"start:cn-10",
		"set_state:Online:cn-10",
	}, provider.callLog())
}

func TestManager_GrowNoopWhenPoolExhausted(t *testing.T) {
	provider := newFakeProvider()
	provider.jobs = []model.Job{
		{ID: "job-1", State: model.JobStateRunning, TotalCalls: 500, OutstandingCalls: 400, Allocation: 2, CallDurationMs: 1500},
	}
	// Every node is already active; nothing left to grow into.
	provider.nodes = []model.Node{
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
		{Name: "cn-02", State: model.NodeStateProvisioning, Cores: 8},
	}

	m := newTestManager(managerConfig(), provider, nil)
	require.NoError(t, m.runOnce(context.Background()))

	status := m.Status()
	assert.Equal(t, EventActionGrowNoop, status.LastDecision)
	assert.Empty(t, status.LastResults)

	assert.Equal(t, []string{"query_jobs", "query_nodes:"}, provider.callLog())
}

func TestManager_JobQueryFailureRunsEmptyCycle(t *testing.T) {
	provider := newFakeProvider()
	provider.queryJobsErr = fmt.Errorf("grid manager unavailable")
	provider.nodes = []model.Node{
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
	}

	m := newTestManager(managerConfig(), provider, nil)
	require.NoError(t, m.runOnce(context.Background()), "a failed job query must not fail the cycle")

	// The empty job set trips nothing; the idle online node advances the streak.
	status := m.Status()
	assert.Equal(t, "none", status.LastDecision)
	assert.Equal(t, 1, status.IdleStreak)
	assert.Equal(t, ClusterMetrics{}, status.LastMetrics)

	assert.Equal(t, []string{"query_jobs", "query_nodes:Online"}, provider.callLog())
}

func TestManager_ShrinkAfterDebounce(t *testing.T) {
	provider := newFakeProvider()
	provider.nodes = []model.Node{
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
		{Name: "cn-02", State: model.NodeStateOnline, Cores: 8},
	}

	m := newTestManager(managerConfig(), provider, nil) // debounce 2
	ctx := context.Background()

	// Two quiet cycles accumulate the streak without acting.
	require.NoError(t, m.runOnce(ctx))
	assert.Equal(t, 1, m.Status().IdleStreak)
	require.NoError(t, m.runOnce(ctx))
	assert.Equal(t, 2, m.Status().IdleStreak)
	assert.Equal(t, "none", m.Status().LastDecision)

	// The third pushes the counter past the debounce and shrinks.
	require.NoError(t, m.runOnce(ctx))

	status := m.Status()
	assert.Equal(t, EventActionShrink, status.LastDecision)
	assert.Equal(t, 0, status.IdleStreak, "streak restarts after a shrink")
	require.Len(t, status.LastResults, 2)
	assert.Equal(t, ActionShrinkSetOffline, status.LastResults[0].Action)
	assert.Equal(t, ActionShrinkStop, status.LastResults[1].Action)

	log := provider.callLog()
	require.GreaterOrEqual(t, len(log), 2)
	assert.Equal(t, "set_state:Offline:cn-01,cn-02", log[len(log)-2])
	assert.Equal(t, "stop:cn-01,cn-02", log[len(log)-1])
}

func TestManager_StreakResetsAfterFailedShrink(t *testing.T) {
	provider := newFakeProvider()
	provider.stopErr = fmt.Errorf("power controller timeout")
	provider.nodes = []model.Node{
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
	}

	cfg := managerConfig()
	cfg.Scaler.ShrinkDebounce = 0
	m := newTestManager(cfg, provider, nil)

	require.NoError(t, m.runOnce(context.Background()))

	// The stop failed, but the attempt still restarts the streak so the next
	// trip needs fresh consecutive idle observations.
	status := m.Status()
	assert.Equal(t, EventActionShrink, status.LastDecision)
	assert.Equal(t, 0, status.IdleStreak)
	require.Len(t, status.LastResults, 2)
	assert.True(t, status.LastResults[1].Failed())
}

func TestManager_BusyNodeBreaksStreak(t *testing.T) {
	provider := newFakeProvider()
	provider.nodes = []model.Node{
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
	}

	cfg := managerConfig()
	cfg.Scaler.ShrinkDebounce = 5
	m := newTestManager(cfg, provider, nil)
	ctx := context.Background()

	require.NoError(t, m.runOnce(ctx))
	require.NoError(t, m.runOnce(ctx))
	assert.Equal(t, 2, m.Status().IdleStreak)

	// A job lands on the node: the streak hard-resets, it does not decrement.
	provider.activeJobs["cn-01"] = 3
	require.NoError(t, m.runOnce(ctx))
	assert.Equal(t, 0, m.Status().IdleStreak)
	assert.Equal(t, "none", m.Status().LastDecision)
}

func TestManager_CountFailureReadsAsBusy(t *testing.T) {
	provider := newFakeProvider()
	provider.countErr = fmt.Errorf("node agent unreachable")
	provider.nodes = []model.Node{
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
	}

	cfg := managerConfig()
	cfg.Scaler.ShrinkDebounce = 0
	m := newTestManager(cfg, provider, nil)

	require.NoError(t, m.runOnce(context.Background()))

	// Unknown occupancy means no shrink, ever.
	assert.Equal(t, "none", m.Status().LastDecision)
	assert.Equal(t, 0, m.Status().IdleStreak)
}

func TestManager_HeadNodeNeverShrinks(t *testing.T) {
	provider := newFakeProvider()
	provider.nodes = []model.Node{
		{Name: "head-01", State: model.NodeStateOnline, Cores: 16, IsHeadNode: true},
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
	}

	cfg := managerConfig()
	cfg.Scaler.ShrinkDebounce = 0
	cfg.Scaler.ExcludeHeadNode = true
	m := newTestManager(cfg, provider, nil)

	require.NoError(t, m.runOnce(context.Background()))

	status := m.Status()
	assert.Equal(t, EventActionShrink, status.LastDecision)

	log := provider.callLog()
	assert.Contains(t, log, "set_state:Offline:cn-01")
	assert.Contains(t, log, "stop:cn-01")
	for _, call := range log {
		assert.NotContains(t, call, "head-01")
	}
}

func TestManager_StreakPersistsAcrossRestart(t *testing.T) {
	client, stateRepo := newMiniredisState(t)

	provider := newFakeProvider()
	provider.nodes = []model.Node{
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
	}

	cfg := managerConfig()
	cfg.Scaler.ShrinkDebounce = 9
	cfg.Scaler.PersistState = true

	history := service.NewHistoryService(nil)
	exec := NewExecutor(provider, history, nil, cfg)
	m1 := NewManager(cfg, provider, exec, client, stateRepo, nil)

	ctx := context.Background()
	require.NoError(t, m1.runOnce(ctx))
	require.NoError(t, m1.runOnce(ctx))

	streak, err := stateRepo.GetIdleStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)

	// A restarted manager picks the streak back up instead of starting over.
	m2 := NewManager(cfg, provider, exec, client, stateRepo, nil)
	assert.Equal(t, 2, m2.Status().IdleStreak)
}

func TestManager_PauseSurvivesRestart(t *testing.T) {
	client, stateRepo := newMiniredisState(t)

	cfg := managerConfig()
	provider := newFakeProvider()
	history := service.NewHistoryService(nil)
	exec := NewExecutor(provider, history, nil, cfg)

	m1 := NewManager(cfg, provider, exec, client, stateRepo, nil)
	require.True(t, m1.IsEnabled())
	m1.Disable(context.Background())
	require.False(t, m1.IsEnabled())

	// The configuration still says enabled, but the operator's pause wins.
	m2 := NewManager(cfg, provider, exec, client, stateRepo, nil)
	assert.False(t, m2.IsEnabled())

	m2.Enable(context.Background())
	m3 := NewManager(cfg, provider, exec, client, stateRepo, nil)
	assert.True(t, m3.IsEnabled())
}

func TestManager_SecondInstanceSkipsLockedCycle(t *testing.T) {
	client, stateRepo := newMiniredisState(t)

	provider := newFakeProvider()
	cfg := managerConfig()
	m := newTestManagerWithClient(cfg, provider, client, stateRepo)

	// Another replica holds the control loop lock.
	other := NewRedisDistributedLock(client, "")
	acquired, err := other.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)
	defer other.Unlock(context.Background())

	require.NoError(t, m.runOnce(context.Background()))
	assert.Empty(t, provider.callLog(), "a skipped cycle makes no cluster calls")
}

func newTestManagerWithClient(cfg *config.Config, provider *fakeProvider, client *redis.Client, stateRepo *redisstore.ScalerStateRepository) *Manager {
	history := service.NewHistoryService(nil)
	exec := NewExecutor(provider, history, nil, cfg)
	return NewManager(cfg, provider, exec, client, stateRepo, nil)
}

func TestManager_TriggerRequiresRunningLoop(t *testing.T) {
	provider := newFakeProvider()
	m := newTestManager(managerConfig(), provider, nil)

	assert.False(t, m.Trigger(), "trigger before start is refused")

	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()), "second start is rejected")

	require.True(t, m.Trigger())
	require.Eventually(t, func() bool {
		return m.Status().LastCycleID != ""
	}, 2*time.Second, 10*time.Millisecond, "triggered cycle never ran")

	require.NoError(t, m.Stop())
	assert.False(t, m.Trigger(), "trigger after stop is refused")
	require.Error(t, m.Stop(), "second stop is rejected")
}

func TestManager_LastRunPersisted(t *testing.T) {
	client, stateRepo := newMiniredisState(t)

	provider := newFakeProvider()
	provider.nodes = []model.Node{
		{Name: "cn-01", State: model.NodeStateOnline, Cores: 8},
	}

	cfg := managerConfig()
	cfg.Scaler.ShrinkDebounce = 0
	m := newTestManagerWithClient(cfg, provider, client, stateRepo)

	ctx := context.Background()
	require.NoError(t, m.runOnce(ctx))

	run, err := stateRepo.GetLastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, EventActionShrink, run.Action)
	assert.Equal(t, []string{"cn-01"}, run.Nodes)
	assert.Equal(t, m.Status().LastCycleID, run.CycleID)
}
