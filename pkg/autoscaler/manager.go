package autoscaler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gridpool/internal/model"
	"gridpool/pkg/capacity"
	"gridpool/pkg/config"
	"gridpool/pkg/interfaces"
	"gridpool/pkg/logger"
	redisstore "gridpool/pkg/store/redis"
)

// Manager drives the scaling control loop: one cycle per interval tick or
// manual trigger, serialized across replicas by the distributed lock. A
// cycle evaluates growth first and considers shrinking only when no growth
// is called for.
type Manager struct {
	cfg      *config.Config
	provider interfaces.ClusterProvider
	executor *Executor
	lock     DistributedLock
	state    *redisstore.ScalerStateRepository // nil when Redis is disabled
	advisor  *capacity.Advisor                 // nil when the capacity advisor is disabled

	mu        sync.RWMutex
	enabled   bool
	running   bool
	stopCh    chan struct{}
	triggerCh chan struct{}

	idleStreak   int
	lastRunTime  time.Time
	lastCycleID  string
	lastDecision string
	lastMetrics  ClusterMetrics
	lastResults  []ActionResult
}

// NewManager creates the scaling manager and restores persisted state:
// the pause flag survives any restart when Redis is on, the idle streak
// only when scaler.persist_state is also set.
func NewManager(
	cfg *config.Config,
	provider interfaces.ClusterProvider,
	executor *Executor,
	redisClient *redis.Client,
	stateRepo *redisstore.ScalerStateRepository,
	advisor *capacity.Advisor,
) *Manager {
	m := &Manager{
		cfg:      cfg,
		provider: provider,
		executor: executor,
		lock:     NewRedisDistributedLock(redisClient, controlLoopLockKey),
		state:    stateRepo,
		advisor:  advisor,
		enabled:  cfg.Scaler.Enabled,
	}

	m.restoreState(context.Background())
	return m
}

// restoreState loads the persisted pause flag and idle streak.
func (m *Manager) restoreState(ctx context.Context) {
	if m.state == nil {
		return
	}

	if enabled, found, err := m.state.GetEnabled(ctx); err != nil {
		logger.Warnf("failed to restore enabled flag, using configured value: %v", err)
	} else if found {
		m.enabled = enabled
		if !enabled {
			logger.Warn("scaler was paused before the restart and stays paused")
		}
	}

	if m.cfg.Scaler.PersistState {
		if streak, err := m.state.GetIdleStreak(ctx); err != nil {
			logger.Warnf("failed to restore idle streak, starting from 0: %v", err)
		} else if streak > 0 {
			m.idleStreak = streak
			logger.Infof("restored idle streak: %d", streak)
		}
	}
}

// Start launches the control loop
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("scaler is already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.triggerCh = make(chan struct{}, 1)
	stopCh, triggerCh := m.stopCh, m.triggerCh
	m.mu.Unlock()

	logger.InfoCtx(ctx, "starting scaler for node group %s, interval: %d seconds, provider: %s",
		m.cfg.Scaler.NodeGroup, m.cfg.Scaler.Interval, m.provider.Name())

	go m.controlLoop(ctx, stopCh, triggerCh)

	return nil
}

// Stop halts the control loop. A cycle already in flight finishes.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return fmt.Errorf("scaler is not running")
	}

	close(m.stopCh)
	m.triggerCh = nil
	m.running = false

	logger.Info("scaler stopped")
	return nil
}

// controlLoop runs cycles strictly one at a time: interval ticks and manual
// triggers share the same goroutine.
func (m *Manager) controlLoop(ctx context.Context, stopCh, triggerCh <-chan struct{}) {
	ticker := time.NewTicker(time.Duration(m.cfg.Scaler.Interval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !m.IsEnabled() {
				logger.DebugCtx(ctx, "scaler is paused, skipping cycle")
				continue
			}
			if err := m.runOnce(ctx); err != nil {
				logger.ErrorCtx(ctx, "scaling cycle failed: %v", err)
			}
		case <-triggerCh:
			if !m.IsEnabled() {
				logger.WarnCtx(ctx, "manual trigger ignored, scaler is paused")
				continue
			}
			if err := m.runOnce(ctx); err != nil {
				logger.ErrorCtx(ctx, "scaling cycle failed (trigger): %v", err)
			}
		}
	}
}

// Trigger schedules an immediate cycle on the control loop goroutine.
// Returns false when the loop is not running. A trigger that arrives while
// one is already pending collapses into it.
func (m *Manager) Trigger() bool {
	m.mu.RLock()
	running := m.running
	ch := m.triggerCh
	m.mu.RUnlock()

	if !running || ch == nil {
		return false
	}

	select {
	case ch <- struct{}{}:
	default:
	}
	return true
}

// runOnce executes one scaling cycle under the distributed lock.
func (m *Manager) runOnce(ctx context.Context) error {
	cycleID := uuid.New().String()
	ctx = logger.WithTraceID(ctx, cycleID)

	acquired, err := m.lock.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	if !acquired {
		logger.DebugCtx(ctx, "cycle already running on another instance, skipping")
		return nil
	}
	defer func() {
		if err := m.lock.Unlock(ctx); err != nil {
			logger.ErrorCtx(ctx, "failed to release distributed lock: %v", err)
		}
	}()

	m.mu.Lock()
	m.lastRunTime = time.Now()
	m.lastCycleID = cycleID
	m.mu.Unlock()

	logger.InfoCtx(ctx, "scaling cycle started")

	// 1. Snapshot the job set. A failed query reads as an empty set so a
	// transient manager outage cannot stall the loop.
	jobs, err := m.provider.QueryJobs(ctx, m.cfg.Scaler.JobTemplate,
		[]model.JobState{model.JobStateRunning, model.JobStateQueued})
	if err != nil {
		logger.WarnCtx(ctx, "job query failed, treating job set as empty: %v", err)
		jobs = nil
	}
	runningJobs := model.FilterJobsByState(jobs, model.JobStateRunning)
	queuedJobs := model.CountJobsByState(jobs, model.JobStateQueued)

	// 2. Reduce to cluster metrics.
	metrics := Aggregate(runningJobs)
	metrics.LogStatus(ctx)

	m.mu.Lock()
	m.lastMetrics = metrics
	m.mu.Unlock()

	// 3. Evaluate growth; shrinking is considered only when growth is not.
	decision := EvaluateGrow(ctx, metrics, queuedJobs, &m.cfg.Scaler)

	cycle := &CycleInfo{
		ID:         cycleID,
		Reason:     decision.Reason(),
		Metrics:    metrics,
		QueuedJobs: queuedJobs,
	}

	if decision.Triggered {
		m.runGrow(ctx, cycle)
	} else {
		m.runShrink(ctx, cycle)
	}

	return nil
}

// runGrow selects and activates growth candidates for a tripped decision.
// Growth leaves the idle streak untouched: only a non-idle observation or a
// shrink resets it.
func (m *Manager) runGrow(ctx context.Context, cycle *CycleInfo) {
	pool, err := m.provider.QueryNodes(ctx, m.cfg.Scaler.NodeGroup, m.cfg.Scaler.NodeTemplate, "")
	if err != nil {
		logger.WarnCtx(ctx, "node query failed, treating pool as empty: %v", err)
		pool = nil
	}

	plan := SelectGrowthNodes(ctx, pool, &m.cfg.Scaler)
	if plan.Empty() {
		m.executor.RecordGrowNoop(ctx, cycle)
		m.finishCycle(ctx, cycle, EventActionGrowNoop, nil, nil)
		return
	}

	m.logAdvisories(ctx, plan)

	results := m.executor.ExecuteGrow(ctx, cycle, plan)
	m.finishCycle(ctx, cycle, EventActionGrow, plan.SelectedNames(), results)
}

// runShrink advances the idle streak and takes the idle set out of service
// once the streak passes the debounce.
func (m *Manager) runShrink(ctx context.Context, cycle *CycleInfo) {
	online, err := m.provider.QueryNodes(ctx, m.cfg.Scaler.NodeGroup, m.cfg.Scaler.NodeTemplate, model.NodeStateOnline)
	if err != nil {
		logger.WarnCtx(ctx, "node query failed, treating online set as empty: %v", err)
		online = nil
	}
	if m.cfg.Scaler.ExcludeHeadNode {
		online = model.ExcludeHeadNodes(online)
	}

	idle := m.collectIdleNodes(ctx, online)

	m.mu.RLock()
	streak := m.idleStreak
	m.mu.RUnlock()

	decision := EvaluateShrink(ctx, idle, streak, m.cfg.Scaler.ShrinkDebounce)

	newStreak := decision.Counter
	if decision.Triggered {
		cycle.Reason = fmt.Sprintf("idle streak %d exceeds debounce %d", decision.Counter, m.cfg.Scaler.ShrinkDebounce)
		results := m.executor.ExecuteShrink(ctx, cycle, decision.IdleNodes)
		// The streak restarts after a shrink attempt, failed or not.
		newStreak = 0
		m.finishCycle(ctx, cycle, EventActionShrink, model.NodeNames(decision.IdleNodes), results)
	} else {
		m.mu.Lock()
		m.lastDecision = "none"
		m.lastResults = nil
		m.mu.Unlock()
	}

	m.setIdleStreak(ctx, newStreak)
}

// collectIdleNodes keeps the online nodes with no assigned jobs. A failed
// count reads as busy: never shrink a node we cannot see into.
func (m *Manager) collectIdleNodes(ctx context.Context, online []model.Node) []model.Node {
	idle := make([]model.Node, 0, len(online))
	for _, node := range online {
		count, err := m.provider.CountActiveJobs(ctx, node.Name)
		if err != nil {
			logger.WarnCtx(ctx, "failed to count active jobs on %s, treating node as busy: %v", node.Name, err)
			continue
		}
		if count > 0 {
			logger.DebugCtx(ctx, "node %s: skip shrink candidate, (active_jobs=%d)", node.Name, count)
			continue
		}
		idle = append(idle, node)
	}
	return idle
}

// logAdvisories surfaces the cached spot guidance for the templates a grow
// touches. Advisory only, never part of the decision.
func (m *Manager) logAdvisories(ctx context.Context, plan GrowPlan) {
	if m.advisor == nil {
		return
	}

	seen := make(map[string]struct{})
	for _, nodes := range [][]model.Node{plan.Offline, plan.Undeployed} {
		for _, node := range nodes {
			if node.Template == "" {
				continue
			}
			if _, ok := seen[node.Template]; ok {
				continue
			}
			seen[node.Template] = struct{}{}

			if adv, ok := m.advisor.Advisory(node.Template); ok {
				logger.InfoCtx(ctx, "spot capacity advisory for template %s: %s score=%d price=$%.4f/hr",
					node.Template, adv.InstanceType, adv.Score, adv.Price)
			}
		}
	}
}

// finishCycle stores the cycle outcome for status reporting and persists
// the last-run summary.
func (m *Manager) finishCycle(ctx context.Context, cycle *CycleInfo, action string, nodes []string, results []ActionResult) {
	m.mu.Lock()
	m.lastDecision = action
	m.lastResults = results
	m.mu.Unlock()

	if m.state != nil {
		run := &redisstore.LastRun{
			CycleID:   cycle.ID,
			Timestamp: time.Now(),
			Action:    action,
			Nodes:     nodes,
		}
		if err := m.state.SaveLastRun(ctx, run); err != nil {
			logger.WarnCtx(ctx, "failed to persist last run: %v", err)
		}
	}
}

// setIdleStreak updates the in-memory streak and persists it when
// configured to.
func (m *Manager) setIdleStreak(ctx context.Context, streak int) {
	m.mu.Lock()
	m.idleStreak = streak
	m.mu.Unlock()

	if m.state != nil && m.cfg.Scaler.PersistState {
		if err := m.state.SetIdleStreak(ctx, streak); err != nil {
			logger.WarnCtx(ctx, "failed to persist idle streak: %v", err)
		}
	}
}

// Enable resumes the scaler and persists the flag
func (m *Manager) Enable(ctx context.Context) {
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
	logger.InfoCtx(ctx, "scaler enabled")

	m.persistEnabled(ctx, true)
}

// Disable pauses the scaler and persists the flag. The loop keeps ticking
// but cycles are skipped until Enable.
func (m *Manager) Disable(ctx context.Context) {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
	logger.InfoCtx(ctx, "scaler disabled")

	m.persistEnabled(ctx, false)
}

func (m *Manager) persistEnabled(ctx context.Context, enabled bool) {
	if m.state == nil {
		return
	}
	if err := m.state.SetEnabled(ctx, enabled); err != nil {
		logger.WarnCtx(ctx, "failed to persist enabled flag: %v", err)
	}
}

// IsEnabled reports whether cycles currently run
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// IsRunning reports whether the control loop is active
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Status snapshots the manager for the API
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ActionResult, len(m.lastResults))
	copy(results, m.lastResults)

	return Status{
		Enabled:      m.enabled,
		Running:      m.running,
		Provider:     m.provider.Name(),
		NodeGroup:    m.cfg.Scaler.NodeGroup,
		Interval:     m.cfg.Scaler.Interval,
		IdleStreak:   m.idleStreak,
		Debounce:     m.cfg.Scaler.ShrinkDebounce,
		LastRunTime:  m.lastRunTime,
		LastCycleID:  m.lastCycleID,
		LastDecision: m.lastDecision,
		LastMetrics:  m.lastMetrics,
		LastResults:  results,
	}
}
