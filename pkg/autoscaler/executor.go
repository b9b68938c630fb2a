package autoscaler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gridpool/internal/model"
	"gridpool/internal/service"
	"gridpool/pkg/config"
	"gridpool/pkg/interfaces"
	"gridpool/pkg/logger"
	"gridpool/pkg/notification"
	asynqqueue "gridpool/pkg/queue/asynq"
	storemodel "gridpool/pkg/store/mysql/model"
)

// CycleInfo carries the per-cycle context the executor stamps onto every
// recorded event.
type CycleInfo struct {
	ID         string
	Reason     string
	Metrics    ClusterMetrics
	QueuedJobs int64
}

// Executor performs the node state transitions a decision calls for and
// records the outcome. Action failures are logged and captured in the
// returned results, never retried within the cycle.
type Executor struct {
	provider interfaces.ClusterProvider
	history  *service.HistoryService
	queue    *asynqqueue.Manager // nil when Redis is disabled
	cfg      *config.Config
}

// NewExecutor creates executor
func NewExecutor(
	provider interfaces.ClusterProvider,
	history *service.HistoryService,
	queue *asynqqueue.Manager,
	cfg *config.Config,
) *Executor {
	return &Executor{
		provider: provider,
		history:  history,
		queue:    queue,
		cfg:      cfg,
	}
}

// ExecuteGrow brings the planned nodes into service. Offline nodes are set
// online first: they carry no provisioning delay. Undeployed nodes are
// started and then set online. One grow event summarizes the cycle.
func (e *Executor) ExecuteGrow(ctx context.Context, cycle *CycleInfo, plan GrowPlan) []ActionResult {
	results := make([]ActionResult, 0, 3)

	// 1. Return offline nodes to service.
	if len(plan.Offline) > 0 {
		names := model.NodeNames(plan.Offline)
		results = append(results, e.runAction(ctx, ActionGrowSetOnline, names, func() error {
			return e.provider.SetNodeState(ctx, names, model.NodeStateOnline)
		}))
	}

	// 2. Start undeployed nodes, then flag them online so the pool picks
	// them up as soon as provisioning completes.
	if len(plan.Undeployed) > 0 {
		names := model.NodeNames(plan.Undeployed)
		results = append(results, e.runAction(ctx, ActionGrowStart, names, func() error {
			return e.provider.StartNodes(ctx, names, true)
		}))
		results = append(results, e.runAction(ctx, ActionGrowSetOnline, names, func() error {
			return e.provider.SetNodeState(ctx, names, model.NodeStateOnline)
		}))
	}

	e.recordEvent(ctx, cycle, EventActionGrow, plan.SelectedNames(), results)
	return results
}

// RecordGrowNoop records a grow decision that found no usable candidates.
func (e *Executor) RecordGrowNoop(ctx context.Context, cycle *CycleInfo) {
	logger.WarnCtx(ctx, "grow triggered but no candidate nodes are available (reason: %s)", cycle.Reason)
	e.recordEvent(ctx, cycle, EventActionGrowNoop, nil, nil)
}

// ExecuteShrink takes the idle nodes out of service: set offline first so
// the pool stops assigning calls, then stop. One shrink event summarizes
// the cycle.
func (e *Executor) ExecuteShrink(ctx context.Context, cycle *CycleInfo, idleNodes []model.Node) []ActionResult {
	names := model.NodeNames(idleNodes)
	results := make([]ActionResult, 0, 2)

	results = append(results, e.runAction(ctx, ActionShrinkSetOffline, names, func() error {
		return e.provider.SetNodeState(ctx, names, model.NodeStateOffline)
	}))
	results = append(results, e.runAction(ctx, ActionShrinkStop, names, func() error {
		return e.provider.StopNodes(ctx, names, false, true)
	}))

	e.recordEvent(ctx, cycle, EventActionShrink, names, results)
	return results
}

// runAction invokes one provider operation and converts the outcome into an
// ActionResult. Failures are non-fatal for the cycle.
func (e *Executor) runAction(ctx context.Context, action string, nodes []string, fn func() error) ActionResult {
	start := time.Now()
	result := ActionResult{
		Action:  action,
		Nodes:   nodes,
		Outcome: ActionOutcomeSuccess,
	}

	logger.InfoCtx(ctx, "executing %s for %d node(s): %s", action, len(nodes), strings.Join(nodes, ","))

	if err := fn(); err != nil {
		result.Outcome = ActionOutcomeFailure
		result.Detail = err.Error()
		logger.ErrorCtx(ctx, "%s failed for nodes %s: %v", action, strings.Join(nodes, ","), err)
	}

	result.Duration = time.Since(start)
	return result
}

// recordEvent writes one history row per cycle action and queues the
// webhook notification. Recording is best-effort: a failed insert or
// enqueue never fails the cycle.
func (e *Executor) recordEvent(ctx context.Context, cycle *CycleInfo, action string, nodes []string, results []ActionResult) {
	outcome := ActionOutcomeSuccess
	var failures []string
	for _, r := range results {
		if r.Failed() {
			outcome = ActionOutcomeFailure
			failures = append(failures, fmt.Sprintf("%s: %s", r.Action, r.Detail))
		}
	}
	detail := strings.Join(failures, "; ")

	event := &storemodel.ScaleEvent{
		EventID:          generateEventID(),
		CycleID:          cycle.ID,
		Timestamp:        time.Now(),
		Action:           action,
		Outcome:          string(outcome),
		NodeGroup:        e.cfg.Scaler.NodeGroup,
		Nodes:            storemodel.JSONStringArray(nodes),
		NodeCount:        len(nodes),
		Reason:           cycle.Reason,
		Detail:           detail,
		OutstandingCalls: cycle.Metrics.OutstandingCalls,
		GridMinutes:      cycle.Metrics.GridRemainingMinutes,
		QueuedJobs:       cycle.QueuedJobs,
	}

	if err := e.history.Record(ctx, event); err != nil {
		logger.ErrorCtx(ctx, "failed to record scale event %s: %v", event.EventID, err)
	}

	if e.queue != nil {
		msg := &notification.ScaleEventMessage{
			EventID:          event.EventID,
			CycleID:          event.CycleID,
			Timestamp:        event.Timestamp,
			Action:           event.Action,
			Outcome:          event.Outcome,
			NodeGroup:        event.NodeGroup,
			Nodes:            nodes,
			Reason:           event.Reason,
			Detail:           event.Detail,
			OutstandingCalls: event.OutstandingCalls,
			GridMinutes:      event.GridMinutes,
			QueuedJobs:       event.QueuedJobs,
		}
		if err := e.queue.EnqueueScaleEvent(ctx, msg); err != nil {
			logger.ErrorCtx(ctx, "failed to queue notification for event %s: %v", event.EventID, err)
		}
	}
}

// generateEventID generates event ID
func generateEventID() string {
	return fmt.Sprintf("evt_%d", time.Now().UnixNano())
}
