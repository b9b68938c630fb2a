package autoscaler

import (
	"context"

	"gridpool/pkg/config"
	"gridpool/pkg/logger"
)

// EvaluateGrow runs the three independent grow checks against the cycle's
// metrics and queued-job count. The decision is the logical OR of the enabled
// checks; a threshold configured as 0 disables its check entirely. Every
// check logs its own comparison regardless of the others.
func EvaluateGrow(ctx context.Context, metrics ClusterMetrics, queuedJobs int64, cfg *config.ScalerConfig) GrowDecision {
	checks := []GrowCheck{
		evaluateCheck(CheckCallQueue, float64(metrics.OutstandingCalls), float64(cfg.CallQueueThreshold)),
		evaluateCheck(CheckGridMinutes, metrics.GridRemainingMinutes, cfg.GridMinutesThreshold),
		evaluateCheck(CheckQueuedJobs, float64(queuedJobs), float64(cfg.QueuedJobsThreshold)),
	}

	decision := GrowDecision{Checks: checks}
	for _, c := range checks {
		switch {
		case !c.Enabled:
			logger.DebugCtx(ctx, "grow check %s: disabled (threshold=0)", c.Name)
		case c.Tripped:
			logger.InfoCtx(ctx, "grow check %s: tripped (observed=%.2f, threshold=%.2f)",
				c.Name, c.Observed, c.Threshold)
			decision.Triggered = true
		default:
			logger.DebugCtx(ctx, "grow check %s: not tripped (observed=%.2f, threshold=%.2f)",
				c.Name, c.Observed, c.Threshold)
		}
	}

	return decision
}

// evaluateCheck compares one observed value against its threshold. The check
// trips when the enabled threshold is met or exceeded.
func evaluateCheck(name string, observed, threshold float64) GrowCheck {
	enabled := threshold > 0
	return GrowCheck{
		Name:      name,
		Observed:  observed,
		Threshold: threshold,
		Enabled:   enabled,
		Tripped:   enabled && observed >= threshold,
	}
}
