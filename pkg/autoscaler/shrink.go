package autoscaler

import (
	"context"

	"gridpool/internal/model"
	"gridpool/pkg/logger"
)

// EvaluateShrink advances the idle streak with this cycle's observation and
// decides whether to act. Pure function of (idle set, prior counter,
// debounce): the manager owns the counter between cycles and stores the one
// returned in the decision. Invoked only on cycles where grow did not trip.
//
// A cycle without idle nodes hard-resets the streak to 0, however long it
// was. Shrink trips only when the advanced streak strictly exceeds the
// debounce, so debounce=3 requires a 4th consecutive idle observation.
func EvaluateShrink(ctx context.Context, idleNodes []model.Node, counter, debounce int) ShrinkDecision {
	if len(idleNodes) == 0 {
		if counter > 0 {
			logger.InfoCtx(ctx, "shrink: no idle nodes, idle streak reset (was %d)", counter)
		} else {
			logger.DebugCtx(ctx, "shrink: no idle nodes")
		}
		return ShrinkDecision{Counter: 0}
	}

	counter++
	triggered := counter > debounce
	if triggered {
		logger.InfoCtx(ctx, "shrink: %d idle nodes for %d consecutive cycles (debounce=%d), shrink triggered",
			len(idleNodes), counter, debounce)
	} else {
		logger.InfoCtx(ctx, "shrink: %d idle nodes, idle streak %d (debounce=%d)",
			len(idleNodes), counter, debounce)
	}

	return ShrinkDecision{
		Triggered: triggered,
		IdleNodes: idleNodes,
		Counter:   counter,
	}
}
