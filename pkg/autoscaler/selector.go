package autoscaler

import (
	"context"
	"math"
	"sort"

	"gridpool/internal/model"
	"gridpool/pkg/config"
	"gridpool/pkg/logger"
)

// growStateRank orders candidate states for selection. Offline nodes are
// already deployed and sort ahead of NotDeployed ones.
var growStateRank = map[model.NodeState]int{
	model.NodeStateOffline:     0,
	model.NodeStateNotDeployed: 1,
}

// SelectGrowthNodes turns the node pool into a GrowPlan: it sizes the growth
// from the pool's current activity, picks the cheapest most-ready candidates,
// and routes each through the lifecycle path its state needs. Pure except for
// logging; invoked only on cycles where grow tripped.
func SelectGrowthNodes(ctx context.Context, pool []model.Node, cfg *config.ScalerConfig) GrowPlan {
	plan := GrowPlan{}

	// 1. Partition the pool into grow candidates and already-active nodes
	var candidates []model.Node
	for _, n := range pool {
		switch {
		case n.State.IsGrowCandidate():
			candidates = append(candidates, n)
		case n.State.IsActive():
			plan.ActiveCount++
		}
	}
	plan.CandidateCount = len(candidates)

	// No deployable candidates means the pool is at full capacity; that is a
	// logged no-op, not an error.
	if len(candidates) == 0 {
		logger.InfoCtx(ctx, "grow selection: no deployable candidates (pool=%d, active=%d), cluster at full capacity",
			len(pool), plan.ActiveCount)
		return plan
	}

	// 2. Growth size: a grow from zero active capacity uses the larger
	// initial count, every later grow the incremental one
	if plan.ActiveCount > 0 {
		plan.BaseCount = cfg.IncrementalGrowCount
	} else {
		plan.BaseCount = cfg.InitialGrowCount
	}

	// 3. Apply the configured extra-growth percentage
	plan.TargetCount = applyGrowthRatio(plan.BaseCount, cfg.ExtraGrowRatio)

	// 4. Sort ascending by (state, cores, memory): smaller nodes first,
	// Offline ahead of NotDeployed
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if growStateRank[a.State] != growStateRank[b.State] {
			return growStateRank[a.State] < growStateRank[b.State]
		}
		if a.Cores != b.Cores {
			return a.Cores < b.Cores
		}
		return a.MemoryMB < b.MemoryMB
	})

	selected := candidates
	if len(selected) > plan.TargetCount {
		selected = selected[:plan.TargetCount]
	}

	// 5. Split by lifecycle path
	for _, n := range selected {
		if n.State == model.NodeStateOffline {
			plan.Offline = append(plan.Offline, n)
		} else {
			plan.Undeployed = append(plan.Undeployed, n)
		}
	}

	logger.InfoCtx(ctx, "grow selection: active=%d candidates=%d base=%d target=%d offline=%d undeployed=%d",
		plan.ActiveCount, plan.CandidateCount, plan.BaseCount, plan.TargetCount,
		len(plan.Offline), len(plan.Undeployed))

	return plan
}

// applyGrowthRatio scales count by (100+ratio)%, rounding half up.
// A ratio of 10 on a base of 10 yields 11.
func applyGrowthRatio(count, ratio int) int {
	if ratio <= 0 {
		return count
	}
	scaled := float64(count) * float64(100+ratio) / 100
	return int(math.Floor(scaled + 0.5))
}
