package autoscaler

import (
	"context"
	"math"

	"gridpool/internal/model"
	"gridpool/pkg/logger"
)

// Aggregate reduces a job snapshot into ClusterMetrics. Pure: no I/O, no
// stored state, an empty snapshot yields the zero value.
func Aggregate(jobs []model.Job) ClusterMetrics {
	var m ClusterMetrics

	for _, j := range jobs {
		m.TotalDurationMs += j.CallDurationMs
		m.TotalCalls += j.TotalCalls
		m.OutstandingCalls += j.OutstandingCalls
		// The allocation figure counts twice: once as in-flight calls and
		// once as grid cores. Both indicators derive from the same
		// capacity number reported by the manager.
		m.RunningCalls += j.Allocation
		m.AllocatedCores += j.Allocation
	}

	m.CompletedCalls = m.TotalCalls - m.OutstandingCalls
	m.AvgSecondsPerCall = round2(m.TotalDurationMs / 1000)

	remainingSeconds := m.AvgSecondsPerCall * float64(m.OutstandingCalls)
	// With no cores allocated there is no throughput to divide by; the
	// remaining-time indicators are defined as 0 in that case.
	if m.AllocatedCores > 0 {
		m.GridRemainingSeconds = round2(remainingSeconds / float64(m.AllocatedCores))
	}
	m.GridRemainingMinutes = round2(m.GridRemainingSeconds / 60)

	return m
}

// LogStatus emits the per-cycle metrics record. Observability only; nothing
// reads it back.
func (m ClusterMetrics) LogStatus(ctx context.Context) {
	logger.InfoCtx(ctx, "cluster metrics: calls=%d completed=%d outstanding=%d running=%d cores=%d avgSecPerCall=%.2f gridRemainingSec=%.2f gridRemainingMin=%.2f",
		m.TotalCalls, m.CompletedCalls, m.OutstandingCalls, m.RunningCalls,
		m.AllocatedCores, m.AvgSecondsPerCall, m.GridRemainingSeconds, m.GridRemainingMinutes)
}

// round2 rounds half away from zero to two decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
