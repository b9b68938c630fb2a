package autoscaler

import (
	"strings"
	"time"

	"gridpool/internal/model"
)

// ClusterMetrics is the per-cycle reduction of the active job set into the
// scalar workload indicators the grow checks run against. Recomputed from
// scratch every cycle; an empty job set yields the zero value.
type ClusterMetrics struct {
	TotalDurationMs  float64 `json:"totalDurationMs"`  // Sum of per-job average call durations (ms)
	TotalCalls       int64   `json:"totalCalls"`       // Calls across all jobs
	OutstandingCalls int64   `json:"outstandingCalls"` // Calls not yet processed
	CompletedCalls   int64   `json:"completedCalls"`   // TotalCalls - OutstandingCalls
	RunningCalls     int64   `json:"runningCalls"`     // Current allocations counted as in-flight calls
	AllocatedCores   int64   `json:"allocatedCores"`   // Current allocations counted as grid cores

	AvgSecondsPerCall    float64 `json:"avgSecondsPerCall"`
	GridRemainingSeconds float64 `json:"gridRemainingSeconds"` // Backlog drain estimate at current core throughput
	GridRemainingMinutes float64 `json:"gridRemainingMinutes"`
}

// Grow check names, also used in log lines and event reasons
const (
	CheckCallQueue   = "call_queue"
	CheckGridMinutes = "grid_minutes"
	CheckQueuedJobs  = "queued_jobs"
)

// GrowCheck is the recorded outcome of one threshold comparison
type GrowCheck struct {
	Name      string  `json:"name"`
	Observed  float64 `json:"observed"`
	Threshold float64 `json:"threshold"`
	Enabled   bool    `json:"enabled"` // A threshold configured as 0 is disabled
	Tripped   bool    `json:"tripped"`
}

// GrowDecision is the outcome of the grow evaluation: the OR of the enabled
// checks, with every individual comparison kept for auditing.
type GrowDecision struct {
	Triggered bool        `json:"triggered"`
	Checks    []GrowCheck `json:"checks"`
}

// Reason names the checks that tripped, for logs and event records
func (d GrowDecision) Reason() string {
	var tripped []string
	for _, c := range d.Checks {
		if c.Tripped {
			tripped = append(tripped, c.Name)
		}
	}
	if len(tripped) == 0 {
		return "no threshold tripped"
	}
	return "threshold tripped: " + strings.Join(tripped, ", ")
}

// GrowPlan is the node selection for a grow cycle: how many nodes were wanted,
// and the chosen set split by the lifecycle path each node needs.
type GrowPlan struct {
	ActiveCount    int `json:"activeCount"`    // Online/Provisioning nodes at selection time
	CandidateCount int `json:"candidateCount"` // NotDeployed/Offline nodes available
	BaseCount      int `json:"baseCount"`      // initial or incremental count, before uplift
	TargetCount    int `json:"targetCount"`    // BaseCount after the extra-growth uplift

	Offline    []model.Node `json:"offline,omitempty"`    // Fast path: set online only
	Undeployed []model.Node `json:"undeployed,omitempty"` // Full path: start, then set online
}

// Empty reports whether there is nothing to act on (pool at full capacity)
func (p GrowPlan) Empty() bool {
	return len(p.Offline) == 0 && len(p.Undeployed) == 0
}

// SelectedNames returns the names of every node in the plan, offline path
// first to mirror execution order.
func (p GrowPlan) SelectedNames() []string {
	names := make([]string, 0, len(p.Offline)+len(p.Undeployed))
	names = append(names, model.NodeNames(p.Offline)...)
	names = append(names, model.NodeNames(p.Undeployed)...)
	return names
}

// ShrinkDecision is the outcome of the shrink evaluation for one cycle.
// Counter carries the post-evaluation idle streak; the manager owns storing it.
type ShrinkDecision struct {
	Triggered bool         `json:"triggered"`
	IdleNodes []model.Node `json:"idleNodes,omitempty"`
	Counter   int          `json:"counter"`
}

// ActionOutcome result of one executor action
type ActionOutcome string

const (
	ActionOutcomeSuccess ActionOutcome = "success"
	ActionOutcomeFailure ActionOutcome = "failure"
)

// Executor action names
const (
	ActionGrowSetOnline    = "grow_set_online"
	ActionGrowStart        = "grow_start"
	ActionShrinkSetOffline = "shrink_set_offline"
	ActionShrinkStop       = "shrink_stop"
)

// ActionResult is the typed outcome of one lifecycle call. Failures carry the
// captured error detail; the control loop logs them and moves on, tests
// assert on them.
type ActionResult struct {
	Action   string        `json:"action"`
	Nodes    []string      `json:"nodes"`
	Outcome  ActionOutcome `json:"outcome"`
	Detail   string        `json:"detail,omitempty"` // Error text on failure
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the action did not complete
func (r ActionResult) Failed() bool {
	return r.Outcome == ActionOutcomeFailure
}

// Actions recorded as cycle-level events. Each cycle that acts (or decides
// to grow with nothing to act on) produces exactly one of these.
const (
	EventActionGrow     = "grow"
	EventActionGrowNoop = "grow_noop"
	EventActionShrink   = "shrink"
)

// Status is the manager's externally visible state snapshot
type Status struct {
	Enabled      bool      `json:"enabled"`
	Running      bool      `json:"running"` // Control loop is active
	Provider     string    `json:"provider"`
	NodeGroup    string    `json:"nodeGroup"`
	Interval     int       `json:"interval"`
	IdleStreak   int       `json:"idleStreak"`
	Debounce     int       `json:"debounce"`
	LastRunTime  time.Time `json:"lastRunTime"`
	LastCycleID  string    `json:"lastCycleId"`
	LastDecision string    `json:"lastDecision"` // grow, grow_noop, shrink, none

	LastMetrics ClusterMetrics `json:"lastMetrics"`
	LastResults []ActionResult `json:"lastResults,omitempty"`
}
