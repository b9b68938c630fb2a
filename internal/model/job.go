package model

// JobState grid job lifecycle state
type JobState string

const (
	JobStateRunning JobState = "Running" // Running - has allocated cores and is executing calls
	JobStateQueued  JobState = "Queued"  // Queued - submitted, waiting for an allocation
	JobStateOther   JobState = "Other"   // Other - finished/failed/canceled, outside scaling interest
)

// Job is a point-in-time snapshot of a grid job as reported by the cluster
// manager. Snapshots are never mutated; every cycle queries a fresh set.
type Job struct {
	ID               string   `json:"id"`
	Template         string   `json:"template,omitempty"`
	State            JobState `json:"state"`
	CallDurationMs   float64  `json:"call_duration_ms"`  // Average duration of one call (milliseconds)
	TotalCalls       int64    `json:"total_calls"`       // Total calls in the job
	OutstandingCalls int64    `json:"outstanding_calls"` // Calls not yet processed
	Allocation       int64    `json:"allocation"`        // Cores currently allocated to the job
}

// FilterJobsByState returns the subset of jobs in the given state.
func FilterJobsByState(jobs []Job, state JobState) []Job {
	var out []Job
	for _, j := range jobs {
		if j.State == state {
			out = append(out, j)
		}
	}
	return out
}

// CountJobsByState returns how many jobs in the snapshot are in the given state
func CountJobsByState(jobs []Job, state JobState) int64 {
	var n int64
	for _, j := range jobs {
		if j.State == state {
			n++
		}
	}
	return n
}
