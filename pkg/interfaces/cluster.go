package interfaces

import (
	"context"

	"gridpool/internal/model"
)

// ClusterProvider binds the scaler to an external cluster manager.
// Implementations exist for the HPC grid manager REST API and for
// Kubernetes-backed pools; the decision engine only ever sees this interface.
type ClusterProvider interface {
	// Name identifies the provider in logs and status output
	Name() string

	// QueryJobs returns jobs matching the optional template filter and state
	// set. Zero matches is an empty slice, never an error.
	QueryJobs(ctx context.Context, templateFilter string, states []model.JobState) ([]model.Job, error)

	// QueryNodes returns nodes in the named group, optionally filtered by
	// template and lifecycle state. An empty state means all states.
	QueryNodes(ctx context.Context, group, templateFilter string, state model.NodeState) ([]model.Node, error)

	// CountActiveJobs returns the number of jobs currently assigned to a node
	CountActiveJobs(ctx context.Context, nodeName string) (int, error)

	// SetNodeState requests a lifecycle transition to Online or Offline.
	// The request is idempotent on the manager side; setting a node to its
	// current state is a no-op there.
	SetNodeState(ctx context.Context, nodes []string, target model.NodeState) error

	// StartNodes deploys/powers on nodes. The synchronous variant
	// (async=false) blocks until the manager reports completion or failure.
	StartNodes(ctx context.Context, nodes []string, async bool) error

	// StopNodes powers off/deallocates nodes. force skips graceful teardown.
	StopNodes(ctx context.Context, nodes []string, force, async bool) error
}
