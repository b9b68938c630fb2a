package hpc

import (
	"context"

	"gridpool/internal/model"
	"gridpool/pkg/logger"
)

// Grid manager wire states. The manager reports more lifecycle states than
// the scaler distinguishes; the mapper collapses them.
const (
	WireNodeStateOnline       = "Online"
	WireNodeStateOffline      = "Offline"
	WireNodeStateNotDeployed  = "NotDeployed"
	WireNodeStateProvisioning = "Provisioning"
	WireNodeStateStarting     = "Starting"

	WireJobStateRunning = "Running"
	WireJobStateQueued  = "Queued"
)

// mapWireNodeState converts a grid manager node state to a model state.
// Unknown states map to Other with a warning, never an error: a manager
// upgrade that adds a state must not break the scaler.
func mapWireNodeState(ctx context.Context, state string) model.NodeState {
	switch state {
	case WireNodeStateOnline:
		return model.NodeStateOnline
	case WireNodeStateOffline:
		return model.NodeStateOffline
	case WireNodeStateNotDeployed:
		return model.NodeStateNotDeployed
	case WireNodeStateProvisioning, WireNodeStateStarting:
		return model.NodeStateProvisioning
	default:
		logger.WarnCtx(ctx, "unknown node state %q from grid manager, treating as Other", state)
		return model.NodeStateOther
	}
}

// mapWireJobState converts a grid manager job state to a model state
func mapWireJobState(ctx context.Context, state string) model.JobState {
	switch state {
	case WireJobStateRunning:
		return model.JobStateRunning
	case WireJobStateQueued:
		return model.JobStateQueued
	default:
		logger.DebugCtx(ctx, "job state %q is outside scaling interest, treating as Other", state)
		return model.JobStateOther
	}
}

func mapJob(ctx context.Context, rec jobRecord) model.Job {
	return model.Job{
		ID:               rec.ID,
		Template:         rec.Template,
		State:            mapWireJobState(ctx, rec.State),
		CallDurationMs:   rec.AvgCallDurationMs,
		TotalCalls:       rec.TotalCalls,
		OutstandingCalls: rec.OutstandingCalls,
		Allocation:       rec.AllocatedCores,
	}
}

func mapNode(ctx context.Context, rec nodeRecord) model.Node {
	return model.Node{
		Name:       rec.Name,
		Template:   rec.Template,
		State:      mapWireNodeState(ctx, rec.State),
		Cores:      rec.Cores,
		MemoryMB:   rec.MemoryMB,
		IsHeadNode: rec.IsHeadNode,
	}
}
