package service

import (
	"context"
	"fmt"

	"gridpool/internal/model"
	"gridpool/pkg/config"
	"gridpool/pkg/interfaces"
)

// NodeInventory is the pool snapshot served by the API: the node set plus
// per-state counts.
type NodeInventory struct {
	Total  int                     `json:"total"`
	Counts map[model.NodeState]int `json:"counts"`
	Nodes  []model.Node            `json:"nodes"`
}

// ClusterService exposes read-only cluster snapshots over the configured
// provider, scoped to the managed node group.
type ClusterService struct {
	provider interfaces.ClusterProvider
	cfg      *config.Config
}

// NewClusterService creates the cluster query service
func NewClusterService(provider interfaces.ClusterProvider, cfg *config.Config) *ClusterService {
	return &ClusterService{
		provider: provider,
		cfg:      cfg,
	}
}

// ProviderName identifies the underlying cluster provider
func (s *ClusterService) ProviderName() string {
	return s.provider.Name()
}

// Nodes returns the managed group's nodes, optionally filtered by state
func (s *ClusterService) Nodes(ctx context.Context, state model.NodeState) (*NodeInventory, error) {
	nodes, err := s.provider.QueryNodes(ctx, s.cfg.Scaler.NodeGroup, s.cfg.Scaler.NodeTemplate, state)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	counts := make(map[model.NodeState]int)
	for _, n := range nodes {
		counts[n.State]++
	}

	return &NodeInventory{
		Total:  len(nodes),
		Counts: counts,
		Nodes:  nodes,
	}, nil
}

// Jobs returns the grid jobs visible to the scaler. A nil state set defaults
// to the scaling-relevant states, Running and Queued.
func (s *ClusterService) Jobs(ctx context.Context, states []model.JobState) ([]model.Job, error) {
	if len(states) == 0 {
		states = []model.JobState{model.JobStateRunning, model.JobStateQueued}
	}

	jobs, err := s.provider.QueryJobs(ctx, s.cfg.Scaler.JobTemplate, states)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	return jobs, nil
}
