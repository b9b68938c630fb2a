package hpc

import (
	"context"
	"fmt"

	"gridpool/internal/model"
	"gridpool/pkg/config"
)

// Provider implements the cluster provider interface on the grid manager's
// management API.
type Provider struct {
	client *Client
}

// NewProvider creates an HPC grid manager provider
func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.Cluster.HPC.BaseURL == "" {
		return nil, fmt.Errorf("hpc base_url is not configured")
	}

	return &Provider{
		client: NewClient(&cfg.Cluster.HPC),
	}, nil
}

// Name identifies the provider in logs and status output
func (p *Provider) Name() string {
	return config.ProviderHPC
}

// QueryJobs returns jobs matching the template filter and state set
func (p *Provider) QueryJobs(ctx context.Context, templateFilter string, states []model.JobState) ([]model.Job, error) {
	wireStates := make([]string, 0, len(states))
	for _, s := range states {
		wireStates = append(wireStates, string(s))
	}

	records, err := p.client.ListJobs(ctx, templateFilter, wireStates)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	jobs := make([]model.Job, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, mapJob(ctx, rec))
	}
	return jobs, nil
}

// QueryNodes returns nodes in the group, optionally filtered by template and state
func (p *Provider) QueryNodes(ctx context.Context, group, templateFilter string, state model.NodeState) ([]model.Node, error) {
	records, err := p.client.ListNodes(ctx, group, templateFilter, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	nodes := make([]model.Node, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, mapNode(ctx, rec))
	}
	return nodes, nil
}

// CountActiveJobs returns the number of jobs currently assigned to a node
func (p *Provider) CountActiveJobs(ctx context.Context, nodeName string) (int, error) {
	count, err := p.client.ActiveJobCount(ctx, nodeName)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs on %s: %w", nodeName, err)
	}
	return count, nil
}

// SetNodeState requests a lifecycle transition to Online or Offline
func (p *Provider) SetNodeState(ctx context.Context, nodes []string, target model.NodeState) error {
	if err := p.client.SetNodeState(ctx, nodes, string(target)); err != nil {
		return fmt.Errorf("failed to set node state to %s: %w", target, err)
	}
	return nil
}

// StartNodes deploys/powers on nodes
func (p *Provider) StartNodes(ctx context.Context, nodes []string, async bool) error {
	if err := p.client.StartNodes(ctx, nodes, async); err != nil {
		return fmt.Errorf("failed to start nodes: %w", err)
	}
	return nil
}

// StopNodes powers off/deallocates nodes
func (p *Provider) StopNodes(ctx context.Context, nodes []string, force, async bool) error {
	if err := p.client.StopNodes(ctx, nodes, force, async); err != nil {
		return fmt.Errorf("failed to stop nodes: %w", err)
	}
	return nil
}
