package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns the smallest configuration Validate accepts
func validConfig() *Config {
	cfg := &Config{}
	cfg.Cluster.Provider = ProviderHPC
	cfg.Cluster.HPC.BaseURL = "http://grid-manager:8000"
	cfg.Scaler.Interval = 60
	cfg.Scaler.NodeGroup = "ComputeNodes"
	cfg.Scaler.InitialGrowCount = 3
	cfg.Scaler.IncrementalGrowCount = 1
	return cfg
}

func TestValidate_MinimalConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Scaler.Interval = 0 },
			wantErr: "scaler.interval",
		},
		{
			name:    "missing node group",
			mutate:  func(c *Config) { c.Scaler.NodeGroup = "" },
			wantErr: "scaler.node_group",
		},
		{
			name:    "negative call queue threshold",
			mutate:  func(c *Config) { c.Scaler.CallQueueThreshold = -1 },
			wantErr: "call_queue_threshold",
		},
		{
			name:    "negative grid minutes threshold",
			mutate:  func(c *Config) { c.Scaler.GridMinutesThreshold = -0.5 },
			wantErr: "grid_minutes_threshold",
		},
		{
			name:    "negative queued jobs threshold",
			mutate:  func(c *Config) { c.Scaler.QueuedJobsThreshold = -2 },
			wantErr: "queued_jobs_threshold",
		},
		{
			name:    "zero initial grow count",
			mutate:  func(c *Config) { c.Scaler.InitialGrowCount = 0 },
			wantErr: "initial_grow_count",
		},
		{
			name:    "zero incremental grow count",
			mutate:  func(c *Config) { c.Scaler.IncrementalGrowCount = 0 },
			wantErr: "incremental_grow_count",
		},
		{
			name:    "negative extra grow ratio",
			mutate:  func(c *Config) { c.Scaler.ExtraGrowRatio = -10 },
			wantErr: "extra_grow_ratio",
		},
		{
			name:    "negative shrink debounce",
			mutate:  func(c *Config) { c.Scaler.ShrinkDebounce = -1 },
			wantErr: "shrink_debounce",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Cluster.Provider = "slurm" },
			wantErr: "cluster.provider",
		},
		{
			name:    "hpc provider without base url",
			mutate:  func(c *Config) { c.Cluster.HPC.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name: "kubernetes provider without namespace",
			mutate: func(c *Config) {
				c.Cluster.Provider = ProviderKubernetes
				c.Cluster.K8s.Namespace = ""
			},
			wantErr: "namespace",
		},
		{
			name:    "persist state without redis",
			mutate:  func(c *Config) { c.Scaler.PersistState = true },
			wantErr: "persist_state",
		},
		{
			name:    "webhook without redis",
			mutate:  func(c *Config) { c.Notifications.WebhookURL = "http://hook" },
			wantErr: "webhook_url",
		},
		{
			name:    "redis enabled without addr",
			mutate:  func(c *Config) { c.Redis.Enabled = true },
			wantErr: "redis.addr",
		},
		{
			name:    "mysql enabled without host",
			mutate:  func(c *Config) { c.MySQL.Enabled = true },
			wantErr: "mysql.host",
		},
		{
			name:    "capacity enabled without region",
			mutate:  func(c *Config) { c.Capacity.Enabled = true },
			wantErr: "capacity.region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInit_LoadsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  mode: debug
cluster:
  provider: hpc
  hpc:
    base_url: http://grid-manager:8000
    api_key: secret
scaler:
  enabled: true
  interval: 30
  node_group: ComputeNodes
  node_template: gpu-worker
  call_queue_threshold: 40
  grid_minutes_threshold: 15.5
  initial_grow_count: 3
  incremental_grow_count: 1
  extra_grow_ratio: 10
  shrink_debounce: 3
  exclude_head_node: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	t.Setenv("CONFIG_PATH", path)

	require.NoError(t, Init())
	require.NotNil(t, GlobalConfig)

	assert.Equal(t, "hpc", GlobalConfig.Cluster.Provider)
	assert.Equal(t, "http://grid-manager:8000", GlobalConfig.Cluster.HPC.BaseURL)
	assert.Equal(t, 30, GlobalConfig.Scaler.Interval)
	assert.Equal(t, int64(40), GlobalConfig.Scaler.CallQueueThreshold)
	assert.Equal(t, 15.5, GlobalConfig.Scaler.GridMinutesThreshold)
	assert.Equal(t, 3, GlobalConfig.Scaler.ShrinkDebounce)
	assert.True(t, GlobalConfig.Scaler.ExcludeHeadNode)

	// Ambient defaults filled in
	assert.Equal(t, DefaultServerPort, GlobalConfig.Server.Port)
	assert.Equal(t, DefaultLoggerLevel, GlobalConfig.Logger.Level)
	assert.Equal(t, DefaultQueueConcurrency, GlobalConfig.Queue.Concurrency)
	assert.Equal(t, DefaultHPCTimeoutSeconds, GlobalConfig.Cluster.HPC.TimeoutSeconds)
	assert.NotEmpty(t, AppliedDefaults())
}

func TestInit_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, Init())
}

func TestInit_InvalidConfigFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
cluster:
  provider: hpc
  hpc:
    base_url: http://grid-manager:8000
scaler:
  interval: 0
  node_group: ComputeNodes
  initial_grow_count: 3
  incremental_grow_count: 1
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	t.Setenv("CONFIG_PATH", path)

	err := Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scaler.interval")
}
