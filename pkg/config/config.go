package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// appliedDefaults records which ambient settings fell back to their default
// during Init, so the caller can log them once the logger is up.
var appliedDefaults []string

// Config global configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Redis         RedisConfig         `yaml:"redis"`
	MySQL         MySQLConfig         `yaml:"mysql"`
	Queue         QueueConfig         `yaml:"queue"`
	Logger        LoggerConfig        `yaml:"logger"`
	Cluster       ClusterConfig       `yaml:"cluster"`
	Scaler        ScalerConfig        `yaml:"scaler"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Capacity      CapacityConfig      `yaml:"capacity"`
	Retention     RetentionConfig     `yaml:"retention"`
}

// ServerConfig HTTP server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // Bearer token for mutating routes (optional, if empty, auth is disabled)
}

// RedisConfig Redis configuration. Redis backs the cycle lock, persisted
// scaler state and the notification queue; disabling it turns all three off.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig MySQL configuration. MySQL stores scaling event history;
// disabling it degrades history to log-only.
type MySQLConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// QueueConfig notification queue configuration
type QueueConfig struct {
	Concurrency int `yaml:"concurrency"`  // queue processing concurrency
	MaxRetry    int `yaml:"max_retry"`    // maximum delivery attempts per event
	TaskTimeout int `yaml:"task_timeout"` // per-delivery timeout (seconds)
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig rotated log file configuration
type LoggerFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Cluster provider names accepted in ClusterConfig.Provider
const (
	ProviderHPC        = "hpc"
	ProviderKubernetes = "kubernetes"
)

// ClusterConfig selects and configures the cluster manager binding
type ClusterConfig struct {
	Provider string    `yaml:"provider"` // hpc, kubernetes
	HPC      HPCConfig `yaml:"hpc"`
	K8s      K8sConfig `yaml:"k8s"`
}

// HPCConfig REST binding to the grid manager's management API
type HPCConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// K8sConfig Kubernetes binding configuration
type K8sConfig struct {
	Kubeconfig     string `yaml:"kubeconfig"`       // Path to kubeconfig; empty means in-cluster
	Namespace      string `yaml:"namespace"`        // Namespace holding the grid batch jobs
	NodeGroupLabel string `yaml:"node_group_label"` // Node label key carrying the group name
	TemplateLabel  string `yaml:"template_label"`   // Label key carrying the node/job template name
	InventoryFile  string `yaml:"inventory_file"`   // Optional machine inventory for not-yet-joined nodes
}

// ScalerConfig decision engine configuration. Loaded once at startup and
// immutable for the process lifetime; runtime pause/resume does not touch it.
// JSON tags shape the read-only config API response.
type ScalerConfig struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	Interval int  `yaml:"interval" json:"interval"` // Control loop interval (seconds)

	NodeGroup    string `yaml:"node_group" json:"nodeGroup"`       // Node group the scaler manages
	NodeTemplate string `yaml:"node_template" json:"nodeTemplate"` // Optional node template filter
	JobTemplate  string `yaml:"job_template" json:"jobTemplate"`   // Optional job template filter

	// Grow thresholds; 0 disables the individual check
	CallQueueThreshold   int64   `yaml:"call_queue_threshold" json:"callQueueThreshold"`
	GridMinutesThreshold float64 `yaml:"grid_minutes_threshold" json:"gridMinutesThreshold"`
	QueuedJobsThreshold  int64   `yaml:"queued_jobs_threshold" json:"queuedJobsThreshold"`

	InitialGrowCount     int `yaml:"initial_grow_count" json:"initialGrowCount"`         // Nodes to add when starting from zero active capacity
	IncrementalGrowCount int `yaml:"incremental_grow_count" json:"incrementalGrowCount"` // Nodes to add when capacity already exists
	ExtraGrowRatio       int `yaml:"extra_grow_ratio" json:"extraGrowRatio"`             // Percentage uplift to cover nodes that fail to come up

	ShrinkDebounce  int  `yaml:"shrink_debounce" json:"shrinkDebounce"`    // Consecutive idle observations required before shrinking
	ExcludeHeadNode bool `yaml:"exclude_head_node" json:"excludeHeadNode"` // Keep the head node out of shrink consideration
	PersistState    bool `yaml:"persist_state" json:"persistState"`        // Persist the idle streak across restarts (requires Redis)
}

// NotificationsConfig scale event webhook configuration
type NotificationsConfig struct {
	WebhookURL     string `yaml:"webhook_url"` // Empty disables notifications
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CapacityConfig spot capacity advisor configuration
type CapacityConfig struct {
	Enabled                bool               `yaml:"enabled"`
	Region                 string             `yaml:"region"`
	AccessKeyID            string             `yaml:"access_key_id"`     // Empty falls back to the default credential chain
	SecretAccessKey        string             `yaml:"secret_access_key"`
	RefreshIntervalSeconds int                `yaml:"refresh_interval_seconds"`
	Templates              []CapacityTemplate `yaml:"templates"`
}

// CapacityTemplate maps a node template to the EC2 instance types backing it
type CapacityTemplate struct {
	Name          string   `yaml:"name"`
	InstanceTypes []string `yaml:"instance_types"`
}

// RetentionConfig event history retention
type RetentionConfig struct {
	Days int `yaml:"days"`
}

// Init loads, defaults and validates configuration. Validation failures are
// fatal: a broken configuration means a permanently broken run.
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	appliedDefaults = applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	GlobalConfig = &cfg
	return nil
}

// AppliedDefaults returns human-readable notes for every ambient setting that
// fell back to its default during Init.
func AppliedDefaults() []string {
	return appliedDefaults
}

// Validate rejects configurations the scaler cannot run with
func (c *Config) Validate() error {
	s := c.Scaler
	if s.Interval <= 0 {
		return fmt.Errorf("scaler.interval must be greater than 0")
	}
	if s.NodeGroup == "" {
		return fmt.Errorf("scaler.node_group is required")
	}
	if s.CallQueueThreshold < 0 {
		return fmt.Errorf("scaler.call_queue_threshold must not be negative")
	}
	if s.GridMinutesThreshold < 0 {
		return fmt.Errorf("scaler.grid_minutes_threshold must not be negative")
	}
	if s.QueuedJobsThreshold < 0 {
		return fmt.Errorf("scaler.queued_jobs_threshold must not be negative")
	}
	if s.InitialGrowCount < 1 {
		return fmt.Errorf("scaler.initial_grow_count must be at least 1")
	}
	if s.IncrementalGrowCount < 1 {
		return fmt.Errorf("scaler.incremental_grow_count must be at least 1")
	}
	if s.ExtraGrowRatio < 0 {
		return fmt.Errorf("scaler.extra_grow_ratio must not be negative")
	}
	if s.ShrinkDebounce < 0 {
		return fmt.Errorf("scaler.shrink_debounce must not be negative")
	}
	if s.PersistState && !c.Redis.Enabled {
		return fmt.Errorf("scaler.persist_state requires redis.enabled")
	}

	switch c.Cluster.Provider {
	case ProviderHPC:
		if c.Cluster.HPC.BaseURL == "" {
			return fmt.Errorf("cluster.hpc.base_url is required for the hpc provider")
		}
	case ProviderKubernetes:
		if c.Cluster.K8s.Namespace == "" {
			return fmt.Errorf("cluster.k8s.namespace is required for the kubernetes provider")
		}
	default:
		return fmt.Errorf("cluster.provider must be one of: %s, %s", ProviderHPC, ProviderKubernetes)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.MySQL.Enabled {
		if c.MySQL.Host == "" || c.MySQL.Database == "" {
			return fmt.Errorf("mysql.host and mysql.database are required when mysql is enabled")
		}
	}
	if c.Notifications.WebhookURL != "" && !c.Redis.Enabled {
		return fmt.Errorf("notifications.webhook_url requires redis.enabled (deliveries go through the queue)")
	}
	if c.Capacity.Enabled && c.Capacity.Region == "" {
		return fmt.Errorf("capacity.region is required when the capacity advisor is enabled")
	}

	return nil
}

// Ambient defaults. Invalid or missing values here are not fatal; they fall
// back so the process stays operational.
const (
	DefaultLoggerLevel       = "info"
	DefaultLoggerOutput      = "console"
	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 10
	DefaultLogFileMaxAgeDays = 30

	DefaultServerPort        = 8080
	DefaultHPCTimeoutSeconds = 30

	DefaultQueueConcurrency        = 10
	DefaultQueueMaxRetry           = 3
	DefaultQueueTaskTimeoutSeconds = 30

	DefaultNotifyTimeoutSeconds   = 10
	DefaultCapacityRefreshSeconds = 600
	DefaultRetentionDays          = 30

	DefaultK8sNodeGroupLabel = "gridpool.io/node-group"
	DefaultK8sTemplateLabel  = "gridpool.io/template"
)

// applyDefaults fills ambient gaps in place and reports what it changed
func applyDefaults(cfg *Config) []string {
	var notes []string
	note := func(format string, args ...interface{}) {
		notes = append(notes, fmt.Sprintf(format, args...))
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = DefaultServerPort
		note("server.port defaulted to %d", DefaultServerPort)
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = DefaultLoggerLevel
	}
	if cfg.Logger.Output == "" {
		cfg.Logger.Output = DefaultLoggerOutput
	}
	if cfg.Logger.File.MaxSizeMB <= 0 {
		cfg.Logger.File.MaxSizeMB = DefaultLogFileMaxSizeMB
	}
	if cfg.Logger.File.MaxBackups <= 0 {
		cfg.Logger.File.MaxBackups = DefaultLogFileMaxBackups
	}
	if cfg.Logger.File.MaxAgeDays <= 0 {
		cfg.Logger.File.MaxAgeDays = DefaultLogFileMaxAgeDays
	}

	if cfg.Cluster.HPC.TimeoutSeconds <= 0 {
		cfg.Cluster.HPC.TimeoutSeconds = DefaultHPCTimeoutSeconds
		if cfg.Cluster.Provider == ProviderHPC {
			note("cluster.hpc.timeout_seconds defaulted to %d", DefaultHPCTimeoutSeconds)
		}
	}
	if cfg.Cluster.K8s.NodeGroupLabel == "" {
		cfg.Cluster.K8s.NodeGroupLabel = DefaultK8sNodeGroupLabel
	}
	if cfg.Cluster.K8s.TemplateLabel == "" {
		cfg.Cluster.K8s.TemplateLabel = DefaultK8sTemplateLabel
	}

	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = DefaultQueueConcurrency
	}
	if cfg.Queue.MaxRetry < 0 {
		cfg.Queue.MaxRetry = DefaultQueueMaxRetry
		note("queue.max_retry defaulted to %d", DefaultQueueMaxRetry)
	}
	if cfg.Queue.TaskTimeout <= 0 {
		cfg.Queue.TaskTimeout = DefaultQueueTaskTimeoutSeconds
	}

	if cfg.Notifications.TimeoutSeconds <= 0 {
		cfg.Notifications.TimeoutSeconds = DefaultNotifyTimeoutSeconds
	}
	if cfg.Capacity.RefreshIntervalSeconds <= 0 {
		cfg.Capacity.RefreshIntervalSeconds = DefaultCapacityRefreshSeconds
		if cfg.Capacity.Enabled {
			note("capacity.refresh_interval_seconds defaulted to %d", DefaultCapacityRefreshSeconds)
		}
	}
	if cfg.Retention.Days <= 0 {
		cfg.Retention.Days = DefaultRetentionDays
		if cfg.MySQL.Enabled {
			note("retention.days defaulted to %d", DefaultRetentionDays)
		}
	}

	return notes
}
