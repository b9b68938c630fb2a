// Package config property tests: ambient settings fall back to safe defaults
// for any invalid input, while valid inputs are always preserved.
package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_InvalidAmbientValuesFallBack checks that non-positive ambient
// settings never survive applyDefaults.
func TestProperty_InvalidAmbientValuesFallBack(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("non-positive queue concurrency falls back to default", prop.ForAll(
		func(bad int) bool {
			cfg := &Config{}
			cfg.Queue.Concurrency = bad
			applyDefaults(cfg)
			return cfg.Queue.Concurrency == DefaultQueueConcurrency
		},
		gen.IntRange(-1000, 0),
	))

	properties.Property("non-positive hpc timeout falls back to default", prop.ForAll(
		func(bad int) bool {
			cfg := &Config{}
			cfg.Cluster.HPC.TimeoutSeconds = bad
			applyDefaults(cfg)
			return cfg.Cluster.HPC.TimeoutSeconds == DefaultHPCTimeoutSeconds
		},
		gen.IntRange(-1000, 0),
	))

	properties.Property("non-positive log rotation sizes fall back to defaults", prop.ForAll(
		func(badSize, badBackups, badAge int) bool {
			cfg := &Config{}
			cfg.Logger.File.MaxSizeMB = badSize
			cfg.Logger.File.MaxBackups = badBackups
			cfg.Logger.File.MaxAgeDays = badAge
			applyDefaults(cfg)
			return cfg.Logger.File.MaxSizeMB == DefaultLogFileMaxSizeMB &&
				cfg.Logger.File.MaxBackups == DefaultLogFileMaxBackups &&
				cfg.Logger.File.MaxAgeDays == DefaultLogFileMaxAgeDays
		},
		gen.IntRange(-100, 0),
		gen.IntRange(-100, 0),
		gen.IntRange(-100, 0),
	))

	properties.Property("non-positive retention falls back to default", prop.ForAll(
		func(bad int) bool {
			cfg := &Config{}
			cfg.Retention.Days = bad
			applyDefaults(cfg)
			return cfg.Retention.Days == DefaultRetentionDays
		},
		gen.IntRange(-1000, 0),
	))

	properties.TestingRun(t)
}

// TestProperty_ValidAmbientValuesPreserved checks that applyDefaults never
// overwrites an already valid setting.
func TestProperty_ValidAmbientValuesPreserved(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("valid queue settings are preserved", prop.ForAll(
		func(concurrency, maxRetry, timeout int) bool {
			cfg := &Config{}
			cfg.Queue.Concurrency = concurrency
			cfg.Queue.MaxRetry = maxRetry
			cfg.Queue.TaskTimeout = timeout
			applyDefaults(cfg)
			return cfg.Queue.Concurrency == concurrency &&
				cfg.Queue.MaxRetry == maxRetry &&
				cfg.Queue.TaskTimeout == timeout
		},
		gen.IntRange(1, 100),
		gen.IntRange(0, 10), // zero retries is a valid choice, not a gap
		gen.IntRange(1, 600),
	))

	properties.Property("valid timeouts are preserved", prop.ForAll(
		func(hpcTimeout, notifyTimeout, refresh int) bool {
			cfg := &Config{}
			cfg.Cluster.HPC.TimeoutSeconds = hpcTimeout
			cfg.Notifications.TimeoutSeconds = notifyTimeout
			cfg.Capacity.RefreshIntervalSeconds = refresh
			applyDefaults(cfg)
			return cfg.Cluster.HPC.TimeoutSeconds == hpcTimeout &&
				cfg.Notifications.TimeoutSeconds == notifyTimeout &&
				cfg.Capacity.RefreshIntervalSeconds == refresh
		},
		gen.IntRange(1, 300),
		gen.IntRange(1, 60),
		gen.IntRange(1, 86400),
	))

	properties.TestingRun(t)
}

// TestProperty_ApplyDefaultsIdempotent checks that a second pass changes
// nothing and reports nothing.
func TestProperty_ApplyDefaultsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("second applyDefaults pass is a no-op", prop.ForAll(
		func(concurrency, timeout, retention int) bool {
			cfg := &Config{}
			cfg.Queue.Concurrency = concurrency
			cfg.Cluster.HPC.TimeoutSeconds = timeout
			cfg.Retention.Days = retention
			applyDefaults(cfg)

			first := *cfg
			notes := applyDefaults(cfg)
			return len(notes) == 0 &&
				cfg.Queue.Concurrency == first.Queue.Concurrency &&
				cfg.Cluster.HPC.TimeoutSeconds == first.Cluster.HPC.TimeoutSeconds &&
				cfg.Retention.Days == first.Retention.Days
		},
		gen.IntRange(-100, 100),
		gen.IntRange(-100, 100),
		gen.IntRange(-100, 100),
	))

	properties.TestingRun(t)
}
