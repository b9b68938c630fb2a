package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyIdleStreak = "scaler:idle-streak"
	keyEnabled    = "scaler:enabled"
	keyLastRun    = "scaler:last-run"
)

// LastRun is the persisted summary of the most recent scaling cycle.
type LastRun struct {
	CycleID   string    `json:"cycle_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Nodes     []string  `json:"nodes"`
}

// ScalerStateRepository persists the small amount of scaler state that must
// survive a restart: the idle-streak counter, the enabled flag and the
// last-run summary.
type ScalerStateRepository struct {
	redis *redis.Client
}

// NewScalerStateRepository creates the scaler state repository
func NewScalerStateRepository(client *redis.Client) *ScalerStateRepository {
	return &ScalerStateRepository{
		redis: client,
	}
}

// GetIdleStreak returns the persisted consecutive-idle counter. A missing
// key reads as 0.
func (r *ScalerStateRepository) GetIdleStreak(ctx context.Context) (int, error) {
	val, err := r.redis.Get(ctx, keyIdleStreak).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get idle streak: %w", err)
	}

	streak, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("failed to parse idle streak %q: %w", val, err)
	}
	return streak, nil
}

// SetIdleStreak stores the consecutive-idle counter.
func (r *ScalerStateRepository) SetIdleStreak(ctx context.Context, streak int) error {
	if err := r.redis.Set(ctx, keyIdleStreak, streak, 0).Err(); err != nil {
		return fmt.Errorf("failed to set idle streak: %w", err)
	}
	return nil
}

// GetEnabled returns the persisted enabled flag and whether one was ever
// stored. When found is false the caller falls back to its configured
// default.
func (r *ScalerStateRepository) GetEnabled(ctx context.Context) (enabled bool, found bool, err error) {
	val, err := r.redis.Get(ctx, keyEnabled).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to get enabled flag: %w", err)
	}
	return val == "1", true, nil
}

// SetEnabled stores the enabled flag.
func (r *ScalerStateRepository) SetEnabled(ctx context.Context, enabled bool) error {
	val := "0"
	if enabled {
		val = "1"
	}
	if err := r.redis.Set(ctx, keyEnabled, val, 0).Err(); err != nil {
		return fmt.Errorf("failed to set enabled flag: %w", err)
	}
	return nil
}

// SaveLastRun stores the last-run summary.
func (r *ScalerStateRepository) SaveLastRun(ctx context.Context, run *LastRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal last run: %w", err)
	}
	if err := r.redis.Set(ctx, keyLastRun, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save last run: %w", err)
	}
	return nil
}

// GetLastRun returns the last-run summary, or nil when no cycle has been
// recorded yet.
func (r *ScalerStateRepository) GetLastRun(ctx context.Context) (*LastRun, error) {
	data, err := r.redis.Get(ctx, keyLastRun).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}

	var run LastRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last run: %w", err)
	}
	return &run, nil
}
