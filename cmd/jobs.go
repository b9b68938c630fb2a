package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gridpool/internal/jobs"
	"gridpool/internal/service"
	"gridpool/pkg/autoscaler"
	"gridpool/pkg/capacity"
	"gridpool/pkg/logger"
)

func (app *Application) initJobs() error {
	manager := jobs.NewManager(app.ctx)

	// Distributed locks keep multiple replicas from running the same
	// housekeeping. If Redis is unavailable, locks downgrade to
	// single-instance mode and always grant.
	var redisClient *redis.Client
	if app.redisClient != nil {
		redisClient = app.redisClient.GetClient()
	}

	// Retention only matters when events are actually persisted
	if app.mysqlRepo != nil {
		retentionLock := autoscaler.NewRedisDistributedLock(redisClient, "retention:scale-events-lock")
		manager.Register(newEventRetentionJob(24*time.Hour, app.config.Retention.Days, app.historyService, retentionLock))
	}

	if app.advisor != nil {
		refreshInterval := time.Duration(app.config.Capacity.RefreshIntervalSeconds) * time.Second
		capacityLock := autoscaler.NewRedisDistributedLock(redisClient, "capacity:refresh-lock")
		manager.Register(newCapacityRefreshJob(refreshInterval, app.advisor, capacityLock))
	}

	app.jobsManager = manager
	return nil
}

// eventRetentionJob prunes scale events past the retention window.
type eventRetentionJob struct {
	interval        time.Duration
	retentionDays   int
	history         *service.HistoryService
	distributedLock autoscaler.DistributedLock
}

func newEventRetentionJob(interval time.Duration, retentionDays int, history *service.HistoryService, lock autoscaler.DistributedLock) jobs.Job {
	return &eventRetentionJob{
		interval:        interval,
		retentionDays:   retentionDays,
		history:         history,
		distributedLock: lock,
	}
}

func (j *eventRetentionJob) Name() string {
	return "scale-event-retention"
}

func (j *eventRetentionJob) Interval() time.Duration {
	return j.interval
}

func (j *eventRetentionJob) AlignToInterval() bool {
	return true
}

func (j *eventRetentionJob) Run(ctx context.Context) error {
	if j.history == nil {
		return fmt.Errorf("history service not configured")
	}

	// Try to acquire distributed lock
	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running event retention, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.history.Purge(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.InfoCtx(ctx, "purged %d scale events older than %d days", deleted, j.retentionDays)
	}
	return nil
}

// capacityRefreshJob keeps the spot capacity advisories current.
type capacityRefreshJob struct {
	interval        time.Duration
	advisor         *capacity.Advisor
	distributedLock autoscaler.DistributedLock
}

func newCapacityRefreshJob(interval time.Duration, advisor *capacity.Advisor, lock autoscaler.DistributedLock) jobs.Job {
	return &capacityRefreshJob{
		interval:        interval,
		advisor:         advisor,
		distributedLock: lock,
	}
}

func (j *capacityRefreshJob) Name() string {
	return "capacity-refresh"
}

func (j *capacityRefreshJob) Interval() time.Duration {
	return j.interval
}

func (j *capacityRefreshJob) Run(ctx context.Context) error {
	if j.advisor == nil {
		return fmt.Errorf("capacity advisor not configured")
	}

	// Try to acquire distributed lock
	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is refreshing capacity advisories, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	logger.DebugCtx(ctx, "running capacity advisory refresh")
	return j.advisor.Refresh(ctx)
}
