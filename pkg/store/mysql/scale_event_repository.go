package mysql

import (
	"context"
	"fmt"
	"time"

	"gridpool/pkg/store/mysql/model"
)

// ScaleEventRepository handles scale event persistence in MySQL
type ScaleEventRepository struct {
	ds *Datastore
}

// NewScaleEventRepository creates a new scale event repository
func NewScaleEventRepository(ds *Datastore) *ScaleEventRepository {
	return &ScaleEventRepository{ds: ds}
}

// Create inserts a scale event row
func (r *ScaleEventRepository) Create(ctx context.Context, event *model.ScaleEvent) error {
	return r.ds.DB(ctx).Create(event).Error
}

// ListRecent retrieves the most recent scale events, newest first
func (r *ScaleEventRepository) ListRecent(ctx context.Context, limit int) ([]*model.ScaleEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var events []*model.ScaleEvent
	err := r.ds.DB(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent scale events: %w", err)
	}
	return events, nil
}

// ListByAction retrieves scale events for one action (grow, grow_noop, shrink)
func (r *ScaleEventRepository) ListByAction(ctx context.Context, action string, limit int) ([]*model.ScaleEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var events []*model.ScaleEvent
	err := r.ds.DB(ctx).
		Where("action = ?", action).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scale events by action: %w", err)
	}
	return events, nil
}

// ListByTimeRange retrieves scale events within a time range
func (r *ScaleEventRepository) ListByTimeRange(ctx context.Context, startTime, endTime time.Time, limit int) ([]*model.ScaleEvent, error) {
	if limit <= 0 {
		limit = 1000
	}

	var events []*model.ScaleEvent
	err := r.ds.DB(ctx).
		Where("timestamp >= ? AND timestamp <= ?", startTime, endTime).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scale events by time range: %w", err)
	}
	return events, nil
}

// DeleteOldEvents deletes events older than the given time and reports the
// number of rows removed. Used by the retention job.
func (r *ScaleEventRepository) DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.ds.DB(ctx).Where("timestamp < ?", olderThan).Delete(&model.ScaleEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Count counts scale events with optional column filters
func (r *ScaleEventRepository) Count(ctx context.Context, filters map[string]interface{}) (int64, error) {
	query := r.ds.DB(ctx).Model(&model.ScaleEvent{})

	for key, value := range filters {
		query = query.Where(key+" = ?", value)
	}

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count scale events: %w", err)
	}
	return count, nil
}
