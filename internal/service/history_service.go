package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"gridpool/pkg/logger"
	"gridpool/pkg/store/mysql"
	"gridpool/pkg/store/mysql/model"
)

// ErrHistoryDisabled is returned by queries when MySQL is not configured.
var ErrHistoryDisabled = errors.New("event history is disabled")

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind misses events rather than stalling the recorder.
const subscriberBuffer = 16

// HistoryService fronts the scale event store: the executor records through
// it, the API lists through it, the WebSocket feed subscribes to it and the
// retention job purges through it. With a nil repository (MySQL disabled)
// recording degrades to the live feed only.
type HistoryService struct {
	repo *mysql.ScaleEventRepository

	mu          sync.RWMutex
	subscribers map[int]chan *model.ScaleEvent
	nextSubID   int
}

// NewHistoryService creates a new history service. repo may be nil when
// MySQL is disabled in config.
func NewHistoryService(repo *mysql.ScaleEventRepository) *HistoryService {
	if repo == nil {
		logger.Warn("mysql is disabled, scale events will not be persisted")
	}
	return &HistoryService{
		repo:        repo,
		subscribers: make(map[int]chan *model.ScaleEvent),
	}
}

// Record persists a scale event and fans it out to live subscribers. The
// fan-out happens even when persistence fails or is disabled.
func (s *HistoryService) Record(ctx context.Context, event *model.ScaleEvent) error {
	var persistErr error
	if s.repo != nil {
		persistErr = s.repo.Create(ctx, event)
	}

	s.mu.RLock()
	for id, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			logger.DebugCtx(ctx, "event subscriber %d is behind, dropping event %s", id, event.EventID)
		}
	}
	s.mu.RUnlock()

	return persistErr
}

// List returns recent events, optionally filtered by action or by a lower
// time bound. Filters combine by narrowing: since wins over action.
func (s *HistoryService) List(ctx context.Context, action string, since *time.Time, limit int) ([]*model.ScaleEvent, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}

	if since != nil {
		return s.repo.ListByTimeRange(ctx, *since, time.Now(), limit)
	}
	if action != "" {
		return s.repo.ListByAction(ctx, action, limit)
	}
	return s.repo.ListRecent(ctx, limit)
}

// Count returns the total number of recorded events.
func (s *HistoryService) Count(ctx context.Context) (int64, error) {
	if s.repo == nil {
		return 0, ErrHistoryDisabled
	}
	return s.repo.Count(ctx, nil)
}

// Purge deletes events older than the cutoff and reports how many rows were
// removed. A disabled store purges nothing.
func (s *HistoryService) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.DeleteOldEvents(ctx, olderThan)
}

// Subscribe registers a live event feed. The caller must Unsubscribe when
// done or the channel leaks.
func (s *HistoryService) Subscribe() (int, <-chan *model.ScaleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan *model.ScaleEvent, subscriberBuffer)
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a live event feed and closes its channel.
func (s *HistoryService) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}
