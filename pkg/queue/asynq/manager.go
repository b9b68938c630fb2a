package asynq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gridpool/pkg/config"
	"gridpool/pkg/logger"
	"gridpool/pkg/notification"

	"github.com/hibiken/asynq"
)

const (
	TypeScaleEventNotify = "notify:scale_event"
)

// Manager queue manager
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewManager creates queue manager
func NewManager(cfg *config.Config) (*Manager, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				"default": 10,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
		},
	)

	mux := asynq.NewServeMux()

	return &Manager{
		client: client,
		server: server,
		mux:    mux,
	}, nil
}

// EnqueueScaleEvent queues a scale event for webhook delivery. The task ID
// is the event ID, so a retried cycle cannot enqueue the same event twice.
func (m *Manager) EnqueueScaleEvent(ctx context.Context, msg *notification.ScaleEventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal scale event: %w", err)
	}

	task := asynq.NewTask(TypeScaleEventNotify, payload)

	opts := []asynq.Option{
		asynq.TaskID(msg.EventID),
		asynq.Timeout(time.Duration(config.GlobalConfig.Queue.TaskTimeout) * time.Second),
		asynq.MaxRetry(config.GlobalConfig.Queue.MaxRetry),
	}

	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue scale event: %w", err)
	}

	logger.InfoCtx(ctx, "scale event queued for delivery, event_id: %s, queue: %s", msg.EventID, info.Queue)

	return nil
}

// NewScaleEventHandler returns the asynq handler that delivers queued scale
// events through the webhook notifier. A returned error makes asynq retry
// with the configured backoff.
func NewScaleEventHandler(notifier *notification.WebhookNotifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var msg notification.ScaleEventMessage
		if err := json.Unmarshal(task.Payload(), &msg); err != nil {
			// Malformed payloads never succeed, drop instead of retrying.
			logger.ErrorCtx(ctx, "dropping malformed scale event payload: %v", err)
			return nil
		}

		if err := notifier.Send(ctx, &msg); err != nil {
			return fmt.Errorf("failed to deliver scale event %s: %w", msg.EventID, err)
		}
		return nil
	}
}

// RegisterHandler registers task handler
func (m *Manager) RegisterHandler(pattern string, handler asynq.Handler) {
	m.mux.Handle(pattern, handler)
}

// Start starts queue processor
func (m *Manager) Start() error {
	logger.InfoCtx(context.Background(), "starting queue server")
	return m.server.Start(m.mux)
}

// Stop stops queue processor
func (m *Manager) Stop() {
	logger.InfoCtx(context.Background(), "stopping queue server")
	m.server.Stop()
	m.server.Shutdown()
}

// Close closes client
func (m *Manager) Close() error {
	return m.client.Close()
}
