package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"gridpool/pkg/config"
	"gridpool/pkg/logger"
)

// ScaleEventMessage is the JSON body delivered to the configured webhook for
// every recorded scale event.
type ScaleEventMessage struct {
	EventID          string    `json:"event_id"`
	CycleID          string    `json:"cycle_id"`
	Timestamp        time.Time `json:"timestamp"`
	Action           string    `json:"action"`
	Outcome          string    `json:"outcome"`
	NodeGroup        string    `json:"node_group"`
	Nodes            []string  `json:"nodes"`
	Reason           string    `json:"reason"`
	Detail           string    `json:"detail,omitempty"`
	OutstandingCalls int64     `json:"outstanding_calls"`
	GridMinutes      float64   `json:"grid_minutes"`
	QueuedJobs       int64     `json:"queued_jobs"`
}

// DefaultTimeout bounds a single webhook delivery attempt.
const DefaultTimeout = 10 * time.Second

// WebhookNotifier posts scale events to an HTTP webhook
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
// Priority: config file > environment variable.
func NewWebhookNotifier() *WebhookNotifier {
	var webhookURL string
	if config.GlobalConfig != nil && config.GlobalConfig.Notifications.WebhookURL != "" {
		webhookURL = config.GlobalConfig.Notifications.WebhookURL
		logger.Info("using webhook URL from config file")
	} else {
		webhookURL = os.Getenv("GRIDPOOL_WEBHOOK_URL")
		if webhookURL != "" {
			logger.Info("using webhook URL from environment variable")
		}
	}

	if webhookURL == "" {
		logger.Warn("webhook URL not configured (check config file or GRIDPOOL_WEBHOOK_URL env), scale event notifications will be disabled")
	}

	timeout := DefaultTimeout
	if config.GlobalConfig != nil && config.GlobalConfig.Notifications.TimeoutSeconds > 0 {
		timeout = time.Duration(config.GlobalConfig.Notifications.TimeoutSeconds) * time.Second
	}

	return &WebhookNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *WebhookNotifier) Enabled() bool {
	return w.webhookURL != ""
}

// Send delivers one scale event to the webhook. With no URL configured it
// logs and returns nil so callers need no special casing.
func (w *WebhookNotifier) Send(ctx context.Context, msg *ScaleEventMessage) error {
	if w.webhookURL == "" {
		logger.WarnCtx(ctx, "webhook URL not configured, skipping notification for event %s", msg.EventID)
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal scale event message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}

	logger.InfoCtx(ctx, "webhook notification sent, event_id: %s, action: %s", msg.EventID, msg.Action)
	return nil
}
