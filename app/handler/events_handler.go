package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gridpool/internal/service"
	"gridpool/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// EventsHandler serves the scale event history and the live event feed
type EventsHandler struct {
	history *service.HistoryService
}

// NewEventsHandler creates events handler
func NewEventsHandler(history *service.HistoryService) *EventsHandler {
	return &EventsHandler{history: history}
}

// List gets recent scale events
// @Summary Get recent scale events
// @Description List recorded scaling decisions, newest first, with optional filters
// @Tags Events
// @Param action query string false "Filter by action (grow, grow_noop, shrink)"
// @Param since query string false "Lower time bound (RFC3339)"
// @Param limit query int false "Event limit (default 50, max 500)"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/events [get]
func (h *EventsHandler) List(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	action := c.Query("action")

	var since *time.Time
	if sinceStr := c.Query("since"); sinceStr != "" {
		t, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		since = &t
	}

	events, err := h.history.List(c.Request.Context(), action, since, limit)
	if err != nil {
		if errors.Is(err, service.ErrHistoryDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		logger.ErrorCtx(c.Request.Context(), "failed to list scale events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	total, err := h.history.Count(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to count scale events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"events": events,
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins, production should use stricter checks
	},
}

// Live streams scale events over WebSocket
// @Summary Live scale event feed
// @Description WebSocket stream of scale events as they are recorded
// @Tags Events
// @Router /api/v1/events/live [get]
func (h *EventsHandler) Live(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to upgrade to websocket: %v", err)
		return
	}
	defer ws.Close()

	id, feed := h.history.Subscribe()
	defer h.history.Unsubscribe(id)

	logger.DebugCtx(c.Request.Context(), "event feed subscriber %d connected from %s", id, c.ClientIP())

	// Drain client frames so closes and pings are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-feed:
			if !ok {
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				logger.DebugCtx(c.Request.Context(), "event feed subscriber %d dropped: %v", id, err)
				return
			}
		}
	}
}
