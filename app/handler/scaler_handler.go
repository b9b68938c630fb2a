package handler

import (
	"net/http"

	"gridpool/pkg/autoscaler"
	"gridpool/pkg/config"
	"gridpool/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ScalerHandler handles scaler status and control operations
type ScalerHandler struct {
	manager *autoscaler.Manager
	cfg     *config.Config
}

// NewScalerHandler creates scaler handler
func NewScalerHandler(manager *autoscaler.Manager, cfg *config.Config) *ScalerHandler {
	return &ScalerHandler{
		manager: manager,
		cfg:     cfg,
	}
}

// GetStatus gets scaler status
// @Summary Get scaler status
// @Description Get current scaler state: enabled, running, idle streak, last cycle and its metrics
// @Tags Scaler
// @Produce json
// @Success 200 {object} autoscaler.Status
// @Router /api/v1/scaler/status [get]
func (h *ScalerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Status())
}

// Trigger queues one scaling cycle outside the regular interval
// @Summary Manually trigger a scaling cycle
// @Description Queue one scaling cycle to run as soon as the control loop is free
// @Tags Scaler
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/scaler/trigger [post]
func (h *ScalerHandler) Trigger(c *gin.Context) {
	if !h.manager.IsEnabled() {
		c.JSON(http.StatusConflict, gin.H{"error": "scaler is paused"})
		return
	}

	if !h.manager.Trigger() {
		c.JSON(http.StatusConflict, gin.H{"error": "control loop is not running or a cycle is already queued"})
		return
	}

	logger.InfoCtx(c.Request.Context(), "scaling cycle triggered manually")
	c.JSON(http.StatusOK, gin.H{"status": "triggered"})
}

// Pause pauses the scaler
// @Summary Pause the scaler
// @Description Stop making scaling decisions; the control loop keeps ticking but cycles are skipped
// @Tags Scaler
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/scaler/pause [post]
func (h *ScalerHandler) Pause(c *gin.Context) {
	h.manager.Disable(c.Request.Context())
	logger.InfoCtx(c.Request.Context(), "scaler paused")
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

// Resume resumes the scaler
// @Summary Resume the scaler
// @Description Resume making scaling decisions on the regular interval
// @Tags Scaler
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/scaler/resume [post]
func (h *ScalerHandler) Resume(c *gin.Context) {
	h.manager.Enable(c.Request.Context())
	logger.InfoCtx(c.Request.Context(), "scaler resumed")
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

// GetConfig gets the active scaling configuration
// @Summary Get active scaling configuration
// @Description Get the thresholds and knobs the scaler is running with. Secrets are omitted.
// @Tags Scaler
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/scaler/config [get]
func (h *ScalerHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"provider":      h.cfg.Cluster.Provider,
		"scaler":        h.cfg.Scaler,
		"retentionDays": h.cfg.Retention.Days,
	})
}
