package handler

import (
	"net/http"
	"strings"

	"gridpool/internal/model"
	"gridpool/internal/service"
	"gridpool/pkg/autoscaler"
	"gridpool/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ClusterHandler exposes read-only views of the managed node pool and job set
type ClusterHandler struct {
	clusterService *service.ClusterService
}

// NewClusterHandler creates cluster handler
func NewClusterHandler(clusterService *service.ClusterService) *ClusterHandler {
	return &ClusterHandler{clusterService: clusterService}
}

// GetNodes gets the managed node pool
// @Summary Get the managed node pool
// @Description List nodes in the managed group with per-state counts
// @Tags Cluster
// @Param state query string false "Filter by node state (Online, Offline, NotDeployed, Provisioning)"
// @Produce json
// @Success 200 {object} service.NodeInventory
// @Router /api/v1/cluster/nodes [get]
func (h *ClusterHandler) GetNodes(c *gin.Context) {
	state := model.NodeState(c.Query("state"))

	inventory, err := h.clusterService.Nodes(c.Request.Context(), state)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to query nodes: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, inventory)
}

// GetJobs gets the current job snapshot
// @Summary Get the current job snapshot
// @Description List grid jobs, by default those in Running or Queued state
// @Tags Cluster
// @Param states query string false "Comma-separated job states (Running, Queued)"
// @Produce json
// @Success 200 {array} model.Job
// @Router /api/v1/cluster/jobs [get]
func (h *ClusterHandler) GetJobs(c *gin.Context) {
	var states []model.JobState
	if raw := c.Query("states"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			states = append(states, model.JobState(strings.TrimSpace(s)))
		}
	}

	jobs, err := h.clusterService.Jobs(c.Request.Context(), states)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to query jobs: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetMetrics gets live cluster load metrics
// @Summary Get live cluster load metrics
// @Description Aggregate the current running jobs into cluster load metrics, same math the scaler uses
// @Tags Cluster
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cluster/metrics [get]
func (h *ClusterHandler) GetMetrics(c *gin.Context) {
	jobs, err := h.clusterService.Jobs(c.Request.Context(), nil)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to query jobs: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	running := model.FilterJobsByState(jobs, model.JobStateRunning)
	queued := model.CountJobsByState(jobs, model.JobStateQueued)
	metrics := autoscaler.Aggregate(running)

	c.JSON(http.StatusOK, gin.H{
		"metrics":    metrics,
		"queuedJobs": queued,
	})
}
