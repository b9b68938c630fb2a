package handler

import (
	"net/http"

	"gridpool/pkg/capacity"

	"github.com/gin-gonic/gin"
)

// CapacityHandler exposes cached spot capacity advisories
type CapacityHandler struct {
	advisor *capacity.Advisor
}

// NewCapacityHandler creates capacity handler
func NewCapacityHandler(advisor *capacity.Advisor) *CapacityHandler {
	return &CapacityHandler{advisor: advisor}
}

// GetAdvisories gets current spot capacity advisories
// @Summary Get spot capacity advisories
// @Description Current per-template spot market guidance: easiest instance type, placement score and price
// @Tags Capacity
// @Produce json
// @Success 200 {array} capacity.Advisory
// @Router /api/v1/capacity [get]
func (h *CapacityHandler) GetAdvisories(c *gin.Context) {
	c.JSON(http.StatusOK, h.advisor.All())
}
