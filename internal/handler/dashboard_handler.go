package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/service"
)

// DashboardHandler handles admin dashboard endpoints.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard?days=30
// Returns sales and finance totals, daily sales, level distribution and recent outcomes.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	data, err := h.dashboardService.GetDashboardData(c.Request.Context(), days)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, data)
}
