package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/circular-api/internal/service"
	"github.com/campusdesk/circular-api/pkg/response"
)

type statsService interface {
	Dashboard(ctx context.Context) (*service.DashboardCounts, error)
}

// StatsHandler exposes the admin dashboard counters.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler builds a new handler.
func NewStatsHandler(service statsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Dashboard godoc
// @Summary Aggregate user, circular and event counts (admin)
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/counts [get]
func (h *StatsHandler) Dashboard(c *gin.Context) {
	counts, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}
