package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/circular-api/internal/models"
	"github.com/campusdesk/circular-api/internal/service"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
	"github.com/campusdesk/circular-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, req service.CreateEventRequest, actor *models.JWTClaims) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, req service.ListEventsRequest) ([]models.Event, error)
	ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Event, error)
	Update(ctx context.Context, id string, req service.UpdateEventRequest, actor *models.JWTClaims) (*models.Event, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// EventHandler exposes the campus event endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler builds a new handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// Create godoc
// @Summary Create an event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body service.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	event, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Get godoc
// @Summary Get an event by id
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param department query string false "Department filter"
// @Param status query string false "Status filter (upcoming, ongoing, completed)"
// @Param date query string false "Event date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	events, err := h.service.List(c.Request.Context(), service.ListEventsRequest{
		Department: c.Query("department"),
		Status:     c.Query("status"),
		Date:       c.Query("date"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// ListMine godoc
// @Summary List events created by the caller
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events/mine [get]
func (h *EventHandler) ListMine(c *gin.Context) {
	events, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Update godoc
// @Summary Update an event (admin or creator)
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body service.UpdateEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req service.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	event, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete an event (admin or creator)
// @Tags Events
// @Param id path string true "Event ID"
// @Success 204
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
