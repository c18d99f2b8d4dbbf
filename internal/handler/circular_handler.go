package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/circular-api/internal/models"
	"github.com/campusdesk/circular-api/internal/service"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
	"github.com/campusdesk/circular-api/pkg/response"
)

type circularService interface {
	Create(ctx context.Context, req service.CreateCircularRequest, actor *models.JWTClaims) (*models.Circular, error)
	Get(ctx context.Context, id string) (*models.Circular, error)
	Decide(ctx context.Context, id string, status string) (*models.Circular, error)
	ForceSetStatus(ctx context.Context, id string, status string) (*models.Circular, error)
	Update(ctx context.Context, id string, req service.UpdateCircularRequest) (*models.Circular, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, req service.SearchCircularsRequest) ([]models.Circular, error)
	ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Circular, error)
	TrackStatus(ctx context.Context, actor *models.JWTClaims) ([]models.CircularStatusView, error)
	ListForStudents(ctx context.Context) ([]models.Circular, error)
	ExportRegister(ctx context.Context, req service.SearchCircularsRequest, format string) ([]byte, string, string, error)
}

// CircularHandler exposes the circular lifecycle endpoints.
type CircularHandler struct {
	service circularService
}

// NewCircularHandler builds a new handler.
func NewCircularHandler(service circularService) *CircularHandler {
	return &CircularHandler{service: service}
}

type decisionRequest struct {
	Status string `json:"status"`
}

// Create godoc
// @Summary Create a circular (admin)
// @Tags Circulars
// @Accept json
// @Produce json
// @Param payload body service.CreateCircularRequest true "Circular payload"
// @Success 201 {object} response.Envelope
// @Router /circulars [post]
func (h *CircularHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.CreateCircularRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid circular payload"))
		return
	}
	circular, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, circular)
}

// Submit godoc
// @Summary Submit a circular for approval (faculty)
// @Tags Circulars
// @Accept json
// @Produce json
// @Param payload body service.CreateCircularRequest true "Circular payload"
// @Success 201 {object} response.Envelope
// @Router /circulars/submissions [post]
func (h *CircularHandler) Submit(c *gin.Context) {
	h.Create(c)
}

// Get godoc
// @Summary Get a circular by id
// @Tags Circulars
// @Produce json
// @Param id path string true "Circular ID"
// @Success 200 {object} response.Envelope
// @Router /circulars/{id} [get]
func (h *CircularHandler) Get(c *gin.Context) {
	circular, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circular, nil)
}

// Decide godoc
// @Summary Approve or reject a circular (admin)
// @Tags Circulars
// @Accept json
// @Produce json
// @Param id path string true "Circular ID"
// @Param payload body decisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /circulars/{id}/decision [put]
func (h *CircularHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	circular, err := h.service.Decide(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circular, nil)
}

// ForceSetStatus godoc
// @Summary Set any lifecycle status directly (admin override)
// @Tags Circulars
// @Accept json
// @Produce json
// @Param id path string true "Circular ID"
// @Param payload body decisionRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /circulars/{id}/status [put]
func (h *CircularHandler) ForceSetStatus(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	circular, err := h.service.ForceSetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circular, nil)
}

// Update godoc
// @Summary Update a circular (admin)
// @Tags Circulars
// @Accept json
// @Produce json
// @Param id path string true "Circular ID"
// @Param payload body service.UpdateCircularRequest true "Circular payload"
// @Success 200 {object} response.Envelope
// @Router /circulars/{id} [put]
func (h *CircularHandler) Update(c *gin.Context) {
	var req service.UpdateCircularRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid circular payload"))
		return
	}
	circular, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circular, nil)
}

// Delete godoc
// @Summary Delete a circular (admin)
// @Tags Circulars
// @Param id path string true "Circular ID"
// @Success 204
// @Router /circulars/{id} [delete]
func (h *CircularHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Search godoc
// @Summary Search circulars by field filters
// @Tags Circulars
// @Produce json
// @Param department query string false "Department filter"
// @Param referenceId query string false "Reference ID filter"
// @Param type query string false "Circular type filter"
// @Param status query string false "Status filter"
// @Param date query string false "Issue date (YYYY-MM-DD)"
// @Param sortBy query string false "Sort field (issue_date or title)"
// @Param sortOrder query string false "Sort order (asc or desc)"
// @Success 200 {object} response.Envelope
// @Router /circulars/search [get]
func (h *CircularHandler) Search(c *gin.Context) {
	circulars, err := h.service.Search(c.Request.Context(), searchRequestFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circulars, nil)
}

// List godoc
// @Summary List all circulars
// @Tags Circulars
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /circulars [get]
func (h *CircularHandler) List(c *gin.Context) {
	circulars, err := h.service.Search(c.Request.Context(), service.SearchCircularsRequest{})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circulars, nil)
}

// ListMine godoc
// @Summary List circulars issued by the caller (faculty)
// @Tags Circulars
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /circulars/mine [get]
func (h *CircularHandler) ListMine(c *gin.Context) {
	circulars, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circulars, nil)
}

// TrackStatus godoc
// @Summary Track approval status of the caller's circulars (faculty)
// @Tags Circulars
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /circulars/status [get]
func (h *CircularHandler) TrackStatus(c *gin.Context) {
	views, err := h.service.TrackStatus(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// ListForStudents godoc
// @Summary List approved circulars visible to students
// @Tags Circulars
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /circulars/student [get]
func (h *CircularHandler) ListForStudents(c *gin.Context) {
	circulars, err := h.service.ListForStudents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, circulars, nil)
}

// Export godoc
// @Summary Export the circular register as CSV or PDF (admin)
// @Tags Circulars
// @Produce octet-stream
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {file} binary
// @Router /circulars/export [get]
func (h *CircularHandler) Export(c *gin.Context) {
	content, filename, mime, err := h.service.ExportRegister(c.Request.Context(), searchRequestFromQuery(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, mime, content)
}

func searchRequestFromQuery(c *gin.Context) service.SearchCircularsRequest {
	return service.SearchCircularsRequest{
		Department:  c.Query("department"),
		ReferenceID: c.Query("referenceId"),
		Type:        c.Query("type"),
		Status:      c.Query("status"),
		Date:        c.Query("date"),
		SortBy:      c.Query("sortBy"),
		SortOrder:   c.Query("sortOrder"),
	}
}
