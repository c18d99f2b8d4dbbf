package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/circular-api/internal/service"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
	"github.com/campusdesk/circular-api/pkg/response"
)

// AttachmentHandler exposes attachment upload and signed download endpoints.
type AttachmentHandler struct {
	service *service.AttachmentService
}

// NewAttachmentHandler builds a new handler.
func NewAttachmentHandler(service *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Upload godoc
// @Summary Upload a circular attachment (admin or faculty)
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Attachment file (PDF)"
// @Success 201 {object} response.Envelope
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	uploaded, err := h.service.Upload(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, uploaded)
}

type resignRequest struct {
	Token string `json:"token" binding:"required"`
}

// Resign godoc
// @Summary Exchange a stored download token for a freshly signed one (admin or faculty)
// @Tags Attachments
// @Accept json
// @Produce json
// @Param request body resignRequest true "Previously issued download token"
// @Success 200 {object} response.Envelope
// @Router /attachments/resign [post]
func (h *AttachmentHandler) Resign(c *gin.Context) {
	var req resignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "token is required"))
		return
	}

	signed, err := h.service.Resign(req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed, nil)
}

// Download godoc
// @Summary Download an attachment via signed token
// @Tags Attachments
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token query parameter is required"))
		return
	}

	file, _, err := h.service.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}
