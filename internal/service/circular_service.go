package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusdesk/circular-api/internal/models"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
	"github.com/campusdesk/circular-api/pkg/export"
)

const (
	studentFeedCacheKey      = "circulars:student:v1"
	circularCachePattern     = "circulars:*"
	circularDateLayout       = "2006-01-02"
	circularRegisterTitle    = "Circular Register"
	circularRegisterCSVName  = "circular-register.csv"
	circularRegisterPDFName  = "circular-register.pdf"
	circularRegisterCSVMime  = "text/csv"
	circularRegisterPDFMime  = "application/pdf"
	registerFormatCSV        = "csv"
	registerFormatPDF        = "pdf"
	defaultRegisterSortField = "issue_date"
)

type circularRepository interface {
	Create(ctx context.Context, circular *models.Circular) error
	FindByID(ctx context.Context, id string) (*models.Circular, error)
	Search(ctx context.Context, filter models.CircularFilter) ([]models.Circular, error)
	ListByIssuer(ctx context.Context, issuerID string) ([]models.Circular, error)
	TrackStatus(ctx context.Context, issuerID string) ([]models.CircularStatusView, error)
	ListForAudience(ctx context.Context, audiences []string) ([]models.Circular, error)
	UpdateStatus(ctx context.Context, id string, status models.CircularStatus) (*models.Circular, error)
	Update(ctx context.Context, circular *models.Circular) error
	Delete(ctx context.Context, id string) error
}

type circularCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
	Enabled() bool
}

// CircularService owns the circular lifecycle: creation and submission entry
// points, the admin decision gate, the privileged status override, and the
// visibility-composed read paths.
type CircularService struct {
	repo      circularRepository
	cache     circularCache
	validator *validator.Validate
	logger    *zap.Logger
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
}

// NewCircularService constructs the service.
func NewCircularService(repo circularRepository, cache circularCache, validate *validator.Validate, logger *zap.Logger) *CircularService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CircularService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		logger:    logger,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
	}
	svc.validator.RegisterValidation("circulartype", func(fl validator.FieldLevel) bool {
		switch models.CircularType(strings.ToLower(fl.Field().String())) {
		case models.CircularTypeIncoming, models.CircularTypeOutgoing:
			return true
		default:
			return false
		}
	})
	return svc
}

// CreateCircularRequest describes the create/submit payload. The same shape
// serves both entry points; only the initial status differs by actor role.
type CreateCircularRequest struct {
	Title          string              `json:"title" validate:"required"`
	Type           string              `json:"type" validate:"required,circulartype"`
	Department     string              `json:"department" validate:"required"`
	TargetAudience models.AudienceSpec `json:"target_audience"`
	IssueDate      time.Time           `json:"issue_date" validate:"required"`
	ReceiveDate    *time.Time          `json:"receive_date"`
	ReferenceID    string              `json:"reference_id" validate:"required"`
	AttachmentURL  *string             `json:"attachment_url"`
}

// UpdateCircularRequest describes the admin full-field update payload.
// issued_by, reference_id and created_at are not editable.
type UpdateCircularRequest struct {
	Title          string              `json:"title" validate:"required"`
	Type           string              `json:"type" validate:"required,circulartype"`
	Department     string              `json:"department" validate:"required"`
	TargetAudience models.AudienceSpec `json:"target_audience"`
	Status         string              `json:"status" validate:"required"`
	IssueDate      time.Time           `json:"issue_date" validate:"required"`
	ReceiveDate    *time.Time          `json:"receive_date"`
	AttachmentURL  *string             `json:"attachment_url"`
}

// SearchCircularsRequest carries the shared search filters. Date is the
// "YYYY-MM-DD" day whose closed interval is matched against issue_date.
type SearchCircularsRequest struct {
	Department  string `json:"department"`
	ReferenceID string `json:"reference_id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	SortBy      string `json:"sort_by"`
	SortOrder   string `json:"sort_order"`
}

// Create registers a circular on behalf of the given actor. Admin-authored
// circulars enter the lifecycle at PENDING, faculty submissions at SUBMITTED.
func (s *CircularService) Create(ctx context.Context, req CreateCircularRequest, actor *models.JWTClaims) (*models.Circular, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid circular payload")
	}

	audience, err := NormalizeAudience(req.TargetAudience)
	if err != nil {
		return nil, err
	}

	circular := &models.Circular{
		Title:          req.Title,
		Type:           models.CircularType(strings.ToLower(req.Type)),
		IssuedBy:       actor.UserID,
		Department:     req.Department,
		TargetAudience: audience,
		Status:         initialStatus(actor.Role),
		IssueDate:      req.IssueDate,
		ReceiveDate:    req.ReceiveDate,
		ReferenceID:    req.ReferenceID,
		AttachmentURL:  req.AttachmentURL,
	}

	if err := s.repo.Create(ctx, circular); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create circular")
	}

	s.invalidateFeeds(ctx)
	s.logger.Info("circular created",
		zap.String("circular_id", circular.ID),
		zap.String("reference_id", circular.ReferenceID),
		zap.String("status", string(circular.Status)),
		zap.String("issued_by", circular.IssuedBy))
	return circular, nil
}

// Get returns a circular by id.
func (s *CircularService) Get(ctx context.Context, id string) (*models.Circular, error) {
	circular, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get circular")
	}
	return circular, nil
}

// Decide applies the admin approve/reject gate. Any target status other than
// APPROVED or REJECTED fails validation regardless of the current state.
func (s *CircularService) Decide(ctx context.Context, id string, status string) (*models.Circular, error) {
	target := models.CircularStatus(strings.ToLower(status))
	if target != models.CircularStatusApproved && target != models.CircularStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}

	circular, err := s.repo.UpdateStatus(ctx, id, target)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update circular status")
	}

	s.invalidateFeeds(ctx)
	s.logger.Info("circular decision recorded",
		zap.String("circular_id", id),
		zap.String("status", string(target)))
	return circular, nil
}

// ForceSetStatus is the privileged override: it writes any of the five
// lifecycle statuses without transition validation, bypassing the decision
// gate. It exists as a separate operation so the dual path is explicit.
func (s *CircularService) ForceSetStatus(ctx context.Context, id string, status string) (*models.Circular, error) {
	target := models.CircularStatus(strings.ToLower(status))
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
	}

	circular, err := s.repo.UpdateStatus(ctx, id, target)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set circular status")
	}

	s.invalidateFeeds(ctx)
	s.logger.Info("circular status overridden",
		zap.String("circular_id", id),
		zap.String("status", string(target)))
	return circular, nil
}

// Update applies an admin full-field update. Audience is re-normalized and
// the status must be a known lifecycle value; issued_by, reference_id and
// created_at are preserved from the stored row.
func (s *CircularService) Update(ctx context.Context, id string, req UpdateCircularRequest) (*models.Circular, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid circular payload")
	}
	status := models.CircularStatus(strings.ToLower(req.Status))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}
	audience, err := NormalizeAudience(req.TargetAudience)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load circular")
	}

	existing.Title = req.Title
	existing.Type = models.CircularType(strings.ToLower(req.Type))
	existing.Department = req.Department
	existing.TargetAudience = audience
	existing.Status = status
	existing.IssueDate = req.IssueDate
	existing.ReceiveDate = req.ReceiveDate
	existing.AttachmentURL = req.AttachmentURL

	if err := s.repo.Update(ctx, existing); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update circular")
	}

	s.invalidateFeeds(ctx)
	return existing, nil
}

// Delete removes a circular irrecoverably.
func (s *CircularService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "circular not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete circular")
	}
	s.invalidateFeeds(ctx)
	return nil
}

// Search runs the shared field-filter engine. It applies no audience or
// ownership restriction; callers compose it with role views when needed.
func (s *CircularService) Search(ctx context.Context, req SearchCircularsRequest) ([]models.Circular, error) {
	filter, err := s.buildFilter(req)
	if err != nil {
		return nil, err
	}
	circulars, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search circulars")
	}
	return circulars, nil
}

// ListMine returns the actor's own circulars regardless of status.
func (s *CircularService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Circular, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	circulars, err := s.repo.ListByIssuer(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list circulars")
	}
	return circulars, nil
}

// TrackStatus returns the title/status projection for the actor's circulars.
func (s *CircularService) TrackStatus(ctx context.Context, actor *models.JWTClaims) ([]models.CircularStatusView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	views, err := s.repo.TrackStatus(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to track circular status")
	}
	return views, nil
}

// ListForStudents returns approved circulars whose stored audience overlaps
// the student-visible tokens. The result is cached; every write path
// invalidates the feed.
func (s *CircularService) ListForStudents(ctx context.Context) ([]models.Circular, error) {
	if s.cache != nil && s.cache.Enabled() {
		var cached []models.Circular
		if hit, err := s.cache.Get(ctx, studentFeedCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	circulars, err := s.repo.ListForAudience(ctx, models.StudentVisibleAudiences)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student circulars")
	}

	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Set(ctx, studentFeedCacheKey, circulars, 0); err != nil {
			s.logger.Warn("failed to cache student feed", zap.Error(err))
		}
	}
	return circulars, nil
}

// ExportRegister renders the filtered circular register as CSV or PDF and
// returns content, filename and MIME type.
func (s *CircularService) ExportRegister(ctx context.Context, req SearchCircularsRequest, format string) ([]byte, string, string, error) {
	if req.SortBy == "" {
		req.SortBy = defaultRegisterSortField
	}
	circulars, err := s.Search(ctx, req)
	if err != nil {
		return nil, "", "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Reference ID", "Title", "Type", "Department", "Audience", "Status", "Issue Date"},
	}
	for _, c := range circulars {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Reference ID": c.ReferenceID,
			"Title":        c.Title,
			"Type":         string(c.Type),
			"Department":   c.Department,
			"Audience":     strings.Join(c.TargetAudience, ","),
			"Status":       string(c.Status),
			"Issue Date":   c.IssueDate.Format(circularDateLayout),
		})
	}

	switch strings.ToLower(format) {
	case registerFormatPDF:
		content, err := s.pdf.Render(dataset, circularRegisterTitle)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render register pdf")
		}
		return content, circularRegisterPDFName, circularRegisterPDFMime, nil
	case registerFormatCSV, "":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render register csv")
		}
		return content, circularRegisterCSVName, circularRegisterCSVMime, nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *CircularService) buildFilter(req SearchCircularsRequest) (models.CircularFilter, error) {
	filter := models.CircularFilter{
		Department:  req.Department,
		ReferenceID: req.ReferenceID,
		Type:        strings.ToLower(req.Type),
		Status:      strings.ToLower(req.Status),
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
	}
	if req.Date != "" {
		day, err := time.ParseInLocation(circularDateLayout, req.Date, time.Local)
		if err != nil {
			return models.CircularFilter{}, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
		}
		filter.IssuedOn = &day
	}
	return filter, nil
}

func (s *CircularService) invalidateFeeds(ctx context.Context) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, circularCachePattern); err != nil {
		s.logger.Warn("failed to invalidate circular cache", zap.Error(err))
	}
}

func initialStatus(role models.UserRole) models.CircularStatus {
	if role == models.RoleFaculty {
		return models.CircularStatusSubmitted
	}
	return models.CircularStatusPending
}
