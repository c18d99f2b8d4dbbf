package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusdesk/circular-api/internal/models"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
}

// EventService handles calendar event workflows. Events reuse the ownership
// pattern of circulars but carry no approval lifecycle.
type EventService struct {
	repo      eventRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(repo eventRepository, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EventService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("eventstatus", func(fl validator.FieldLevel) bool {
		switch models.EventStatus(strings.ToLower(fl.Field().String())) {
		case models.EventStatusUpcoming, models.EventStatusOngoing, models.EventStatusCompleted:
			return true
		default:
			return false
		}
	})
	return svc
}

// CreateEventRequest describes the create payload. Status defaults to
// upcoming when absent.
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Department  string    `json:"department" validate:"required"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	Status      string    `json:"status" validate:"omitempty,eventstatus"`
}

// UpdateEventRequest describes the partial update payload. Empty fields keep
// the stored value.
type UpdateEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Department  string     `json:"department"`
	EventDate   *time.Time `json:"event_date"`
	Status      string     `json:"status" validate:"omitempty,eventstatus"`
}

// ListEventsRequest carries listing filters.
type ListEventsRequest struct {
	Department string `json:"department"`
	Status     string `json:"status"`
	Date       string `json:"date"`
}

// Create registers a new event for the acting user.
func (s *EventService) Create(ctx context.Context, req CreateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	status := models.EventStatus(strings.ToLower(req.Status))
	if status == "" {
		status = models.EventStatusUpcoming
	}

	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Department:  req.Department,
		EventDate:   req.EventDate,
		Status:      status,
		CreatedBy:   actor.UserID,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.logger.Info("event created", zap.String("event_id", event.ID), zap.String("created_by", event.CreatedBy))
	return event, nil
}

// Get returns an event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get event")
	}
	return event, nil
}

// List returns events matching the supplied filters.
func (s *EventService) List(ctx context.Context, req ListEventsRequest) ([]models.Event, error) {
	filter := models.EventFilter{
		Department: req.Department,
		Status:     strings.ToLower(req.Status),
	}
	if req.Date != "" {
		day, err := time.ParseInLocation(circularDateLayout, req.Date, time.Local)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
		}
		filter.HeldOn = &day
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// ListMine returns events created by the acting user.
func (s *EventService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	events, err := s.repo.ListByCreator(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// Update modifies an event. Only an admin or the original creator may
// mutate it; anyone else is rejected outright rather than filtered.
func (s *EventService) Update(ctx context.Context, id string, req UpdateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	if actor.Role != models.RoleAdmin && event.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only update your own events")
	}

	if req.Title != "" {
		event.Title = req.Title
	}
	if req.Description != "" {
		event.Description = req.Description
	}
	if req.Department != "" {
		event.Department = req.Department
	}
	if req.EventDate != nil {
		event.EventDate = *req.EventDate
	}
	if req.Status != "" {
		event.Status = models.EventStatus(strings.ToLower(req.Status))
	}

	if err := s.repo.Update(ctx, event); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Delete removes an event. Admins may delete any event; faculty only their
// own.
func (s *EventService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}

	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	if actor.Role != models.RoleAdmin && event.CreatedBy != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only delete your own events")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}
