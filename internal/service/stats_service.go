package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campusdesk/circular-api/internal/models"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
)

type circularCounter interface {
	Count(ctx context.Context) (int, error)
}

type eventCounter interface {
	Count(ctx context.Context) (int, error)
}

type userCounter interface {
	CountByRole(ctx context.Context) (*models.UserCounts, error)
}

// DashboardCounts aggregates the totals shown on the admin dashboard.
type DashboardCounts struct {
	Users     models.UserCounts `json:"users"`
	Circulars int               `json:"circulars"`
	Events    int               `json:"events"`
}

// StatsService aggregates counts across the domain repositories.
type StatsService struct {
	circulars circularCounter
	events    eventCounter
	users     userCounter
	logger    *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(circulars circularCounter, events eventCounter, users userCounter, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{circulars: circulars, events: events, users: users, logger: logger}
}

// Dashboard returns totals for users by role, circulars and events.
func (s *StatsService) Dashboard(ctx context.Context) (*DashboardCounts, error) {
	userCounts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	circularTotal, err := s.circulars.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count circulars")
	}
	eventTotal, err := s.events.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count events")
	}
	return &DashboardCounts{
		Users:     *userCounts,
		Circulars: circularTotal,
		Events:    eventTotal,
	}, nil
}
