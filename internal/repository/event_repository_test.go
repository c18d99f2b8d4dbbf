package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/circular-api/internal/models"
)

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "department", "event_date", "status", "created_by", "created_at",
	})
}

func TestEventRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("INSERT INTO events").
		WithArgs(sqlmock.AnyArg(), "Tech Fest", "", "CSE", sqlmock.AnyArg(), "upcoming", "fac-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{
		Title:      "Tech Fest",
		Department: "CSE",
		EventDate:  time.Now(),
		Status:     models.EventStatusUpcoming,
		CreatedBy:  "fac-1",
	}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListComposesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)
	dayStart := day
	dayEnd := time.Date(2026, 9, 2, 0, 0, 0, 0, time.Local).Add(-time.Nanosecond)

	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE 1=1 AND department = $1 AND status = $2 AND event_date >= $3 AND event_date <= $4")).
		WithArgs("CSE", "upcoming", dayStart, dayEnd).
		WillReturnRows(eventRows().AddRow(
			"e1", "Tech Fest", "", "CSE", day, "upcoming", "fac-1", time.Now()))

	events, err := repo.List(context.Background(), models.EventFilter{
		Department: "CSE",
		Status:     "upcoming",
		HeldOn:     &day,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Tech Fest", events[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryListByCreator(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE created_by = $1")).
		WithArgs("fac-1").
		WillReturnRows(eventRows().AddRow(
			"e1", "Tech Fest", "", "CSE", time.Now(), "upcoming", "fac-1", time.Now()))

	events, err := repo.ListByCreator(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("UPDATE events SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Event{ID: "missing", Title: "x"})
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM events")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
