package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/circular-api/internal/models"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func circularRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "type", "issued_by", "department", "target_audience",
		"status", "issue_date", "receive_date", "reference_id", "attachment_url", "created_at",
	})
}

func TestCircularRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectExec("INSERT INTO circulars").
		WithArgs(sqlmock.AnyArg(), "Semester Holidays", "outgoing", "admin-1", "CSE",
			sqlmock.AnyArg(), "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), "CIR-2026-001",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	circular := &models.Circular{
		Title:          "Semester Holidays",
		Type:           models.CircularTypeOutgoing,
		IssuedBy:       "admin-1",
		Department:     "CSE",
		TargetAudience: pq.StringArray{"student"},
		Status:         models.CircularStatusPending,
		IssueDate:      time.Now(),
		ReferenceID:    "CIR-2026-001",
	}
	require.NoError(t, repo.Create(context.Background(), circular))
	assert.NotEmpty(t, circular.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularRepositoryCreateDuplicateReference(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectExec("INSERT INTO circulars").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "circulars_reference_id_key"})

	err := repo.Create(context.Background(), &models.Circular{
		Title:          "Duplicate",
		Type:           models.CircularTypeOutgoing,
		IssuedBy:       "admin-1",
		Department:     "CSE",
		TargetAudience: pq.StringArray{"student"},
		Status:         models.CircularStatusPending,
		IssueDate:      time.Now(),
		ReferenceID:    "CIR-2026-001",
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularRepositoryFindByIDNoRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, type, issued_by, department, target_audience, status, issue_date, receive_date, reference_id, attachment_url, created_at FROM circulars WHERE id = $1 LIMIT 1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularRepositorySearchComposesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)
	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)
	dayEnd := time.Date(2026, 3, 11, 0, 0, 0, 0, time.Local).Add(-time.Nanosecond)

	mock.ExpectQuery(regexp.QuoteMeta("FROM circulars WHERE 1=1 AND department = $1 AND status = $2 AND issue_date >= $3 AND issue_date <= $4 ORDER BY issue_date DESC")).
		WithArgs("CSE", "approved", dayStart, dayEnd).
		WillReturnRows(circularRows().AddRow(
			"c1", "Semester Holidays", "outgoing", "admin-1", "CSE", "{student}",
			"approved", day, nil, "CIR-2026-001", nil, time.Now()))

	circulars, err := repo.Search(context.Background(), models.CircularFilter{
		Department: "CSE",
		Status:     "approved",
		IssuedOn:   &day,
		SortBy:     "issue_date",
		SortOrder:  "desc",
	})
	require.NoError(t, err)
	require.Len(t, circulars, 1)
	assert.Equal(t, "CIR-2026-001", circulars[0].ReferenceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularRepositorySearchIgnoresUnknownSort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM circulars WHERE 1=1") + "$").
		WillReturnRows(circularRows())

	_, err := repo.Search(context.Background(), models.CircularFilter{SortBy: "created_at; DROP TABLE circulars"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularRepositoryListForAudience(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM circulars WHERE status = $1 AND target_audience && $2")).
		WithArgs("approved", pq.Array(models.StudentVisibleAudiences)).
		WillReturnRows(circularRows().AddRow(
			"c1", "Semester Holidays", "outgoing", "admin-1", "CSE", "{student}",
			"approved", time.Now(), nil, "CIR-2026-001", nil, time.Now()))

	circulars, err := repo.ListForAudience(context.Background(), models.StudentVisibleAudiences)
	require.NoError(t, err)
	assert.Len(t, circulars, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularRepositoryUpdateStatusReturnsRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE circulars SET status = $2 WHERE id = $1 RETURNING")).
		WithArgs("c1", "approved").
		WillReturnRows(circularRows().AddRow(
			"c1", "Semester Holidays", "outgoing", "admin-1", "CSE", "{student}",
			"approved", time.Now(), nil, "CIR-2026-001", nil, time.Now()))

	circular, err := repo.UpdateStatus(context.Background(), "c1", models.CircularStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.CircularStatusApproved, circular.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM circulars WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCircularRepositoryCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCircularRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM circulars")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDayBoundsCoversWholeLocalDay(t *testing.T) {
	day := time.Date(2026, 3, 10, 15, 30, 0, 0, time.Local)
	start, end := dayBounds(day)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local), start)
	assert.True(t, end.Before(time.Date(2026, 3, 11, 0, 0, 0, 0, time.Local)))
	assert.True(t, end.After(time.Date(2026, 3, 10, 23, 59, 59, 0, time.Local)))
}

func TestDayBoundsOnDSTTransitionDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	// 2026-03-08 is 23 hours long, 2026-11-01 is 25 hours long.
	start, end := dayBounds(time.Date(2026, 3, 8, 12, 0, 0, 0, loc))
	assert.Equal(t, 8, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 23*time.Hour-time.Nanosecond, end.Sub(start))

	start, end = dayBounds(time.Date(2026, 11, 1, 12, 0, 0, 0, loc))
	assert.Equal(t, 1, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 25*time.Hour-time.Nanosecond, end.Sub(start))
}
