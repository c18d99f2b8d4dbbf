package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusdesk/circular-api/internal/models"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
)

const circularColumns = `id, title, type, issued_by, department, target_audience, status, issue_date, receive_date, reference_id, attachment_url, created_at`

// CircularRepository provides persistence for circulars.
type CircularRepository struct {
	db *sqlx.DB
}

// NewCircularRepository creates the repository.
func NewCircularRepository(db *sqlx.DB) *CircularRepository {
	return &CircularRepository{db: db}
}

// Create inserts a new circular. The unique index on reference_id makes the
// check-and-insert atomic: of two concurrent creates with the same reference
// id exactly one succeeds, the other surfaces a conflict.
func (r *CircularRepository) Create(ctx context.Context, circular *models.Circular) error {
	if circular.ID == "" {
		circular.ID = uuid.NewString()
	}
	if circular.CreatedAt.IsZero() {
		circular.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO circulars (id, title, type, issued_by, department, target_audience, status, issue_date, receive_date, reference_id, attachment_url, created_at)
VALUES (:id, :title, :type, :issued_by, :department, :target_audience, :status, :issue_date, :receive_date, :reference_id, :attachment_url, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, circular); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "reference id must be unique")
		}
		return fmt.Errorf("create circular: %w", err)
	}
	return nil
}

// FindByID returns a circular by identifier.
func (r *CircularRepository) FindByID(ctx context.Context, id string) (*models.Circular, error) {
	query := fmt.Sprintf("SELECT %s FROM circulars WHERE id = $1 LIMIT 1", circularColumns)
	var circular models.Circular
	if err := r.db.GetContext(ctx, &circular, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find circular by id: %w", err)
	}
	return &circular, nil
}

// Search returns circulars matching all supplied filters. Absent filters are
// no-ops. Results are unpaginated; ordering is natural unless a sort is
// requested.
func (r *CircularRepository) Search(ctx context.Context, filter models.CircularFilter) ([]models.Circular, error) {
	baseQuery := "FROM circulars WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.ReferenceID != "" {
		conditions = append(conditions, fmt.Sprintf("reference_id = $%d", len(args)+1))
		args = append(args, filter.ReferenceID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.IssuedOn != nil {
		dayStart, dayEnd := dayBounds(*filter.IssuedOn)
		conditions = append(conditions, fmt.Sprintf("issue_date >= $%d AND issue_date <= $%d", len(args)+1, len(args)+2))
		args = append(args, dayStart, dayEnd)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s%s", circularColumns, baseQuery, sortClause(filter.SortBy, filter.SortOrder))

	var circulars []models.Circular
	if err := r.db.SelectContext(ctx, &circulars, query, args...); err != nil {
		return nil, fmt.Errorf("search circulars: %w", err)
	}
	return circulars, nil
}

// ListByIssuer returns every circular issued by the given account,
// independent of status.
func (r *CircularRepository) ListByIssuer(ctx context.Context, issuerID string) ([]models.Circular, error) {
	query := fmt.Sprintf("SELECT %s FROM circulars WHERE issued_by = $1", circularColumns)
	var circulars []models.Circular
	if err := r.db.SelectContext(ctx, &circulars, query, issuerID); err != nil {
		return nil, fmt.Errorf("list circulars by issuer: %w", err)
	}
	return circulars, nil
}

// TrackStatus returns the title/status projection for an issuer's circulars.
func (r *CircularRepository) TrackStatus(ctx context.Context, issuerID string) ([]models.CircularStatusView, error) {
	const query = `SELECT id, title, status FROM circulars WHERE issued_by = $1`
	var views []models.CircularStatusView
	if err := r.db.SelectContext(ctx, &views, query, issuerID); err != nil {
		return nil, fmt.Errorf("track circular status: %w", err)
	}
	return views, nil
}

// ListForAudience returns approved circulars whose stored audience overlaps
// the provided tokens. The match is literal set overlap, not a derived union.
func (r *CircularRepository) ListForAudience(ctx context.Context, audiences []string) ([]models.Circular, error) {
	query := fmt.Sprintf("SELECT %s FROM circulars WHERE status = $1 AND target_audience && $2", circularColumns)
	var circulars []models.Circular
	if err := r.db.SelectContext(ctx, &circulars, query, models.CircularStatusApproved, pq.Array(audiences)); err != nil {
		return nil, fmt.Errorf("list circulars for audience: %w", err)
	}
	return circulars, nil
}

// UpdateStatus persists a new status and returns the updated row. Only the
// status column changes; issued_by, reference_id and created_at are untouched.
func (r *CircularRepository) UpdateStatus(ctx context.Context, id string, status models.CircularStatus) (*models.Circular, error) {
	query := fmt.Sprintf("UPDATE circulars SET status = $2 WHERE id = $1 RETURNING %s", circularColumns)
	var circular models.Circular
	if err := r.db.GetContext(ctx, &circular, query, id, status); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update circular status: %w", err)
	}
	return &circular, nil
}

// Update modifies the admin-editable fields of an existing circular.
func (r *CircularRepository) Update(ctx context.Context, circular *models.Circular) error {
	const query = `UPDATE circulars SET title = :title, type = :type, department = :department,
target_audience = :target_audience, status = :status, issue_date = :issue_date,
receive_date = :receive_date, attachment_url = :attachment_url
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, circular)
	if err != nil {
		return fmt.Errorf("update circular: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a circular irrecoverably.
func (r *CircularRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM circulars WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete circular: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of circulars.
func (r *CircularRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM circulars"); err != nil {
		return 0, fmt.Errorf("count circulars: %w", err)
	}
	return total, nil
}

// dayBounds returns the closed [start-of-day, end-of-day] interval for the
// given date in the server's local calendar. The end is anchored to the next
// calendar midnight rather than start+24h, so DST transition days keep their
// real 23 or 25 hour length.
func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location()).Add(-time.Nanosecond)
	return start, end
}

// sortClause maps the caller-supplied presentational sort onto a safe ORDER
// BY fragment. Unknown fields fall back to natural storage order.
func sortClause(sortBy, sortOrder string) string {
	allowedSorts := map[string]string{
		"issue_date": "issue_date",
		"title":      "title",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		return ""
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, order)
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
