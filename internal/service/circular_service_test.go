package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdesk/circular-api/internal/models"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
)

type stubCircularRepo struct {
	created       *models.Circular
	createErr     error
	findResult    *models.Circular
	findErr       error
	searchFilter  models.CircularFilter
	searchResult  []models.Circular
	searchErr     error
	issuerID      string
	issuerResult  []models.Circular
	statusID      string
	statusTarget  models.CircularStatus
	statusResult  *models.Circular
	statusErr     error
	updated       *models.Circular
	deletedID     string
	deleteErr     error
	audienceQuery []string
	feedResult    []models.Circular
}

func (s *stubCircularRepo) Create(ctx context.Context, circular *models.Circular) error {
	s.created = circular
	return s.createErr
}

func (s *stubCircularRepo) FindByID(ctx context.Context, id string) (*models.Circular, error) {
	return s.findResult, s.findErr
}

func (s *stubCircularRepo) Search(ctx context.Context, filter models.CircularFilter) ([]models.Circular, error) {
	s.searchFilter = filter
	return s.searchResult, s.searchErr
}

func (s *stubCircularRepo) ListByIssuer(ctx context.Context, issuerID string) ([]models.Circular, error) {
	s.issuerID = issuerID
	return s.issuerResult, nil
}

func (s *stubCircularRepo) TrackStatus(ctx context.Context, issuerID string) ([]models.CircularStatusView, error) {
	s.issuerID = issuerID
	return []models.CircularStatusView{{ID: "c1", Title: "Exam Schedule", Status: models.CircularStatusPending}}, nil
}

func (s *stubCircularRepo) ListForAudience(ctx context.Context, audiences []string) ([]models.Circular, error) {
	s.audienceQuery = audiences
	return s.feedResult, nil
}

func (s *stubCircularRepo) UpdateStatus(ctx context.Context, id string, status models.CircularStatus) (*models.Circular, error) {
	s.statusID = id
	s.statusTarget = status
	return s.statusResult, s.statusErr
}

func (s *stubCircularRepo) Update(ctx context.Context, circular *models.Circular) error {
	s.updated = circular
	return nil
}

func (s *stubCircularRepo) Delete(ctx context.Context, id string) error {
	s.deletedID = id
	return s.deleteErr
}

type stubCircularCache struct {
	enabled     bool
	store       map[string][]models.Circular
	invalidated []string
	setKeys     []string
}

func newStubCircularCache() *stubCircularCache {
	return &stubCircularCache{enabled: true, store: map[string][]models.Circular{}}
}

func (c *stubCircularCache) Enabled() bool { return c.enabled }

func (c *stubCircularCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	cached, ok := c.store[key]
	if !ok {
		return false, nil
	}
	*(dest.(*[]models.Circular)) = cached
	return true, nil
}

func (c *stubCircularCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.setKeys = append(c.setKeys, key)
	if circulars, ok := value.([]models.Circular); ok {
		c.store[key] = circulars
	}
	return nil
}

func (c *stubCircularCache) Invalidate(ctx context.Context, pattern string) error {
	c.invalidated = append(c.invalidated, pattern)
	c.store = map[string][]models.Circular{}
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func facultyClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty}
}

func validCreateRequest() CreateCircularRequest {
	return CreateCircularRequest{
		Title:          "Semester Holidays",
		Type:           "outgoing",
		Department:     "CSE",
		TargetAudience: models.NewAudienceSpec("Student", "FACULTY", "student"),
		IssueDate:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local),
		ReferenceID:    "CIR-2026-001",
	}
}

func TestCircularCreateAdminStartsPending(t *testing.T) {
	repo := &stubCircularRepo{}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	circular, err := svc.Create(context.Background(), validCreateRequest(), adminClaims())
	require.NoError(t, err)

	assert.Equal(t, models.CircularStatusPending, circular.Status)
	assert.Equal(t, "admin-1", circular.IssuedBy)
	assert.Equal(t, []string{"faculty", "student"}, []string(circular.TargetAudience))
}

func TestCircularCreateFacultyStartsSubmitted(t *testing.T) {
	repo := &stubCircularRepo{}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	circular, err := svc.Create(context.Background(), validCreateRequest(), facultyClaims())
	require.NoError(t, err)

	assert.Equal(t, models.CircularStatusSubmitted, circular.Status)
	assert.Equal(t, "fac-1", circular.IssuedBy)
}

func TestCircularCreateRejectsUnknownAudience(t *testing.T) {
	repo := &stubCircularRepo{}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	req := validCreateRequest()
	req.TargetAudience = models.NewAudienceSpec("everyone")

	_, err := svc.Create(context.Background(), req, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestCircularCreateRejectsUnknownType(t *testing.T) {
	svc := NewCircularService(&stubCircularRepo{}, nil, nil, zap.NewNop())

	req := validCreateRequest()
	req.Type = "sideways"

	_, err := svc.Create(context.Background(), req, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCircularCreatePropagatesReferenceConflict(t *testing.T) {
	repo := &stubCircularRepo{
		createErr: appErrors.Clone(appErrors.ErrConflict, "reference id must be unique"),
	}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), validCreateRequest(), adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCircularDecideAcceptsApprovedAndRejected(t *testing.T) {
	for _, status := range []string{"approved", "Rejected"} {
		repo := &stubCircularRepo{statusResult: &models.Circular{ID: "c1"}}
		cache := newStubCircularCache()
		svc := NewCircularService(repo, cache, nil, zap.NewNop())

		_, err := svc.Decide(context.Background(), "c1", status)
		require.NoError(t, err)
		assert.Equal(t, models.CircularStatus(strings.ToLower(status)), repo.statusTarget)
		assert.NotEmpty(t, cache.invalidated)
	}
}

func TestCircularDecideRejectsOtherStatuses(t *testing.T) {
	for _, status := range []string{"pending", "submitted", "published", "archived", ""} {
		repo := &stubCircularRepo{}
		svc := NewCircularService(repo, nil, nil, zap.NewNop())

		_, err := svc.Decide(context.Background(), "c1", status)
		require.Error(t, err, "status %q must be rejected", status)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		assert.Empty(t, repo.statusID, "repository must not be touched for %q", status)
	}
}

func TestCircularDecideMissingCircular(t *testing.T) {
	repo := &stubCircularRepo{statusErr: sql.ErrNoRows}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	_, err := svc.Decide(context.Background(), "missing", "approved")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCircularForceSetStatusAcceptsAllLifecycleValues(t *testing.T) {
	for _, status := range []string{"submitted", "pending", "approved", "rejected", "published"} {
		repo := &stubCircularRepo{statusResult: &models.Circular{ID: "c1"}}
		svc := NewCircularService(repo, nil, nil, zap.NewNop())

		_, err := svc.ForceSetStatus(context.Background(), "c1", status)
		require.NoError(t, err, "status %q must be accepted", status)
		assert.Equal(t, models.CircularStatus(status), repo.statusTarget)
	}
}

func TestCircularForceSetStatusRejectsUnknownValue(t *testing.T) {
	repo := &stubCircularRepo{}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	_, err := svc.ForceSetStatus(context.Background(), "c1", "archived")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.statusID)
}

func TestCircularUpdatePreservesImmutableFields(t *testing.T) {
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	repo := &stubCircularRepo{
		findResult: &models.Circular{
			ID:          "c1",
			IssuedBy:    "fac-1",
			ReferenceID: "CIR-2026-001",
			CreatedAt:   created,
			Status:      models.CircularStatusSubmitted,
		},
	}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	updated, err := svc.Update(context.Background(), "c1", UpdateCircularRequest{
		Title:          "Revised Holidays",
		Type:           "incoming",
		Department:     "ECE",
		TargetAudience: models.NewAudienceSpec("faculty"),
		Status:         "approved",
		IssueDate:      time.Date(2026, 3, 12, 0, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	assert.Equal(t, "fac-1", updated.IssuedBy)
	assert.Equal(t, "CIR-2026-001", updated.ReferenceID)
	assert.Equal(t, created, updated.CreatedAt)
	assert.Equal(t, models.CircularStatusApproved, updated.Status)
	assert.Equal(t, "Revised Holidays", repo.updated.Title)
}

func TestCircularUpdateRejectsUnknownStatus(t *testing.T) {
	svc := NewCircularService(&stubCircularRepo{}, nil, nil, zap.NewNop())

	_, err := svc.Update(context.Background(), "c1", UpdateCircularRequest{
		Title:          "Revised",
		Type:           "incoming",
		Department:     "ECE",
		TargetAudience: models.NewAudienceSpec("faculty"),
		Status:         "archived",
		IssueDate:      time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCircularSearchParsesDateFilter(t *testing.T) {
	repo := &stubCircularRepo{}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	_, err := svc.Search(context.Background(), SearchCircularsRequest{
		Department: "CSE",
		Date:       "2026-03-10",
		SortBy:     "issue_date",
		SortOrder:  "desc",
	})
	require.NoError(t, err)

	require.NotNil(t, repo.searchFilter.IssuedOn)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local), *repo.searchFilter.IssuedOn)
	assert.Equal(t, "CSE", repo.searchFilter.Department)
}

func TestCircularSearchRejectsMalformedDate(t *testing.T) {
	svc := NewCircularService(&stubCircularRepo{}, nil, nil, zap.NewNop())

	_, err := svc.Search(context.Background(), SearchCircularsRequest{Date: "10-03-2026"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCircularListMineScopesToActor(t *testing.T) {
	repo := &stubCircularRepo{issuerResult: []models.Circular{{ID: "c1"}}}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	circulars, err := svc.ListMine(context.Background(), facultyClaims())
	require.NoError(t, err)
	assert.Len(t, circulars, 1)
	assert.Equal(t, "fac-1", repo.issuerID)
}

func TestCircularListForStudentsQueriesVisibleAudiences(t *testing.T) {
	repo := &stubCircularRepo{feedResult: []models.Circular{{ID: "c1", Status: models.CircularStatusApproved}}}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	circulars, err := svc.ListForStudents(context.Background())
	require.NoError(t, err)
	assert.Len(t, circulars, 1)
	assert.Equal(t, models.StudentVisibleAudiences, repo.audienceQuery)
}

func TestCircularListForStudentsServesFromCache(t *testing.T) {
	repo := &stubCircularRepo{feedResult: []models.Circular{{ID: "c1"}}}
	cache := newStubCircularCache()
	svc := NewCircularService(repo, cache, nil, zap.NewNop())

	first, err := svc.ListForStudents(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Contains(t, cache.setKeys, studentFeedCacheKey)

	repo.feedResult = nil
	second, err := svc.ListForStudents(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 1, "second read must come from cache")
}

func TestCircularDeleteInvalidatesFeed(t *testing.T) {
	repo := &stubCircularRepo{}
	cache := newStubCircularCache()
	svc := NewCircularService(repo, cache, nil, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "c1"))
	assert.Equal(t, "c1", repo.deletedID)
	assert.Contains(t, cache.invalidated, circularCachePattern)
}

func TestCircularExportRegisterCSV(t *testing.T) {
	repo := &stubCircularRepo{searchResult: []models.Circular{{
		ReferenceID:    "CIR-2026-001",
		Title:          "Semester Holidays",
		Type:           models.CircularTypeOutgoing,
		Department:     "CSE",
		TargetAudience: []string{"student"},
		Status:         models.CircularStatusApproved,
		IssueDate:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}}}
	svc := NewCircularService(repo, nil, nil, zap.NewNop())

	content, filename, mime, err := svc.ExportRegister(context.Background(), SearchCircularsRequest{}, "csv")
	require.NoError(t, err)

	assert.Equal(t, "circular-register.csv", filename)
	assert.Equal(t, "text/csv", mime)
	assert.Contains(t, string(content), "CIR-2026-001")
	assert.Contains(t, string(content), "Semester Holidays")
}

func TestCircularExportRegisterRejectsUnknownFormat(t *testing.T) {
	svc := NewCircularService(&stubCircularRepo{}, nil, nil, zap.NewNop())

	_, _, _, err := svc.ExportRegister(context.Background(), SearchCircularsRequest{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
