package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/circular-api/internal/models"
	"github.com/campusdesk/circular-api/internal/service"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
)

type eventServiceMock struct {
	createResp *models.Event
	createErr  error
	lastCreate service.CreateEventRequest
	lastActor  *models.JWTClaims

	listResp []models.Event
	lastList service.ListEventsRequest

	updateResp *models.Event
	updateErr  error
	deleteErr  error
}

func (m *eventServiceMock) Create(ctx context.Context, req service.CreateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	m.lastCreate = req
	m.lastActor = actor
	return m.createResp, m.createErr
}

func (m *eventServiceMock) Get(ctx context.Context, id string) (*models.Event, error) {
	return m.createResp, m.createErr
}

func (m *eventServiceMock) List(ctx context.Context, req service.ListEventsRequest) ([]models.Event, error) {
	m.lastList = req
	return m.listResp, nil
}

func (m *eventServiceMock) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Event, error) {
	m.lastActor = actor
	return m.listResp, nil
}

func (m *eventServiceMock) Update(ctx context.Context, id string, req service.UpdateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	m.lastActor = actor
	return m.updateResp, m.updateErr
}

func (m *eventServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	m.lastActor = actor
	return m.deleteErr
}

func TestEventHandlerCreate(t *testing.T) {
	mockSvc := &eventServiceMock{createResp: &models.Event{ID: "e1", Status: models.EventStatusUpcoming}}
	h := NewEventHandler(mockSvc)

	payload, _ := json.Marshal(map[string]interface{}{
		"title":      "Tech Fest",
		"department": "CSE",
		"event_date": "2026-09-01T10:00:00Z",
	})
	c, w := testContext(t, http.MethodPost, "/events", payload, &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Tech Fest", mockSvc.lastCreate.Title)
	assert.Equal(t, "fac-1", mockSvc.lastActor.UserID)
}

func TestEventHandlerCreateInvalidBody(t *testing.T) {
	h := NewEventHandler(&eventServiceMock{})

	c, w := testContext(t, http.MethodPost, "/events", []byte(`{"title"`), &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})

	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventHandlerListPassesFilters(t *testing.T) {
	mockSvc := &eventServiceMock{}
	h := NewEventHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/events?department=CSE&status=upcoming&date=2026-09-01", nil, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CSE", mockSvc.lastList.Department)
	assert.Equal(t, "upcoming", mockSvc.lastList.Status)
	assert.Equal(t, "2026-09-01", mockSvc.lastList.Date)
}

func TestEventHandlerUpdateForbidden(t *testing.T) {
	mockSvc := &eventServiceMock{updateErr: appErrors.Clone(appErrors.ErrForbidden, "you can only update your own events")}
	h := NewEventHandler(mockSvc)

	c, w := testContext(t, http.MethodPut, "/events/e1", []byte(`{"title":"Renamed"}`), &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	h.Update(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestEventHandlerDelete(t *testing.T) {
	mockSvc := &eventServiceMock{}
	h := NewEventHandler(mockSvc)

	c, w := testContext(t, http.MethodDelete, "/events/e1", nil, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	h.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "admin-1", mockSvc.lastActor.UserID)
}
