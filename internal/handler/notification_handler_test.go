package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collegeportal/portal-api/internal/middleware"
	"github.com/collegeportal/portal-api/internal/models"
	"github.com/collegeportal/portal-api/internal/push"
	"github.com/collegeportal/portal-api/internal/service"
	"github.com/collegeportal/portal-api/pkg/config"
)

type stubNotificationRepo struct {
	listed     []models.Notification
	readOK     bool
	readCount  int64
	lastUserID int64
}

func (s *stubNotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	n.ID = 1
	n.CreatedAt = time.Now()
	return nil
}

func (s *stubNotificationRepo) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	s.lastUserID = userID
	return s.listed, nil
}

func (s *stubNotificationRepo) MarkRead(ctx context.Context, notificationID, userID int64) (bool, error) {
	s.lastUserID = userID
	return s.readOK, nil
}

func (s *stubNotificationRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.readCount, nil
}

func newNotificationHandler(repo *stubNotificationRepo) *NotificationHandler {
	hub := push.NewHub(nil)
	svc := service.NewNotificationService(repo, hub, config.NotificationsConfig{Workers: 1, BufferSize: 1}, nil)
	return NewNotificationHandler(svc, hub, nil)
}

func authedContext(t *testing.T, rec *httptest.ResponseRecorder, method, target string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 7, Role: models.RoleStudent})
	return c
}

func TestNotificationListRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newNotificationHandler(&stubNotificationRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notifications", nil)

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotificationListReturnsOwnRows(t *testing.T) {
	repo := &stubNotificationRepo{listed: []models.Notification{
		{ID: 1, UserID: 7, Type: models.NotificationNewCircular, Message: "New circular: Holiday notice"},
	}}
	handler := newNotificationHandler(repo)

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodGet, "/notifications?unread=true")

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), repo.lastUserID)

	var envelope struct {
		Data []models.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "New circular: Holiday notice", envelope.Data[0].Message)
}

func TestNotificationMarkReadInvalidID(t *testing.T) {
	handler := newNotificationHandler(&stubNotificationRepo{readOK: true})

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/notifications/abc/read")
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	handler.MarkRead(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationMarkReadNotFound(t *testing.T) {
	handler := newNotificationHandler(&stubNotificationRepo{readOK: false})

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/notifications/55/read")
	c.Params = gin.Params{{Key: "id", Value: "55"}}

	handler.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationMarkAllReadReportsCount(t *testing.T) {
	handler := newNotificationHandler(&stubNotificationRepo{readCount: 3})

	rec := httptest.NewRecorder()
	c := authedContext(t, rec, http.MethodPost, "/notifications/read-all")

	handler.MarkAllRead(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(3), envelope.Data["updated_count"])
}
