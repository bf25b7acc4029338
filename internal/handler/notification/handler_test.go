package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/herald/internal/middleware"
	"github.com/jwalitptl/herald/internal/model"
	apperrors "github.com/jwalitptl/herald/pkg/errors"
	"github.com/jwalitptl/herald/pkg/logger"
)

type fakeService struct {
	byID       map[uuid.UUID]*model.Notification
	markedRead []uuid.UUID
}

func newFakeService() *fakeService {
	return &fakeService{byID: make(map[uuid.UUID]*model.Notification)}
}

func (s *fakeService) CreateNotification(_ context.Context, userID uuid.UUID, _ *string, message string, channel model.NotificationChannel) (*model.Notification, error) {
	n := &model.Notification{
		ID:      uuid.New(),
		Message: message,
		Status:  model.NotificationStatusPending,
		Channel: channel,
		UserID:  userID,
	}
	s.byID[n.ID] = n
	return n, nil
}

func (s *fakeService) CreateForCategory(_ context.Context, _, _ string, _ model.EventCategory, _ model.NotificationChannel) error {
	return nil
}

func (s *fakeService) ClaimBatch(_ context.Context, _ int) ([]*model.Notification, error) {
	return nil, nil
}

func (s *fakeService) ProcessSending(_ context.Context, n *model.Notification) (model.NotificationStatus, error) {
	return n.Status, nil
}

func (s *fakeService) MarkAsRead(_ context.Context, notificationID, userID uuid.UUID) error {
	n, ok := s.byID[notificationID]
	if !ok {
		return apperrors.NotFound("notification", nil)
	}
	if n.UserID != userID {
		return apperrors.Forbidden("notification belongs to another user")
	}
	if n.Status != model.NotificationStatusSent {
		return apperrors.InvalidTransition("cannot mark as read")
	}
	n.Status = model.NotificationStatusRead
	s.markedRead = append(s.markedRead, notificationID)
	return nil
}

func (s *fakeService) NotificationByID(_ context.Context, notificationID, userID uuid.UUID) (*model.Notification, error) {
	n, ok := s.byID[notificationID]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	if n.UserID != userID {
		return nil, apperrors.Forbidden("notification belongs to another user")
	}
	return n, nil
}

func (s *fakeService) NotificationsByUser(_ context.Context, userID uuid.UUID, status *model.NotificationStatus, _ int) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range s.byID {
		if n.UserID != userID {
			continue
		}
		if status != nil && n.Status != *status {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *fakeService) GetSent(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	status := model.NotificationStatusSent
	return s.NotificationsByUser(ctx, userID, &status, 100)
}

func setupRouter(svc *fakeService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(middleware.ContextUserKey, userID)
		}
		c.Next()
	})

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	NewHandler(svc, &fakeBroker{}, log).RegisterRoutes(r.Group("/api"))
	return r
}

type fakeBroker struct{}

func (b *fakeBroker) Publish(_ context.Context, _ string, _ interface{}) error { return nil }

func (b *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	return ch, nil
}

func (b *fakeBroker) Close() error { return nil }

func seed(svc *fakeService, userID uuid.UUID, status model.NotificationStatus) *model.Notification {
	n := &model.Notification{
		ID:        uuid.New(),
		Title:     sql.NullString{String: "hi", Valid: true},
		Message:   "hello",
		Status:    status,
		Channel:   model.ChannelInApp,
		CreatedAt: time.Now().UTC(),
		UserID:    userID,
	}
	svc.byID[n.ID] = n
	return n
}

func TestMarkReadOK(t *testing.T) {
	svc := newFakeService()
	userID := uuid.New()
	n := seed(svc, userID, model.NotificationStatusSent)
	r := setupRouter(svc, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+n.ID.String()+"/read", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{n.ID}, svc.markedRead)
}

func TestMarkReadForeignUserForbidden(t *testing.T) {
	svc := newFakeService()
	n := seed(svc, uuid.New(), model.NotificationStatusSent)
	r := setupRouter(svc, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+n.ID.String()+"/read", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.markedRead)
}

func TestMarkReadUndeliveredConflict(t *testing.T) {
	svc := newFakeService()
	userID := uuid.New()
	n := seed(svc, userID, model.NotificationStatusPending)
	r := setupRouter(svc, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+n.ID.String()+"/read", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMarkReadUnknownNotification(t *testing.T) {
	svc := newFakeService()
	r := setupRouter(svc, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+uuid.NewString()+"/read", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkReadBadID(t *testing.T) {
	svc := newFakeService()
	r := setupRouter(svc, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/not-a-uuid/read", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkReadWithoutIdentity(t *testing.T) {
	svc := newFakeService()
	r := setupRouter(svc, uuid.Nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+uuid.NewString()+"/read", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListSentReturnsOnlyDelivered(t *testing.T) {
	svc := newFakeService()
	userID := uuid.New()
	seed(svc, userID, model.NotificationStatusSent)
	seed(svc, userID, model.NotificationStatusPending)
	seed(svc, uuid.New(), model.NotificationStatusSent)
	r := setupRouter(svc, userID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/inapp", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
			Title  *string   `json:"title"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "sent", resp.Data[0].Status)
	require.NotNil(t, resp.Data[0].Title)
	assert.Equal(t, "hi", *resp.Data[0].Title)
}

func TestGetByIDHidesForeignNotification(t *testing.T) {
	svc := newFakeService()
	n := seed(svc, uuid.New(), model.NotificationStatusSent)
	r := setupRouter(svc, uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/"+n.ID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
