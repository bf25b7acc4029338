package sender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/herald/internal/config"
	"github.com/jwalitptl/herald/internal/model"
)

func botNotification() *model.Notification {
	return &model.Notification{
		ID:      uuid.New(),
		Message: "ping",
		Status:  model.NotificationStatusProcessing,
		Channel: model.ChannelBot,
		UserID:  uuid.New(),
	}
}

func newBotServer(t *testing.T, handler http.HandlerFunc) *BotSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBotSender(&config.SenderConfig{
		BotToken:  "token",
		BotAPIURL: srv.URL,
	})
}

func TestBotSenderDeliverOK(t *testing.T) {
	var gotPath string
	s := newBotServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	err := s.Deliver(context.Background(), botNotification())
	require.NoError(t, err)
	assert.Equal(t, "/bottoken/sendMessage", gotPath)
}

func TestBotSenderRateLimitedIsTransient(t *testing.T) {
	s := newBotServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := s.Deliver(context.Background(), botNotification())
	require.True(t, IsTransient(err))

	var transient *TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 7*time.Second, transient.RetryAfter)
}

func TestBotSenderServerErrorIsTransient(t *testing.T) {
	s := newBotServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := s.Deliver(context.Background(), botNotification())
	assert.True(t, IsTransient(err))
	assert.False(t, IsPermanent(err))
}

func TestBotSenderClientErrorIsPermanent(t *testing.T) {
	s := newBotServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := s.Deliver(context.Background(), botNotification())
	assert.True(t, IsPermanent(err))
	assert.False(t, IsTransient(err))
}

func TestBotSenderUnreachableIsTransient(t *testing.T) {
	s := NewBotSender(&config.SenderConfig{
		BotToken:  "token",
		BotAPIURL: "http://127.0.0.1:1",
	})

	err := s.Deliver(context.Background(), botNotification())
	assert.True(t, IsTransient(err))
}

func TestRetryAfterHeaderGarbage(t *testing.T) {
	s := newBotServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "soon")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := s.Deliver(context.Background(), botNotification())
	var transient *TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, time.Duration(0), transient.RetryAfter)
}
