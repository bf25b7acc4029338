package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/herald/internal/model"
	apperrors "github.com/jwalitptl/herald/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func notificationRows(notifications ...*model.Notification) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "title", "message", "status", "channel", "attempts",
		"next_attempt_at", "created_at", "updated_at", "user_id",
	})
	for _, n := range notifications {
		rows.AddRow(
			n.ID, n.Title, n.Message, n.Status, n.Channel, n.Attempts,
			n.NextAttemptAt, n.CreatedAt, n.UpdatedAt, n.UserID,
		)
	}
	return rows
}

func sampleNotification(status model.NotificationStatus) *model.Notification {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.Notification{
		ID:            uuid.New(),
		Title:         sql.NullString{String: "hi", Valid: true},
		Message:       "hello there",
		Status:        status,
		Channel:       model.ChannelInApp,
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
		UserID:        uuid.New(),
	}
}

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n := &model.Notification{
		Message: "hello",
		Status:  model.NotificationStatusPending,
		Channel: model.ChannelEmail,
		UserID:  uuid.New(),
	}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	want := sampleNotification(model.NotificationStatusSent)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, message, status, channel, attempts, next_attempt_at, created_at, updated_at, user_id")).
		WithArgs(want.ID).
		WillReturnRows(notificationRows(want))

	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.UserID, got.UserID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	id := uuid.New()
	mock.ExpectQuery("SELECT").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

// The claim must lock with SKIP LOCKED, filter on pending in the
// sub-select and flip to processing in the same statement.
func TestNotificationRepositoryClaimPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	first := sampleNotification(model.NotificationStatusProcessing)
	second := sampleNotification(model.NotificationStatusProcessing)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE notifications\s+SET status = \$1, updated_at = NOW\(\)\s+WHERE id IN \(\s*SELECT id FROM notifications\s+WHERE status = \$2\s+ORDER BY created_at ASC\s+LIMIT \$3\s+FOR UPDATE SKIP LOCKED\s*\)\s+RETURNING`).
		WithArgs(model.NotificationStatusProcessing, model.NotificationStatusPending, 10).
		WillReturnRows(notificationRows(first, second))
	mock.ExpectCommit()

	claimed, err := repo.ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, n := range claimed {
		assert.Equal(t, model.NotificationStatusProcessing, n.Status)
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryClaimPendingEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(model.NotificationStatusProcessing, model.NotificationStatusPending, 5).
		WillReturnRows(notificationRows())
	mock.ExpectCommit()

	claimed, err := repo.ClaimPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	want := sampleNotification(model.NotificationStatusSent)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(model.NotificationStatusSent, want.ID).
		WillReturnRows(notificationRows(want))

	got, err := repo.MarkStatus(context.Background(), want.ID, model.NotificationStatusSent)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSent, got.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryUpdateAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	want := sampleNotification(model.NotificationStatusProcessing)
	want.Attempts = 3
	next := time.Now().UTC().Add(3 * time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("SET attempts = $1, next_attempt_at = $2")).
		WithArgs(3, next, want.ID).
		WillReturnRows(notificationRows(want))

	got, err := repo.UpdateAttempts(context.Background(), want.ID, 3, next)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Attempts)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListByUserWithStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(NewBaseRepository(db))

	want := sampleNotification(model.NotificationStatusSent)
	status := model.NotificationStatusSent

	mock.ExpectQuery("FROM notifications").
		WithArgs(want.UserID, status, 100).
		WillReturnRows(notificationRows(want))

	got, err := repo.ListByUser(context.Background(), want.UserID, &status, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want.ID, got[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}
