package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/herald/internal/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	BulkCreate(ctx context.Context, notifications []*model.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *model.NotificationStatus, limit int) ([]*model.Notification, error)
	MarkStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus) (*model.Notification, error)
	UpdateAttempts(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time) (*model.Notification, error)

	// ClaimPending atomically selects up to limit pending notifications
	// and flips them to processing. Rows locked by a concurrent claim are
	// skipped, never waited on, so two callers can never claim the same
	// row and an idle worker never stalls behind a busy one.
	ClaimPending(ctx context.Context, limit int) ([]*model.Notification, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetActiveUsers(ctx context.Context, since time.Time) ([]*model.User, error)
	UpdateLastActive(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
