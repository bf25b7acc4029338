package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/internal/repository"
	apperrors "github.com/jwalitptl/herald/pkg/errors"
)

const notificationColumns = `id, title, message, status, channel, attempts, next_attempt_at, created_at, updated_at, user_id`

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, title, message, status, channel, attempts,
			next_attempt_at, created_at, updated_at, user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now().UTC()
	notification.ID = uuid.New()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	notification.NextAttemptAt = now

	_, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.Title,
		notification.Message,
		notification.Status,
		notification.Channel,
		notification.Attempts,
		notification.NextAttemptAt,
		notification.CreatedAt,
		notification.UpdatedAt,
		notification.UserID,
	)
	if err != nil {
		return apperrors.Store("create_notification", err)
	}
	return nil
}

func (r *notificationRepository) BulkCreate(ctx context.Context, notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	query := `
		INSERT INTO notifications (
			id, title, message, status, channel, attempts,
			next_attempt_at, created_at, updated_at, user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for _, notification := range notifications {
			notification.ID = uuid.New()
			notification.CreatedAt = now
			notification.UpdatedAt = now
			notification.NextAttemptAt = now

			_, err := tx.ExecContext(ctx, query,
				notification.ID,
				notification.Title,
				notification.Message,
				notification.Status,
				notification.Channel,
				notification.Attempts,
				notification.NextAttemptAt,
				notification.CreatedAt,
				notification.UpdatedAt,
				notification.UserID,
			)
			if err != nil {
				return apperrors.Store("bulk_create_notifications", err)
			}
		}
		return nil
	})
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE id = $1
	`

	var notification model.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, apperrors.Store("get_notification", err)
	}

	return &notification, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *model.NotificationStatus, limit int) ([]*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}

	query += ` ORDER BY created_at ASC`
	if limit > 0 {
		args = append(args, limit)
		if status != nil {
			query += ` LIMIT $3`
		} else {
			query += ` LIMIT $2`
		}
	}

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, apperrors.Store("list_notifications", err)
	}

	return notifications, nil
}

func (r *notificationRepository) MarkStatus(ctx context.Context, id uuid.UUID, status model.NotificationStatus) (*model.Notification, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + notificationColumns + `
	`

	var notification model.Notification
	if err := r.db.GetContext(ctx, &notification, query, status, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, apperrors.Store("mark_status", err)
	}

	return &notification, nil
}

func (r *notificationRepository) UpdateAttempts(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time) (*model.Notification, error) {
	query := `
		UPDATE notifications
		SET attempts = $1, next_attempt_at = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + notificationColumns + `
	`

	var notification model.Notification
	if err := r.db.GetContext(ctx, &notification, query, attempts, nextAttemptAt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, apperrors.Store("update_attempts", err)
	}

	return &notification, nil
}

// ClaimPending flips up to limit pending rows to processing in one
// statement. The sub-select takes row locks with SKIP LOCKED, so rows
// held by a concurrent claimer are passed over instead of waited on; the
// status predicate appears in both legs, which makes the
// pending to processing precondition part of the claim itself.
func (r *notificationRepository) ClaimPending(ctx context.Context, limit int) ([]*model.Notification, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = $2
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationColumns + `
	`

	var claimed []*model.Notification
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &claimed, query,
			model.NotificationStatusProcessing,
			model.NotificationStatusPending,
			limit,
		)
	})
	if err != nil {
		return nil, apperrors.Store("claim_pending", err)
	}

	return claimed, nil
}
