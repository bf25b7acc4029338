package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/internal/repository"
	apperrors "github.com/jwalitptl/herald/pkg/errors"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, created_at, last_active)
		VALUES ($1, $2, $3)
	`

	now := time.Now().UTC()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now
	user.LastActive = now

	if _, err := r.db.ExecContext(ctx, query, user.ID, user.CreatedAt, user.LastActive); err != nil {
		return apperrors.Store("create_user", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, created_at, last_active FROM users
		WHERE id = $1
	`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Store("get_user", err)
	}

	return &user, nil
}

func (r *userRepository) GetActiveUsers(ctx context.Context, since time.Time) ([]*model.User, error) {
	query := `
		SELECT id, created_at, last_active FROM users
		WHERE last_active > $1
	`

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, since); err != nil {
		return nil, apperrors.Store("get_active_users", err)
	}

	return users, nil
}

func (r *userRepository) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET last_active = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Store("update_last_active", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Store("update_last_active", err)
	}
	if rows == 0 {
		return apperrors.NotFound("user", nil)
	}

	return nil
}

// Delete removes the user; owned notifications go with it through the
// cascade on notifications.user_id.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM users
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Store("delete_user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Store("delete_user", err)
	}
	if rows == 0 {
		return apperrors.NotFound("user", nil)
	}

	return nil
}
