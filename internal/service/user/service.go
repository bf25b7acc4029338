package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/internal/repository"
	"github.com/jwalitptl/herald/pkg/logger"
)

// DefaultActiveWindow bounds broadcast fan-out: users whose last
// activity is older than this receive no broadcast notifications.
const DefaultActiveWindow = 5 * 7 * 24 * time.Hour

type Service interface {
	CreateUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetAllActive(ctx context.Context) ([]*model.User, error)
	UpdateLastActive(ctx context.Context, id uuid.UUID) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo         repository.UserRepository
	activeWindow time.Duration
	logger       *logger.Logger
}

func NewService(repo repository.UserRepository, activeWindow time.Duration, logger *logger.Logger) Service {
	if activeWindow <= 0 {
		activeWindow = DefaultActiveWindow
	}

	return &service{
		repo:         repo,
		activeWindow: activeWindow,
		logger:       logger,
	}
}

// CreateUser registers a recipient. A zero id lets the store mint one;
// the cookie middleware passes an id it already handed to the client.
func (s *service) CreateUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user := &model.User{ID: id}

	if err := s.repo.Create(ctx, user); err != nil {
		s.logger.Error(err, "failed to create user")
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID.String())
	return user, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) GetAllActive(ctx context.Context) ([]*model.User, error) {
	since := time.Now().UTC().Add(-s.activeWindow)

	users, err := s.repo.GetActiveUsers(ctx, since)
	if err != nil {
		s.logger.Error(err, "failed to list active users")
		return nil, err
	}

	return users, nil
}

func (s *service) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateLastActive(ctx, id); err != nil {
		s.logger.Error(err, "failed to update last active", "user_id", id.String())
		return err
	}
	return nil
}

// DeleteUser removes the user and, through the schema cascade, every
// notification it owns.
func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error(err, "failed to delete user", "user_id", id.String())
		return err
	}

	s.logger.Info("user deleted", "user_id", id.String())
	return nil
}
