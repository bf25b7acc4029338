package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/internal/repository"
	"github.com/jwalitptl/herald/internal/sender"
	"github.com/jwalitptl/herald/internal/service/user"
	apperrors "github.com/jwalitptl/herald/pkg/errors"
	"github.com/jwalitptl/herald/pkg/logger"
)

// Policy holds the retry parameters of the delivery state machine.
type Policy struct {
	MaxAttempts   int
	RetryDelay    time.Duration
	SenderTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   5,
		RetryDelay:    3 * time.Second,
		SenderTimeout: 30 * time.Second,
	}
}

type Service interface {
	CreateNotification(ctx context.Context, userID uuid.UUID, title *string, message string, channel model.NotificationChannel) (*model.Notification, error)
	CreateForCategory(ctx context.Context, title, message string, category model.EventCategory, channel model.NotificationChannel) error

	ClaimBatch(ctx context.Context, limit int) ([]*model.Notification, error)
	ProcessSending(ctx context.Context, notification *model.Notification) (model.NotificationStatus, error)

	MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error
	NotificationByID(ctx context.Context, notificationID, userID uuid.UUID) (*model.Notification, error)
	NotificationsByUser(ctx context.Context, userID uuid.UUID, status *model.NotificationStatus, limit int) ([]*model.Notification, error)
	GetSent(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
}

type service struct {
	repo    repository.NotificationRepository
	userSvc user.Service
	senders sender.Registry
	policy  Policy
	logger  *logger.Logger
}

func NewService(repo repository.NotificationRepository, userSvc user.Service, senders sender.Registry, policy Policy, logger *logger.Logger) Service {
	if policy.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}
	if policy.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if policy.SenderTimeout <= 0 {
		panic("SenderTimeout must be greater than 0")
	}

	return &service{
		repo:    repo,
		userSvc: userSvc,
		senders: senders,
		policy:  policy,
		logger:  logger,
	}
}

func (s *service) CreateNotification(ctx context.Context, userID uuid.UUID, title *string, message string, channel model.NotificationChannel) (*model.Notification, error) {
	if message == "" {
		return nil, apperrors.BadRequest("message is required", nil)
	}

	notification := &model.Notification{
		Message: message,
		Status:  model.NotificationStatusPending,
		Channel: channel,
		UserID:  userID,
	}
	if title != nil {
		notification.Title = sql.NullString{String: *title, Valid: true}
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Error(err, "failed to create notification",
			"user_id", userID.String(),
			"channel", string(channel))
		return nil, err
	}

	s.logger.Info("notification created",
		"notification_id", notification.ID.String(),
		"user_id", userID.String(),
		"channel", string(channel))

	return notification, nil
}

// CreateForCategory fans a broadcast out to every user active within the
// configured window. Categories other than GENERAL are accepted and
// produce nothing; they are the extension point for targeted broadcasts.
func (s *service) CreateForCategory(ctx context.Context, title, message string, category model.EventCategory, channel model.NotificationChannel) error {
	if category != model.CategoryGeneral {
		s.logger.Debug("skipping non-broadcast category", "category", string(category))
		return nil
	}

	users, err := s.userSvc.GetAllActive(ctx)
	if err != nil {
		return err
	}

	notifications := make([]*model.Notification, 0, len(users))
	for _, u := range users {
		notifications = append(notifications, &model.Notification{
			Title:   sql.NullString{String: title, Valid: title != ""},
			Message: message,
			Status:  model.NotificationStatusPending,
			Channel: channel,
			UserID:  u.ID,
		})
	}

	if err := s.repo.BulkCreate(ctx, notifications); err != nil {
		s.logger.Error(err, "failed to bulk create notifications", "category", string(category))
		return err
	}

	s.logger.Info("broadcast notifications created",
		"category", string(category),
		"recipients", len(notifications))

	return nil
}

// ClaimBatch takes exclusive ownership of up to limit pending
// notifications. The claim transitions each row to processing as part of
// the same transaction, so concurrent callers partition the queue with
// no overlap.
func (s *service) ClaimBatch(ctx context.Context, limit int) ([]*model.Notification, error) {
	claimed, err := s.repo.ClaimPending(ctx, limit)
	if err != nil {
		s.logger.Error(err, "failed to claim pending notifications")
		return nil, err
	}

	for _, n := range claimed {
		s.logger.Info("notification claimed", "notification_id", n.ID.String())
	}

	return claimed, nil
}

// ProcessSending runs one delivery attempt for a claimed notification
// and reports the resulting status. The attempt count and next-attempt
// time are recorded before the sender runs, so a crash mid-delivery
// still reflects the attempt. Sender outcomes drive the transitions and
// never escape; an unclassified error is returned to the caller with
// the row left in processing.
func (s *service) ProcessSending(ctx context.Context, notification *model.Notification) (model.NotificationStatus, error) {
	attempts := notification.Attempts + 1
	nextAttemptAt := time.Now().UTC().Add(s.policy.RetryDelay)

	if _, err := s.repo.UpdateAttempts(ctx, notification.ID, attempts, nextAttemptAt); err != nil {
		return notification.Status, err
	}

	s.logger.Info("notification delivery attempt",
		"notification_id", notification.ID.String(),
		"attempt", attempts,
		"channel", string(notification.Channel))

	factory, ok := s.senders[notification.Channel]
	if !ok {
		s.logger.Error(nil, "no sender registered for channel",
			"notification_id", notification.ID.String(),
			"channel", string(notification.Channel))
		return model.NotificationStatusFailed, s.markAsFailed(ctx, notification.ID)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.policy.SenderTimeout)
	defer cancel()

	err := factory().Deliver(sendCtx, notification)
	if err == nil {
		return model.NotificationStatusSent, s.markAsSent(ctx, notification.ID)
	}

	var transient *sender.TransientError
	if errors.As(err, &transient) {
		return s.handleRetry(ctx, notification, attempts, transient)
	}

	var permanent *sender.PermanentError
	if errors.As(err, &permanent) {
		s.logger.Error(err, "notification failed permanently",
			"notification_id", notification.ID.String(),
			"channel", string(notification.Channel),
			"attempt", attempts)
		return model.NotificationStatusFailed, s.markAsFailed(ctx, notification.ID)
	}

	return model.NotificationStatusProcessing, fmt.Errorf("unclassified delivery error: %w", err)
}

func (s *service) handleRetry(ctx context.Context, notification *model.Notification, attempts int, cause *sender.TransientError) (model.NotificationStatus, error) {
	if attempts >= s.policy.MaxAttempts {
		s.logger.Error(cause, "notification failed after max attempts",
			"notification_id", notification.ID.String(),
			"attempts", attempts)
		return model.NotificationStatusFailed, s.markAsFailed(ctx, notification.ID)
	}

	// Honor a transport-suggested delay when it exceeds our own.
	if cause.RetryAfter > s.policy.RetryDelay {
		nextAttemptAt := time.Now().UTC().Add(cause.RetryAfter)
		if _, err := s.repo.UpdateAttempts(ctx, notification.ID, attempts, nextAttemptAt); err != nil {
			return notification.Status, err
		}
	}

	if err := s.markAsPending(ctx, notification.ID); err != nil {
		return notification.Status, err
	}

	s.logger.Warn("notification retry scheduled",
		"notification_id", notification.ID.String(),
		"attempt", attempts,
		"reason", cause.Error())

	return model.NotificationStatusPending, nil
}

// MarkAsRead is the only client-driven transition. The caller must own
// the notification and it must have been delivered.
func (s *service) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}

	if notification.UserID != userID {
		s.logger.Warn("mark read forbidden",
			"notification_id", notificationID.String(),
			"user_id", userID.String(),
			"owner_id", notification.UserID.String())
		return apperrors.Forbidden("notification belongs to another user")
	}

	if notification.Status != model.NotificationStatusSent {
		return apperrors.InvalidTransition(
			fmt.Sprintf("cannot mark %s notification as read", notification.Status))
	}

	if _, err := s.repo.MarkStatus(ctx, notificationID, model.NotificationStatusRead); err != nil {
		return err
	}

	s.logger.Info("notification marked as read",
		"notification_id", notificationID.String(),
		"user_id", userID.String())

	return nil
}

func (s *service) NotificationByID(ctx context.Context, notificationID, userID uuid.UUID) (*model.Notification, error) {
	notification, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if notification.UserID != userID {
		s.logger.Warn("notification access forbidden",
			"notification_id", notificationID.String(),
			"user_id", userID.String(),
			"owner_id", notification.UserID.String())
		return nil, apperrors.Forbidden("notification belongs to another user")
	}

	return notification, nil
}

func (s *service) NotificationsByUser(ctx context.Context, userID uuid.UUID, status *model.NotificationStatus, limit int) ([]*model.Notification, error) {
	return s.repo.ListByUser(ctx, userID, status, limit)
}

// GetSent feeds the pull-style streaming transport.
func (s *service) GetSent(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	status := model.NotificationStatusSent
	return s.repo.ListByUser(ctx, userID, &status, 100)
}

// transition enforces one edge of the status graph: the row must still
// be in from when the write happens, otherwise nothing is mutated.
func (s *service) transition(ctx context.Context, id uuid.UUID, from, to model.NotificationStatus) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification.Status != from {
		s.logger.Warn("invalid status transition",
			"notification_id", id.String(),
			"current_status", string(notification.Status),
			"target_status", string(to))
		return apperrors.InvalidTransition(
			fmt.Sprintf("cannot transition %s notification to %s", notification.Status, to))
	}

	if _, err := s.repo.MarkStatus(ctx, id, to); err != nil {
		return err
	}

	s.logger.Info("notification status changed",
		"notification_id", id.String(),
		"status", string(to))

	return nil
}

func (s *service) markAsSent(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.NotificationStatusProcessing, model.NotificationStatusSent)
}

func (s *service) markAsPending(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.NotificationStatusProcessing, model.NotificationStatusPending)
}

func (s *service) markAsFailed(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, model.NotificationStatusProcessing, model.NotificationStatusFailed)
}
