package event

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/internal/service/notification"
	"github.com/jwalitptl/herald/internal/service/user"
	"github.com/jwalitptl/herald/internal/template"
	apperrors "github.com/jwalitptl/herald/pkg/errors"
	"github.com/jwalitptl/herald/pkg/logger"
)

// Service routes inbound domain events to queued notifications: one
// in-app notification for a system event, a fan-out for a GENERAL
// custom event.
type Service interface {
	HandleSystemEvent(ctx context.Context, eventType model.EventType, userID uuid.UUID, payload map[string]interface{}) error
	HandleCustomEvent(ctx context.Context, userID uuid.UUID, title, message string, category model.EventCategory) error
}

type service struct {
	userSvc         user.Service
	notificationSvc notification.Service
	templates       template.Registry
	logger          *logger.Logger
}

func NewService(userSvc user.Service, notificationSvc notification.Service, templates template.Registry, logger *logger.Logger) Service {
	if templates == nil {
		templates = template.NewRegistry()
	}

	return &service{
		userSvc:         userSvc,
		notificationSvc: notificationSvc,
		templates:       templates,
		logger:          logger,
	}
}

// HandleSystemEvent renders the template registered for the event type
// and queues one in-app notification for the triggering user. An
// unmappable event type is fatal to this event only, never retried.
func (s *service) HandleSystemEvent(ctx context.Context, eventType model.EventType, userID uuid.UUID, payload map[string]interface{}) error {
	s.logger.Info("system event received",
		"event_type", string(eventType),
		"user_id", userID.String())

	factory, ok := s.templates[eventType]
	if !ok {
		err := apperrors.TemplateNotFound(string(eventType))
		s.logger.Error(err, "system event dropped", "event_type", string(eventType))
		return err
	}

	message := factory().Render(payload)

	if err := s.userSvc.UpdateLastActive(ctx, userID); err != nil {
		return err
	}

	if _, err := s.notificationSvc.CreateNotification(ctx, userID, nil, message, model.ChannelInApp); err != nil {
		s.logger.Error(err, "system event handling failed",
			"event_type", string(eventType),
			"user_id", userID.String())
		return err
	}

	return nil
}

// HandleCustomEvent bumps the triggering user's activity and, for the
// GENERAL category, broadcasts to every recently active user.
func (s *service) HandleCustomEvent(ctx context.Context, userID uuid.UUID, title, message string, category model.EventCategory) error {
	s.logger.Info("custom event received",
		"user_id", userID.String(),
		"category", string(category))

	if err := s.userSvc.UpdateLastActive(ctx, userID); err != nil {
		return err
	}

	if err := s.notificationSvc.CreateForCategory(ctx, title, message, category, model.ChannelInApp); err != nil {
		s.logger.Error(err, "custom event handling failed",
			"user_id", userID.String(),
			"category", string(category))
		return err
	}

	return nil
}
