package sender

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/pkg/messaging"
)

// DeliveryChannel is the broker channel the streaming transport
// subscribes to.
const DeliveryChannel = "notifications"

// InAppSender hands the notification to the messaging broker; the
// streaming layer picks it up from there. A broker fault is transient,
// the broker coming back is enough for the retry to succeed.
type InAppSender struct {
	broker messaging.Broker
}

func NewInAppSender(broker messaging.Broker) *InAppSender {
	return &InAppSender{broker: broker}
}

func (s *InAppSender) Deliver(ctx context.Context, notification *model.Notification) error {
	event := &model.DeliveryEvent{
		ID:             uuid.New(),
		NotificationID: notification.ID,
		UserID:         notification.UserID,
		Title:          notification.Title.String,
		Message:        notification.Message,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.broker.Publish(ctx, DeliveryChannel, event); err != nil {
		return Transient("broker publish failed", err)
	}

	return nil
}
