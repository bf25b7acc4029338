package sender

import (
	"context"

	"github.com/jwalitptl/herald/internal/config"
	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/pkg/messaging"
)

// Sender delivers one notification over one channel. Implementations
// classify their own transport faults as transient or permanent; any
// other error kind is treated as unclassified by the delivery engine.
type Sender interface {
	Deliver(ctx context.Context, notification *model.Notification) error
}

// Factory builds a Sender per delivery attempt.
type Factory func() Sender

// Registry maps a channel to its sender factory. Tests substitute fakes
// by constructing their own map.
type Registry map[model.NotificationChannel]Factory

// NewRegistry wires the production senders.
func NewRegistry(cfg *config.SenderConfig, broker messaging.Broker) Registry {
	return Registry{
		model.ChannelEmail: func() Sender { return NewEmailSender(cfg) },
		model.ChannelBot:   func() Sender { return NewBotSender(cfg) },
		model.ChannelInApp: func() Sender { return NewInAppSender(broker) },
	}
}
