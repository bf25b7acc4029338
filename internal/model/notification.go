package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusProcessing NotificationStatus = "processing"
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusFailed     NotificationStatus = "failed"
	NotificationStatusRead       NotificationStatus = "read"
)

type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
	ChannelBot   NotificationChannel = "bot"
)

// Notification is one queued unit of outbound communication to a single
// user over a single channel. Message, Channel and UserID are immutable
// after creation; Status and Attempts move only through the delivery
// state machine in service/notification.
type Notification struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	Title         sql.NullString      `db:"title" json:"title,omitempty"`
	Message       string              `db:"message" json:"message"`
	Status        NotificationStatus  `db:"status" json:"status"`
	Channel       NotificationChannel `db:"channel" json:"channel"`
	Attempts      int                 `db:"attempts" json:"attempts"`
	NextAttemptAt time.Time           `db:"next_attempt_at" json:"next_attempt_at"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
	UserID        uuid.UUID           `db:"user_id" json:"user_id"`
}

// DeliveryEvent is published to the messaging broker when an in-app
// notification is delivered. The streaming transport subscribes to it.
type DeliveryEvent struct {
	ID             uuid.UUID `json:"id"`
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	Title          string    `json:"title,omitempty"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}
