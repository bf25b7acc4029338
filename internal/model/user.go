package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a notification recipient. LastActive is bumped every time the
// user generates a domain event and drives broadcast fan-out eligibility.
type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	LastActive time.Time `db:"last_active" json:"last_active"`
}
