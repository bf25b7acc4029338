package model

type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventOrderPaid      EventType = "order_paid"
	EventOrderCancelled EventType = "order_cancelled"
)

type EventCategory string

// Only GENERAL fans out today; other categories are accepted and dropped,
// leaving room for targeted categories later.
const (
	CategoryGeneral EventCategory = "general"
)
