package template

import (
	"fmt"

	"github.com/jwalitptl/herald/internal/model"
)

// Template renders human-readable notification text from a system event
// payload.
type Template interface {
	Render(payload map[string]interface{}) string
}

// Registry maps an event type to its template factory.
type Registry map[model.EventType]func() Template

// NewRegistry returns the built-in templates.
func NewRegistry() Registry {
	return Registry{
		model.EventUserRegistered: func() Template { return userRegisteredTemplate{} },
		model.EventOrderPaid:      func() Template { return orderPaidTemplate{} },
		model.EventOrderCancelled: func() Template { return orderCancelledTemplate{} },
	}
}

type userRegisteredTemplate struct{}

func (userRegisteredTemplate) Render(_ map[string]interface{}) string {
	return "You have registered successfully. Welcome!"
}

type orderPaidTemplate struct{}

func (orderPaidTemplate) Render(payload map[string]interface{}) string {
	return fmt.Sprintf("Order %v has been paid", payload["order_id"])
}

type orderCancelledTemplate struct{}

func (orderCancelledTemplate) Render(payload map[string]interface{}) string {
	return fmt.Sprintf("Order %v has been cancelled. You can leave a review", payload["order_id"])
}
