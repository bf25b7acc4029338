package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/herald/internal/model"
)

func TestRegistryCoversAllEventTypes(t *testing.T) {
	registry := NewRegistry()

	for _, eventType := range []model.EventType{
		model.EventUserRegistered,
		model.EventOrderPaid,
		model.EventOrderCancelled,
	} {
		_, ok := registry[eventType]
		assert.True(t, ok, "missing template for %s", eventType)
	}
}

func TestRenderedMessages(t *testing.T) {
	registry := NewRegistry()
	payload := map[string]interface{}{"order_id": 17}

	tests := []struct {
		eventType model.EventType
		want      string
	}{
		{model.EventUserRegistered, "You have registered successfully. Welcome!"},
		{model.EventOrderPaid, "Order 17 has been paid"},
		{model.EventOrderCancelled, "Order 17 has been cancelled. You can leave a review"},
	}

	for _, tc := range tests {
		factory, ok := registry[tc.eventType]
		require.True(t, ok)
		assert.Equal(t, tc.want, factory().Render(payload))
	}
}
