package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"created to paid", OrderStatusCreated, OrderStatusPaid, true},
		{"created to failed", OrderStatusCreated, OrderStatusFailed, true},
		{"created to cancelled", OrderStatusCreated, OrderStatusCancelled, true},
		{"paid to failed", OrderStatusPaid, OrderStatusFailed, false},
		{"paid to cancelled", OrderStatusPaid, OrderStatusCancelled, false},
		{"failed to paid", OrderStatusFailed, OrderStatusPaid, false},
		{"cancelled to paid", OrderStatusCancelled, OrderStatusPaid, false},
		{"created to created", OrderStatusCreated, OrderStatusCreated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.False(t, OrderStatusCreated.Terminal())
	assert.True(t, OrderStatusPaid.Terminal())
	assert.True(t, OrderStatusFailed.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
}
