// Package events defines the lifecycle messages published to the order-events
// topic and consumed by the notifications writer.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketline/orders-service/internal/domain"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	PaymentSucceeded   = "payment.succeeded"
	PaymentFailed      = "payment.failed"
)

type Event struct {
	Type       string    `json:"type"`
	OrderID    uuid.UUID `json:"order_id"`
	OrderCode  string    `json:"order_code"`
	CustomerID uuid.UUID `json:"customer_id"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func ForOrder(kind string, o *domain.Order) Event {
	return Event{
		Type:       kind,
		OrderID:    o.ID,
		OrderCode:  o.OrderCode,
		CustomerID: o.CustomerID,
		Amount:     o.TotalAmount,
		Status:     string(o.Status),
		OccurredAt: time.Now().UTC(),
	}
}
