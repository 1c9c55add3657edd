package model

import "time"

// Domain event types published after a successful commit.
const (
	EventStockChanged       = "stock.changed"
	EventOrderPlaced        = "order.placed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentSettled     = "payment.settled"
)

// DomainEvent is the envelope written to the event stream. Key is used as the
// partition key so events about the same aggregate stay ordered.
type DomainEvent struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}
