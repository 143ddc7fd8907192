// Package events carries order lifecycle notifications out of the core:
// to the kitchen display hub and, when configured, to a Kafka topic.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderPaid          = "order.paid"
	PaymentRecorded    = "payment.recorded"
	SessionClosed      = "session.closed"
)

type Event struct {
	Type         string          `json:"type"`
	RestaurantID uint            `json:"restaurant_id"`
	SessionID    uint            `json:"session_id,omitempty"`
	OrderID      uint            `json:"order_id,omitempty"`
	TableNumber  uint            `json:"table_number,omitempty"`
	Status       string          `json:"status,omitempty"`
	FromStatus   string          `json:"from_status,omitempty"`
	Total        decimal.Decimal `json:"total"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
