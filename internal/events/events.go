// Package events announces committed changes to live screens and to the
// message broker.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	OrderCreated    = "order.created"
	OrderUpdated    = "order.updated"
	OrderItemStatus = "order.item_status"
	OrderPaid       = "order.paid"
	OrderCancelled  = "order.cancelled"
	TableUpdated    = "table.updated"
	StockMoved      = "stock.moved"
)

type Event struct {
	Type    string    `json:"type"`
	CafeID  uuid.UUID `json:"cafe_id"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Publisher delivers an event after the change it describes is committed.
// Delivery is best effort; a failed publish never undoes the change.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
