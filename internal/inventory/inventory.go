// Package inventory applies stock movements and derives stock health views.
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NearExpiryDays is how many days ahead an expiry counts as near.
const NearExpiryDays = 3

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidMovement   = errors.New("invalid stock movement")
)

// InsufficientStockError carries the stock the movement was rejected
// against. It matches ErrInsufficientStock.
type InsufficientStockError struct {
	ItemID  uuid.UUID
	Current decimal.Decimal
	Delta   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: have %s, change %s", e.ItemID, e.Current, e.Delta)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Movement is a requested stock change.
type Movement struct {
	Delta   decimal.Decimal
	Reason  enum.MovementReason
	Note    string
	ActorID uuid.UUID
}

// ApplyMovement returns the item after m and the history row recording it.
// Stock never goes negative; such a movement is rejected, not clamped.
func ApplyMovement(item database.InventoryItem, m Movement, now time.Time) (database.InventoryItem, database.StockMovement, error) {
	if err := validate(m); err != nil {
		return item, database.StockMovement{}, err
	}
	next := item.CurrentStock.Add(m.Delta)
	if next.IsNegative() {
		return item, database.StockMovement{}, &InsufficientStockError{ItemID: item.ID, Current: item.CurrentStock, Delta: m.Delta}
	}

	item.CurrentStock = next
	item.UpdatedAt = now
	return item, database.StockMovement{
		CafeID:     item.CafeID,
		ItemID:     item.ID,
		Delta:      m.Delta,
		Reason:     m.Reason,
		Note:       m.Note,
		ActorID:    m.ActorID,
		StockAfter: next,
		CreatedAt:  now,
	}, nil
}

func validate(m Movement) error {
	if !m.Reason.Valid() {
		return fmt.Errorf("%w: unknown reason %q", ErrInvalidMovement, m.Reason)
	}
	if m.Delta.IsZero() {
		return fmt.Errorf("%w: delta must not be zero", ErrInvalidMovement)
	}
	switch m.Reason {
	case enum.MovementUsed, enum.MovementWastage:
		if m.Delta.IsPositive() {
			return fmt.Errorf("%w: %s must reduce stock", ErrInvalidMovement, m.Reason)
		}
	case enum.MovementRestock:
		if m.Delta.IsNegative() {
			return fmt.Errorf("%w: restock must add stock", ErrInvalidMovement)
		}
	}
	return nil
}

// Health is derived on every read and never stored.
type Health struct {
	LowStock        bool `json:"low_stock"`
	DaysUntilExpiry *int `json:"days_until_expiry,omitempty"`
	NearExpiry      bool `json:"near_expiry"`
	Expired         bool `json:"expired"`
}

// Assess derives the health of item as of now. Days are counted between
// calendar dates in UTC.
func Assess(item database.InventoryItem, now time.Time) Health {
	h := Health{LowStock: item.CurrentStock.LessThanOrEqual(item.MinimumStock)}
	if days, ok := daysUntil(item.ExpiryDate, now); ok {
		h.DaysUntilExpiry = &days
		h.Expired = days < 0
		h.NearExpiry = days >= 0 && days <= NearExpiryDays
	}
	return h
}

func daysUntil(d pgtype.Date, now time.Time) (int, bool) {
	if !d.Valid {
		return 0, false
	}
	n := now.UTC()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	e := d.Time
	expiry := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	return int(expiry.Sub(today).Hours() / 24), true
}

// View is an item with its derived health, as listed to clients.
type View struct {
	database.InventoryItem
	Health Health `json:"health"`
}

// Views assesses every item at the same instant.
func Views(items []database.InventoryItem, now time.Time) []View {
	out := make([]View, len(items))
	for i, it := range items {
		out[i] = View{InventoryItem: it, Health: Assess(it, now)}
	}
	return out
}
