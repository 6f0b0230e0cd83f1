// Package seating keeps tables and the orders sitting at them in step.
// Functions here mutate both sides in memory; the caller persists every
// touched row in one transaction.
package seating

import (
	"errors"
	"fmt"

	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrTableUnavailable = errors.New("table unavailable")
	ErrNoTables         = errors.New("at least one table is required")
	ErrNotSeatable      = errors.New("order cannot be seated")
	ErrPrimaryTable     = errors.New("table is the primary table of an active order")
)

// Assign seats order at tables. The first table is the primary one the
// order references; the others are recorded in its CombinedWith. Every
// table must be free or already hold this order, otherwise nothing changes.
func Assign(tables []*database.Table, order *database.Order) error {
	if err := checkSeatable(tables, order, nil); err != nil {
		return err
	}

	primary := tables[0]
	others := make([]uuid.UUID, 0, len(tables)-1)
	for _, t := range tables[1:] {
		others = append(others, t.ID)
	}
	for _, t := range tables {
		t.Status = enum.TableStatusOccupied
		t.CurrentOrderID = pgtype.UUID{Bytes: order.ID, Valid: true}
		t.CombinedWith = nil
	}
	primary.CombinedWith = others
	order.TableID = pgtype.UUID{Bytes: primary.ID, Valid: true}
	return nil
}

// Release frees every table that holds order and returns the ones it
// changed. Tables held by other orders are left alone.
func Release(tables []*database.Table, orderID uuid.UUID) []*database.Table {
	var released []*database.Table
	for _, t := range tables {
		if !t.Holds(orderID) {
			continue
		}
		t.Status = enum.TableStatusAvailable
		t.CurrentOrderID = pgtype.UUID{}
		t.CombinedWith = nil
		released = append(released, t)
	}
	return released
}

// Move reseats order from one set of tables to another. The destination is
// checked before anything is released.
func Move(from, to []*database.Table, order *database.Order) error {
	leaving := make(map[uuid.UUID]bool, len(from))
	for _, t := range from {
		leaving[t.ID] = t.Holds(order.ID)
	}
	if err := checkSeatable(to, order, leaving); err != nil {
		return err
	}
	Release(from, order.ID)
	return Assign(to, order)
}

// Detach frees one combined table of an active order. tables are the
// tables holding the order. The primary table stops listing the detached
// one in CombinedWith; it is returned so the caller can persist it.
func Detach(tables []*database.Table, tableID uuid.UUID, order *database.Order) (released, primary *database.Table, err error) {
	primaryID := uuid.UUID(order.TableID.Bytes)
	if order.TableID.Valid && primaryID == tableID {
		return nil, nil, fmt.Errorf("%w: move order %s instead", ErrPrimaryTable, order.OrderNumber)
	}
	for _, t := range tables {
		switch {
		case t.ID == tableID:
			released = t
		case order.TableID.Valid && t.ID == primaryID:
			primary = t
		}
	}
	if released == nil || !released.Holds(order.ID) {
		return nil, nil, fmt.Errorf("%w: table does not hold order %s", ErrTableUnavailable, order.OrderNumber)
	}

	Release([]*database.Table{released}, order.ID)
	if primary != nil {
		var kept []uuid.UUID
		for _, id := range primary.CombinedWith {
			if id != tableID {
				kept = append(kept, id)
			}
		}
		primary.CombinedWith = kept
	}
	return released, primary, nil
}

// Reserve holds a free table for a booking.
func Reserve(t *database.Table) error {
	if t.Status != enum.TableStatusAvailable {
		return fmt.Errorf("%w: table %s is %s", ErrTableUnavailable, t.Name, t.Status)
	}
	t.Status = enum.TableStatusReserved
	return nil
}

// Unreserve frees a reserved table.
func Unreserve(t *database.Table) error {
	if t.Status != enum.TableStatusReserved {
		return fmt.Errorf("%w: table %s is %s, not reserved", ErrTableUnavailable, t.Name, t.Status)
	}
	t.Status = enum.TableStatusAvailable
	return nil
}

// checkSeatable validates an assignment without changing anything. Tables
// in leaving are about to be released by the same order.
func checkSeatable(tables []*database.Table, order *database.Order, leaving map[uuid.UUID]bool) error {
	if len(tables) == 0 {
		return ErrNoTables
	}
	if order.OrderType != enum.OrderTypeDineIn || order.Status.Terminal() {
		return fmt.Errorf("%w: %s order in status %s", ErrNotSeatable, order.OrderType, order.Status)
	}
	seen := make(map[uuid.UUID]bool, len(tables))
	for _, t := range tables {
		if seen[t.ID] {
			return fmt.Errorf("%w: table %s listed twice", ErrTableUnavailable, t.Name)
		}
		seen[t.ID] = true
		if t.CafeID != order.CafeID {
			return fmt.Errorf("%w: table %s belongs to another cafe", ErrTableUnavailable, t.Name)
		}
		if t.Status != enum.TableStatusAvailable && !t.Holds(order.ID) && !leaving[t.ID] {
			return fmt.Errorf("%w: table %s is %s", ErrTableUnavailable, t.Name, t.Status)
		}
	}
	return nil
}

// Consistent reports whether t satisfies occupied <=> holding an order.
func Consistent(t *database.Table) bool {
	return (t.Status == enum.TableStatusOccupied) == t.CurrentOrderID.Valid
}
