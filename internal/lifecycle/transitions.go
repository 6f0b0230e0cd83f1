// Package lifecycle owns the order and item state machines and keeps an
// order's money fields in step with its items.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/cafeline/api/internal/enum"
)

var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError describes a rejected edge. It matches ErrInvalidTransition.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func orderTransition(from, to enum.OrderStatus) error {
	return &TransitionError{Entity: "order", From: string(from), To: string(to)}
}

func itemTransition(from, to enum.ItemStatus) error {
	return &TransitionError{Entity: "item", From: string(from), To: string(to)}
}

// allowedTransitions maps each order status to the statuses it may move to.
// Every non-terminal status may also move to cancelled.
var allowedTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusPending:        {enum.OrderStatusConfirmed},
	enum.OrderStatusConfirmed:      {enum.OrderStatusPreparing, enum.OrderStatusCompleted},
	enum.OrderStatusPreparing:      {enum.OrderStatusReady, enum.OrderStatusCompleted},
	enum.OrderStatusReady:          {enum.OrderStatusServed, enum.OrderStatusOutForDelivery, enum.OrderStatusPreparing, enum.OrderStatusCompleted},
	enum.OrderStatusServed:         {enum.OrderStatusCompleted, enum.OrderStatusPreparing},
	enum.OrderStatusOutForDelivery: {enum.OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enum.OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == enum.OrderStatusCancelled {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var allowedItemTransitions = map[enum.ItemStatus][]enum.ItemStatus{
	enum.ItemStatusPending:   {enum.ItemStatusPreparing, enum.ItemStatusCancelled},
	enum.ItemStatusPreparing: {enum.ItemStatusReady, enum.ItemStatusCancelled},
	enum.ItemStatusReady:     {enum.ItemStatusServed, enum.ItemStatusCancelled},
}

// CanTransitionItem reports whether an item may move from one status to
// another. Items only ever move one step forward or to cancelled.
func CanTransitionItem(from, to enum.ItemStatus) bool {
	for _, s := range allowedItemTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// itemsEditable reports whether the item list of an order in status s may
// still change.
func itemsEditable(s enum.OrderStatus) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusConfirmed, enum.OrderStatusPreparing,
		enum.OrderStatusReady, enum.OrderStatusServed:
		return true
	}
	return false
}
