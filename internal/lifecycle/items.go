package lifecycle

import (
	"fmt"

	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/money"
	"github.com/google/uuid"
)

var (
	ErrProductUnavailable    = fmt.Errorf("%w: product is not available", ErrValidation)
	ErrVariantNotFound       = fmt.Errorf("%w: variant does not belong to product", ErrValidation)
	ErrCustomizationNotFound = fmt.Errorf("%w: customization option does not belong to product", ErrValidation)
)

// ItemSelection is what the guest picked for one product.
type ItemSelection struct {
	VariantID      uuid.UUID
	Customizations []CustomizationChoice
	Quantity       int32
	Notes          string
}

type CustomizationChoice struct {
	Name   string
	Option string
}

// BuildItem snapshots the product's name and prices into a new pending item.
func BuildItem(p database.Product, sel ItemSelection) (database.OrderItem, error) {
	if !p.IsAvailable {
		return database.OrderItem{}, ErrProductUnavailable
	}
	if sel.Quantity < 1 {
		return database.OrderItem{}, money.ErrInvalidQuantity
	}

	item := database.OrderItem{
		ID:             uuid.New(),
		ProductID:      p.ID,
		ProductName:    p.Name,
		Quantity:       sel.Quantity,
		UnitPrice:      p.BasePrice,
		Customizations: []database.ItemCustomization{},
		Status:         enum.ItemStatusPending,
		Notes:          sel.Notes,
		Station:        p.Station,
	}

	if sel.VariantID != uuid.Nil {
		found := false
		for _, v := range p.Variants {
			if v.ID == sel.VariantID {
				if err := money.CheckSubunit(v.PriceDelta); err != nil {
					return database.OrderItem{}, fmt.Errorf("variant %s: %w", v.Name, err)
				}
				item.Variant = &database.ItemVariant{ID: v.ID, Name: v.Name, PriceDelta: v.PriceDelta}
				found = true
				break
			}
		}
		if !found {
			return database.OrderItem{}, ErrVariantNotFound
		}
	}

	customizations, err := resolveCustomizations(p, sel.Customizations)
	if err != nil {
		return database.OrderItem{}, err
	}
	item.Customizations = customizations
	return item, nil
}

func resolveCustomizations(p database.Product, choices []CustomizationChoice) ([]database.ItemCustomization, error) {
	out := make([]database.ItemCustomization, 0, len(choices))
	for i, c := range choices {
		var match *database.ProductCustomizationOption
		for _, pc := range p.Customizations {
			if pc.Name != c.Name {
				continue
			}
			for j := range pc.Options {
				if pc.Options[j].Name == c.Option {
					match = &pc.Options[j]
					break
				}
			}
		}
		if match == nil {
			return nil, fmt.Errorf("customizations[%d] %s=%s: %w", i, c.Name, c.Option, ErrCustomizationNotFound)
		}
		if err := money.CheckSubunit(match.PriceDelta); err != nil {
			return nil, fmt.Errorf("customizations[%d] %s=%s: %w", i, c.Name, c.Option, err)
		}
		out = append(out, database.ItemCustomization{Name: c.Name, Option: c.Option, PriceDelta: match.PriceDelta})
	}
	return out, nil
}

// AddItem appends item to o. A ready or served order goes back to
// preparing since the new item still has to be made.
func (e *Engine) AddItem(o *database.Order, item database.OrderItem) error {
	if err := checkUnpaidEditable(o, "items"); err != nil {
		return err
	}
	if item.Quantity < 1 {
		return money.ErrInvalidQuantity
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.Status = enum.ItemStatusPending

	return e.mutate(o, func() error {
		o.Items = append(o.Items, item)
		if o.Status == enum.OrderStatusReady || o.Status == enum.OrderStatusServed {
			return setStatus(o, enum.OrderStatusPreparing)
		}
		return nil
	})
}

// RemoveItem drops an item the kitchen has not started. Started items are
// cancelled through SetItemStatus instead so the kitchen sees it.
func (e *Engine) RemoveItem(o *database.Order, itemID uuid.UUID) error {
	idx, err := e.pendingItem(o, itemID, "removed")
	if err != nil {
		return err
	}
	active := 0
	for _, it := range o.Items {
		if it.Status != enum.ItemStatusCancelled {
			active++
		}
	}
	if active <= 1 {
		return ErrLastItem
	}
	return e.mutate(o, func() error {
		o.Items = append(o.Items[:idx:idx], o.Items[idx+1:]...)
		deriveStatus(o)
		return nil
	})
}

// SetQuantity changes the quantity of a pending item.
func (e *Engine) SetQuantity(o *database.Order, itemID uuid.UUID, quantity int32) error {
	if quantity < 1 {
		return money.ErrInvalidQuantity
	}
	idx, err := e.pendingItem(o, itemID, "quantity")
	if err != nil {
		return err
	}
	return e.mutate(o, func() error {
		o.Items[idx].Quantity = quantity
		return nil
	})
}

// SetCustomizations replaces the customizations and notes of a pending item.
// The product is needed to price the new options.
func (e *Engine) SetCustomizations(o *database.Order, itemID uuid.UUID, p database.Product, choices []CustomizationChoice, notes string) error {
	idx, err := e.pendingItem(o, itemID, "customizations")
	if err != nil {
		return err
	}
	if o.Items[idx].ProductID != p.ID {
		return fmt.Errorf("%w: product does not match item", ErrValidation)
	}
	customizations, err := resolveCustomizations(p, choices)
	if err != nil {
		return err
	}
	return e.mutate(o, func() error {
		o.Items[idx].Customizations = customizations
		o.Items[idx].Notes = notes
		return nil
	})
}

// SetItemStatus moves one item a single step and then derives the order
// status from the whole item set. Items of a paid, completed order can
// still progress so the kitchen can finish them.
func (e *Engine) SetItemStatus(o *database.Order, itemID uuid.UUID, to enum.ItemStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: invalid item status %q", ErrValidation, to)
	}
	switch o.Status {
	case enum.OrderStatusPending, enum.OrderStatusCancelled, enum.OrderStatusDelivered:
		return &TransitionError{Entity: "order items", From: string(o.Status), To: string(o.Status)}
	}
	idx := o.ItemIndex(itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	from := o.Items[idx].Status
	if !CanTransitionItem(from, to) {
		return itemTransition(from, to)
	}
	if to == enum.ItemStatusCancelled && o.PaymentStatus != enum.PaymentStatusPending {
		return ErrAlreadyPaid
	}
	return e.mutate(o, func() error {
		o.Items[idx].Status = to
		deriveStatus(o)
		return nil
	})
}

// deriveStatus moves o along a legal edge to the status its items imply:
// all served (counter orders only), all ready, or anything started.
// Cancelled items are ignored.
func deriveStatus(o *database.Order) {
	if o.Status.Terminal() {
		return
	}
	active, started, ready, served := 0, 0, 0, 0
	for _, it := range o.Items {
		switch it.Status {
		case enum.ItemStatusCancelled:
			continue
		case enum.ItemStatusPreparing:
			started++
		case enum.ItemStatusReady:
			started++
			ready++
		case enum.ItemStatusServed:
			started++
			served++
		}
		active++
	}
	if active == 0 {
		return
	}

	target := o.Status
	switch {
	case served == active && !o.OrderType.Dispatched():
		target = enum.OrderStatusServed
	case ready+served == active:
		target = enum.OrderStatusReady
	case started > 0:
		target = enum.OrderStatusPreparing
	}
	if target != o.Status && CanTransition(o.Status, target) {
		o.Status = target
	}
}

func (e *Engine) pendingItem(o *database.Order, itemID uuid.UUID, change string) (int, error) {
	if err := checkUnpaidEditable(o, "items"); err != nil {
		return -1, err
	}
	idx := o.ItemIndex(itemID)
	if idx < 0 {
		return -1, ErrItemNotFound
	}
	if s := o.Items[idx].Status; s != enum.ItemStatusPending {
		return -1, &TransitionError{Entity: "item " + change, From: string(s), To: string(s)}
	}
	return idx, nil
}

// mutate runs fn and recomputes totals. Once an order is paid its totals
// are settled, so they are only verified. On any error o is restored, so a
// rejected change never leaves items and totals out of step.
func (e *Engine) mutate(o *database.Order, fn func() error) error {
	items := make([]database.OrderItem, len(o.Items))
	copy(items, o.Items)
	status, totals := o.Status, o.Totals()

	err := fn()
	if err == nil {
		if o.PaymentStatus == enum.PaymentStatusPending {
			err = e.Recompute(o)
		} else {
			err = e.Verify(o)
		}
	}
	if err != nil {
		o.Items, o.Status = items, status
		o.SetTotals(totals)
		return err
	}
	return nil
}
