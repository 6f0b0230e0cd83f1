package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the order engine. Input problems wrap ErrValidation.
var (
	ErrValidation            = errors.New("validation failed")
	ErrAlreadyPaid           = errors.New("order already paid")
	ErrItemNotFound          = errors.New("order item not found")
	ErrEmptyItems            = fmt.Errorf("%w: items are required", ErrValidation)
	ErrInvalidOrderType      = fmt.Errorf("%w: invalid order_type", ErrValidation)
	ErrTableRequired         = fmt.Errorf("%w: dine-in orders need a table", ErrValidation)
	ErrTableNotAllowed       = fmt.Errorf("%w: only dine-in orders take a table", ErrValidation)
	ErrIncompleteDelivery    = fmt.Errorf("%w: delivery needs customer name, phone and address", ErrValidation)
	ErrDeliveryFeeNotAllowed = fmt.Errorf("%w: delivery fee on a non-dispatched order", ErrValidation)
	ErrInvalidPaymentMethod  = fmt.Errorf("%w: invalid payment_method", ErrValidation)
	ErrInsufficientPayment   = fmt.Errorf("%w: amount received is less than total", ErrValidation)
	ErrDriverRequired        = fmt.Errorf("%w: driver_name is required", ErrValidation)
	ErrLastItem              = fmt.Errorf("%w: cannot remove the last active item, cancel the order instead", ErrValidation)
)

// Draft is the input for a new order. Items carry product snapshots built
// with BuildItem.
type Draft struct {
	CafeID        uuid.UUID
	OrderType     enum.OrderType
	Items         []database.OrderItem
	TableID       uuid.UUID
	Delivery      *database.DeliveryInfo
	CustomerID    uuid.UUID
	Notes         string
	DiscountType  string
	DiscountValue decimal.Decimal
	DeliveryFee   decimal.Decimal
	CreatedBy     uuid.UUID
}

// Engine applies order and item transitions. It recomputes totals after
// every change to items, discount or fee. Orders are priced at the tax
// rate they carry; the engine's calculator supplies the rate for new ones.
type Engine struct {
	calc money.Calculator
}

func NewEngine(calc money.Calculator) *Engine {
	return &Engine{calc: calc}
}

// NewOrder validates d and returns the order to insert. ID and order
// number are left for the store to assign.
func (e *Engine) NewOrder(d Draft) (database.Order, error) {
	if !d.OrderType.Valid() {
		return database.Order{}, ErrInvalidOrderType
	}
	if len(d.Items) == 0 {
		return database.Order{}, ErrEmptyItems
	}
	switch {
	case d.OrderType == enum.OrderTypeDineIn && d.TableID == uuid.Nil:
		return database.Order{}, ErrTableRequired
	case d.OrderType != enum.OrderTypeDineIn && d.TableID != uuid.Nil:
		return database.Order{}, ErrTableNotAllowed
	case d.OrderType.Dispatched() && !d.Delivery.Complete():
		return database.Order{}, ErrIncompleteDelivery
	case !d.OrderType.Dispatched() && !d.DeliveryFee.IsZero():
		return database.Order{}, ErrDeliveryFeeNotAllowed
	}

	items := make([]database.OrderItem, len(d.Items))
	for i, item := range d.Items {
		if item.Quantity < 1 {
			return database.Order{}, fmt.Errorf("item[%d]: %w", i, money.ErrInvalidQuantity)
		}
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.Status = enum.ItemStatusPending
		if item.Customizations == nil {
			item.Customizations = []database.ItemCustomization{}
		}
		items[i] = item
	}

	// Online orders wait for the café to accept them; counter and delivery
	// intake orders are accepted on entry.
	status := enum.OrderStatusConfirmed
	if d.OrderType == enum.OrderTypeOnline {
		status = enum.OrderStatusPending
	}

	o := database.Order{
		CafeID:        d.CafeID,
		OrderType:     d.OrderType,
		Status:        status,
		Items:         items,
		DiscountType:  d.DiscountType,
		DiscountValue: d.DiscountValue,
		DeliveryFee:   d.DeliveryFee,
		PaymentStatus: enum.PaymentStatusPending,
		TaxRate:       e.calc.TaxRate,
		Delivery:      d.Delivery,
		CreatedBy:     d.CreatedBy,
	}
	if d.TableID != uuid.Nil {
		o.TableID = pgtype.UUID{Bytes: d.TableID, Valid: true}
	}
	if d.CustomerID != uuid.Nil {
		o.CustomerID = pgtype.UUID{Bytes: d.CustomerID, Valid: true}
	}
	if d.Notes != "" {
		o.Notes = pgtype.Text{String: d.Notes, Valid: true}
	}
	if err := e.Recompute(&o); err != nil {
		return database.Order{}, err
	}
	return o, nil
}

// Recompute derives every money field of o from its items.
func (e *Engine) Recompute(o *database.Order) error {
	t, err := money.NewCalculator(o.TaxRate).Compute(o.Lines(), o.DeliveryFee, o.DiscountType, o.DiscountValue)
	if err != nil {
		return err
	}
	o.SetTotals(t)
	return nil
}

// Verify recomputes o without touching it and reports any drift between
// the stored and derived money fields. Stored totals that can no longer be
// derived at all are inconsistent too.
func (e *Engine) Verify(o *database.Order) error {
	fresh, err := money.NewCalculator(o.TaxRate).Compute(o.Lines(), o.DeliveryFee, o.DiscountType, o.DiscountValue)
	if err != nil {
		return fmt.Errorf("%w: %v", money.ErrInconsistentTotals, err)
	}
	return money.Verify(o.Totals(), fresh)
}

// Reprice moves an open unpaid order to the configured tax rate and reports
// whether it did. Paid and finished orders keep the rate they were charged at.
func (e *Engine) Reprice(o *database.Order) (bool, error) {
	if o.TaxRate.Equal(e.calc.TaxRate) || o.Status.Terminal() || o.PaymentStatus != enum.PaymentStatusPending {
		return false, nil
	}
	prev := o.TaxRate
	o.TaxRate = e.calc.TaxRate
	if err := e.Recompute(o); err != nil {
		o.TaxRate = prev
		return false, err
	}
	return true, nil
}

// Confirm accepts a pending order.
func (e *Engine) Confirm(o *database.Order) error {
	return setStatus(o, enum.OrderStatusConfirmed)
}

// Serve hands every ready item of a dine-in or takeaway order to the guest.
func (e *Engine) Serve(o *database.Order) error {
	if o.OrderType.Dispatched() || o.Status != enum.OrderStatusReady {
		return orderTransition(o.Status, enum.OrderStatusServed)
	}
	for i := range o.Items {
		if o.Items[i].Status == enum.ItemStatusReady {
			o.Items[i].Status = enum.ItemStatusServed
		}
	}
	return setStatus(o, enum.OrderStatusServed)
}

// SetDiscount replaces the order-level discount rule and recomputes.
func (e *Engine) SetDiscount(o *database.Order, discountType string, value decimal.Decimal) error {
	if err := checkUnpaidEditable(o, "discount"); err != nil {
		return err
	}
	prevType, prevValue := o.DiscountType, o.DiscountValue
	o.DiscountType, o.DiscountValue = discountType, value
	if err := e.Recompute(o); err != nil {
		o.DiscountType, o.DiscountValue = prevType, prevValue
		return err
	}
	return nil
}

// ApplyPayment marks o paid. Dine-in and takeaway orders complete on
// payment; dispatched orders keep their status and complete on delivery.
// For cash, received must cover the total and the change is returned.
func (e *Engine) ApplyPayment(o *database.Order, method string, received decimal.NullDecimal) (decimal.NullDecimal, error) {
	none := decimal.NullDecimal{}
	if o.Status == enum.OrderStatusCancelled {
		return none, orderTransition(o.Status, enum.OrderStatusCompleted)
	}
	switch o.PaymentStatus {
	case enum.PaymentStatusPaid:
		return none, ErrAlreadyPaid
	case enum.PaymentStatusRefunded:
		return none, &TransitionError{Entity: "payment", From: string(o.PaymentStatus), To: string(enum.PaymentStatusPaid)}
	}
	if !validPaymentMethod(method) {
		return none, ErrInvalidPaymentMethod
	}

	change := none
	if method == enum.PaymentMethodCash {
		if !received.Valid || received.Decimal.LessThan(o.TotalAmount) {
			return none, ErrInsufficientPayment
		}
		change = decimal.NewNullDecimal(received.Decimal.Sub(o.TotalAmount))
	}

	if !o.OrderType.Dispatched() {
		if !CanTransition(o.Status, enum.OrderStatusCompleted) {
			return none, orderTransition(o.Status, enum.OrderStatusCompleted)
		}
		o.Status = enum.OrderStatusCompleted
	} else if o.Status.Terminal() {
		return none, orderTransition(o.Status, o.Status)
	}

	o.PaymentStatus = enum.PaymentStatusPaid
	o.PaymentMethod = pgtype.Text{String: method, Valid: true}
	return change, nil
}

// Refund reverses the payment of a finished or cancelled order.
func (e *Engine) Refund(o *database.Order) error {
	if o.PaymentStatus != enum.PaymentStatusPaid || !o.Status.Terminal() {
		return &TransitionError{Entity: "payment", From: string(o.PaymentStatus), To: string(enum.PaymentStatusRefunded)}
	}
	o.PaymentStatus = enum.PaymentStatusRefunded
	return nil
}

// AssignDelivery hands a ready dispatched order to a driver.
func (e *Engine) AssignDelivery(o *database.Order, driver string, eta *time.Time) error {
	if !o.OrderType.Dispatched() {
		return orderTransition(o.Status, enum.OrderStatusOutForDelivery)
	}
	if driver == "" {
		return ErrDriverRequired
	}
	if !o.Delivery.Complete() {
		return ErrIncompleteDelivery
	}
	if err := setStatus(o, enum.OrderStatusOutForDelivery); err != nil {
		return err
	}
	d := *o.Delivery
	d.DriverName = driver
	if eta != nil {
		d.EstimatedDeliveryTime = eta
	}
	o.Delivery = &d
	return nil
}

// MarkDelivered completes a dispatched order. Delivery implies payment.
func (e *Engine) MarkDelivered(o *database.Order) error {
	if err := setStatus(o, enum.OrderStatusDelivered); err != nil {
		return err
	}
	if o.PaymentStatus == enum.PaymentStatusPending {
		o.PaymentStatus = enum.PaymentStatusPaid
	}
	return nil
}

// Cancel cancels o and every item still in progress. A cancelled order
// owes nothing, so discount and fee are cleared. The caller releases any
// tables in the same unit of work.
func (e *Engine) Cancel(o *database.Order) error {
	if err := setStatus(o, enum.OrderStatusCancelled); err != nil {
		return err
	}
	for i := range o.Items {
		if !o.Items[i].Status.Terminal() {
			o.Items[i].Status = enum.ItemStatusCancelled
		}
	}
	o.DiscountType = ""
	o.DiscountValue = decimal.Zero
	o.DeliveryFee = decimal.Zero
	return e.Recompute(o)
}

// PromoteToDineIn turns an unpaid takeaway order into a dine-in order on
// tableID. The caller seats it with seating.Assign in the same unit.
func (e *Engine) PromoteToDineIn(o *database.Order, tableID uuid.UUID) error {
	if o.OrderType != enum.OrderTypeTakeaway {
		return fmt.Errorf("%w: only takeaway orders can be promoted", ErrValidation)
	}
	if tableID == uuid.Nil {
		return ErrTableRequired
	}
	if err := checkUnpaidEditable(o, "order type"); err != nil {
		return err
	}
	o.OrderType = enum.OrderTypeDineIn
	o.TableID = pgtype.UUID{Bytes: tableID, Valid: true}
	return nil
}

func setStatus(o *database.Order, to enum.OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return orderTransition(o.Status, to)
	}
	o.Status = to
	return nil
}

// checkUnpaidEditable rejects changes to what an order charges once it is
// finished or paid.
func checkUnpaidEditable(o *database.Order, what string) error {
	if !itemsEditable(o.Status) {
		return &TransitionError{Entity: what, From: string(o.Status), To: string(o.Status)}
	}
	if o.PaymentStatus != enum.PaymentStatusPending {
		return ErrAlreadyPaid
	}
	return nil
}

func validPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodQRIS, enum.PaymentMethodTransfer:
		return true
	}
	return false
}
