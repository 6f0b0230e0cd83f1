package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/events"
	"github.com/cafeline/api/internal/lifecycle"
	"github.com/cafeline/api/internal/seating"
	"github.com/cafeline/api/internal/tenant"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	maxOrderNumberRetries = 3
	defaultListLimit      = 50
	maxListLimit          = 200
)

var ErrProductNotFound = fmt.Errorf("%w: product not found in cafe", lifecycle.ErrValidation)

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	IdentityReader
	GetNextOrderNumber(ctx context.Context, cafeID uuid.UUID) (int32, error)
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	GetTablesForUpdate(ctx context.Context, arg database.GetTablesForUpdateParams) ([]database.Table, error)
	ListTablesByOrder(ctx context.Context, arg database.ListTablesByOrderParams) ([]database.Table, error)
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error)
	ReleaseTable(ctx context.Context, arg database.ReleaseTableParams) (database.Table, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderRef addresses one order of one café.
type OrderRef struct {
	CafeID  uuid.UUID
	OrderID uuid.UUID
	// ExpectedVersion, when set, must equal the stored version or the
	// change is rejected with ErrVersionConflict.
	ExpectedVersion *int32
}

// ItemRequest selects a product for a new order item.
type ItemRequest struct {
	ProductID      uuid.UUID
	VariantID      uuid.UUID
	Quantity       int32
	Notes          string
	Customizations []lifecycle.CustomizationChoice
}

type CreateOrderRequest struct {
	CafeID    uuid.UUID
	OrderType enum.OrderType
	// TableIDs seats a dine-in order; the first one is the primary table.
	TableIDs      []uuid.UUID
	CustomerID    uuid.UUID
	Notes         string
	DiscountType  string
	DiscountValue decimal.Decimal
	Delivery      *database.DeliveryInfo
	Items         []ItemRequest
}

// UpdateItemRequest changes a pending item. Nil fields are left alone.
type UpdateItemRequest struct {
	Quantity       *int32
	Customizations *[]lifecycle.CustomizationChoice
	Notes          *string
}

type PaymentRequest struct {
	Method         string
	AmountReceived decimal.NullDecimal
}

type PaymentResult struct {
	Order   database.Order   `json:"order"`
	Payment database.Payment `json:"payment"`
}

type ListOrdersRequest struct {
	// CafeID uuid.Nil lists every café for the platform role and the
	// caller's own café for everyone else.
	CafeID    uuid.UUID
	Status    string
	OrderType string
	Limit     int32
	Offset    int32
}

// OrderService handles order business logic.
type OrderService struct {
	pool        TxBeginner
	newStore    NewOrderStore
	engine      *lifecycle.Engine
	deliveryFee decimal.Decimal
	pub         events.Publisher
	log         logrus.FieldLogger
	now         Clock
}

// NewOrderService creates a new OrderService. deliveryFee is charged on
// dispatched orders.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, engine *lifecycle.Engine, deliveryFee decimal.Decimal, pub events.Publisher, log logrus.FieldLogger) *OrderService {
	return &OrderService{
		pool:        pool,
		newStore:    newStore,
		engine:      engine,
		deliveryFee: deliveryFee,
		pub:         pub,
		log:         log,
		now:         time.Now,
	}
}

// CreateOrder validates and prices a new order, seats it when it is dine-in
// and stores it under the next order number of the café.
func (s *OrderService) CreateOrder(ctx context.Context, id *auth.Identity, req CreateOrderRequest) (*database.Order, error) {
	if !req.OrderType.Valid() {
		return nil, lifecycle.ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return nil, lifecycle.ErrEmptyItems
	}

	// Retry loop: handles order_number unique constraint race condition.
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		o, err := s.createOrderTx(ctx, id, req)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"order_id":     o.ID,
				"order_number": o.OrderNumber,
				"cafe_id":      o.CafeID,
			}).Info("order created")
			publish(ctx, s.pub, s.log, events.OrderCreated, o.CafeID, o)
			return o, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_cafe_id_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, id *auth.Identity, req CreateOrderRequest) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorize(ctx, store, s.now(), id, req.CafeID, enum.FeaturePOS); err != nil {
		return nil, err
	}

	items := make([]database.OrderItem, 0, len(req.Items))
	for i, ir := range req.Items {
		item, err := s.buildItem(ctx, store, req.CafeID, ir)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		items = append(items, item)
	}

	draft := lifecycle.Draft{
		CafeID:        req.CafeID,
		OrderType:     req.OrderType,
		Items:         items,
		Delivery:      req.Delivery,
		CustomerID:    req.CustomerID,
		Notes:         req.Notes,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		CreatedBy:     id.UserID,
	}
	if len(req.TableIDs) > 0 {
		draft.TableID = req.TableIDs[0]
	}
	if req.OrderType.Dispatched() {
		draft.DeliveryFee = s.deliveryFee
	}
	o, err := s.engine.NewOrder(draft)
	if err != nil {
		return nil, err
	}

	nextNum, err := store.GetNextOrderNumber(ctx, req.CafeID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	o.OrderNumber = fmt.Sprintf("ORD-%04d", nextNum)

	var tables []*database.Table
	if o.OrderType == enum.OrderTypeDineIn {
		tables, err = lockTables(ctx, store, req.CafeID, req.TableIDs)
		if err != nil {
			return nil, err
		}
	}

	created, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CafeID:         o.CafeID,
		OrderNumber:    o.OrderNumber,
		OrderType:      o.OrderType,
		Status:         o.Status,
		Items:          o.Items,
		Subtotal:       o.Subtotal,
		TaxAmount:      o.TaxAmount,
		DiscountType:   o.DiscountType,
		DiscountValue:  o.DiscountValue,
		DiscountAmount: o.DiscountAmount,
		DeliveryFee:    o.DeliveryFee,
		TotalAmount:    o.TotalAmount,
		PaymentStatus:  o.PaymentStatus,
		TableID:        o.TableID,
		CustomerID:     o.CustomerID,
		Delivery:       o.Delivery,
		Notes:          o.Notes,
		CreatedBy:      o.CreatedBy,
		TaxRate:        o.TaxRate,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if tables != nil {
		if err := seating.Assign(tables, &created); err != nil {
			return nil, err
		}
		if err := occupyTables(ctx, store, tables, created.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &created, nil
}

func (s *OrderService) buildItem(ctx context.Context, store OrderStore, cafeID uuid.UUID, ir ItemRequest) (database.OrderItem, error) {
	p, err := store.GetProductForOrder(ctx, database.GetProductForOrderParams{ID: ir.ProductID, CafeID: cafeID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, ErrProductNotFound
		}
		return database.OrderItem{}, fmt.Errorf("get product: %w", err)
	}
	return lifecycle.BuildItem(p, lifecycle.ItemSelection{
		VariantID:      ir.VariantID,
		Customizations: ir.Customizations,
		Quantity:       ir.Quantity,
		Notes:          ir.Notes,
	})
}

func (s *OrderService) GetOrder(ctx context.Context, id *auth.Identity, ref OrderRef) (*database.Order, error) {
	var o database.Order
	err := s.read(ctx, id, ref.CafeID, func(store OrderStore) error {
		var err error
		o, err = store.GetOrder(ctx, database.GetOrderParams{ID: ref.OrderID, CafeID: ref.CafeID})
		if err != nil {
			return notFound(err, "order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderService) ListPayments(ctx context.Context, id *auth.Identity, ref OrderRef) ([]database.Payment, error) {
	var payments []database.Payment
	err := s.read(ctx, id, ref.CafeID, func(store OrderStore) error {
		if _, err := store.GetOrder(ctx, database.GetOrderParams{ID: ref.OrderID, CafeID: ref.CafeID}); err != nil {
			return notFound(err, "order")
		}
		var err error
		payments, err = store.ListPaymentsByOrder(ctx, ref.OrderID)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		return nil
	})
	return payments, err
}

// ListOrders returns orders newest first. A platform caller that names no
// café sees every café.
func (s *OrderService) ListOrders(ctx context.Context, id *auth.Identity, req ListOrdersRequest) ([]database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorizeAny(ctx, store, s.now(), id, enum.FeatureOrders, enum.FeaturePOS, enum.FeatureKitchen); err != nil {
		return nil, err
	}
	cafeID, all, err := tenant.Filter(id, req.CafeID)
	if err != nil {
		return nil, err
	}

	params := database.ListOrdersParams{Limit: req.Limit, Offset: req.Offset}
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	if !all {
		params.CafeID = pgtype.UUID{Bytes: cafeID, Valid: true}
	}
	if req.Status != "" {
		if !enum.OrderStatus(req.Status).Valid() {
			return nil, fmt.Errorf("%w: invalid status %q", lifecycle.ErrValidation, req.Status)
		}
		params.Status = pgtype.Text{String: req.Status, Valid: true}
	}
	if req.OrderType != "" {
		if !enum.OrderType(req.OrderType).Valid() {
			return nil, lifecycle.ErrInvalidOrderType
		}
		params.OrderType = pgtype.Text{String: req.OrderType, Valid: true}
	}

	orders, err := store.ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []database.Order{}
	}
	return orders, nil
}

func (s *OrderService) ConfirmOrder(ctx context.Context, id *auth.Identity, ref OrderRef) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, posFeatures, func(_ OrderStore, o *database.Order) error {
		return s.engine.Confirm(o)
	})
}

func (s *OrderService) ServeOrder(ctx context.Context, id *auth.Identity, ref OrderRef) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, posFeatures, func(_ OrderStore, o *database.Order) error {
		return s.engine.Serve(o)
	})
}

// CancelOrder cancels the order and its unfinished items and frees its
// tables in the same transaction.
func (s *OrderService) CancelOrder(ctx context.Context, id *auth.Identity, ref OrderRef) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderCancelled, posFeatures, func(_ OrderStore, o *database.Order) error {
		return s.engine.Cancel(o)
	})
}

func (s *OrderService) SetDiscount(ctx context.Context, id *auth.Identity, ref OrderRef, discountType string, value decimal.Decimal) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, posFeatures, func(_ OrderStore, o *database.Order) error {
		return s.engine.SetDiscount(o, discountType, value)
	})
}

func (s *OrderService) AddItem(ctx context.Context, id *auth.Identity, ref OrderRef, req ItemRequest) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, posFeatures, func(store OrderStore, o *database.Order) error {
		item, err := s.buildItem(ctx, store, o.CafeID, req)
		if err != nil {
			return err
		}
		return s.engine.AddItem(o, item)
	})
}

func (s *OrderService) UpdateItem(ctx context.Context, id *auth.Identity, ref OrderRef, itemID uuid.UUID, req UpdateItemRequest) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, posFeatures, func(store OrderStore, o *database.Order) error {
		if req.Quantity != nil {
			if err := s.engine.SetQuantity(o, itemID, *req.Quantity); err != nil {
				return err
			}
		}
		if req.Customizations == nil && req.Notes == nil {
			return nil
		}
		idx := o.ItemIndex(itemID)
		if idx < 0 {
			return lifecycle.ErrItemNotFound
		}
		item := o.Items[idx]
		choices := make([]lifecycle.CustomizationChoice, 0, len(item.Customizations))
		for _, c := range item.Customizations {
			choices = append(choices, lifecycle.CustomizationChoice{Name: c.Name, Option: c.Option})
		}
		if req.Customizations != nil {
			choices = *req.Customizations
		}
		notes := item.Notes
		if req.Notes != nil {
			notes = *req.Notes
		}
		p, err := store.GetProductForOrder(ctx, database.GetProductForOrderParams{ID: item.ProductID, CafeID: o.CafeID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("get product: %w", err)
		}
		return s.engine.SetCustomizations(o, itemID, p, choices, notes)
	})
}

func (s *OrderService) RemoveItem(ctx context.Context, id *auth.Identity, ref OrderRef, itemID uuid.UUID) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, posFeatures, func(_ OrderStore, o *database.Order) error {
		return s.engine.RemoveItem(o, itemID)
	})
}

// SetItemStatus is the kitchen's step for one item.
func (s *OrderService) SetItemStatus(ctx context.Context, id *auth.Identity, ref OrderRef, itemID uuid.UUID, to enum.ItemStatus) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderItemStatus, []enum.Feature{enum.FeatureKitchen}, func(_ OrderStore, o *database.Order) error {
		return s.engine.SetItemStatus(o, itemID, to)
	})
}

// PayOrder records a payment. A dine-in or takeaway order completes and
// its tables are freed in the same transaction.
func (s *OrderService) PayOrder(ctx context.Context, id *auth.Identity, ref OrderRef, req PaymentRequest) (*PaymentResult, error) {
	var payment database.Payment
	o, err := s.update(ctx, id, ref, events.OrderPaid, posFeatures, func(store OrderStore, o *database.Order) error {
		change, err := s.engine.ApplyPayment(o, req.Method, req.AmountReceived)
		if err != nil {
			return err
		}
		payment, err = store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:        o.ID,
			CafeID:         o.CafeID,
			PaymentMethod:  req.Method,
			Amount:         o.TotalAmount,
			AmountReceived: req.AmountReceived,
			ChangeAmount:   change,
			ProcessedBy:    id.UserID,
		})
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Order: *o, Payment: payment}, nil
}

func (s *OrderService) RefundOrder(ctx context.Context, id *auth.Identity, ref OrderRef) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, []enum.Feature{enum.FeatureCashflow}, func(_ OrderStore, o *database.Order) error {
		return s.engine.Refund(o)
	})
}

func (s *OrderService) AssignDelivery(ctx context.Context, id *auth.Identity, ref OrderRef, driver string, eta *time.Time) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, []enum.Feature{enum.FeatureDelivery}, func(_ OrderStore, o *database.Order) error {
		return s.engine.AssignDelivery(o, driver, eta)
	})
}

func (s *OrderService) MarkDelivered(ctx context.Context, id *auth.Identity, ref OrderRef) (*database.Order, error) {
	return s.update(ctx, id, ref, events.OrderUpdated, []enum.Feature{enum.FeatureDelivery}, func(_ OrderStore, o *database.Order) error {
		return s.engine.MarkDelivered(o)
	})
}

// PromoteToDineIn seats a takeaway order at tableIDs, the first being
// the primary table.
func (s *OrderService) PromoteToDineIn(ctx context.Context, id *auth.Identity, ref OrderRef, tableIDs []uuid.UUID) (*database.Order, error) {
	if len(tableIDs) == 0 {
		return nil, seating.ErrNoTables
	}
	return s.update(ctx, id, ref, events.OrderUpdated, posFeatures, func(store OrderStore, o *database.Order) error {
		tables, err := lockTables(ctx, store, o.CafeID, tableIDs)
		if err != nil {
			return err
		}
		if err := s.engine.PromoteToDineIn(o, tableIDs[0]); err != nil {
			return err
		}
		if err := seating.Assign(tables, o); err != nil {
			return err
		}
		return occupyTables(ctx, store, tables, o.ID)
	})
}

var posFeatures = []enum.Feature{enum.FeaturePOS}

// update is the unit of work behind every order change: lock the row,
// check the caller's version, apply fn in memory, free tables of an order
// that just finished and write everything back before commit.
func (s *OrderService) update(ctx context.Context, id *auth.Identity, ref OrderRef, event string, features []enum.Feature, fn func(store OrderStore, o *database.Order) error) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorize(ctx, store, s.now(), id, ref.CafeID, features...); err != nil {
		return nil, err
	}

	o, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: ref.OrderID, CafeID: ref.CafeID})
	if err != nil {
		return nil, notFound(err, "order")
	}
	if ref.ExpectedVersion != nil && *ref.ExpectedVersion != o.Version {
		return nil, fmt.Errorf("%w: order is at version %d, not %d", ErrVersionConflict, o.Version, *ref.ExpectedVersion)
	}
	log := s.log.WithFields(logrus.Fields{"order_id": o.ID, "cafe_id": o.CafeID})

	if err := s.engine.Verify(&o); err != nil {
		log.WithError(err).Error("stored order totals are inconsistent")
		return nil, err
	}
	s.reprice(&o, log)
	wasTerminal := o.Status.Terminal()
	from := o.Status

	if err := fn(store, &o); err != nil {
		return nil, err
	}
	if err := s.engine.Verify(&o); err != nil {
		log.WithError(err).Error("order totals drifted during update")
		return nil, err
	}
	if !wasTerminal && o.Status.Terminal() && o.OrderType == enum.OrderTypeDineIn {
		freed, err := releaseOrderTables(ctx, store, o.CafeID, o.ID)
		if err != nil {
			return nil, err
		}
		if len(freed) > 0 {
			log.WithField("tables", len(freed)).Info("tables released")
		}
	}

	updated, err := store.UpdateOrder(ctx, database.UpdateOrderParamsFrom(o))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order changed concurrently", ErrVersionConflict)
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if from != updated.Status {
		log.WithFields(logrus.Fields{"from": from, "to": updated.Status}).Info("order status changed")
	}
	publish(ctx, s.pub, s.log, event, updated.CafeID, updated)
	return &updated, nil
}

// reprice moves an open unpaid order to the configured tax rate. An order
// that cannot be repriced keeps its rate.
func (s *OrderService) reprice(o *database.Order, log *logrus.Entry) {
	from := o.TaxRate
	repriced, err := s.engine.Reprice(o)
	if err != nil {
		log.WithError(err).Warn("order kept at its tax rate")
		return
	}
	if repriced {
		log.WithFields(logrus.Fields{"from": from.String(), "to": o.TaxRate.String()}).Info("order repriced at current tax rate")
	}
}

func (s *OrderService) read(ctx context.Context, id *auth.Identity, cafeID uuid.UUID, fn func(store OrderStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorize(ctx, store, s.now(), id, cafeID, enum.FeatureOrders, enum.FeaturePOS, enum.FeatureKitchen); err != nil {
		return err
	}
	if err := fn(store); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
