package database

import (
	"context"

	"github.com/cafeline/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, cafe_id, order_number, order_type, status, items, subtotal, tax_amount,
	tax_rate, discount_type, discount_value, discount_amount, delivery_fee, total_amount,
	payment_status, payment_method, table_id, customer_id, delivery, notes, version,
	created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CafeID,
		&i.OrderNumber,
		&i.OrderType,
		&i.Status,
		&i.Items,
		&i.Subtotal,
		&i.TaxAmount,
		&i.TaxRate,
		&i.DiscountType,
		&i.DiscountValue,
		&i.DiscountAmount,
		&i.DeliveryFee,
		&i.TotalAmount,
		&i.PaymentStatus,
		&i.PaymentMethod,
		&i.TableID,
		&i.CustomerID,
		&i.Delivery,
		&i.Notes,
		&i.Version,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COALESCE(MAX(NULLIF(regexp_replace(order_number, '\D', '', 'g'), '')::int), 0) + 1)::int
FROM orders
WHERE cafe_id = $1
`

func (q *Queries) GetNextOrderNumber(ctx context.Context, cafeID uuid.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber, cafeID)
	var n int32
	err := row.Scan(&n)
	return n, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    cafe_id, order_number, order_type, status, items, subtotal, tax_amount,
    discount_type, discount_value, discount_amount, delivery_fee, total_amount,
    payment_status, table_id, customer_id, delivery, notes, created_by, tax_rate
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	CafeID         uuid.UUID
	OrderNumber    string
	OrderType      enum.OrderType
	Status         enum.OrderStatus
	Items          []OrderItem
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountType   string
	DiscountValue  decimal.Decimal
	DiscountAmount decimal.Decimal
	DeliveryFee    decimal.Decimal
	TotalAmount    decimal.Decimal
	PaymentStatus  enum.PaymentStatus
	TableID        pgtype.UUID
	CustomerID     pgtype.UUID
	Delivery       *DeliveryInfo
	Notes          pgtype.Text
	CreatedBy      uuid.UUID
	TaxRate        decimal.Decimal
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.CafeID,
		arg.OrderNumber,
		arg.OrderType,
		arg.Status,
		arg.Items,
		arg.Subtotal,
		arg.TaxAmount,
		arg.DiscountType,
		arg.DiscountValue,
		arg.DiscountAmount,
		arg.DeliveryFee,
		arg.TotalAmount,
		arg.PaymentStatus,
		arg.TableID,
		arg.CustomerID,
		arg.Delivery,
		arg.Notes,
		arg.CreatedBy,
		arg.TaxRate,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND cafe_id = $2
`

type GetOrderParams struct {
	ID     uuid.UUID
	CafeID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.CafeID))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND cafe_id = $2
FOR UPDATE
`

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.CafeID))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::uuid IS NULL OR cafe_id = $1)
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR order_type = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListOrdersParams struct {
	// CafeID left invalid lists every tenant (platform role only).
	CafeID    pgtype.UUID
	Status    pgtype.Text
	OrderType pgtype.Text
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.CafeID, arg.Status, arg.OrderType, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrder = `-- name: UpdateOrder :one
UPDATE orders
SET order_type = $4,
    status = $5,
    items = $6,
    subtotal = $7,
    tax_amount = $8,
    discount_type = $9,
    discount_value = $10,
    discount_amount = $11,
    delivery_fee = $12,
    total_amount = $13,
    payment_status = $14,
    payment_method = $15,
    table_id = $16,
    delivery = $17,
    notes = $18,
    tax_rate = $19,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND cafe_id = $2 AND version = $3
RETURNING ` + orderColumns

type UpdateOrderParams struct {
	ID             uuid.UUID
	CafeID         uuid.UUID
	Version        int32
	OrderType      enum.OrderType
	Status         enum.OrderStatus
	Items          []OrderItem
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountType   string
	DiscountValue  decimal.Decimal
	DiscountAmount decimal.Decimal
	DeliveryFee    decimal.Decimal
	TotalAmount    decimal.Decimal
	PaymentStatus  enum.PaymentStatus
	PaymentMethod  pgtype.Text
	TableID        pgtype.UUID
	Delivery       *DeliveryInfo
	Notes          pgtype.Text
	TaxRate        decimal.Decimal
}

// UpdateOrder writes every mutable column in one statement. It returns
// pgx.ErrNoRows when the stored version no longer matches arg.Version.
func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.ID,
		arg.CafeID,
		arg.Version,
		arg.OrderType,
		arg.Status,
		arg.Items,
		arg.Subtotal,
		arg.TaxAmount,
		arg.DiscountType,
		arg.DiscountValue,
		arg.DiscountAmount,
		arg.DeliveryFee,
		arg.TotalAmount,
		arg.PaymentStatus,
		arg.PaymentMethod,
		arg.TableID,
		arg.Delivery,
		arg.Notes,
		arg.TaxRate,
	)
	return scanOrder(row)
}

// UpdateOrderParamsFrom copies the mutable fields of o.
func UpdateOrderParamsFrom(o Order) UpdateOrderParams {
	return UpdateOrderParams{
		ID:             o.ID,
		CafeID:         o.CafeID,
		Version:        o.Version,
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
		PaymentMethod:  o.PaymentMethod,
		TableID:        o.TableID,
		Delivery:       o.Delivery,
		Notes:          o.Notes,
		TaxRate:        o.TaxRate,
	}
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (order_id, cafe_id, payment_method, amount, amount_received, change_amount, processed_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, cafe_id, payment_method, amount, amount_received, change_amount, processed_by, processed_at
`

type CreatePaymentParams struct {
	OrderID        uuid.UUID
	CafeID         uuid.UUID
	PaymentMethod  string
	Amount         decimal.Decimal
	AmountReceived decimal.NullDecimal
	ChangeAmount   decimal.NullDecimal
	ProcessedBy    uuid.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.OrderID,
		arg.CafeID,
		arg.PaymentMethod,
		arg.Amount,
		arg.AmountReceived,
		arg.ChangeAmount,
		arg.ProcessedBy,
	)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.CafeID,
		&i.PaymentMethod,
		&i.Amount,
		&i.AmountReceived,
		&i.ChangeAmount,
		&i.ProcessedBy,
		&i.ProcessedAt,
	)
	return i, err
}

const listPaymentsByOrder = `-- name: ListPaymentsByOrder :many
SELECT id, order_id, cafe_id, payment_method, amount, amount_received, change_amount, processed_by, processed_at
FROM payments
WHERE order_id = $1
ORDER BY processed_at
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.CafeID,
			&i.PaymentMethod,
			&i.Amount,
			&i.AmountReceived,
			&i.ChangeAmount,
			&i.ProcessedBy,
			&i.ProcessedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
