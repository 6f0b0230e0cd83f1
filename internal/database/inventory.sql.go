package database

import (
	"context"

	"github.com/cafeline/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const inventoryColumns = `id, cafe_id, name, category, unit, current_stock, minimum_stock, cost, expiry_date, updated_at`

func scanInventoryItem(row pgx.Row) (InventoryItem, error) {
	var i InventoryItem
	err := row.Scan(
		&i.ID,
		&i.CafeID,
		&i.Name,
		&i.Category,
		&i.Unit,
		&i.CurrentStock,
		&i.MinimumStock,
		&i.Cost,
		&i.ExpiryDate,
		&i.UpdatedAt,
	)
	return i, err
}

const createInventoryItem = `-- name: CreateInventoryItem :one
INSERT INTO inventory_items (cafe_id, name, category, unit, current_stock, minimum_stock, cost, expiry_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + inventoryColumns

type CreateInventoryItemParams struct {
	CafeID       uuid.UUID
	Name         string
	Category     string
	Unit         string
	CurrentStock decimal.Decimal
	MinimumStock decimal.Decimal
	Cost         decimal.Decimal
	ExpiryDate   pgtype.Date
}

func (q *Queries) CreateInventoryItem(ctx context.Context, arg CreateInventoryItemParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx, createInventoryItem,
		arg.CafeID,
		arg.Name,
		arg.Category,
		arg.Unit,
		arg.CurrentStock,
		arg.MinimumStock,
		arg.Cost,
		arg.ExpiryDate,
	)
	return scanInventoryItem(row)
}

const getInventoryItem = `-- name: GetInventoryItem :one
SELECT ` + inventoryColumns + `
FROM inventory_items
WHERE id = $1 AND cafe_id = $2
`

type GetInventoryItemParams struct {
	ID     uuid.UUID
	CafeID uuid.UUID
}

func (q *Queries) GetInventoryItem(ctx context.Context, arg GetInventoryItemParams) (InventoryItem, error) {
	return scanInventoryItem(q.db.QueryRow(ctx, getInventoryItem, arg.ID, arg.CafeID))
}

const listInventoryItems = `-- name: ListInventoryItems :many
SELECT ` + inventoryColumns + `
FROM inventory_items
WHERE cafe_id = $1
ORDER BY category, name
`

func (q *Queries) ListInventoryItems(ctx context.Context, cafeID uuid.UUID) ([]InventoryItem, error) {
	rows, err := q.db.Query(ctx, listInventoryItems, cafeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InventoryItem
	for rows.Next() {
		i, err := scanInventoryItem(rows)
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

const updateInventoryStock = `-- name: UpdateInventoryStock :one
UPDATE inventory_items
SET current_stock = $4,
    updated_at = now()
WHERE id = $1 AND cafe_id = $2 AND current_stock = $3
RETURNING ` + inventoryColumns

type UpdateInventoryStockParams struct {
	ID       uuid.UUID
	CafeID   uuid.UUID
	OldStock decimal.Decimal
	NewStock decimal.Decimal
}

// UpdateInventoryStock is a compare-and-set on current_stock. It returns
// pgx.ErrNoRows when another movement changed the stock first.
func (q *Queries) UpdateInventoryStock(ctx context.Context, arg UpdateInventoryStockParams) (InventoryItem, error) {
	return scanInventoryItem(q.db.QueryRow(ctx, updateInventoryStock, arg.ID, arg.CafeID, arg.OldStock, arg.NewStock))
}

const movementColumns = `id, cafe_id, item_id, delta, reason, note, actor_id, stock_after, created_at`

func scanStockMovement(row pgx.Row) (StockMovement, error) {
	var i StockMovement
	err := row.Scan(
		&i.ID,
		&i.CafeID,
		&i.ItemID,
		&i.Delta,
		&i.Reason,
		&i.Note,
		&i.ActorID,
		&i.StockAfter,
		&i.CreatedAt,
	)
	return i, err
}

const createStockMovement = `-- name: CreateStockMovement :one
INSERT INTO stock_movements (cafe_id, item_id, delta, reason, note, actor_id, stock_after, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + movementColumns

type CreateStockMovementParams struct {
	CafeID     uuid.UUID
	ItemID     uuid.UUID
	Delta      decimal.Decimal
	Reason     enum.MovementReason
	Note       string
	ActorID    uuid.UUID
	StockAfter decimal.Decimal
	CreatedAt  pgtype.Timestamptz
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	row := q.db.QueryRow(ctx, createStockMovement,
		arg.CafeID,
		arg.ItemID,
		arg.Delta,
		arg.Reason,
		arg.Note,
		arg.ActorID,
		arg.StockAfter,
		arg.CreatedAt,
	)
	return scanStockMovement(row)
}

const listStockMovements = `-- name: ListStockMovements :many
SELECT ` + movementColumns + `
FROM stock_movements
WHERE item_id = $1 AND cafe_id = $2
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListStockMovementsParams struct {
	ItemID uuid.UUID
	CafeID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListStockMovements(ctx context.Context, arg ListStockMovementsParams) ([]StockMovement, error) {
	rows, err := q.db.Query(ctx, listStockMovements, arg.ItemID, arg.CafeID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StockMovement
	for rows.Next() {
		i, err := scanStockMovement(rows)
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
