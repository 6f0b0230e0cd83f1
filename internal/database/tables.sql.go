package database

import (
	"context"

	"github.com/cafeline/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tableColumns = `id, cafe_id, name, section, capacity, shape, status, current_order_id, combined_with, updated_at`

func scanTable(row pgx.Row) (Table, error) {
	var i Table
	err := row.Scan(
		&i.ID,
		&i.CafeID,
		&i.Name,
		&i.Section,
		&i.Capacity,
		&i.Shape,
		&i.Status,
		&i.CurrentOrderID,
		&i.CombinedWith,
		&i.UpdatedAt,
	)
	return i, err
}

func collectTables(rows pgx.Rows, err error) ([]Table, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Table
	for rows.Next() {
		i, err := scanTable(rows)
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

const createTable = `-- name: CreateTable :one
INSERT INTO dining_tables (cafe_id, name, section, capacity, shape)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + tableColumns

type CreateTableParams struct {
	CafeID   uuid.UUID
	Name     string
	Section  string
	Capacity int32
	Shape    string
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, arg.CafeID, arg.Name, arg.Section, arg.Capacity, arg.Shape))
}

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + `
FROM dining_tables
WHERE id = $1 AND cafe_id = $2
`

type GetTableParams struct {
	ID     uuid.UUID
	CafeID uuid.UUID
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, arg.ID, arg.CafeID))
}

const getTablesForUpdate = `-- name: GetTablesForUpdate :many
SELECT ` + tableColumns + `
FROM dining_tables
WHERE cafe_id = $1 AND id = ANY($2::uuid[])
ORDER BY id
FOR UPDATE
`

type GetTablesForUpdateParams struct {
	CafeID uuid.UUID
	IDs    []uuid.UUID
}

// GetTablesForUpdate locks the given tables in id order so concurrent
// callers cannot deadlock on each other.
func (q *Queries) GetTablesForUpdate(ctx context.Context, arg GetTablesForUpdateParams) ([]Table, error) {
	return collectTables(q.db.Query(ctx, getTablesForUpdate, arg.CafeID, arg.IDs))
}

const listTablesByOrder = `-- name: ListTablesByOrder :many
SELECT ` + tableColumns + `
FROM dining_tables
WHERE cafe_id = $1 AND current_order_id = $2
ORDER BY id
FOR UPDATE
`

type ListTablesByOrderParams struct {
	CafeID  uuid.UUID
	OrderID uuid.UUID
}

// ListTablesByOrder returns and locks every table occupied by the order.
func (q *Queries) ListTablesByOrder(ctx context.Context, arg ListTablesByOrderParams) ([]Table, error) {
	return collectTables(q.db.Query(ctx, listTablesByOrder, arg.CafeID, arg.OrderID))
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + `
FROM dining_tables
WHERE cafe_id = $1
ORDER BY section, name
`

func (q *Queries) ListTables(ctx context.Context, cafeID uuid.UUID) ([]Table, error) {
	return collectTables(q.db.Query(ctx, listTables, cafeID))
}

const occupyTable = `-- name: OccupyTable :one
UPDATE dining_tables
SET status = 'occupied',
    current_order_id = $3,
    combined_with = $4,
    updated_at = now()
WHERE id = $1 AND cafe_id = $2
  AND (status = 'available' OR current_order_id = $3)
RETURNING ` + tableColumns

type OccupyTableParams struct {
	ID           uuid.UUID
	CafeID       uuid.UUID
	OrderID      uuid.UUID
	CombinedWith []uuid.UUID
}

// OccupyTable is a conditional write: it returns pgx.ErrNoRows unless the
// table is available or already holds the same order.
func (q *Queries) OccupyTable(ctx context.Context, arg OccupyTableParams) (Table, error) {
	combined := arg.CombinedWith
	if combined == nil {
		combined = []uuid.UUID{}
	}
	return scanTable(q.db.QueryRow(ctx, occupyTable, arg.ID, arg.CafeID, arg.OrderID, combined))
}

const releaseTable = `-- name: ReleaseTable :one
UPDATE dining_tables
SET status = 'available',
    current_order_id = NULL,
    combined_with = '{}',
    updated_at = now()
WHERE id = $1 AND cafe_id = $2 AND current_order_id = $3
RETURNING ` + tableColumns

type ReleaseTableParams struct {
	ID      uuid.UUID
	CafeID  uuid.UUID
	OrderID uuid.UUID
}

// ReleaseTable clears status and current order together. It returns
// pgx.ErrNoRows when the table does not hold the order.
func (q *Queries) ReleaseTable(ctx context.Context, arg ReleaseTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, releaseTable, arg.ID, arg.CafeID, arg.OrderID))
}

const setTableStatus = `-- name: SetTableStatus :one
UPDATE dining_tables
SET status = $4,
    updated_at = now()
WHERE id = $1 AND cafe_id = $2 AND status = $3 AND current_order_id IS NULL
RETURNING ` + tableColumns

type SetTableStatusParams struct {
	ID     uuid.UUID
	CafeID uuid.UUID
	From   enum.TableStatus
	To     enum.TableStatus
}

// SetTableStatus moves an unoccupied table between available and reserved.
func (q *Queries) SetTableStatus(ctx context.Context, arg SetTableStatusParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, setTableStatus, arg.ID, arg.CafeID, arg.From, arg.To))
}
