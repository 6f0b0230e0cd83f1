package database

import (
	"context"

	"github.com/cafeline/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Cafes, users and products are owned by the host application; the engine
// only needs the reads below plus the inserts used by cmd/seed.

const cafeColumns = `id, name, subscription_active, subscription_plan, subscription_expires_at, is_vip, vip_reason, created_at, updated_at`

func scanCafe(row pgx.Row) (Cafe, error) {
	var i Cafe
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.SubscriptionActive,
		&i.SubscriptionPlan,
		&i.SubscriptionExpiresAt,
		&i.IsVip,
		&i.VipReason,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCafe = `-- name: GetCafe :one
SELECT ` + cafeColumns + ` FROM cafes WHERE id = $1
`

func (q *Queries) GetCafe(ctx context.Context, id uuid.UUID) (Cafe, error) {
	return scanCafe(q.db.QueryRow(ctx, getCafe, id))
}

const createCafe = `-- name: CreateCafe :one
INSERT INTO cafes (name, subscription_active, subscription_plan, subscription_expires_at, is_vip, vip_reason)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + cafeColumns

type CreateCafeParams struct {
	Name                  string
	SubscriptionActive    bool
	SubscriptionPlan      string
	SubscriptionExpiresAt pgtype.Timestamptz
	IsVip                 bool
	VipReason             pgtype.Text
}

func (q *Queries) CreateCafe(ctx context.Context, arg CreateCafeParams) (Cafe, error) {
	row := q.db.QueryRow(ctx, createCafe,
		arg.Name,
		arg.SubscriptionActive,
		arg.SubscriptionPlan,
		arg.SubscriptionExpiresAt,
		arg.IsVip,
		arg.VipReason,
	)
	return scanCafe(row)
}

const userColumns = `id, cafe_id, name, email, password_hash, role, status, created_at`

func scanUser(row pgx.Row) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.CafeID,
		&i.Name,
		&i.Email,
		&i.PasswordHash,
		&i.Role,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (cafe_id, name, email, password_hash, role, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

type CreateUserParams struct {
	CafeID       pgtype.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         enum.Role
	Status       enum.UserStatus
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.CafeID,
		arg.Name,
		arg.Email,
		arg.PasswordHash,
		arg.Role,
		arg.Status,
	)
	return scanUser(row)
}

const productColumns = `id, cafe_id, name, base_price, station, is_available, variants, customizations, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.CafeID,
		&i.Name,
		&i.BasePrice,
		&i.Station,
		&i.IsAvailable,
		&i.Variants,
		&i.Customizations,
		&i.CreatedAt,
	)
	return i, err
}

const getProductForOrder = `-- name: GetProductForOrder :one
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND cafe_id = $2
`

type GetProductForOrderParams struct {
	ID     uuid.UUID
	CafeID uuid.UUID
}

func (q *Queries) GetProductForOrder(ctx context.Context, arg GetProductForOrderParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductForOrder, arg.ID, arg.CafeID))
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (cafe_id, name, base_price, station, variants, customizations)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + productColumns

type CreateProductParams struct {
	CafeID         uuid.UUID
	Name           string
	BasePrice      decimal.Decimal
	Station        string
	Variants       []ProductVariant
	Customizations []ProductCustomization
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	variants := arg.Variants
	if variants == nil {
		variants = []ProductVariant{}
	}
	customizations := arg.Customizations
	if customizations == nil {
		customizations = []ProductCustomization{}
	}
	row := q.db.QueryRow(ctx, createProduct,
		arg.CafeID,
		arg.Name,
		arg.BasePrice,
		arg.Station,
		variants,
		customizations,
	)
	return scanProduct(row)
}
