package database

import (
	"time"

	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Cafe struct {
	ID                    uuid.UUID          `json:"id"`
	Name                  string             `json:"name"`
	SubscriptionActive    bool               `json:"subscription_active"`
	SubscriptionPlan      string             `json:"subscription_plan"`
	SubscriptionExpiresAt pgtype.Timestamptz `json:"subscription_expires_at"`
	IsVip                 bool               `json:"is_vip"`
	VipReason             pgtype.Text        `json:"vip_reason"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

type User struct {
	ID           uuid.UUID       `json:"id"`
	CafeID       pgtype.UUID     `json:"cafe_id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         enum.Role       `json:"role"`
	Status       enum.UserStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ProductVariant is a priced alternative of a product (size, milk, ...).
type ProductVariant struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

type ProductCustomization struct {
	Name    string                       `json:"name"`
	Options []ProductCustomizationOption `json:"options"`
}

type ProductCustomizationOption struct {
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

type Product struct {
	ID             uuid.UUID              `json:"id"`
	CafeID         uuid.UUID              `json:"cafe_id"`
	Name           string                 `json:"name"`
	BasePrice      decimal.Decimal        `json:"base_price"`
	Station        string                 `json:"station"`
	IsAvailable    bool                   `json:"is_available"`
	Variants       []ProductVariant       `json:"variants"`
	Customizations []ProductCustomization `json:"customizations"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ItemVariant is the variant snapshot stored on an order item.
type ItemVariant struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

type ItemCustomization struct {
	Name       string          `json:"name"`
	Option     string          `json:"option"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// OrderItem is stored inside orders.items. Product name and prices are
// snapshots taken when the item was added.
type OrderItem struct {
	ID             uuid.UUID           `json:"id"`
	ProductID      uuid.UUID           `json:"product_id"`
	ProductName    string              `json:"product_name"`
	Quantity       int32               `json:"quantity"`
	UnitPrice      decimal.Decimal     `json:"unit_price"`
	Variant        *ItemVariant        `json:"variant,omitempty"`
	Customizations []ItemCustomization `json:"customizations"`
	Status         enum.ItemStatus     `json:"status"`
	Notes          string              `json:"notes,omitempty"`
	Station        string              `json:"station,omitempty"`
}

// Line converts the item into a money.Line.
func (i OrderItem) Line() money.Line {
	l := money.Line{
		UnitPrice: i.UnitPrice,
		Quantity:  i.Quantity,
		Cancelled: i.Status == enum.ItemStatusCancelled,
	}
	if i.Variant != nil {
		l.VariantDelta = i.Variant.PriceDelta
	}
	for _, c := range i.Customizations {
		l.CustomizationDeltas = append(l.CustomizationDeltas, c.PriceDelta)
	}
	return l
}

type DeliveryInfo struct {
	CustomerName          string     `json:"customer_name"`
	Phone                 string     `json:"phone"`
	Address               string     `json:"address"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time,omitempty"`
	DriverName            string     `json:"driver_name,omitempty"`
}

// Complete reports whether the contact details needed for a handoff are set.
func (d *DeliveryInfo) Complete() bool {
	return d != nil && d.CustomerName != "" && d.Phone != "" && d.Address != ""
}

type Order struct {
	ID             uuid.UUID          `json:"id"`
	CafeID         uuid.UUID          `json:"cafe_id"`
	OrderNumber    string             `json:"order_number"`
	OrderType      enum.OrderType     `json:"order_type"`
	Status         enum.OrderStatus   `json:"status"`
	Items          []OrderItem        `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	TaxAmount      decimal.Decimal    `json:"tax_amount"`
	// TaxRate is the rate the order was priced at.
	TaxRate        decimal.Decimal    `json:"tax_rate"`
	DiscountType   string             `json:"discount_type"`
	DiscountValue  decimal.Decimal    `json:"discount_value"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	DeliveryFee    decimal.Decimal    `json:"delivery_fee"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	PaymentStatus  enum.PaymentStatus `json:"payment_status"`
	PaymentMethod  pgtype.Text        `json:"payment_method"`
	TableID        pgtype.UUID        `json:"table_id"`
	CustomerID     pgtype.UUID        `json:"customer_id"`
	Delivery       *DeliveryInfo      `json:"delivery"`
	Notes          pgtype.Text        `json:"notes"`
	Version        int32              `json:"version"`
	CreatedBy      uuid.UUID          `json:"created_by"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Lines returns the money lines of every item, cancelled ones included.
func (o *Order) Lines() []money.Line {
	lines := make([]money.Line, len(o.Items))
	for i, item := range o.Items {
		lines[i] = item.Line()
	}
	return lines
}

// Totals returns the stored financial fields.
func (o *Order) Totals() money.Totals {
	return money.Totals{
		Subtotal:    o.Subtotal,
		Tax:         o.TaxAmount,
		DeliveryFee: o.DeliveryFee,
		Discount:    o.DiscountAmount,
		Total:       o.TotalAmount,
	}
}

// SetTotals overwrites every financial field at once.
func (o *Order) SetTotals(t money.Totals) {
	o.Subtotal = t.Subtotal
	o.TaxAmount = t.Tax
	o.DeliveryFee = t.DeliveryFee
	o.DiscountAmount = t.Discount
	o.TotalAmount = t.Total
}

// ItemIndex returns the position of the item with id, or -1.
func (o *Order) ItemIndex(id uuid.UUID) int {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return i
		}
	}
	return -1
}

type Payment struct {
	ID             uuid.UUID           `json:"id"`
	OrderID        uuid.UUID           `json:"order_id"`
	CafeID         uuid.UUID           `json:"cafe_id"`
	PaymentMethod  string              `json:"payment_method"`
	Amount         decimal.Decimal     `json:"amount"`
	AmountReceived decimal.NullDecimal `json:"amount_received"`
	ChangeAmount   decimal.NullDecimal `json:"change_amount"`
	ProcessedBy    uuid.UUID           `json:"processed_by"`
	ProcessedAt    time.Time           `json:"processed_at"`
}

type Table struct {
	ID             uuid.UUID        `json:"id"`
	CafeID         uuid.UUID        `json:"cafe_id"`
	Name           string           `json:"name"`
	Section        string           `json:"section"`
	Capacity       int32            `json:"capacity"`
	Shape          string           `json:"shape"`
	Status         enum.TableStatus `json:"status"`
	CurrentOrderID pgtype.UUID      `json:"current_order_id"`
	CombinedWith   []uuid.UUID      `json:"combined_with"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Holds reports whether the table is occupied by orderID.
func (t *Table) Holds(orderID uuid.UUID) bool {
	return t.CurrentOrderID.Valid && uuid.UUID(t.CurrentOrderID.Bytes) == orderID
}

type InventoryItem struct {
	ID           uuid.UUID       `json:"id"`
	CafeID       uuid.UUID       `json:"cafe_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	Cost         decimal.Decimal `json:"cost"`
	ExpiryDate   pgtype.Date     `json:"expiry_date"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type StockMovement struct {
	ID         uuid.UUID           `json:"id"`
	CafeID     uuid.UUID           `json:"cafe_id"`
	ItemID     uuid.UUID           `json:"item_id"`
	Delta      decimal.Decimal     `json:"delta"`
	Reason     enum.MovementReason `json:"reason"`
	Note       string              `json:"note"`
	ActorID    uuid.UUID           `json:"actor_id"`
	StockAfter decimal.Decimal     `json:"stock_after"`
	CreatedAt  time.Time           `json:"created_at"`
}
