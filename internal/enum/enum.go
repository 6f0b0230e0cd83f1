package enum

// ── Group A: State machines (CHECK constrained in DB) ──

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusServed         OrderStatus = "served"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusServed, OrderStatusOutForDelivery,
		OrderStatusCompleted, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusDelivered || s == OrderStatusCancelled
}

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusPreparing ItemStatus = "preparing"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusServed    ItemStatus = "served"
	ItemStatusCancelled ItemStatus = "cancelled"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusPreparing, ItemStatusReady,
		ItemStatusServed, ItemStatusCancelled:
		return true
	}
	return false
}

func (s ItemStatus) Terminal() bool {
	return s == ItemStatusServed || s == ItemStatusCancelled
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type TableStatus string

const (
	TableStatusAvailable TableStatus = "available"
	TableStatusOccupied  TableStatus = "occupied"
	TableStatusReserved  TableStatus = "reserved"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleCashier    Role = "cashier"
	RoleWaiter     Role = "waiter"
	RoleChef       Role = "chef"
	RoleBarista    Role = "barista"
)

// Roles lists every role in privilege order.
var Roles = []Role{
	RoleSuperAdmin, RoleAdmin, RoleManager, RoleCashier,
	RoleWaiter, RoleChef, RoleBarista,
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeOnline   OrderType = "online"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery, OrderTypeOnline:
		return true
	}
	return false
}

// Dispatched reports whether orders of this type leave the café through
// a driver instead of being handed over at the counter or table.
func (t OrderType) Dispatched() bool {
	return t == OrderTypeDelivery || t == OrderTypeOnline
}

type MovementReason string

const (
	MovementUsed       MovementReason = "used"
	MovementWastage    MovementReason = "wastage"
	MovementRestock    MovementReason = "restock"
	MovementAdjustment MovementReason = "adjustment"
)

func (r MovementReason) Valid() bool {
	switch r {
	case MovementUsed, MovementWastage, MovementRestock, MovementAdjustment:
		return true
	}
	return false
}

// ── Group B: Configurable labels (no DB constraint) ──

type Feature string

const (
	FeatureDashboard    Feature = "dashboard"
	FeaturePOS          Feature = "pos"
	FeatureOrders       Feature = "orders"
	FeatureKitchen      Feature = "kitchen"
	FeatureTables       Feature = "tables"
	FeatureReservations Feature = "reservations"
	FeatureDelivery     Feature = "delivery"
	FeatureInventory    Feature = "inventory"
	FeatureCustomers    Feature = "customers"
	FeatureProducts     Feature = "products"
	FeatureCashflow     Feature = "cashflow"
	FeatureReports      Feature = "reports"
	FeatureUsers        Feature = "users"
	FeatureSettings     Feature = "settings"
	FeatureCafes        Feature = "cafes"
)

// Features lists every gated feature.
var Features = []Feature{
	FeatureDashboard, FeaturePOS, FeatureOrders, FeatureKitchen,
	FeatureTables, FeatureReservations, FeatureDelivery, FeatureInventory,
	FeatureCustomers, FeatureProducts, FeatureCashflow, FeatureReports,
	FeatureUsers, FeatureSettings, FeatureCafes,
}

const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodQRIS     = "qris"
	PaymentMethodTransfer = "transfer"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed_amount"
)

const (
	SubscriptionPlanBasic      = "basic"
	SubscriptionPlanPro        = "pro"
	SubscriptionPlanEnterprise = "enterprise"
)

const (
	StationKitchen = "kitchen"
	StationBar     = "bar"
	StationPastry  = "pastry"
)
