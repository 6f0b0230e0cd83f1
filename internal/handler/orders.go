package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/lifecycle"
	"github.com/cafeline/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, id *auth.Identity, req service.CreateOrderRequest) (*database.Order, error)
	GetOrder(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error)
	ListOrders(ctx context.Context, id *auth.Identity, req service.ListOrdersRequest) ([]database.Order, error)
	ConfirmOrder(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error)
	ServeOrder(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error)
	CancelOrder(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error)
	SetDiscount(ctx context.Context, id *auth.Identity, ref service.OrderRef, discountType string, value decimal.Decimal) (*database.Order, error)
	AddItem(ctx context.Context, id *auth.Identity, ref service.OrderRef, req service.ItemRequest) (*database.Order, error)
	UpdateItem(ctx context.Context, id *auth.Identity, ref service.OrderRef, itemID uuid.UUID, req service.UpdateItemRequest) (*database.Order, error)
	RemoveItem(ctx context.Context, id *auth.Identity, ref service.OrderRef, itemID uuid.UUID) (*database.Order, error)
	SetItemStatus(ctx context.Context, id *auth.Identity, ref service.OrderRef, itemID uuid.UUID, to enum.ItemStatus) (*database.Order, error)
	AssignDelivery(ctx context.Context, id *auth.Identity, ref service.OrderRef, driver string, eta *time.Time) (*database.Order, error)
	MarkDelivered(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error)
	PromoteToDineIn(ctx context.Context, id *auth.Identity, ref service.OrderRef, tableIDs []uuid.UUID) (*database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
	log logrus.FieldLogger
}

func NewOrderHandler(svc OrderServicer, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a café-scoped subrouter: /cafes/{cid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/confirm", h.Confirm)
	r.Post("/{id}/serve", h.Serve)
	r.Post("/{id}/cancel", h.Cancel)
	r.Put("/{id}/discount", h.SetDiscount)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/{id}/items/{itemID}", h.UpdateItem)
	r.Delete("/{id}/items/{itemID}", h.RemoveItem)
	r.Patch("/{id}/items/{itemID}/status", h.SetItemStatus)
	r.Post("/{id}/delivery", h.AssignDelivery)
	r.Post("/{id}/delivered", h.MarkDelivered)
	r.Post("/{id}/promote", h.Promote)
}

// --- Request types ---

type customizationRequest struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

type orderItemRequest struct {
	ProductID      uuid.UUID              `json:"product_id"`
	VariantID      uuid.UUID              `json:"variant_id"`
	Quantity       int32                  `json:"quantity"`
	Notes          string                 `json:"notes"`
	Customizations []customizationRequest `json:"customizations"`
}

type deliveryRequest struct {
	CustomerName          string     `json:"customer_name"`
	Phone                 string     `json:"phone"`
	Address               string     `json:"address"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time"`
}

type createOrderRequest struct {
	OrderType     enum.OrderType     `json:"order_type"`
	TableIDs      []uuid.UUID        `json:"table_ids"`
	CustomerID    uuid.UUID          `json:"customer_id"`
	Notes         string             `json:"notes"`
	DiscountType  string             `json:"discount_type"`
	DiscountValue decimal.Decimal    `json:"discount_value"`
	Delivery      *deliveryRequest   `json:"delivery"`
	Items         []orderItemRequest `json:"items"`
}

type discountRequest struct {
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
}

type updateItemRequest struct {
	Quantity       *int32                  `json:"quantity"`
	Customizations *[]customizationRequest `json:"customizations"`
	Notes          *string                 `json:"notes"`
}

type itemStatusRequest struct {
	Status enum.ItemStatus `json:"status"`
}

type assignDeliveryRequest struct {
	DriverName            string     `json:"driver_name"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time"`
}

type tablesRequest struct {
	TableIDs []uuid.UUID `json:"table_ids"`
}

type orderListResponse struct {
	Orders []database.Order `json:"orders"`
	Limit  int32            `json:"limit"`
	Offset int32            `json:"offset"`
}

func toChoices(in []customizationRequest) []lifecycle.CustomizationChoice {
	out := make([]lifecycle.CustomizationChoice, len(in))
	for i, c := range in {
		out[i] = lifecycle.CustomizationChoice{Name: c.Name, Option: c.Option}
	}
	return out
}

func (i orderItemRequest) toService() service.ItemRequest {
	return service.ItemRequest{
		ProductID:      i.ProductID,
		VariantID:      i.VariantID,
		Quantity:       i.Quantity,
		Notes:          i.Notes,
		Customizations: toChoices(i.Customizations),
	}
}

// orderRef reads the café, order and optional expected version of a request.
func orderRef(w http.ResponseWriter, r *http.Request) (service.OrderRef, bool) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return service.OrderRef{}, false
	}
	orderID, ok := uuidParam(w, r, "id", "order")
	if !ok {
		return service.OrderRef{}, false
	}
	version, err := expectedVersion(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return service.OrderRef{}, false
	}
	return service.OrderRef{CafeID: cafeID, OrderID: orderID, ExpectedVersion: version}, true
}

// --- Handlers ---

// Create handles POST /cafes/{cid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrderType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_type is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	items := make([]service.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = item.toService()
	}
	svcReq := service.CreateOrderRequest{
		CafeID:        cafeID,
		OrderType:     req.OrderType,
		TableIDs:      req.TableIDs,
		CustomerID:    req.CustomerID,
		Notes:         req.Notes,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Items:         items,
	}
	if d := req.Delivery; d != nil {
		svcReq.Delivery = &database.DeliveryInfo{
			CustomerName:          d.CustomerName,
			Phone:                 d.Phone,
			Address:               d.Address,
			EstimatedDeliveryTime: d.EstimatedDeliveryTime,
		}
	}

	order, err := h.svc.CreateOrder(r.Context(), id, svcReq)
	if err != nil {
		writeError(w, h.log, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// List handles GET /cafes/{cid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return
	}
	h.list(w, r, cafeID)
}

// ListAll handles GET /orders for the platform role. Other callers get
// their own café.
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, uuid.Nil)
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, cafeID uuid.UUID) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	orders, err := h.svc.ListOrders(r.Context(), id, service.ListOrdersRequest{
		CafeID:    cafeID,
		Status:    r.URL.Query().Get("status"),
		OrderType: r.URL.Query().Get("type"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, h.log, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: orders, Limit: limit, Offset: offset})
}

// Get handles GET /cafes/{cid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref, ok := orderRef(w, r)
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id, ref)
	if err != nil {
		writeError(w, h.log, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type orderAction func(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error)

// act runs a body-less order operation and answers with the updated order.
func (h *OrderHandler) act(w http.ResponseWriter, r *http.Request, op string, fn orderAction) {
	ref, ok := orderRef(w, r)
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	order, err := fn(r.Context(), id, ref)
	if err != nil {
		writeError(w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Confirm handles POST /cafes/{cid}/orders/{id}/confirm.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "confirm order", h.svc.ConfirmOrder)
}

// Serve handles POST /cafes/{cid}/orders/{id}/serve.
func (h *OrderHandler) Serve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "serve order", h.svc.ServeOrder)
}

// Cancel handles POST /cafes/{cid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "cancel order", h.svc.CancelOrder)
}

// MarkDelivered handles POST /cafes/{cid}/orders/{id}/delivered.
func (h *OrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "mark delivered", h.svc.MarkDelivered)
}

// SetDiscount handles PUT /cafes/{cid}/orders/{id}/discount. An empty
// discount_type clears the discount.
func (h *OrderHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, "set discount", func(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error) {
		return h.svc.SetDiscount(ctx, id, ref, req.DiscountType, req.DiscountValue)
	})
}

// AddItem handles POST /cafes/{cid}/orders/{id}/items.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req orderItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}
	h.act(w, r, "add item", func(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error) {
		return h.svc.AddItem(ctx, id, ref, req.toService())
	})
}

// UpdateItem handles PATCH /cafes/{cid}/orders/{id}/items/{itemID}.
func (h *OrderHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "itemID", "item")
	if !ok {
		return
	}
	var req updateItemRequest
	if !decode(w, r, &req) {
		return
	}
	svcReq := service.UpdateItemRequest{Quantity: req.Quantity, Notes: req.Notes}
	if req.Customizations != nil {
		choices := toChoices(*req.Customizations)
		svcReq.Customizations = &choices
	}
	h.act(w, r, "update item", func(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error) {
		return h.svc.UpdateItem(ctx, id, ref, itemID, svcReq)
	})
}

// RemoveItem handles DELETE /cafes/{cid}/orders/{id}/items/{itemID}.
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "itemID", "item")
	if !ok {
		return
	}
	h.act(w, r, "remove item", func(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error) {
		return h.svc.RemoveItem(ctx, id, ref, itemID)
	})
}

// SetItemStatus handles PATCH /cafes/{cid}/orders/{id}/items/{itemID}/status.
func (h *OrderHandler) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "itemID", "item")
	if !ok {
		return
	}
	var req itemStatusRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	h.act(w, r, "set item status", func(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error) {
		return h.svc.SetItemStatus(ctx, id, ref, itemID, req.Status)
	})
}

// AssignDelivery handles POST /cafes/{cid}/orders/{id}/delivery.
func (h *OrderHandler) AssignDelivery(w http.ResponseWriter, r *http.Request) {
	var req assignDeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, "assign delivery", func(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error) {
		return h.svc.AssignDelivery(ctx, id, ref, req.DriverName, req.EstimatedDeliveryTime)
	})
}

// Promote handles POST /cafes/{cid}/orders/{id}/promote, turning a
// takeaway order into a dine-in order seated at table_ids.
func (h *OrderHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req tablesRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, "promote order", func(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error) {
		return h.svc.PromoteToDineIn(ctx, id, ref, req.TableIDs)
	})
}
