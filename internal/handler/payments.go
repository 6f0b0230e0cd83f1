package handler

import (
	"context"
	"net/http"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.OrderService.
type PaymentServicer interface {
	PayOrder(ctx context.Context, id *auth.Identity, ref service.OrderRef, req service.PaymentRequest) (*service.PaymentResult, error)
	RefundOrder(ctx context.Context, id *auth.Identity, ref service.OrderRef) (*database.Order, error)
	ListPayments(ctx context.Context, id *auth.Identity, ref service.OrderRef) ([]database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
	log logrus.FieldLogger
}

func NewPaymentHandler(svc PaymentServicer, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /cafes/{cid}/orders/{id}/payments.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Pay)
	r.Get("/", h.List)
	r.Post("/refund", h.Refund)
}

type payRequest struct {
	PaymentMethod  string              `json:"payment_method"`
	AmountReceived decimal.NullDecimal `json:"amount_received"`
}

// Pay handles POST /cafes/{cid}/orders/{id}/payments. The order is paid in
// full with one payment; amount_received is only meaningful for cash.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ref, ok := orderRef(w, r)
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req payRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}

	res, err := h.svc.PayOrder(r.Context(), id, ref, service.PaymentRequest{
		Method:         req.PaymentMethod,
		AmountReceived: req.AmountReceived,
	})
	if err != nil {
		writeError(w, h.log, "pay order", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// List handles GET /cafes/{cid}/orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	ref, ok := orderRef(w, r)
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	payments, err := h.svc.ListPayments(r.Context(), id, ref)
	if err != nil {
		writeError(w, h.log, "list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// Refund handles POST /cafes/{cid}/orders/{id}/payments/refund.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ref, ok := orderRef(w, r)
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	order, err := h.svc.RefundOrder(r.Context(), id, ref)
	if err != nil {
		writeError(w, h.log, "refund order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
