package handler

import (
	"context"
	"net/http"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/inventory"
	"github.com/cafeline/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// InventoryServicer defines the service methods needed by inventory handlers.
// Satisfied by *service.InventoryService.
type InventoryServicer interface {
	ListItems(ctx context.Context, id *auth.Identity, cafeID uuid.UUID) ([]inventory.View, error)
	ListMovements(ctx context.Context, id *auth.Identity, cafeID, itemID uuid.UUID, limit, offset int32) ([]database.StockMovement, error)
	RecordMovement(ctx context.Context, id *auth.Identity, cafeID, itemID uuid.UUID, m inventory.Movement) (*service.MovementResult, error)
}

// InventoryHandler handles inventory endpoints.
type InventoryHandler struct {
	svc InventoryServicer
	log logrus.FieldLogger
}

func NewInventoryHandler(svc InventoryServicer, log logrus.FieldLogger) *InventoryHandler {
	return &InventoryHandler{svc: svc, log: log}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
// Expected to be mounted at /cafes/{cid}/inventory.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{iid}/movements", h.ListMovements)
	r.Post("/{iid}/movements", h.RecordMovement)
}

type movementRequest struct {
	Delta  decimal.Decimal     `json:"delta"`
	Reason enum.MovementReason `json:"reason"`
	Note   string              `json:"note"`
}

// List handles GET /cafes/{cid}/inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListItems(r.Context(), id, cafeID)
	if err != nil {
		writeError(w, h.log, "list inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ListMovements handles GET /cafes/{cid}/inventory/{iid}/movements.
func (h *InventoryHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "iid", "inventory item")
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	movements, err := h.svc.ListMovements(r.Context(), id, cafeID, itemID, limit, offset)
	if err != nil {
		writeError(w, h.log, "list movements", err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

// RecordMovement handles POST /cafes/{cid}/inventory/{iid}/movements.
func (h *InventoryHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "iid", "inventory item")
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.RecordMovement(r.Context(), id, cafeID, itemID, inventory.Movement{
		Delta:  req.Delta,
		Reason: req.Reason,
		Note:   req.Note,
	})
	if err != nil {
		writeError(w, h.log, "record movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
