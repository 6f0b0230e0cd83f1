package handler

import (
	"context"
	"net/http"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService.
type TableServicer interface {
	ListTables(ctx context.Context, id *auth.Identity, cafeID uuid.UUID) ([]database.Table, error)
	AssignTables(ctx context.Context, id *auth.Identity, req service.AssignTablesRequest) (*service.SeatingResult, error)
	ReleaseTable(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) ([]database.Table, error)
	ReserveTable(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) (*database.Table, error)
	UnreserveTable(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) (*database.Table, error)
}

// TableHandler handles table endpoints.
type TableHandler struct {
	svc TableServicer
	log logrus.FieldLogger
}

func NewTableHandler(svc TableServicer, log logrus.FieldLogger) *TableHandler {
	return &TableHandler{svc: svc, log: log}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted at /cafes/{cid}/tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/assign", h.Assign)
	r.Post("/{tid}/release", h.Release)
	r.Post("/{tid}/reservation", h.Reserve)
	r.Delete("/{tid}/reservation", h.Unreserve)
}

type assignTablesRequest struct {
	OrderID  uuid.UUID   `json:"order_id"`
	TableIDs []uuid.UUID `json:"table_ids"`
}

// List handles GET /cafes/{cid}/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	tables, err := h.svc.ListTables(r.Context(), id, cafeID)
	if err != nil {
		writeError(w, h.log, "list tables", err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// Assign handles POST /cafes/{cid}/tables/assign. The order moves to
// table_ids as a whole; the first table is primary.
func (h *TableHandler) Assign(w http.ResponseWriter, r *http.Request) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	version, err := expectedVersion(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var req assignTablesRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OrderID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		return
	}

	res, err := h.svc.AssignTables(r.Context(), id, service.AssignTablesRequest{
		CafeID:          cafeID,
		OrderID:         req.OrderID,
		TableIDs:        req.TableIDs,
		ExpectedVersion: version,
	})
	if err != nil {
		writeError(w, h.log, "assign tables", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type tableAction func(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) (any, error)

func (h *TableHandler) act(w http.ResponseWriter, r *http.Request, op string, fn tableAction) {
	cafeID, ok := uuidParam(w, r, "cid", "cafe")
	if !ok {
		return
	}
	tableID, ok := uuidParam(w, r, "tid", "table")
	if !ok {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	out, err := fn(r.Context(), id, cafeID, tableID)
	if err != nil {
		writeError(w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Release handles POST /cafes/{cid}/tables/{tid}/release and answers with
// every table the release changed.
func (h *TableHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "release table", func(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) (any, error) {
		return h.svc.ReleaseTable(ctx, id, cafeID, tableID)
	})
}

// Reserve handles POST /cafes/{cid}/tables/{tid}/reservation.
func (h *TableHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "reserve table", func(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) (any, error) {
		return h.svc.ReserveTable(ctx, id, cafeID, tableID)
	})
}

// Unreserve handles DELETE /cafes/{cid}/tables/{tid}/reservation.
func (h *TableHandler) Unreserve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "unreserve table", func(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) (any, error) {
		return h.svc.UnreserveTable(ctx, id, cafeID, tableID)
	})
}
