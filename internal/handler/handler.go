package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/inventory"
	"github.com/cafeline/api/internal/lifecycle"
	"github.com/cafeline/api/internal/middleware"
	"github.com/cafeline/api/internal/money"
	"github.com/cafeline/api/internal/permission"
	"github.com/cafeline/api/internal/seating"
	"github.com/cafeline/api/internal/service"
	"github.com/cafeline/api/internal/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// errorStatus maps engine errors to HTTP statuses. Order matters: the first
// match wins, so wrapped sentinels come before the errors they wrap.
var errorStatus = []struct {
	err    error
	status int
}{
	{permission.ErrUnauthenticated, http.StatusUnauthorized},
	{permission.ErrPermissionDenied, http.StatusForbidden},
	{tenant.ErrTenantScopeViolation, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
	{lifecycle.ErrItemNotFound, http.StatusNotFound},
	{lifecycle.ErrValidation, http.StatusBadRequest},
	{money.ErrInvalidQuantity, http.StatusBadRequest},
	{money.ErrNegativeAmount, http.StatusBadRequest},
	{money.ErrInvalidDiscount, http.StatusBadRequest},
	{money.ErrDiscountExceedsTotal, http.StatusBadRequest},
	{money.ErrSubunitPrecision, http.StatusBadRequest},
	{inventory.ErrInvalidMovement, http.StatusBadRequest},
	{seating.ErrNoTables, http.StatusBadRequest},
	{service.ErrVersionConflict, http.StatusConflict},
	{lifecycle.ErrInvalidTransition, http.StatusConflict},
	{lifecycle.ErrAlreadyPaid, http.StatusConflict},
	{seating.ErrTableUnavailable, http.StatusConflict},
	{seating.ErrNotSeatable, http.StatusConflict},
	{seating.ErrPrimaryTable, http.StatusConflict},
	{inventory.ErrInsufficientStock, http.StatusUnprocessableEntity},
}

// writeError answers with the status err maps to. Unknown errors and
// integrity failures are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, op string, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, map[string]string{"error": err.Error()})
			return
		}
	}
	entry := log.WithError(err).WithField("op", op)
	if errors.Is(err, money.ErrInconsistentTotals) {
		entry.Error("stored order totals failed the consistency check")
	} else {
		entry.Error("request failed")
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("encode JSON response")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// identity returns the authenticated caller, answering 401 when absent.
func identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil, false
	}
	return id, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	v, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return v, true
}

// expectedVersion reads the optional If-Match header a client sends to
// make a write conditional on the order version it last saw.
func expectedVersion(r *http.Request) (*int32, error) {
	h := r.Header.Get("If-Match")
	if h == "" {
		return nil, nil
	}
	if len(h) >= 2 && h[0] == '"' && h[len(h)-1] == '"' {
		h = h[1 : len(h)-1]
	}
	v, err := strconv.ParseInt(h, 10, 32)
	if err != nil || v < 1 {
		return nil, fmt.Errorf("invalid If-Match version %q", r.Header.Get("If-Match"))
	}
	n := int32(v)
	return &n, nil
}

// pagination parses limit and offset; the service clamps them.
func pagination(r *http.Request) (limit, offset int32) {
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 32); err == nil && v > 0 {
			limit = int32(v)
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 32); err == nil && v >= 0 {
			offset = int32(v)
		}
	}
	return limit, offset
}
