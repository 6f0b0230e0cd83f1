// Package tenant pins every read and write to the caller's café.
package tenant

import (
	"errors"
	"fmt"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/enum"
	"github.com/google/uuid"
)

var ErrTenantScopeViolation = errors.New("tenant scope violation")

// Check returns ErrTenantScopeViolation unless id may act on cafeID.
// Platform administrators may act on any café.
func Check(id *auth.Identity, cafeID uuid.UUID) error {
	if id == nil {
		return ErrTenantScopeViolation
	}
	if id.Role == enum.RoleSuperAdmin {
		return nil
	}
	if id.CafeID == uuid.Nil || id.CafeID != cafeID {
		return fmt.Errorf("%w: cafe %s", ErrTenantScopeViolation, cafeID)
	}
	return nil
}

// Filter resolves the café a list query is scoped to. A super admin that
// requests uuid.Nil gets all == true; everyone else is pinned to their own
// café and asking for another one is a violation.
func Filter(id *auth.Identity, requested uuid.UUID) (cafeID uuid.UUID, all bool, err error) {
	if id == nil {
		return uuid.Nil, false, ErrTenantScopeViolation
	}
	if id.Role == enum.RoleSuperAdmin {
		return requested, requested == uuid.Nil, nil
	}
	if id.CafeID == uuid.Nil {
		return uuid.Nil, false, ErrTenantScopeViolation
	}
	if requested != uuid.Nil && requested != id.CafeID {
		return uuid.Nil, false, fmt.Errorf("%w: cafe %s", ErrTenantScopeViolation, requested)
	}
	return id.CafeID, false, nil
}
