// Package permission decides whether an identity may use a feature of a café.
package permission

import (
	"errors"
	"fmt"
	"time"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
)

var (
	ErrPermissionDenied     = errors.New("permission denied")
	ErrSubscriptionInactive = fmt.Errorf("%w: cafe subscription inactive", ErrPermissionDenied)
	ErrUnauthenticated      = fmt.Errorf("%w: not authenticated", ErrPermissionDenied)
	ErrUserInactive         = fmt.Errorf("%w: user is not active", ErrPermissionDenied)
)

// operational is the feature set that runs a café day to day.
var operational = set(
	enum.FeatureDashboard, enum.FeaturePOS, enum.FeatureOrders, enum.FeatureKitchen,
	enum.FeatureTables, enum.FeatureReservations, enum.FeatureDelivery,
	enum.FeatureInventory, enum.FeatureCustomers, enum.FeatureProducts,
	enum.FeatureCashflow, enum.FeatureReports,
)

var (
	adminFeatures   = union(operational, set(enum.FeatureUsers, enum.FeatureSettings))
	cashierFeatures = set(enum.FeaturePOS, enum.FeatureCustomers, enum.FeatureCashflow)
	waiterFeatures  = set(enum.FeaturePOS, enum.FeatureReservations, enum.FeatureTables)
	chefFeatures    = set(enum.FeatureKitchen, enum.FeatureInventory)
	baristaFeatures = set(enum.FeaturePOS, enum.FeatureKitchen, enum.FeatureInventory)
)

// featuresFor returns the fixed feature set of a tenant role. Unknown
// roles get nothing.
func featuresFor(role enum.Role) map[enum.Feature]bool {
	switch role {
	case enum.RoleAdmin:
		return adminFeatures
	case enum.RoleManager:
		return operational
	case enum.RoleCashier:
		return cashierFeatures
	case enum.RoleWaiter:
		return waiterFeatures
	case enum.RoleChef:
		return chefFeatures
	case enum.RoleBarista:
		return baristaFeatures
	}
	return nil
}

// CanAccess reports whether id's role includes feature.
func CanAccess(id *auth.Identity, feature enum.Feature) bool {
	if id == nil {
		return false
	}
	if id.Role == enum.RoleSuperAdmin {
		return true
	}
	return featuresFor(id.Role)[feature]
}

// IsSubscriptionActive reports whether id's café may be used at now.
// VIP cafés bypass the active flag and the expiry date entirely.
func IsSubscriptionActive(id *auth.Identity, cafe *database.Cafe, now time.Time) bool {
	if id == nil {
		return false
	}
	if id.Role == enum.RoleSuperAdmin {
		return true
	}
	if cafe == nil {
		return false
	}
	if cafe.IsVip {
		return true
	}
	if !cafe.SubscriptionActive {
		return false
	}
	if cafe.SubscriptionExpiresAt.Valid && !now.Before(cafe.SubscriptionExpiresAt.Time) {
		return false
	}
	return true
}

// Authorize runs the full gate: identity and user status, then the
// subscription (which blocks every feature), then the role table.
func Authorize(id *auth.Identity, cafe *database.Cafe, feature enum.Feature, now time.Time) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if id.Role == enum.RoleSuperAdmin {
		return nil
	}
	if id.Status != "" && id.Status != enum.UserStatusActive {
		return ErrUserInactive
	}
	if !IsSubscriptionActive(id, cafe, now) {
		return ErrSubscriptionInactive
	}
	if !CanAccess(id, feature) {
		return fmt.Errorf("%w: role %s cannot use %s", ErrPermissionDenied, id.Role, feature)
	}
	return nil
}

func set(features ...enum.Feature) map[enum.Feature]bool {
	m := make(map[enum.Feature]bool, len(features))
	for _, f := range features {
		m[f] = true
	}
	return m
}

func union(a, b map[enum.Feature]bool) map[enum.Feature]bool {
	m := make(map[enum.Feature]bool, len(a)+len(b))
	for f := range a {
		m[f] = true
	}
	for f := range b {
		m[f] = true
	}
	return m
}
