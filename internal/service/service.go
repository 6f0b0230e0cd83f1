// Package service runs engine operations as units of work: authorize,
// lock, mutate in memory, persist with conditional writes, commit and
// then announce the change.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cafeline/api/internal/auth"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/events"
	"github.com/cafeline/api/internal/permission"
	"github.com/cafeline/api/internal/tenant"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// IdentityReader loads the rows that decide what a caller may do: their
// user row and the café whose subscription gates the request.
type IdentityReader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetCafe(ctx context.Context, id uuid.UUID) (database.Cafe, error)
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// authorize checks the caller against the first feature they hold and then
// pins the request to cafeID. The caller's own café decides the
// subscription, so a platform identity never needs one.
func authorize(ctx context.Context, store IdentityReader, now time.Time, id *auth.Identity, cafeID uuid.UUID, features ...enum.Feature) error {
	if err := authorizeAny(ctx, store, now, id, features...); err != nil {
		return err
	}
	return tenant.Check(id, cafeID)
}

func authorizeAny(ctx context.Context, store IdentityReader, now time.Time, id *auth.Identity, features ...enum.Feature) error {
	if id == nil {
		return permission.ErrUnauthenticated
	}
	// The token's status may be stale; a suspension applies at once.
	u, err := store.GetUserByID(ctx, id.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: user no longer exists", permission.ErrUnauthenticated)
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	current := *id
	current.Status = u.Status
	id = &current

	var cafe *database.Cafe
	if !id.IsPlatform() && id.CafeID != uuid.Nil {
		c, err := store.GetCafe(ctx, id.CafeID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get cafe: %w", err)
		}
		if err == nil {
			cafe = &c
		}
	}
	for _, f := range features {
		if err = permission.Authorize(id, cafe, f, now); err == nil {
			return nil
		}
	}
	return err
}

// notFound maps a missing row to ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// publish announces a committed change. Failures are logged and dropped.
func publish(ctx context.Context, pub events.Publisher, log logrus.FieldLogger, typ string, cafeID uuid.UUID, payload any) {
	e := events.Event{Type: typ, CafeID: cafeID, Payload: payload, At: time.Now()}
	if err := pub.Publish(ctx, e); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"event":   typ,
			"cafe_id": cafeID,
		}).Warn("publish event")
	}
}

// tablePtrs returns pointers into ts so seating can mutate rows in place.
func tablePtrs(ts []database.Table) []*database.Table {
	out := make([]*database.Table, len(ts))
	for i := range ts {
		out[i] = &ts[i]
	}
	return out
}

// orderTables sorts locked rows back into the order the caller asked for.
// The first id is the primary table.
func orderTables(locked []database.Table, ids []uuid.UUID) ([]*database.Table, error) {
	byID := make(map[uuid.UUID]*database.Table, len(locked))
	for i := range locked {
		byID[locked[i].ID] = &locked[i]
	}
	out := make([]*database.Table, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("table %s: %w", id, ErrNotFound)
		}
		out = append(out, t)
	}
	return out, nil
}
