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
	"github.com/cafeline/api/internal/seating"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// TableStore defines the DB methods the table service needs.
type TableStore interface {
	IdentityReader
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	ListTables(ctx context.Context, cafeID uuid.UUID) ([]database.Table, error)
	GetTablesForUpdate(ctx context.Context, arg database.GetTablesForUpdateParams) ([]database.Table, error)
	ListTablesByOrder(ctx context.Context, arg database.ListTablesByOrderParams) ([]database.Table, error)
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error)
	ReleaseTable(ctx context.Context, arg database.ReleaseTableParams) (database.Table, error)
	SetTableStatus(ctx context.Context, arg database.SetTableStatusParams) (database.Table, error)
}

type NewTableStore func(db database.DBTX) TableStore

type AssignTablesRequest struct {
	CafeID  uuid.UUID
	OrderID uuid.UUID
	// TableIDs replaces the order's seating; the first one is primary.
	TableIDs        []uuid.UUID
	ExpectedVersion *int32
}

type SeatingResult struct {
	Order  database.Order   `json:"order"`
	Tables []database.Table `json:"tables"`
}

// TableService seats, moves and frees tables.
type TableService struct {
	pool     TxBeginner
	newStore NewTableStore
	pub      events.Publisher
	log      logrus.FieldLogger
	now      Clock
}

func NewTableService(pool TxBeginner, newStore NewTableStore, pub events.Publisher, log logrus.FieldLogger) *TableService {
	return &TableService{pool: pool, newStore: newStore, pub: pub, log: log, now: time.Now}
}

func (s *TableService) ListTables(ctx context.Context, id *auth.Identity, cafeID uuid.UUID) ([]database.Table, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorize(ctx, store, s.now(), id, cafeID, enum.FeatureTables, enum.FeaturePOS); err != nil {
		return nil, err
	}
	tables, err := store.ListTables(ctx, cafeID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	if tables == nil {
		tables = []database.Table{}
	}
	return tables, nil
}

// AssignTables seats a dine-in order at req.TableIDs. Tables the order
// held before and is not keeping are freed in the same transaction.
func (s *TableService) AssignTables(ctx context.Context, id *auth.Identity, req AssignTablesRequest) (*SeatingResult, error) {
	if len(req.TableIDs) == 0 {
		return nil, seating.ErrNoTables
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorize(ctx, store, s.now(), id, req.CafeID, enum.FeatureTables); err != nil {
		return nil, err
	}

	o, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: req.OrderID, CafeID: req.CafeID})
	if err != nil {
		return nil, notFound(err, "order")
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != o.Version {
		return nil, fmt.Errorf("%w: order is at version %d, not %d", ErrVersionConflict, o.Version, *req.ExpectedVersion)
	}

	held, err := store.ListTablesByOrder(ctx, database.ListTablesByOrderParams{CafeID: o.CafeID, OrderID: o.ID})
	if err != nil {
		return nil, fmt.Errorf("list order tables: %w", err)
	}
	from := tablePtrs(held)
	to, err := lockTables(ctx, store, o.CafeID, req.TableIDs)
	if err != nil {
		return nil, err
	}
	if err := seating.Move(from, to, &o); err != nil {
		return nil, err
	}

	keep := make(map[uuid.UUID]bool, len(to))
	for _, t := range to {
		keep[t.ID] = true
	}
	var leaving []*database.Table
	for _, t := range from {
		if !keep[t.ID] {
			leaving = append(leaving, t)
		}
	}
	if err := releaseTables(ctx, store, leaving, o.ID); err != nil {
		return nil, err
	}
	if err := occupyTables(ctx, store, to, o.ID); err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrder(ctx, database.UpdateOrderParamsFrom(o))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order changed concurrently", ErrVersionConflict)
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &SeatingResult{Order: updated}
	for _, t := range to {
		result.Tables = append(result.Tables, *t)
	}
	for _, t := range leaving {
		result.Tables = append(result.Tables, *t)
	}
	s.log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"tables":   len(to),
		"freed":    len(leaving),
	}).Info("order seated")
	publish(ctx, s.pub, s.log, events.TableUpdated, o.CafeID, result.Tables)
	publish(ctx, s.pub, s.log, events.OrderUpdated, o.CafeID, updated)
	return result, nil
}

// ReleaseTable frees one table. A combined table leaves its group while the
// order goes on at the rest. Tables of a finished or missing order are
// repaired. The primary table of an active order must be moved instead.
func (s *TableService) ReleaseTable(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) ([]database.Table, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorize(ctx, store, s.now(), id, cafeID, enum.FeatureTables); err != nil {
		return nil, err
	}

	locked, err := lockTables(ctx, store, cafeID, []uuid.UUID{tableID})
	if err != nil {
		return nil, err
	}
	t := locked[0]
	changed, err := s.release(ctx, store, t)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return []database.Table{*t}, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	out := make([]database.Table, len(changed))
	for i, c := range changed {
		out[i] = *c
	}
	publish(ctx, s.pub, s.log, events.TableUpdated, cafeID, out)
	return out, nil
}

// release decides how a locked table is freed and writes the change.
func (s *TableService) release(ctx context.Context, store TableStore, t *database.Table) ([]*database.Table, error) {
	switch {
	case t.Status == enum.TableStatusAvailable:
		return nil, nil
	case t.Status == enum.TableStatusReserved:
		return nil, fmt.Errorf("%w: table %s is reserved, cancel the reservation instead", seating.ErrTableUnavailable, t.Name)
	}

	// dining_tables_occupancy guarantees an occupied table holds an order.
	orderID := uuid.UUID(t.CurrentOrderID.Bytes)
	log := s.log.WithFields(logrus.Fields{"table_id": t.ID, "order_id": orderID})
	o, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: orderID, CafeID: t.CafeID})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		log.Warn("table held a missing order, releasing")
		changed := seating.Release([]*database.Table{t}, orderID)
		return changed, releaseTables(ctx, store, changed, orderID)
	case err != nil:
		return nil, fmt.Errorf("get order: %w", err)
	case o.Status.Terminal():
		log.Warn("table held a finished order, releasing")
		return releaseOrderTables(ctx, store, t.CafeID, o.ID)
	}

	held, err := store.ListTablesByOrder(ctx, database.ListTablesByOrderParams{CafeID: t.CafeID, OrderID: o.ID})
	if err != nil {
		return nil, fmt.Errorf("list order tables: %w", err)
	}
	released, primary, err := seating.Detach(tablePtrs(held), t.ID, &o)
	if err != nil {
		return nil, err
	}
	if err := releaseTables(ctx, store, []*database.Table{released}, o.ID); err != nil {
		return nil, err
	}
	changed := []*database.Table{released}
	if primary != nil {
		if err := occupyTables(ctx, store, []*database.Table{primary}, o.ID); err != nil {
			return nil, err
		}
		changed = append(changed, primary)
	}
	log.Info("table detached from order")
	return changed, nil
}

// ReserveTable holds a free table for a booking.
func (s *TableService) ReserveTable(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) (*database.Table, error) {
	return s.setReserved(ctx, id, cafeID, tableID, seating.Reserve, enum.TableStatusAvailable)
}

// UnreserveTable frees a reserved table.
func (s *TableService) UnreserveTable(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID) (*database.Table, error) {
	return s.setReserved(ctx, id, cafeID, tableID, seating.Unreserve, enum.TableStatusReserved)
}

func (s *TableService) setReserved(ctx context.Context, id *auth.Identity, cafeID, tableID uuid.UUID, apply func(*database.Table) error, from enum.TableStatus) (*database.Table, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorize(ctx, store, s.now(), id, cafeID, enum.FeatureReservations); err != nil {
		return nil, err
	}
	locked, err := lockTables(ctx, store, cafeID, []uuid.UUID{tableID})
	if err != nil {
		return nil, err
	}
	t := locked[0]
	if err := apply(t); err != nil {
		return nil, err
	}
	updated, err := store.SetTableStatus(ctx, database.SetTableStatusParams{ID: t.ID, CafeID: cafeID, From: from, To: t.Status})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: table %s changed concurrently", seating.ErrTableUnavailable, t.Name)
		}
		return nil, fmt.Errorf("set table status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	publish(ctx, s.pub, s.log, events.TableUpdated, cafeID, []database.Table{updated})
	return &updated, nil
}

type tableLocker interface {
	GetTablesForUpdate(ctx context.Context, arg database.GetTablesForUpdateParams) ([]database.Table, error)
}

type tableWriter interface {
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error)
	ReleaseTable(ctx context.Context, arg database.ReleaseTableParams) (database.Table, error)
}

// lockTables locks ids and returns them in the requested order.
func lockTables(ctx context.Context, store tableLocker, cafeID uuid.UUID, ids []uuid.UUID) ([]*database.Table, error) {
	if len(ids) == 0 {
		return nil, seating.ErrNoTables
	}
	locked, err := store.GetTablesForUpdate(ctx, database.GetTablesForUpdateParams{CafeID: cafeID, IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("lock tables: %w", err)
	}
	return orderTables(locked, ids)
}

// occupyTables writes tables seated by seating.Assign. A lost conditional
// write means another order took the table first.
func occupyTables(ctx context.Context, store tableWriter, tables []*database.Table, orderID uuid.UUID) error {
	for _, t := range tables {
		_, err := store.OccupyTable(ctx, database.OccupyTableParams{
			ID:           t.ID,
			CafeID:       t.CafeID,
			OrderID:      orderID,
			CombinedWith: t.CombinedWith,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: table %s was taken", seating.ErrTableUnavailable, t.Name)
			}
			return fmt.Errorf("occupy table %s: %w", t.Name, err)
		}
	}
	return nil
}

func releaseTables(ctx context.Context, store tableWriter, tables []*database.Table, orderID uuid.UUID) error {
	for _, t := range tables {
		_, err := store.ReleaseTable(ctx, database.ReleaseTableParams{ID: t.ID, CafeID: t.CafeID, OrderID: orderID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: table %s no longer holds the order", seating.ErrTableUnavailable, t.Name)
			}
			return fmt.Errorf("release table %s: %w", t.Name, err)
		}
	}
	return nil
}

type orderTablesStore interface {
	tableWriter
	ListTablesByOrder(ctx context.Context, arg database.ListTablesByOrderParams) ([]database.Table, error)
}

// releaseOrderTables frees every table an order holds and returns them.
func releaseOrderTables(ctx context.Context, store orderTablesStore, cafeID, orderID uuid.UUID) ([]*database.Table, error) {
	held, err := store.ListTablesByOrder(ctx, database.ListTablesByOrderParams{CafeID: cafeID, OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("list order tables: %w", err)
	}
	released := seating.Release(tablePtrs(held), orderID)
	return released, releaseTables(ctx, store, released, orderID)
}
