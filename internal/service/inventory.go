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
	"github.com/cafeline/api/internal/inventory"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"
)

const maxStockRetries = 3

var (
	ErrStockConflict = fmt.Errorf("%w: stock kept changing, try again", ErrVersionConflict)
	errStockRaced    = errors.New("stock changed since read")
)

// InventoryStore defines the DB methods the inventory service needs.
type InventoryStore interface {
	IdentityReader
	GetInventoryItem(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error)
	ListInventoryItems(ctx context.Context, cafeID uuid.UUID) ([]database.InventoryItem, error)
	UpdateInventoryStock(ctx context.Context, arg database.UpdateInventoryStockParams) (database.InventoryItem, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	ListStockMovements(ctx context.Context, arg database.ListStockMovementsParams) ([]database.StockMovement, error)
}

type NewInventoryStore func(db database.DBTX) InventoryStore

type MovementResult struct {
	Item     inventory.View         `json:"item"`
	Movement database.StockMovement `json:"movement"`
}

// InventoryService records stock movements. Stock is never touched by
// order operations; every change is an explicit movement.
type InventoryService struct {
	pool     TxBeginner
	newStore NewInventoryStore
	pub      events.Publisher
	log      logrus.FieldLogger
	now      Clock
}

func NewInventoryService(pool TxBeginner, newStore NewInventoryStore, pub events.Publisher, log logrus.FieldLogger) *InventoryService {
	return &InventoryService{pool: pool, newStore: newStore, pub: pub, log: log, now: time.Now}
}

// ListItems returns every item with its derived stock health.
func (s *InventoryService) ListItems(ctx context.Context, id *auth.Identity, cafeID uuid.UUID) ([]inventory.View, error) {
	var views []inventory.View
	err := s.read(ctx, id, cafeID, func(store InventoryStore) error {
		items, err := store.ListInventoryItems(ctx, cafeID)
		if err != nil {
			return fmt.Errorf("list inventory: %w", err)
		}
		views = inventory.Views(items, s.now())
		return nil
	})
	return views, err
}

func (s *InventoryService) ListMovements(ctx context.Context, id *auth.Identity, cafeID, itemID uuid.UUID, limit, offset int32) ([]database.StockMovement, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	var movements []database.StockMovement
	err := s.read(ctx, id, cafeID, func(store InventoryStore) error {
		if _, err := store.GetInventoryItem(ctx, database.GetInventoryItemParams{ID: itemID, CafeID: cafeID}); err != nil {
			return notFound(err, "inventory item")
		}
		var err error
		movements, err = store.ListStockMovements(ctx, database.ListStockMovementsParams{
			ItemID: itemID, CafeID: cafeID, Limit: limit, Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("list movements: %w", err)
		}
		if movements == nil {
			movements = []database.StockMovement{}
		}
		return nil
	})
	return movements, err
}

// RecordMovement applies m to the item with a compare-and-set on the stock
// it read, retrying when another movement lands first.
func (s *InventoryService) RecordMovement(ctx context.Context, id *auth.Identity, cafeID, itemID uuid.UUID, m inventory.Movement) (*MovementResult, error) {
	for attempt := 0; attempt < maxStockRetries; attempt++ {
		res, err := s.recordMovementTx(ctx, id, cafeID, itemID, m)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"item_id": itemID,
				"delta":   res.Movement.Delta.String(),
				"reason":  res.Movement.Reason,
				"stock":   res.Item.CurrentStock.String(),
			}).Info("stock movement recorded")
			publish(ctx, s.pub, s.log, events.StockMoved, cafeID, res)
			return res, nil
		}
		if !errors.Is(err, errStockRaced) {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{"item_id": itemID, "attempt": attempt + 1}).Debug("stock changed concurrently, retrying")
	}
	return nil, ErrStockConflict
}

func (s *InventoryService) recordMovementTx(ctx context.Context, id *auth.Identity, cafeID, itemID uuid.UUID, m inventory.Movement) (*MovementResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	now := s.now()
	if err := authorize(ctx, store, now, id, cafeID, enum.FeatureInventory); err != nil {
		return nil, err
	}
	m.ActorID = id.UserID

	item, err := store.GetInventoryItem(ctx, database.GetInventoryItemParams{ID: itemID, CafeID: cafeID})
	if err != nil {
		return nil, notFound(err, "inventory item")
	}
	next, movement, err := inventory.ApplyMovement(item, m, now)
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateInventoryStock(ctx, database.UpdateInventoryStockParams{
		ID:       item.ID,
		CafeID:   item.CafeID,
		OldStock: item.CurrentStock,
		NewStock: next.CurrentStock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errStockRaced
		}
		return nil, fmt.Errorf("update stock: %w", err)
	}
	recorded, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
		CafeID:     movement.CafeID,
		ItemID:     movement.ItemID,
		Delta:      movement.Delta,
		Reason:     movement.Reason,
		Note:       movement.Note,
		ActorID:    movement.ActorID,
		StockAfter: movement.StockAfter,
		CreatedAt:  pgtype.Timestamptz{Time: movement.CreatedAt, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create stock movement: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &MovementResult{
		Item:     inventory.View{InventoryItem: updated, Health: inventory.Assess(updated, now)},
		Movement: recorded,
	}, nil
}

func (s *InventoryService) read(ctx context.Context, id *auth.Identity, cafeID uuid.UUID, fn func(store InventoryStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := authorize(ctx, store, s.now(), id, cafeID, enum.FeatureInventory); err != nil {
		return err
	}
	if err := fn(store); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
