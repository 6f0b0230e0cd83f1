package service

import (
	"context"
	"testing"

	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/events"
	"github.com/cafeline/api/internal/inventory"
	"github.com/cafeline/api/internal/permission"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRecordMovement_InsufficientStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.stock.RecordMovement(context.Background(), f.as(enum.RoleChef), f.cafe.ID, f.milk, inventory.Movement{
		Delta: dec("-7"), Reason: enum.MovementUsed,
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.True(t, short.Current.Equal(dec("5")))

	require.True(t, f.db.items[f.milk].CurrentStock.Equal(dec("5")))
	require.Empty(t, f.db.movements)
	require.Empty(t, f.pub.types())
}

func TestRecordMovement_UseAndRestock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chef := f.as(enum.RoleChef)

	res, err := f.stock.RecordMovement(ctx, chef, f.cafe.ID, f.milk, inventory.Movement{Delta: dec("-3"), Reason: enum.MovementUsed, Note: "morning rush"})
	require.NoError(t, err)
	require.True(t, res.Item.CurrentStock.Equal(dec("2")))
	require.True(t, res.Item.Health.LowStock, "stock at the minimum is low")
	require.True(t, res.Movement.StockAfter.Equal(dec("2")))
	require.Equal(t, chef.UserID, res.Movement.ActorID)
	require.Equal(t, "morning rush", res.Movement.Note)

	res, err = f.stock.RecordMovement(ctx, chef, f.cafe.ID, f.milk, inventory.Movement{Delta: dec("10.5"), Reason: enum.MovementRestock})
	require.NoError(t, err)
	require.True(t, res.Item.CurrentStock.Equal(dec("12.5")))
	require.False(t, res.Item.Health.LowStock)

	require.Len(t, f.db.movements, 2)
	require.Equal(t, []string{events.StockMoved, events.StockMoved}, f.pub.types())
}

func TestRecordMovement_RetriesLostRace(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.db.beforeStockUpdate = func(db *fakeDB) {
		calls++
		if calls == 1 {
			it := db.items[f.milk]
			it.CurrentStock = it.CurrentStock.Add(dec("1"))
			db.items[f.milk] = it
		}
	}

	res, err := f.stock.RecordMovement(context.Background(), f.as(enum.RoleBarista), f.cafe.ID, f.milk, inventory.Movement{
		Delta: dec("-1"), Reason: enum.MovementWastage,
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.True(t, res.Item.CurrentStock.Equal(res.Movement.StockAfter))
	require.Len(t, f.db.movements, 1)
}

func TestRecordMovement_GivesUpOnPersistentRace(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.db.beforeStockUpdate = func(db *fakeDB) {
		calls++
		it := db.items[f.milk]
		it.CurrentStock = it.CurrentStock.Add(dec("1"))
		db.items[f.milk] = it
	}

	_, err := f.stock.RecordMovement(context.Background(), f.as(enum.RoleChef), f.cafe.ID, f.milk, inventory.Movement{
		Delta: dec("-1"), Reason: enum.MovementUsed,
	})
	require.ErrorIs(t, err, ErrStockConflict)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.Equal(t, maxStockRetries, calls)
	require.True(t, f.db.items[f.milk].CurrentStock.Equal(dec("5")))
	require.Empty(t, f.db.movements)
}

func TestRecordMovement_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		role enum.Role
		item uuid.UUID
		m    inventory.Movement
		want error
	}{
		{"cashier has no inventory access", enum.RoleCashier, f.milk, inventory.Movement{Delta: dec("1"), Reason: enum.MovementRestock}, permission.ErrPermissionDenied},
		{"restock cannot remove stock", enum.RoleChef, f.milk, inventory.Movement{Delta: dec("-1"), Reason: enum.MovementRestock}, inventory.ErrInvalidMovement},
		{"zero delta", enum.RoleChef, f.milk, inventory.Movement{Delta: dec("0"), Reason: enum.MovementAdjustment}, inventory.ErrInvalidMovement},
		{"unknown reason", enum.RoleChef, f.milk, inventory.Movement{Delta: dec("1"), Reason: "theft"}, inventory.ErrInvalidMovement},
		{"unknown item", enum.RoleChef, uuid.New(), inventory.Movement{Delta: dec("1"), Reason: enum.MovementRestock}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.stock.RecordMovement(ctx, f.as(tt.role), f.cafe.ID, tt.item, tt.m)
			require.ErrorIs(t, err, tt.want)
		})
	}
	require.True(t, f.db.items[f.milk].CurrentStock.Equal(dec("5")))
}

func TestRecordMovement_AdjustmentMayGoEitherWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manager := f.as(enum.RoleManager)

	_, err := f.stock.RecordMovement(ctx, manager, f.cafe.ID, f.milk, inventory.Movement{Delta: dec("-5"), Reason: enum.MovementAdjustment})
	require.NoError(t, err)
	require.True(t, f.db.items[f.milk].CurrentStock.IsZero(), "stock may reach exactly zero")

	_, err = f.stock.RecordMovement(ctx, manager, f.cafe.ID, f.milk, inventory.Movement{Delta: dec("0.25"), Reason: enum.MovementAdjustment})
	require.NoError(t, err)
	require.True(t, f.db.items[f.milk].CurrentStock.Equal(dec("0.25")))
}

func TestListItemsAndMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chef := f.as(enum.RoleChef)

	views, err := f.stock.ListItems(ctx, chef, f.cafe.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "Milk", views[0].Name)
	require.False(t, views[0].Health.LowStock)
	require.Nil(t, views[0].Health.DaysUntilExpiry)

	empty, err := f.stock.ListMovements(ctx, chef, f.cafe.ID, f.milk, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	for _, d := range []string{"-1", "-2"} {
		_, err := f.stock.RecordMovement(ctx, chef, f.cafe.ID, f.milk, inventory.Movement{Delta: dec(d), Reason: enum.MovementUsed})
		require.NoError(t, err)
	}
	movements, err := f.stock.ListMovements(ctx, chef, f.cafe.ID, f.milk, 10, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.True(t, movements[0].StockAfter.Equal(dec("2")), "newest first")
	require.True(t, movements[1].StockAfter.Equal(dec("4")))

	_, err = f.stock.ListMovements(ctx, chef, f.cafe.ID, uuid.New(), 10, 0)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.stock.ListItems(ctx, f.as(enum.RoleWaiter), f.cafe.ID)
	require.ErrorIs(t, err, permission.ErrPermissionDenied)

	other := f.as(enum.RoleChef)
	other.CafeID = uuid.New()
	_, err = f.stock.ListItems(ctx, other, f.cafe.ID)
	require.Error(t, err)
}
