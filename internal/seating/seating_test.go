package seating

import (
	"testing"

	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func table(cafeID uuid.UUID, name string) *database.Table {
	return &database.Table{ID: uuid.New(), CafeID: cafeID, Name: name, Capacity: 4, Status: enum.TableStatusAvailable}
}

func dineIn(cafeID uuid.UUID) *database.Order {
	return &database.Order{ID: uuid.New(), CafeID: cafeID, OrderType: enum.OrderTypeDineIn, Status: enum.OrderStatusConfirmed}
}

func TestAssignAndRelease(t *testing.T) {
	cafe := uuid.New()
	t1 := table(cafe, "T1")
	o1 := dineIn(cafe)

	require.NoError(t, Assign([]*database.Table{t1}, o1))
	require.Equal(t, enum.TableStatusOccupied, t1.Status)
	require.True(t, t1.Holds(o1.ID))
	require.Equal(t, t1.ID, uuid.UUID(o1.TableID.Bytes))
	require.True(t, Consistent(t1))

	released := Release([]*database.Table{t1}, o1.ID)
	require.Len(t, released, 1)
	require.Equal(t, enum.TableStatusAvailable, t1.Status)
	require.False(t, t1.CurrentOrderID.Valid)
	require.True(t, Consistent(t1))
}

func TestAssign_Idempotent(t *testing.T) {
	cafe := uuid.New()
	t1 := table(cafe, "T1")
	o1 := dineIn(cafe)

	require.NoError(t, Assign([]*database.Table{t1}, o1))
	require.NoError(t, Assign([]*database.Table{t1}, o1))
	require.True(t, t1.Holds(o1.ID))
}

func TestAssign_CombinedTables(t *testing.T) {
	cafe := uuid.New()
	t1, t2, t3 := table(cafe, "T1"), table(cafe, "T2"), table(cafe, "T3")
	o := dineIn(cafe)

	require.NoError(t, Assign([]*database.Table{t1, t2, t3}, o))
	require.Equal(t, []uuid.UUID{t2.ID, t3.ID}, t1.CombinedWith)
	require.Equal(t, t1.ID, uuid.UUID(o.TableID.Bytes))
	for _, tb := range []*database.Table{t1, t2, t3} {
		require.True(t, tb.Holds(o.ID))
	}

	released := Release([]*database.Table{t1, t2, t3}, o.ID)
	require.Len(t, released, 3)
	require.Empty(t, t1.CombinedWith)
}

func TestAssign_Rejections(t *testing.T) {
	cafe := uuid.New()

	t.Run("occupied by another order leaves everything untouched", func(t *testing.T) {
		free, taken := table(cafe, "T1"), table(cafe, "T2")
		other := uuid.New()
		taken.Status = enum.TableStatusOccupied
		taken.CurrentOrderID = pgtype.UUID{Bytes: other, Valid: true}

		o := dineIn(cafe)
		err := Assign([]*database.Table{free, taken}, o)
		require.ErrorIs(t, err, ErrTableUnavailable)
		require.Equal(t, enum.TableStatusAvailable, free.Status)
		require.False(t, o.TableID.Valid)
	})

	t.Run("reserved", func(t *testing.T) {
		tb := table(cafe, "T1")
		tb.Status = enum.TableStatusReserved
		require.ErrorIs(t, Assign([]*database.Table{tb}, dineIn(cafe)), ErrTableUnavailable)
	})

	t.Run("other cafe", func(t *testing.T) {
		require.ErrorIs(t, Assign([]*database.Table{table(uuid.New(), "T1")}, dineIn(cafe)), ErrTableUnavailable)
	})

	t.Run("takeaway order", func(t *testing.T) {
		o := dineIn(cafe)
		o.OrderType = enum.OrderTypeTakeaway
		require.ErrorIs(t, Assign([]*database.Table{table(cafe, "T1")}, o), ErrNotSeatable)
	})

	t.Run("finished order", func(t *testing.T) {
		o := dineIn(cafe)
		o.Status = enum.OrderStatusCompleted
		require.ErrorIs(t, Assign([]*database.Table{table(cafe, "T1")}, o), ErrNotSeatable)
	})

	t.Run("no tables", func(t *testing.T) {
		require.ErrorIs(t, Assign(nil, dineIn(cafe)), ErrNoTables)
	})

	t.Run("duplicate", func(t *testing.T) {
		tb := table(cafe, "T1")
		require.ErrorIs(t, Assign([]*database.Table{tb, tb}, dineIn(cafe)), ErrTableUnavailable)
	})
}

func TestRelease_SkipsTablesOfOtherOrders(t *testing.T) {
	cafe := uuid.New()
	t1, t2 := table(cafe, "T1"), table(cafe, "T2")
	a, b := dineIn(cafe), dineIn(cafe)
	require.NoError(t, Assign([]*database.Table{t1}, a))
	require.NoError(t, Assign([]*database.Table{t2}, b))

	released := Release([]*database.Table{t1, t2}, a.ID)
	require.Equal(t, []*database.Table{t1}, released)
	require.True(t, t2.Holds(b.ID))
}

func TestMove(t *testing.T) {
	cafe := uuid.New()
	t1, t2, t3 := table(cafe, "T1"), table(cafe, "T2"), table(cafe, "T3")
	o := dineIn(cafe)
	require.NoError(t, Assign([]*database.Table{t1, t2}, o))

	require.NoError(t, Move([]*database.Table{t1, t2}, []*database.Table{t2, t3}, o))
	require.Equal(t, enum.TableStatusAvailable, t1.Status)
	require.True(t, t2.Holds(o.ID))
	require.True(t, t3.Holds(o.ID))
	require.Equal(t, t2.ID, uuid.UUID(o.TableID.Bytes))

	blocked := table(cafe, "T4")
	blocked.Status = enum.TableStatusReserved
	err := Move([]*database.Table{t2, t3}, []*database.Table{blocked}, o)
	require.ErrorIs(t, err, ErrTableUnavailable)
	require.True(t, t2.Holds(o.ID), "failed move keeps the old seating")
}

func TestReserve(t *testing.T) {
	tb := table(uuid.New(), "T1")
	require.NoError(t, Reserve(tb))
	require.Equal(t, enum.TableStatusReserved, tb.Status)
	require.ErrorIs(t, Reserve(tb), ErrTableUnavailable)

	require.NoError(t, Unreserve(tb))
	require.Equal(t, enum.TableStatusAvailable, tb.Status)
	require.ErrorIs(t, Unreserve(tb), ErrTableUnavailable)
}

func TestDetach(t *testing.T) {
	cafe := uuid.New()
	t1, t2, t3 := table(cafe, "T1"), table(cafe, "T2"), table(cafe, "T3")
	o := dineIn(cafe)
	all := []*database.Table{t1, t2, t3}
	require.NoError(t, Assign(all, o))

	released, primary, err := Detach(all, t2.ID, o)
	require.NoError(t, err)
	require.Same(t, t2, released)
	require.Same(t, t1, primary)
	require.Equal(t, enum.TableStatusAvailable, t2.Status)
	require.Equal(t, []uuid.UUID{t3.ID}, t1.CombinedWith)
	require.True(t, t3.Holds(o.ID))

	_, _, err = Detach(all, t1.ID, o)
	require.ErrorIs(t, err, ErrPrimaryTable)

	_, _, err = Detach(all, t2.ID, o)
	require.ErrorIs(t, err, ErrTableUnavailable, "already detached")
}
