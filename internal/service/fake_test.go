package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/enum"
	"github.com/cafeline/api/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mock transaction ---

// mockTx implements pgx.Tx. Rollback without a prior Commit restores the
// fake database to its state at Begin, so tests see real atomicity.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	db        *fakeDB
	snap      fakeState
	done      bool
	commitErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.done = true
	m.db.commits++
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	if !m.done {
		m.db.fakeState = m.snap
		m.done = true
	}
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner over a fakeDB.
type mockTxBeginner struct {
	db        *fakeDB
	commitErr error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return &mockTx{db: m.db, snap: m.db.clone(), commitErr: m.commitErr}, nil
}

// --- In-memory store ---

type fakeState struct {
	users     map[uuid.UUID]database.User
	cafes     map[uuid.UUID]database.Cafe
	products  map[uuid.UUID]database.Product
	orders    map[uuid.UUID]database.Order
	payments  []database.Payment
	tables    map[uuid.UUID]database.Table
	items     map[uuid.UUID]database.InventoryItem
	movements []database.StockMovement
}

func (s fakeState) clone() fakeState {
	c := fakeState{
		users:     s.users,
		cafes:     make(map[uuid.UUID]database.Cafe, len(s.cafes)),
		products:  s.products,
		orders:    make(map[uuid.UUID]database.Order, len(s.orders)),
		payments:  append([]database.Payment(nil), s.payments...),
		tables:    make(map[uuid.UUID]database.Table, len(s.tables)),
		items:     make(map[uuid.UUID]database.InventoryItem, len(s.items)),
		movements: append([]database.StockMovement(nil), s.movements...),
	}
	for k, v := range s.cafes {
		c.cafes[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.tables {
		c.tables[k] = cloneTable(v)
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	return c
}

func cloneOrder(o database.Order) database.Order {
	o.Items = append([]database.OrderItem(nil), o.Items...)
	if o.Delivery != nil {
		d := *o.Delivery
		o.Delivery = &d
	}
	return o
}

func cloneTable(t database.Table) database.Table {
	t.CombinedWith = append([]uuid.UUID(nil), t.CombinedWith...)
	return t
}

// fakeDB implements OrderStore, TableStore and InventoryStore.
type fakeDB struct {
	fakeState
	clock   time.Time
	commits int

	// failOn makes the named method return the error.
	failOn map[string]error
	// createOrderErrs are returned by CreateOrder one per call, in order.
	createOrderErrs []error
	// beforeStockUpdate runs inside UpdateInventoryStock before the
	// compare-and-set, to simulate a concurrent writer.
	beforeStockUpdate func(f *fakeDB)
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		fakeState: fakeState{
			users:    map[uuid.UUID]database.User{},
			cafes:    map[uuid.UUID]database.Cafe{},
			products: map[uuid.UUID]database.Product{},
			orders:   map[uuid.UUID]database.Order{},
			tables:   map[uuid.UUID]database.Table{},
			items:    map[uuid.UUID]database.InventoryItem{},
		},
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		failOn: map[string]error{},
	}
}

func (f *fakeDB) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeDB) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	u, ok := f.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeDB) GetCafe(ctx context.Context, id uuid.UUID) (database.Cafe, error) {
	if err := f.failOn["GetCafe"]; err != nil {
		return database.Cafe{}, err
	}
	c, ok := f.cafes[id]
	if !ok {
		return database.Cafe{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeDB) GetNextOrderNumber(ctx context.Context, cafeID uuid.UUID) (int32, error) {
	var n int32
	for _, o := range f.orders {
		if o.CafeID == cafeID {
			n++
		}
	}
	return n + 1, nil
}

func (f *fakeDB) GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error) {
	p, ok := f.products[arg.ID]
	if !ok || p.CafeID != arg.CafeID {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeDB) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if len(f.createOrderErrs) > 0 {
		err := f.createOrderErrs[0]
		f.createOrderErrs = f.createOrderErrs[1:]
		if err != nil {
			return database.Order{}, err
		}
	}
	for _, o := range f.orders {
		if o.CafeID == arg.CafeID && o.OrderNumber == arg.OrderNumber {
			return database.Order{}, orderNumberConflict()
		}
	}
	now := f.tick()
	o := database.Order{
		ID:             uuid.New(),
		CafeID:         arg.CafeID,
		OrderNumber:    arg.OrderNumber,
		OrderType:      arg.OrderType,
		Status:         arg.Status,
		Items:          arg.Items,
		Subtotal:       arg.Subtotal,
		TaxAmount:      arg.TaxAmount,
		TaxRate:        arg.TaxRate,
		DiscountType:   arg.DiscountType,
		DiscountValue:  arg.DiscountValue,
		DiscountAmount: arg.DiscountAmount,
		DeliveryFee:    arg.DeliveryFee,
		TotalAmount:    arg.TotalAmount,
		PaymentStatus:  arg.PaymentStatus,
		TableID:        arg.TableID,
		CustomerID:     arg.CustomerID,
		Delivery:       arg.Delivery,
		Notes:          arg.Notes,
		Version:        1,
		CreatedBy:      arg.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.orders[o.ID] = cloneOrder(o)
	return o, nil
}

func orderNumberConflict() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "orders_cafe_id_order_number_key"}
}

func (f *fakeDB) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.CafeID != arg.CafeID {
		return database.Order{}, pgx.ErrNoRows
	}
	return cloneOrder(o), nil
}

func (f *fakeDB) GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	return f.GetOrder(ctx, arg)
}

func (f *fakeDB) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	var out []database.Order
	for _, o := range f.orders {
		if arg.CafeID.Valid && o.CafeID != uuid.UUID(arg.CafeID.Bytes) {
			continue
		}
		if arg.Status.Valid && string(o.Status) != arg.Status.String {
			continue
		}
		if arg.OrderType.Valid && string(o.OrderType) != arg.OrderType.String {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(arg.Offset) >= len(out) {
		return nil, nil
	}
	out = out[arg.Offset:]
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (f *fakeDB) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	if err := f.failOn["UpdateOrder"]; err != nil {
		return database.Order{}, err
	}
	o, ok := f.orders[arg.ID]
	if !ok || o.CafeID != arg.CafeID || o.Version != arg.Version {
		return database.Order{}, pgx.ErrNoRows
	}
	o.OrderType = arg.OrderType
	o.Status = arg.Status
	o.Items = arg.Items
	o.Subtotal = arg.Subtotal
	o.TaxAmount = arg.TaxAmount
	o.TaxRate = arg.TaxRate
	o.DiscountType = arg.DiscountType
	o.DiscountValue = arg.DiscountValue
	o.DiscountAmount = arg.DiscountAmount
	o.DeliveryFee = arg.DeliveryFee
	o.TotalAmount = arg.TotalAmount
	o.PaymentStatus = arg.PaymentStatus
	o.PaymentMethod = arg.PaymentMethod
	o.TableID = arg.TableID
	o.Delivery = arg.Delivery
	o.Notes = arg.Notes
	o.Version++
	o.UpdatedAt = f.tick()
	f.orders[o.ID] = cloneOrder(o)
	return cloneOrder(o), nil
}

func (f *fakeDB) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	p := database.Payment{
		ID:             uuid.New(),
		OrderID:        arg.OrderID,
		CafeID:         arg.CafeID,
		PaymentMethod:  arg.PaymentMethod,
		Amount:         arg.Amount,
		AmountReceived: arg.AmountReceived,
		ChangeAmount:   arg.ChangeAmount,
		ProcessedBy:    arg.ProcessedBy,
		ProcessedAt:    f.tick(),
	}
	f.payments = append(f.payments, p)
	return p, nil
}

func (f *fakeDB) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	var out []database.Payment
	for _, p := range f.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func sortTables(ts []database.Table) []database.Table {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID.String() < ts[j].ID.String() })
	return ts
}

func (f *fakeDB) GetTablesForUpdate(ctx context.Context, arg database.GetTablesForUpdateParams) ([]database.Table, error) {
	var out []database.Table
	seen := map[uuid.UUID]bool{}
	for _, id := range arg.IDs {
		t, ok := f.tables[id]
		if !ok || t.CafeID != arg.CafeID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, cloneTable(t))
	}
	return sortTables(out), nil
}

func (f *fakeDB) ListTablesByOrder(ctx context.Context, arg database.ListTablesByOrderParams) ([]database.Table, error) {
	var out []database.Table
	for _, t := range f.tables {
		if t.CafeID == arg.CafeID && t.Holds(arg.OrderID) {
			out = append(out, cloneTable(t))
		}
	}
	return sortTables(out), nil
}

func (f *fakeDB) ListTables(ctx context.Context, cafeID uuid.UUID) ([]database.Table, error) {
	var out []database.Table
	for _, t := range f.tables {
		if t.CafeID == cafeID {
			out = append(out, cloneTable(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeDB) OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error) {
	if err := f.failOn["OccupyTable"]; err != nil {
		return database.Table{}, err
	}
	t, ok := f.tables[arg.ID]
	if !ok || t.CafeID != arg.CafeID || (t.Status != enum.TableStatusAvailable && !t.Holds(arg.OrderID)) {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusOccupied
	t.CurrentOrderID = pgtype.UUID{Bytes: arg.OrderID, Valid: true}
	t.CombinedWith = append([]uuid.UUID{}, arg.CombinedWith...)
	t.UpdatedAt = f.tick()
	f.tables[t.ID] = t
	return cloneTable(t), nil
}

func (f *fakeDB) ReleaseTable(ctx context.Context, arg database.ReleaseTableParams) (database.Table, error) {
	if err := f.failOn["ReleaseTable"]; err != nil {
		return database.Table{}, err
	}
	t, ok := f.tables[arg.ID]
	if !ok || t.CafeID != arg.CafeID || !t.Holds(arg.OrderID) {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = enum.TableStatusAvailable
	t.CurrentOrderID = pgtype.UUID{}
	t.CombinedWith = []uuid.UUID{}
	t.UpdatedAt = f.tick()
	f.tables[t.ID] = t
	return cloneTable(t), nil
}

func (f *fakeDB) SetTableStatus(ctx context.Context, arg database.SetTableStatusParams) (database.Table, error) {
	t, ok := f.tables[arg.ID]
	if !ok || t.CafeID != arg.CafeID || t.Status != arg.From || t.CurrentOrderID.Valid {
		return database.Table{}, pgx.ErrNoRows
	}
	t.Status = arg.To
	t.UpdatedAt = f.tick()
	f.tables[t.ID] = t
	return cloneTable(t), nil
}

func (f *fakeDB) GetInventoryItem(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error) {
	it, ok := f.items[arg.ID]
	if !ok || it.CafeID != arg.CafeID {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	return it, nil
}

func (f *fakeDB) ListInventoryItems(ctx context.Context, cafeID uuid.UUID) ([]database.InventoryItem, error) {
	var out []database.InventoryItem
	for _, it := range f.items {
		if it.CafeID == cafeID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeDB) UpdateInventoryStock(ctx context.Context, arg database.UpdateInventoryStockParams) (database.InventoryItem, error) {
	if f.beforeStockUpdate != nil {
		f.beforeStockUpdate(f)
	}
	it, ok := f.items[arg.ID]
	if !ok || it.CafeID != arg.CafeID || !it.CurrentStock.Equal(arg.OldStock) {
		return database.InventoryItem{}, pgx.ErrNoRows
	}
	it.CurrentStock = arg.NewStock
	it.UpdatedAt = f.tick()
	f.items[it.ID] = it
	return it, nil
}

func (f *fakeDB) CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
	m := database.StockMovement{
		ID:         uuid.New(),
		CafeID:     arg.CafeID,
		ItemID:     arg.ItemID,
		Delta:      arg.Delta,
		Reason:     arg.Reason,
		Note:       arg.Note,
		ActorID:    arg.ActorID,
		StockAfter: arg.StockAfter,
		CreatedAt:  arg.CreatedAt.Time,
	}
	f.movements = append(f.movements, m)
	return m, nil
}

func (f *fakeDB) ListStockMovements(ctx context.Context, arg database.ListStockMovementsParams) ([]database.StockMovement, error) {
	var out []database.StockMovement
	for i := len(f.movements) - 1; i >= 0; i-- {
		m := f.movements[i]
		if m.ItemID == arg.ItemID && m.CafeID == arg.CafeID {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- Event recorder ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
