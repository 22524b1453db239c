package movement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/apperror"
	appctx "tsdstock/internal/core/context"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain/devices"
	"tsdstock/internal/domain/documents/movement"
	"tsdstock/internal/domain/events"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/internal/infrastructure/storage/memory"
)

type fixture struct {
	store     *memory.Store
	catalog   *memory.Catalog
	outbox    *memory.Outbox
	stock     *stock.Service
	devices   *devices.Service
	docs      *movement.Service
	warehouse id.ID
	other     id.ID
	unit      id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:     store,
		catalog:   memory.NewCatalog(store),
		outbox:    memory.NewOutbox(store),
		warehouse: id.New(),
		other:     id.New(),
		unit:      id.New(),
	}
	f.catalog.AddWarehouse(f.warehouse)
	f.catalog.AddWarehouse(f.other)
	f.catalog.AddUnit(f.unit)

	f.stock = stock.NewService(memory.NewStockRepo(store), store)
	f.devices = devices.NewService(memory.NewDeviceRepo(store), store)
	f.docs = movement.NewService(memory.NewDocumentRepo(store), f.stock, f.catalog, f.devices, store, f.outbox)
	return f
}

func testCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "user-1", Username: "keeper"})
}

func (f *fixture) nomenclature() id.ID {
	n := id.New()
	f.catalog.AddNomenclature(n, f.unit)
	return n
}

func (f *fixture) draft(t *testing.T, ctx context.Context, typ movement.Type, warehouse id.ID, items ...movement.Item) *movement.Document {
	t.Helper()
	doc := movement.NewDocument(typ, "", warehouse)
	doc.Number = string(typ) + "-" + id.New().String()
	doc.Items = items
	require.NoError(t, f.docs.Create(ctx, doc))
	return doc
}

func (f *fixture) line(n id.ID, qty int64) movement.Item {
	return movement.NewItem(n, f.unit, types.NewQuantity(qty), nil)
}

func (f *fixture) posted(t *testing.T, ctx context.Context, typ movement.Type, items ...movement.Item) *movement.Document {
	t.Helper()
	doc := f.draft(t, ctx, typ, f.warehouse, items...)
	posted, err := f.docs.Post(ctx, doc.ID)
	require.NoError(t, err)
	return posted
}

func (f *fixture) quantity(t *testing.T, n, warehouse id.ID) types.Quantity {
	t.Helper()
	q, err := f.stock.Quantity(context.Background(), entity.StockKey{NomenclatureID: n, WarehouseID: warehouse})
	require.NoError(t, err)
	return q
}

func assertQty(t *testing.T, want int64, got types.Quantity) {
	t.Helper()
	assert.True(t, types.NewQuantity(want).Equal(got), "want %d, got %s", want, got)
}

func TestPost_ReceiptAndExpense(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()

	f.posted(t, ctx, movement.TypeReceipt, f.line(n, 10), f.line(n, 5))
	exp := f.posted(t, ctx, movement.TypeExpense, f.line(n, 4))

	assertQty(t, 11, f.quantity(t, n, f.warehouse))
	assert.Equal(t, movement.StatusPosted, exp.Status)
	assert.NotNil(t, exp.PostedAt)
	assert.Equal(t, "user-1", exp.UpdatedBy)

	ms, err := f.docs.Movements(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, entity.MovementExpense, ms[0].MovementType)
	assertQty(t, 4, ms[0].Quantity)
}

func TestPost_TransferConservesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	f.posted(t, ctx, movement.TypeReceipt, f.line(n, 10))

	tr := movement.NewDocument(movement.TypeTransfer, "TR-1", f.warehouse)
	tr.DestinationWarehouseID = &f.other
	tr.Items = []movement.Item{f.line(n, 3)}
	require.NoError(t, f.docs.Create(ctx, tr))
	_, err := f.docs.Post(ctx, tr.ID)
	require.NoError(t, err)

	assertQty(t, 7, f.quantity(t, n, f.warehouse))
	assertQty(t, 3, f.quantity(t, n, f.other))

	ms, err := f.docs.Movements(ctx, tr.ID)
	require.NoError(t, err)
	assert.Len(t, ms, 2)
}

func (f *fixture) transfer(t *testing.T, ctx context.Context, items ...movement.Item) *movement.Document {
	t.Helper()
	doc := movement.NewDocument(movement.TypeTransfer, "TR-"+id.New().String(), f.warehouse)
	doc.DestinationWarehouseID = &f.other
	doc.Items = items
	require.NoError(t, f.docs.Create(ctx, doc))
	posted, err := f.docs.Post(ctx, doc.ID)
	require.NoError(t, err)
	return posted
}

func TestCancel_TransferRestoresBothWarehouses(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	f.posted(t, ctx, movement.TypeReceipt, f.line(n, 10))
	tr := f.transfer(t, ctx, f.line(n, 3))

	_, err := f.docs.Cancel(ctx, tr.ID)
	require.NoError(t, err)

	assertQty(t, 10, f.quantity(t, n, f.warehouse))
	assertQty(t, 0, f.quantity(t, n, f.other))

	ms, err := f.docs.Movements(ctx, tr.ID)
	require.NoError(t, err)
	got := make([]entity.MovementType, 0, len(ms))
	for _, m := range ms {
		got = append(got, m.MovementType)
	}
	assert.Equal(t, []entity.MovementType{
		entity.MovementTransferOut, entity.MovementTransferIn,
		entity.MovementTransferIn, entity.MovementTransferOut,
	}, got)
}

func TestCancel_TransferConsumedAtDestination(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	f.posted(t, ctx, movement.TypeReceipt, f.line(n, 10))
	tr := f.transfer(t, ctx, f.line(n, 3))

	exp := f.draft(t, ctx, movement.TypeExpense, f.other, f.line(n, 2))
	_, err := f.docs.Post(ctx, exp.ID)
	require.NoError(t, err)

	_, err = f.docs.Cancel(ctx, tr.ID)

	require.True(t, apperror.IsReversalConflict(err))
	assertQty(t, 7, f.quantity(t, n, f.warehouse))
	assertQty(t, 1, f.quantity(t, n, f.other))
	got, err := f.docs.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, movement.StatusPosted, got.Status)
}

func TestCancel_ReservationBlocksReversal(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	receipt := f.posted(t, ctx, movement.TypeReceipt, f.line(n, 10))
	key := entity.StockKey{NomenclatureID: n, WarehouseID: f.warehouse}
	_, err := f.stock.Reserve(ctx, key, types.NewQuantity(4))
	require.NoError(t, err)

	_, err = f.docs.Cancel(ctx, receipt.ID)

	require.True(t, apperror.IsReversalConflict(err))
	line, err := f.stock.Get(ctx, key)
	require.NoError(t, err)
	assertQty(t, 10, line.Quantity)
	assertQty(t, 4, line.ReservedQuantity)
}

func TestLock_DisjointKeysDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	held := entity.StockKey{NomenclatureID: n, WarehouseID: f.warehouse}
	free := entity.StockKey{NomenclatureID: n, WarehouseID: f.other}

	locked := make(chan struct{})
	release := make(chan struct{})
	holder := make(chan error, 1)
	go func() {
		holder <- f.store.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := f.stock.Lock(ctx, held); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	_, err := f.stock.Record(ctx, entity.StockMovement{StockKey: free, MovementType: entity.MovementReceipt, Quantity: types.NewQuantity(5)})
	require.NoError(t, err)
	assertQty(t, 5, f.quantity(t, n, f.other))

	blocked := make(chan error, 1)
	go func() {
		_, err := f.stock.Record(ctx, entity.StockMovement{StockKey: held, MovementType: entity.MovementReceipt, Quantity: types.NewQuantity(2)})
		blocked <- err
	}()
	select {
	case <-blocked:
		t.Fatal("writer on a held key finished before the lock was released")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-holder)
	require.NoError(t, <-blocked)
	assertQty(t, 2, f.quantity(t, n, f.warehouse))
}

func TestPost_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	doc := f.posted(t, ctx, movement.TypeReceipt, f.line(n, 10))

	_, err := f.docs.Post(ctx, doc.ID)

	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyPosted))
	assertQty(t, 10, f.quantity(t, n, f.warehouse))
	ms, err := f.docs.Movements(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestPost_InsufficientStockLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	f.posted(t, ctx, movement.TypeReceipt, f.line(n, 30))
	before := len(f.outbox.Records())

	doc := f.draft(t, ctx, movement.TypeExpense, f.warehouse, f.line(n, 50))
	_, err := f.docs.Post(ctx, doc.ID)

	require.True(t, apperror.IsInsufficientStock(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "50", appErr.Details["requested"])
	assert.Equal(t, "30", appErr.Details["available"])

	assertQty(t, 30, f.quantity(t, n, f.warehouse))
	got, err := f.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, movement.StatusDraft, got.Status)
	ms, err := f.docs.Movements(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, ms)
	assert.Len(t, f.outbox.Records(), before)
}

func TestPost_PartialFailureRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	a, b := f.nomenclature(), f.nomenclature()
	f.posted(t, ctx, movement.TypeReceipt, f.line(a, 5), f.line(b, 1))

	doc := f.draft(t, ctx, movement.TypeExpense, f.warehouse, f.line(a, 5), f.line(b, 2))
	_, err := f.docs.Post(ctx, doc.ID)

	require.True(t, apperror.IsInsufficientStock(err))
	assertQty(t, 5, f.quantity(t, a, f.warehouse))
	assertQty(t, 1, f.quantity(t, b, f.warehouse))
}

func TestPost_EmptyDocument(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	doc := f.draft(t, ctx, movement.TypeReceipt, f.warehouse)

	_, err := f.docs.Post(ctx, doc.ID)

	assert.True(t, apperror.HasCode(err, apperror.CodeEmptyDocument))
}

func TestPost_InventoryAdjustment(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n, untouched := f.nomenclature(), f.nomenclature()
	f.posted(t, ctx, movement.TypeReceipt, f.line(n, 12), f.line(untouched, 4))

	doc := f.posted(t, ctx, movement.TypeInventoryAdjustment, f.line(n, 10), f.line(untouched, 4))

	assertQty(t, 10, f.quantity(t, n, f.warehouse))
	assertQty(t, 4, f.quantity(t, untouched, f.warehouse))
	ms, err := f.docs.Movements(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, entity.MovementInventory, ms[0].MovementType)
	assertQty(t, -2, ms[0].Quantity)
}

func TestCancel_PostedIsReversed(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	doc := f.posted(t, ctx, movement.TypeReceipt, f.line(n, 20))

	cancelled, err := f.docs.Cancel(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, movement.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assertQty(t, 0, f.quantity(t, n, f.warehouse))

	ms, err := f.docs.Movements(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, entity.MovementReceipt, ms[0].MovementType)
	assert.Equal(t, entity.MovementExpense, ms[1].MovementType)
	assert.Equal(t, []string{events.DocumentPosted, events.DocumentCancelled}, eventTypes(f.outbox))
}

func TestCancel_ReversalConflict(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	receipt := f.posted(t, ctx, movement.TypeReceipt, f.line(n, 20))
	f.posted(t, ctx, movement.TypeExpense, f.line(n, 5))

	_, err := f.docs.Cancel(ctx, receipt.ID)

	require.True(t, apperror.IsReversalConflict(err))
	assertQty(t, 15, f.quantity(t, n, f.warehouse))
	got, err := f.docs.Get(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, movement.StatusPosted, got.Status)
	ms, err := f.docs.Movements(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestCancel_DraftTouchesNoLedger(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	doc := f.draft(t, ctx, movement.TypeReceipt, f.warehouse, f.line(n, 3))

	_, err := f.docs.Cancel(ctx, doc.ID)
	require.NoError(t, err)
	assertQty(t, 0, f.quantity(t, n, f.warehouse))

	_, err = f.docs.Cancel(ctx, doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyCancelled))
	_, err = f.docs.Post(ctx, doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyCancelled))
}

func TestEditing_OnlyDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	doc := f.posted(t, ctx, movement.TypeReceipt, f.line(n, 1))

	_, err := f.docs.AddItem(ctx, doc.ID, f.line(n, 1))
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.True(t, apperror.IsInvalidTransition(f.docs.Delete(ctx, doc.ID)))

	_, err = f.docs.Cancel(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, apperror.HasCode(f.docs.Delete(ctx, doc.ID), apperror.CodeAlreadyCancelled))
}

func TestItems_LineNumbersAndVersion(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	doc := f.draft(t, ctx, movement.TypeReceipt, f.warehouse, f.line(n, 1))

	price := types.MustQuantity("2.5")
	added, err := f.docs.AddItem(ctx, doc.ID, movement.NewItem(n, f.unit, types.NewQuantity(4), &price))
	require.NoError(t, err)
	assert.Equal(t, 2, added.LineNo)
	require.NotNil(t, added.Total)
	assert.Equal(t, "10", added.Total.String())

	require.NoError(t, f.docs.RemoveItem(ctx, doc.ID, added.ID))
	got, err := f.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Version)

	err = f.docs.RemoveItem(ctx, doc.ID, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdate_StaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	doc := f.draft(t, ctx, movement.TypeReceipt, f.warehouse, f.line(n, 1))

	edit := *doc
	edit.Description = "first"
	updated, err := f.docs.Update(ctx, &edit)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	stale := *doc
	stale.Description = "second"
	_, err = f.docs.Update(ctx, &stale)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()

	tr := movement.NewDocument(movement.TypeTransfer, "TR-X", f.warehouse)
	tr.Items = []movement.Item{f.line(n, 1)}
	assert.True(t, apperror.IsValidation(f.docs.Create(ctx, tr)))

	tr.DestinationWarehouseID = &f.warehouse
	assert.True(t, apperror.IsValidation(f.docs.Create(ctx, tr)))

	unknown := movement.NewDocument(movement.TypeReceipt, "R-X", f.warehouse)
	unknown.Items = []movement.Item{movement.NewItem(id.New(), f.unit, types.NewQuantity(1), nil)}
	assert.True(t, apperror.IsNotFound(f.docs.Create(ctx, unknown)))

	zero := movement.NewDocument(movement.TypeReceipt, "R-Y", f.warehouse)
	zero.Items = []movement.Item{f.line(n, 0)}
	assert.True(t, apperror.IsValidation(f.docs.Create(ctx, zero)))

	dup := movement.NewDocument(movement.TypeReceipt, "R-Z", f.warehouse)
	require.NoError(t, f.docs.Create(ctx, dup))
	again := movement.NewDocument(movement.TypeReceipt, "R-Z", f.warehouse)
	assert.True(t, apperror.HasCode(f.docs.Create(ctx, again), apperror.CodeDuplicate))
}

func TestCreate_DeviceNumber(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	_, err := f.devices.Register(ctx, devices.Info{DeviceID: "tsd-a"})
	require.NoError(t, err)

	first := movement.NewDocument(movement.TypeReceipt, "", f.warehouse)
	first.DeviceID = "tsd-a"
	require.NoError(t, f.docs.Create(ctx, first))
	second := movement.NewDocument(movement.TypeInventoryAdjustment, "", f.warehouse)
	second.DeviceID = "tsd-a"
	require.NoError(t, f.docs.Create(ctx, second))

	assert.Equal(t, "ТСД001-RECEIPT-000001", first.Number)
	assert.Equal(t, "ТСД001-ADJUSTMENT-000002", second.Number)
}

func TestCreate_SessionDevice(t *testing.T) {
	f := newFixture(t)
	_, err := f.devices.Register(testCtx(), devices.Info{DeviceID: "tsd-b"})
	require.NoError(t, err)

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "user-1", DeviceID: "tsd-b"})
	doc := movement.NewDocument(movement.TypeExpense, "", f.warehouse)
	require.NoError(t, f.docs.Create(ctx, doc))

	assert.Equal(t, "tsd-b", doc.DeviceID)
	assert.Equal(t, "ТСД001-EXPENSE-000001", doc.Number)
}

func TestCreate_RejectedDraftKeepsCounter(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	_, err := f.devices.Register(ctx, devices.Info{DeviceID: "tsd-c"})
	require.NoError(t, err)

	bad := movement.NewDocument(movement.TypeTransfer, "", f.warehouse)
	bad.DeviceID = "tsd-c"
	require.True(t, apperror.IsValidation(f.docs.Create(ctx, bad)))
	unknown := movement.NewDocument(movement.TypeReceipt, "", id.New())
	unknown.DeviceID = "tsd-c"
	require.True(t, apperror.IsNotFound(f.docs.Create(ctx, unknown)))

	good := movement.NewDocument(movement.TypeReceipt, "", f.warehouse)
	good.DeviceID = "tsd-c"
	require.NoError(t, f.docs.Create(ctx, good))
	assert.Equal(t, "ТСД001-RECEIPT-000001", good.Number)
}

func TestPost_ConcurrentExpensesNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.nomenclature()
	f.posted(t, ctx, movement.TypeReceipt, f.line(n, 10))

	const attempts = 16
	docs := make([]*movement.Document, attempts)
	for i := range docs {
		docs[i] = f.draft(t, ctx, movement.TypeExpense, f.warehouse, f.line(n, 1))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, short := 0, 0
	for _, d := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.docs.Post(ctx, d.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperror.IsInsufficientStock(err):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, attempts-10, short)
	assertQty(t, 0, f.quantity(t, n, f.warehouse))
}

func eventTypes(o *memory.Outbox) []string {
	out := make([]string, 0)
	for _, r := range o.Records() {
		out = append(out, r.Event.EventType)
	}
	return out
}
