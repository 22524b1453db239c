package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/apperror"
	appctx "tsdstock/internal/core/context"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/numerator"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain/documents/inventory"
	"tsdstock/internal/domain/events"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/internal/infrastructure/storage/memory"
)

type fixture struct {
	store     *memory.Store
	catalog   *memory.Catalog
	stock     *stock.Service
	inv       *inventory.Service
	events    *events.Recorder
	warehouse id.ID
	unit      id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:     store,
		catalog:   memory.NewCatalog(store),
		events:    &events.Recorder{},
		warehouse: id.New(),
		unit:      id.New(),
	}
	f.catalog.AddWarehouse(f.warehouse)
	f.catalog.AddUnit(f.unit)
	f.stock = stock.NewService(memory.NewStockRepo(store), store)

	numbers := numerator.GeneratorFunc(func(_ context.Context, deviceID, tag string) (numerator.Number, error) {
		return numerator.Number{DocumentNumber: numerator.Format(deviceID, tag, 7), Counter: 7}, nil
	})
	f.inv = inventory.NewService(memory.NewInventoryRepo(store), f.stock, f.catalog, numbers, store, f.events)
	return f
}

func testCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "counter-1"})
}

func (f *fixture) stocked(t *testing.T, qty int64) id.ID {
	t.Helper()
	n := id.New()
	f.catalog.AddNomenclature(n, f.unit)
	if qty != 0 {
		_, err := f.stock.Adjust(testCtx(), f.key(n), types.NewQuantity(qty), "opening balance")
		require.NoError(t, err)
	}
	return n
}

func (f *fixture) key(n id.ID) entity.StockKey {
	return entity.StockKey{NomenclatureID: n, WarehouseID: f.warehouse}
}

func (f *fixture) open(t *testing.T) *inventory.Inventory {
	t.Helper()
	inv := inventory.NewInventory("INV-"+id.New().String(), f.warehouse)
	require.NoError(t, f.inv.Create(testCtx(), inv))
	return inv
}

func (f *fixture) quantity(t *testing.T, n id.ID) types.Quantity {
	t.Helper()
	q, err := f.stock.Quantity(context.Background(), f.key(n))
	require.NoError(t, err)
	return q
}

func TestComplete_AppliesDifference(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.stocked(t, 100)
	inv := f.open(t)

	item, err := f.inv.AddItem(ctx, inv.ID, n, f.unit)
	require.NoError(t, err)
	assert.True(t, types.NewQuantity(100).Equal(item.PlannedQuantity))

	counted, err := f.inv.RecordCount(ctx, item.ID, types.NewQuantity(90), "")
	require.NoError(t, err)
	assert.Equal(t, "counter-1", counted.CountedBy)
	assert.Equal(t, "-10", counted.Difference.String())

	done, err := f.inv.Complete(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusCompleted, done.Status)
	assert.NotNil(t, done.DateEnd)
	assert.True(t, types.NewQuantity(90).Equal(f.quantity(t, n)))

	ms, err := f.inv.Movements(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, entity.MovementInventory, ms[0].MovementType)
	assert.Equal(t, "-10", ms[0].Quantity.String())
	assert.Equal(t, []string{events.InventoryCompleted}, f.events.Types())
}

func TestComplete_ZeroDifferenceRecordsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.stocked(t, 5)
	inv := f.open(t)
	item, err := f.inv.AddItem(ctx, inv.ID, n, f.unit)
	require.NoError(t, err)
	_, err = f.inv.CountItem(ctx, inv.ID, item.ID, types.NewQuantity(5), "alice")
	require.NoError(t, err)

	_, err = f.inv.Complete(ctx, inv.ID)
	require.NoError(t, err)

	ms, err := f.inv.Movements(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestComplete_DifferenceLandsOnCurrentQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.stocked(t, 100)
	inv := f.open(t)
	item, err := f.inv.AddItem(ctx, inv.ID, n, f.unit)
	require.NoError(t, err)
	_, err = f.inv.RecordCount(ctx, item.ID, types.NewQuantity(90), "")
	require.NoError(t, err)

	// Stock moves between the snapshot and completion.
	_, err = f.stock.Adjust(ctx, f.key(n), types.NewQuantity(-5), "sold during count")
	require.NoError(t, err)

	_, err = f.inv.Complete(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, types.NewQuantity(85).Equal(f.quantity(t, n)))
}

func TestComplete_Uncounted(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	a, b := f.stocked(t, 3), f.stocked(t, 4)
	inv := f.open(t)

	_, err := f.inv.Complete(ctx, inv.ID)
	require.True(t, apperror.IsIncompleteCount(err))

	itemA, err := f.inv.AddItem(ctx, inv.ID, a, f.unit)
	require.NoError(t, err)
	_, err = f.inv.AddItem(ctx, inv.ID, b, f.unit)
	require.NoError(t, err)
	_, err = f.inv.RecordCount(ctx, itemA.ID, types.NewQuantity(1), "")
	require.NoError(t, err)

	_, err = f.inv.Complete(ctx, inv.ID)
	require.True(t, apperror.IsIncompleteCount(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, 1, appErr.Details["uncounted"])
	assert.True(t, types.NewQuantity(3).Equal(f.quantity(t, a)))

	got, err := f.inv.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusInProgress, got.Status)
}

func TestComplete_NegativeResultIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.stocked(t, 10)
	inv := f.open(t)
	item, err := f.inv.AddItem(ctx, inv.ID, n, f.unit)
	require.NoError(t, err)
	_, err = f.inv.RecordCount(ctx, item.ID, types.NewQuantity(0), "")
	require.NoError(t, err)

	_, err = f.stock.Adjust(ctx, f.key(n), types.NewQuantity(-8), "sold")
	require.NoError(t, err)

	_, err = f.inv.Complete(ctx, inv.ID)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.True(t, types.NewQuantity(2).Equal(f.quantity(t, n)))
}

func TestTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.stocked(t, 1)
	inv := f.open(t)
	item, err := f.inv.AddItem(ctx, inv.ID, n, f.unit)
	require.NoError(t, err)
	_, err = f.inv.RecordCount(ctx, item.ID, types.NewQuantity(1), "")
	require.NoError(t, err)
	_, err = f.inv.Complete(ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.inv.Complete(ctx, inv.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
	_, err = f.inv.Cancel(ctx, inv.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
	_, err = f.inv.RecordCount(ctx, item.ID, types.NewQuantity(2), "")
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.True(t, apperror.IsInvalidTransition(f.inv.Delete(ctx, inv.ID)))

	other := f.open(t)
	_, err = f.inv.Cancel(ctx, other.ID)
	require.NoError(t, err)
	_, err = f.inv.Complete(ctx, other.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyCancelled))
	assert.NoError(t, f.inv.Delete(ctx, other.ID))
}

func TestAddItem_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.stocked(t, 1)
	inv := f.open(t)

	_, err := f.inv.AddItem(ctx, inv.ID, n, f.unit)
	require.NoError(t, err)
	_, err = f.inv.AddItem(ctx, inv.ID, n, f.unit)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.inv.AddItem(ctx, inv.ID, id.New(), f.unit)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFillFromStock(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	a, b := f.stocked(t, 7), f.stocked(t, 2)
	f.stocked(t, 0)
	inv := f.open(t)
	_, err := f.inv.AddItem(ctx, inv.ID, a, f.unit)
	require.NoError(t, err)

	added, err := f.inv.FillFromStock(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, b, added[0].NomenclatureID)
	assert.Equal(t, f.unit, added[0].UnitID)
	assert.True(t, types.NewQuantity(2).Equal(added[0].PlannedQuantity))

	cmp, err := f.inv.Comparison(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cmp.Uncounted)
	assert.True(t, types.NewQuantity(9).Equal(cmp.TotalPlanned))
}

func TestComparison_Totals(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	a, b := f.stocked(t, 10), f.stocked(t, 4)
	inv := f.open(t)
	ia, err := f.inv.AddItem(ctx, inv.ID, a, f.unit)
	require.NoError(t, err)
	ib, err := f.inv.AddItem(ctx, inv.ID, b, f.unit)
	require.NoError(t, err)
	_, err = f.inv.RecordCount(ctx, ia.ID, types.NewQuantity(12), "")
	require.NoError(t, err)
	_, err = f.inv.RecordCount(ctx, ib.ID, types.NewQuantity(1), "")
	require.NoError(t, err)

	cmp, err := f.inv.Comparison(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cmp.Uncounted)
	assert.Equal(t, "2", cmp.TotalSurplus.String())
	assert.Equal(t, "3", cmp.TotalShortage.String())
	assert.Equal(t, "13", cmp.TotalActual.String())
}

func TestRecordCount_Negative(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.stocked(t, 1)
	inv := f.open(t)
	item, err := f.inv.AddItem(ctx, inv.ID, n, f.unit)
	require.NoError(t, err)

	_, err = f.inv.RecordCount(ctx, item.ID, types.NewQuantity(-1), "")
	assert.True(t, apperror.IsValidation(err))
}

func TestUpdate_WarehouseLockedByItems(t *testing.T) {
	f := newFixture(t)
	ctx := testCtx()
	n := f.stocked(t, 1)
	moved := id.New()
	f.catalog.AddWarehouse(moved)

	empty := f.open(t)
	empty.WarehouseID = moved
	updated, err := f.inv.Update(ctx, empty)
	require.NoError(t, err)
	assert.Equal(t, moved, updated.WarehouseID)

	inv := f.open(t)
	_, err = f.inv.AddItem(ctx, inv.ID, n, f.unit)
	require.NoError(t, err)
	edit, err := f.inv.Get(ctx, inv.ID)
	require.NoError(t, err)
	edit.WarehouseID = moved
	_, err = f.inv.Update(ctx, edit)
	assert.True(t, apperror.IsValidation(err))
}

func TestCreate_DeviceNumber(t *testing.T) {
	f := newFixture(t)
	inv := inventory.NewInventory("", f.warehouse)
	inv.DeviceID = "ТСД002"

	require.NoError(t, f.inv.Create(testCtx(), inv))
	assert.Equal(t, "ТСД002-INVENTORY-000007", inv.Number)
	assert.Equal(t, "counter-1", inv.CreatedBy)
}

func TestCreate_RejectedInventoryKeepsCounter(t *testing.T) {
	f := newFixture(t)
	issued := 0
	numbers := numerator.GeneratorFunc(func(_ context.Context, deviceID, tag string) (numerator.Number, error) {
		issued++
		return numerator.Number{DocumentNumber: numerator.Format(deviceID, tag, int64(issued)), Counter: int64(issued)}, nil
	})
	svc := inventory.NewService(memory.NewInventoryRepo(f.store), f.stock, f.catalog, numbers, f.store, f.events)

	bad := inventory.NewInventory("", id.New())
	bad.DeviceID = "ТСД003"
	require.True(t, apperror.IsNotFound(svc.Create(testCtx(), bad)))
	assert.Zero(t, issued)

	good := inventory.NewInventory("", f.warehouse)
	good.DeviceID = "ТСД003"
	require.NoError(t, svc.Create(testCtx(), good))
	assert.Equal(t, "ТСД003-INVENTORY-000001", good.Number)
}
