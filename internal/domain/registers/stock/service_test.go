package stock_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/internal/infrastructure/storage/memory"
)

func newService() *stock.Service {
	store := memory.NewStore()
	return stock.NewService(memory.NewStockRepo(store), store)
}

func newKey() entity.StockKey {
	return entity.StockKey{NomenclatureID: id.New(), WarehouseID: id.New()}
}

func qty(v int64) types.Quantity { return types.NewQuantity(v) }

func record(t *testing.T, s *stock.Service, key entity.StockKey, mt entity.MovementType, q int64) entity.StockLine {
	t.Helper()
	line, err := s.Record(context.Background(), entity.StockMovement{StockKey: key, MovementType: mt, Quantity: qty(q)})
	require.NoError(t, err)
	return line
}

func TestRecord_AppliesSignedDelta(t *testing.T) {
	s := newService()
	key := newKey()

	assert.True(t, qty(10).Equal(record(t, s, key, entity.MovementReceipt, 10).Quantity))
	assert.True(t, qty(7).Equal(record(t, s, key, entity.MovementExpense, 3).Quantity))
	assert.True(t, qty(9).Equal(record(t, s, key, entity.MovementTransferIn, 2).Quantity))
	assert.True(t, qty(8).Equal(record(t, s, key, entity.MovementTransferOut, 1).Quantity))
	assert.True(t, qty(5).Equal(record(t, s, key, entity.MovementInventory, -3).Quantity))

	res, err := s.Movements(context.Background(), stock.MovementFilter{NomenclatureID: &key.NomenclatureID})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.TotalCount)
	// Newest first.
	assert.Equal(t, entity.MovementInventory, res.Items[0].MovementType)
	assert.Greater(t, res.Items[0].Seq, res.Items[1].Seq)
}

func TestRecord_InsufficientStock(t *testing.T) {
	s := newService()
	key := newKey()
	record(t, s, key, entity.MovementReceipt, 30)

	_, err := s.Record(context.Background(), entity.StockMovement{StockKey: key, MovementType: entity.MovementExpense, Quantity: qty(50)})

	require.True(t, apperror.IsInsufficientStock(err))
	q, err := s.Quantity(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, qty(30).Equal(q))
	ms, err := s.MovementsFor(context.Background(), entity.Reference{})
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestRecord_Validation(t *testing.T) {
	s := newService()
	key := newKey()
	docID, invID := id.New(), id.New()

	cases := map[string]entity.StockMovement{
		"unknown type":      {StockKey: key, MovementType: "gift", Quantity: qty(1)},
		"missing warehouse": {StockKey: entity.StockKey{NomenclatureID: id.New()}, MovementType: entity.MovementReceipt, Quantity: qty(1)},
		"zero receipt":      {StockKey: key, MovementType: entity.MovementReceipt, Quantity: qty(0)},
		"negative expense":  {StockKey: key, MovementType: entity.MovementExpense, Quantity: qty(-1)},
		"zero inventory":    {StockKey: key, MovementType: entity.MovementInventory, Quantity: qty(0)},
		"two references":    {StockKey: key, MovementType: entity.MovementReceipt, Quantity: qty(1), Reference: entity.Reference{DocumentID: &docID, InventoryID: &invID}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Record(context.Background(), m)
			assert.True(t, apperror.IsValidation(err))
		})
	}
}

func TestReserveRelease(t *testing.T) {
	s := newService()
	ctx := context.Background()
	key := newKey()
	record(t, s, key, entity.MovementReceipt, 10)

	line, err := s.Reserve(ctx, key, qty(6))
	require.NoError(t, err)
	assert.True(t, qty(4).Equal(line.Available()))

	_, err = s.Reserve(ctx, key, qty(5))
	assert.True(t, apperror.IsInsufficientStock(err))

	// Reserved stock cannot be shipped.
	_, err = s.Record(ctx, entity.StockMovement{StockKey: key, MovementType: entity.MovementExpense, Quantity: qty(5)})
	assert.True(t, apperror.IsInsufficientStock(err))

	_, err = s.Release(ctx, key, qty(7))
	assert.True(t, apperror.IsValidation(err))

	line, err = s.Release(ctx, key, qty(6))
	require.NoError(t, err)
	assert.True(t, line.ReservedQuantity.IsZero())

	_, err = s.Reserve(ctx, key, qty(0))
	assert.True(t, apperror.IsValidation(err))
}

func TestGet_AbsentLine(t *testing.T) {
	s := newService()
	key := newKey()

	_, err := s.Get(context.Background(), key)
	assert.True(t, apperror.IsNotFound(err))

	q, err := s.Quantity(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, q.IsZero())
}

func TestAdjust(t *testing.T) {
	s := newService()
	key := newKey()

	line, err := s.Adjust(context.Background(), key, qty(4), "found on shelf")
	require.NoError(t, err)
	assert.True(t, qty(4).Equal(line.Quantity))

	_, err = s.Adjust(context.Background(), key, qty(-5), "")
	assert.True(t, apperror.IsInsufficientStock(err))

	_, err = s.Adjust(context.Background(), key, qty(0), "")
	assert.True(t, apperror.IsValidation(err))
}

func TestSummaryAndWarehouseLines(t *testing.T) {
	s := newService()
	ctx := context.Background()
	warehouse := id.New()
	a := entity.StockKey{NomenclatureID: id.New(), WarehouseID: warehouse}
	b := entity.StockKey{NomenclatureID: id.New(), WarehouseID: warehouse}
	elsewhere := newKey()
	record(t, s, a, entity.MovementReceipt, 5)
	record(t, s, b, entity.MovementReceipt, 2)
	record(t, s, b, entity.MovementExpense, 2)
	record(t, s, elsewhere, entity.MovementReceipt, 9)
	_, err := s.Reserve(ctx, a, qty(1))
	require.NoError(t, err)

	sum, err := s.Summary(ctx, stock.LineFilter{WarehouseID: &warehouse})
	require.NoError(t, err)
	assert.Len(t, sum.Lines, 2)
	assert.True(t, qty(5).Equal(sum.TotalQuantity))
	assert.True(t, qty(1).Equal(sum.TotalReserved))
	assert.True(t, qty(4).Equal(sum.TotalAvailable))

	lines, err := s.WarehouseLines(ctx, warehouse)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, a, lines[0].StockKey)
}

func TestRecord_ConcurrentWritersSerialize(t *testing.T) {
	s := newService()
	key := newKey()
	record(t, s, key, entity.MovementReceipt, 50)

	var wg sync.WaitGroup
	for range 25 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Record(context.Background(), entity.StockMovement{StockKey: key, MovementType: entity.MovementExpense, Quantity: qty(2)})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.Record(context.Background(), entity.StockMovement{StockKey: key, MovementType: entity.MovementReceipt, Quantity: qty(1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	q, err := s.Quantity(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, qty(25).Equal(q), "got %s", q)
}

func TestSortKeys(t *testing.T) {
	a, b := newKey(), newKey()
	keys := stock.SortKeys([]entity.StockKey{b, a, b, a})
	require.Len(t, keys, 2)
	assert.Negative(t, keys[0].Compare(keys[1]))
}
