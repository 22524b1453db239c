package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/types"
)

func TestItem_SetCount(t *testing.T) {
	it := Item{PlannedQuantity: types.NewQuantity(10)}
	assert.False(t, it.Counted())

	require.NoError(t, it.SetCount(types.NewQuantity(12), "bob", time.Now()))
	assert.True(t, it.Counted())
	assert.Equal(t, "2", it.Difference.String())

	assert.True(t, apperror.IsValidation(it.SetCount(types.NewQuantity(-1), "bob", time.Now())))
}

func TestInventory_CanComplete(t *testing.T) {
	inv := NewInventory("I-1", id.New())
	assert.True(t, apperror.IsIncompleteCount(inv.CanComplete()))

	inv.Items = []Item{{PlannedQuantity: types.NewQuantity(1)}}
	assert.True(t, apperror.IsIncompleteCount(inv.CanComplete()))

	require.NoError(t, inv.Items[0].SetCount(types.NewQuantity(1), "", time.Now()))
	assert.NoError(t, inv.CanComplete())
	assert.Empty(t, inv.Keys())

	inv.MarkCompleted(time.Now())
	assert.True(t, apperror.IsInvalidTransition(inv.CanComplete()))
	assert.True(t, apperror.IsInvalidTransition(inv.CanCancel()))
}

func TestInventory_Keys(t *testing.T) {
	inv := NewInventory("I-2", id.New())
	a := Item{NomenclatureID: id.New(), PlannedQuantity: types.NewQuantity(5)}
	b := Item{NomenclatureID: id.New(), PlannedQuantity: types.NewQuantity(5)}
	require.NoError(t, a.SetCount(types.NewQuantity(4), "", time.Now()))
	require.NoError(t, b.SetCount(types.NewQuantity(5), "", time.Now()))
	inv.Items = []Item{a, b}

	keys := inv.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, a.NomenclatureID, keys[0].NomenclatureID)
	assert.Equal(t, inv.WarehouseID, keys[0].WarehouseID)
}
