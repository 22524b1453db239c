package movement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/types"
)

func TestType_Tag(t *testing.T) {
	assert.Equal(t, "receipt", TypeReceipt.Tag())
	assert.Equal(t, "adjustment", TypeInventoryAdjustment.Tag())
	assert.False(t, Type("gift").Valid())
}

func TestDocument_TransferMovements(t *testing.T) {
	src, dst := id.New(), id.New()
	d := NewDocument(TypeTransfer, "T-1", src)
	d.DestinationWarehouseID = &dst
	n := id.New()
	d.Items = []Item{NewItem(n, id.New(), types.NewQuantity(3), nil)}
	require.NoError(t, d.Validate(context.Background()))

	ms := d.Movements("u", time.Now())
	require.Len(t, ms, 2)
	assert.Equal(t, entity.MovementTransferOut, ms[0].MovementType)
	assert.Equal(t, src, ms[0].WarehouseID)
	assert.Equal(t, entity.MovementTransferIn, ms[1].MovementType)
	assert.Equal(t, dst, ms[1].WarehouseID)
	assert.Equal(t, d.ID, *ms[0].DocumentID)
	assert.Len(t, d.Keys(), 2)
}

func TestDocument_StateChecks(t *testing.T) {
	d := NewDocument(TypeReceipt, "R-1", id.New())
	assert.NoError(t, d.CanPost())
	assert.NoError(t, d.CanModify())

	d.MarkPosted(time.Now())
	assert.True(t, apperror.HasCode(d.CanPost(), apperror.CodeAlreadyPosted))
	assert.True(t, apperror.HasCode(d.CanModify(), apperror.CodeInvalidTransition))
	assert.NoError(t, d.CanCancel())

	d.MarkCancelled(time.Now())
	assert.True(t, apperror.HasCode(d.CanCancel(), apperror.CodeAlreadyCancelled))
	assert.True(t, apperror.HasCode(d.CanPost(), apperror.CodeAlreadyCancelled))
}

func TestDocument_DestinationOnlyForTransfer(t *testing.T) {
	dst := id.New()
	d := NewDocument(TypeReceipt, "R-1", id.New())
	d.DestinationWarehouseID = &dst
	assert.True(t, apperror.IsValidation(d.Validate(context.Background())))
}

func TestItem_Recalculate(t *testing.T) {
	price := types.MustQuantity("1.25")
	it := NewItem(id.New(), id.New(), types.MustQuantity("3"), &price)
	require.NotNil(t, it.Total)
	assert.Equal(t, "3.75", it.Total.String())

	explicit := types.MustQuantity("3")
	it = Item{Price: &price, Total: &explicit, Quantity: types.NewQuantity(3)}
	it.Recalculate()
	assert.Equal(t, "3", it.Total.String())
}
