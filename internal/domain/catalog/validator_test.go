package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
)

type fakeValidator struct {
	known map[id.ID]Kind
	err   error
}

func (f fakeValidator) Exists(_ context.Context, kind Kind, refID id.ID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[refID] == kind, nil
}

func (f fakeValidator) BaseUnit(context.Context, id.ID) (id.ID, error) {
	return id.Nil(), nil
}

func TestRequire(t *testing.T) {
	n := id.New()
	v := fakeValidator{known: map[id.ID]Kind{n: KindNomenclature}}
	ctx := context.Background()

	assert.NoError(t, Require(ctx, v, KindNomenclature, n))
	assert.True(t, apperror.IsNotFound(Require(ctx, v, KindUnit, n)))
	assert.True(t, apperror.IsValidation(Require(ctx, v, KindWarehouse, id.Nil())))
}

func TestRequireAll_StopsAtFirstFailure(t *testing.T) {
	w := id.New()
	v := fakeValidator{known: map[id.ID]Kind{w: KindWarehouse}}

	err := RequireAll(context.Background(), v,
		Ref{KindWarehouse, w},
		Ref{KindUnit, id.New()},
	)

	appErr, ok := apperror.AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, "unit", appErr.Details["entity"])
}

func TestRequire_StorageError(t *testing.T) {
	boom := errors.New("db down")
	err := Require(context.Background(), fakeValidator{err: boom}, KindUnit, id.New())
	assert.ErrorIs(t, err, boom)
	assert.False(t, apperror.IsNotFound(err))
}
