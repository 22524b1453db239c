package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/catalog"
)

type countingValidator struct {
	known     map[id.ID]bool
	baseUnits map[id.ID]id.ID
	calls     int
}

func (v *countingValidator) Exists(_ context.Context, _ catalog.Kind, refID id.ID) (bool, error) {
	v.calls++
	return v.known[refID], nil
}

func (v *countingValidator) BaseUnit(_ context.Context, nomenclatureID id.ID) (id.ID, error) {
	v.calls++
	u, ok := v.baseUnits[nomenclatureID]
	if !ok {
		return id.Nil(), apperror.NewNotFound(string(catalog.KindNomenclature), nomenclatureID)
	}
	return u, nil
}

func TestCatalogCache_CachesPositiveAnswers(t *testing.T) {
	ctx := context.Background()
	known, unknown := id.New(), id.New()
	next := &countingValidator{known: map[id.ID]bool{known: true}}
	c := NewCatalogCache(next, nil)

	for range 3 {
		ok, err := c.Exists(ctx, catalog.KindWarehouse, known)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, next.calls)

	for range 2 {
		ok, err := c.Exists(ctx, catalog.KindWarehouse, unknown)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 3, next.calls, "misses are not cached")

	stats := c.GetStats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(3), stats.Misses)
}

func TestCatalogCache_Notifications(t *testing.T) {
	ctx := context.Background()
	nom, unit := id.New(), id.New()
	next := &countingValidator{
		known:     map[id.ID]bool{nom: true},
		baseUnits: map[id.ID]id.ID{nom: unit},
	}
	c := NewCatalogCache(next, nil)

	_, err := c.Exists(ctx, catalog.KindNomenclature, nom)
	require.NoError(t, err)
	got, err := c.BaseUnit(ctx, nom)
	require.NoError(t, err)
	assert.Equal(t, unit, got)
	assert.Equal(t, 2, c.GetStats().Entries)

	c.handleNotification("nomenclature:" + nom.String())
	assert.Equal(t, 0, c.GetStats().Entries)

	next.known[nom] = false
	ok, err := c.Exists(ctx, catalog.KindNomenclature, nom)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.BaseUnit(ctx, nom)
	require.NoError(t, err)
	c.handleNotification("garbage")
	assert.Equal(t, 0, c.GetStats().Entries)
}

func TestCatalogCache_BaseUnitErrorsPassThrough(t *testing.T) {
	c := NewCatalogCache(&countingValidator{}, nil)
	_, err := c.BaseUnit(context.Background(), id.New())
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, 0, c.GetStats().Entries)
}
