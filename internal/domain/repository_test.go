package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListFilterNormalize(t *testing.T) {
	tests := []struct {
		in         ListFilter
		limit, off int
	}{
		{ListFilter{}, DefaultLimit, 0},
		{ListFilter{Limit: 5000, Offset: -3}, MaxLimit, 0},
		{ListFilter{Limit: 10, Offset: 20}, 10, 20},
	}
	for _, tt := range tests {
		got := tt.in.Normalize()
		assert.Equal(t, tt.limit, got.Limit)
		assert.Equal(t, tt.off, got.Offset)
	}
}

func TestPage(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	res := Page(all, ListFilter{Limit: 2, Offset: 1})
	assert.Equal(t, []int{2, 3}, res.Items)
	assert.EqualValues(t, 5, res.TotalCount)

	res = Page(all, ListFilter{Limit: 2, Offset: 10})
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
}

func TestHookRegistry(t *testing.T) {
	r := NewHookRegistry[*int]()
	var calls []string

	r.OnBeforeCreate(func(ctx context.Context, v *int) error {
		calls = append(calls, "first")
		*v++
		return nil
	})
	r.OnBeforeCreate(func(ctx context.Context, v *int) error {
		calls = append(calls, "second")
		return errors.New("stop")
	})
	r.OnBeforeCreate(func(ctx context.Context, v *int) error {
		calls = append(calls, "third")
		return nil
	})

	v := 0
	err := r.Run(context.Background(), BeforeCreate, &v)

	assert.EqualError(t, err, "stop")
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 1, v)
	assert.NoError(t, r.Run(context.Background(), AfterTransition, &v))
}
