package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	appctx "tsdstock/internal/core/context"
	"tsdstock/internal/core/entity"
)

func TestEnrichCreatedBy(t *testing.T) {
	e := &entity.BaseEntity{}
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-42"})

	assert.NoError(t, EnrichCreatedBy(ctx, e))
	assert.Equal(t, "u-42", e.CreatedBy)
	assert.Equal(t, "u-42", e.UpdatedBy)
}

func TestEnrichWithoutUser(t *testing.T) {
	e := &entity.BaseEntity{CreatedBy: "keep"}

	assert.NoError(t, EnrichCreatedBy(context.Background(), e))
	assert.NoError(t, EnrichUpdatedBy(context.Background(), e))
	assert.Equal(t, "keep", e.CreatedBy)
	assert.Empty(t, e.UpdatedBy)
}
