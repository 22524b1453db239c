// Package audit provides hooks that stamp acting-user identity on entities.
package audit

import (
	"context"

	appctx "tsdstock/internal/core/context"
)

// CreatedBySetter is implemented by entities that record their creator.
type CreatedBySetter interface {
	SetCreatedBy(string)
	SetUpdatedBy(string)
}

// UpdatedBySetter is implemented by entities that record their last editor.
type UpdatedBySetter interface {
	SetUpdatedBy(string)
}

// EnrichCreatedBy sets CreatedBy and UpdatedBy from the acting user.
// Register it as a before-create hook. Without a user in ctx it is a no-op.
func EnrichCreatedBy[T CreatedBySetter](ctx context.Context, e T) error {
	if userID := appctx.GetUserID(ctx); userID != "" {
		e.SetCreatedBy(userID)
		e.SetUpdatedBy(userID)
	}
	return nil
}

// EnrichUpdatedBy sets UpdatedBy from the acting user.
// Register it as a before-update hook.
func EnrichUpdatedBy[T UpdatedBySetter](ctx context.Context, e T) error {
	if userID := appctx.GetUserID(ctx); userID != "" {
		e.SetUpdatedBy(userID)
	}
	return nil
}
