package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", NewNotFound("document", 1), IsNotFound},
		{"validation", NewValidation("bad"), IsValidation},
		{"empty document", NewEmptyDocument(1), IsValidation},
		{"duplicate", NewDuplicate("document", "number", "A-1"), IsValidation},
		{"transition", NewInvalidTransition("inventory", "completed", "cancelled"), IsInvalidTransition},
		{"already posted", NewAlreadyPosted("document", 1), IsInvalidTransition},
		{"already cancelled", NewAlreadyCancelled("document", 1), IsInvalidTransition},
		{"insufficient", NewInsufficientStock(1, 2, decimal.NewFromInt(5), decimal.Zero), IsInsufficientStock},
		{"reversal", NewReversalConflict(1, 2, 3, decimal.NewFromInt(20), decimal.NewFromInt(15)), IsReversalConflict},
		{"incomplete", NewIncompleteCount(1, 2), IsIncompleteCount},
		{"wrapped", fmt.Errorf("post: %w", NewAlreadyPosted("document", 1)), IsInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.NoError(t, Normalize(nil))

	appErr := NewValidation("bad quantity")
	assert.Same(t, appErr, Normalize(appErr))

	raw := errors.New("connection reset")
	normalized := Normalize(raw)
	got, ok := AsAppError(normalized)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, got.Code)
	assert.ErrorIs(t, normalized, raw)
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(normalized))
}

func TestInsufficientStockDetails(t *testing.T) {
	err := NewInsufficientStock("n", "w", decimal.RequireFromString("50"), decimal.RequireFromString("30"))

	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, "50", err.Details["requested"])
	assert.Equal(t, "30", err.Details["available"])
	assert.Contains(t, err.Error(), CodeInsufficientStock)
}
