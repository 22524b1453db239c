// Package apperror provides structured errors for the ledger engine and its API.
// Every business failure is an *AppError so the HTTP layer can render it uniformly.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"

	// Validation errors (400)
	CodeValidation    = "VALIDATION_ERROR"
	CodeEmptyDocument = "EMPTY_DOCUMENT"

	// State machine violations (409)
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeAlreadyPosted     = "ALREADY_POSTED"
	CodeAlreadyCancelled  = "ALREADY_CANCELLED"

	// Ledger rule violations
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeReversalConflict  = "REVERSAL_CONFLICT"
	CodeIncompleteCount   = "INCOMPLETE_COUNT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (quantities, ids, states)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewEmptyDocument is returned when posting a document without items.
func NewEmptyDocument(documentID any) *AppError {
	return &AppError{
		Code:       CodeEmptyDocument,
		Message:    "cannot post a document without items",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"document_id": documentID},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInvalidTransition reports a state machine violation.
func NewInvalidTransition(entity string, from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "from": from, "to": to},
	}
}

// NewNotEditable reports a modification attempted outside the editable state.
func NewNotEditable(entity string, status string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("%s in status %s cannot be modified", entity, status),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "status": status},
	}
}

// NewAlreadyPosted is the InvalidTransition raised by a repeated post.
func NewAlreadyPosted(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeAlreadyPosted,
		Message:    fmt.Sprintf("%s is already posted", entity),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewAlreadyCancelled is the InvalidTransition raised by any operation on a cancelled entity.
func NewAlreadyCancelled(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeAlreadyCancelled,
		Message:    fmt.Sprintf("%s is already cancelled", entity),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInsufficientStock creates a stock shortage error (422)
func NewInsufficientStock(nomenclatureID, warehouseID any, requested, available fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"nomenclature_id": nomenclatureID,
			"warehouse_id":    warehouseID,
			"requested":       requested.String(),
			"available":       available.String(),
		},
	}
}

// NewReversalConflict is returned when cancelling a posted document would
// drive the ledger below zero because its stock was consumed since posting.
func NewReversalConflict(documentID, nomenclatureID, warehouseID any, required, available fmt.Stringer) *AppError {
	return &AppError{
		Code:       CodeReversalConflict,
		Message:    "cancellation conflicts with current stock",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"document_id":     documentID,
			"nomenclature_id": nomenclatureID,
			"warehouse_id":    warehouseID,
			"required":        required.String(),
			"available":       available.String(),
		},
	}
}

// NewIncompleteCount is returned when completing an inventory with uncounted items.
func NewIncompleteCount(inventoryID any, uncounted int) *AppError {
	return &AppError{
		Code:       CodeIncompleteCount,
		Message:    "not all inventory items are counted",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"inventory_id": inventoryID, "uncounted": uncounted},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "record was modified by another request, refresh and try again",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different user/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Normalize returns err unchanged when it already carries an AppError,
// and wraps anything else as an internal error.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	return NewInternal(err)
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with one of the given codes.
func HasCode(err error, codes ...string) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if appErr.Code == c {
			return true
		}
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsValidation covers malformed input, empty documents and duplicate numbers.
func IsValidation(err error) bool {
	return HasCode(err, CodeValidation, CodeEmptyDocument, CodeDuplicate)
}

// IsInvalidTransition covers every state machine violation.
func IsInvalidTransition(err error) bool {
	return HasCode(err, CodeInvalidTransition, CodeAlreadyPosted, CodeAlreadyCancelled)
}

// IsInsufficientStock checks if error is CodeInsufficientStock
func IsInsufficientStock(err error) bool { return HasCode(err, CodeInsufficientStock) }

// IsReversalConflict checks if error is CodeReversalConflict
func IsReversalConflict(err error) bool { return HasCode(err, CodeReversalConflict) }

// IsIncompleteCount checks if error is CodeIncompleteCount
func IsIncompleteCount(err error) bool { return HasCode(err, CodeIncompleteCount) }

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool { return HasCode(err, CodeConcurrentModification) }
