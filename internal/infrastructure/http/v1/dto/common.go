// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain"
)

// --- Pagination ---

// ListRequest contains paging parameters shared by list endpoints.
type ListRequest struct {
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
	OrderBy string `form:"orderBy"`
}

// ToListFilter converts paging parameters to a domain filter.
func (r ListRequest) ToListFilter() domain.ListFilter {
	return domain.ListFilter{
		Limit:   r.Limit,
		Offset:  r.Offset,
		OrderBy: r.OrderBy,
	}.Normalize()
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- ID parsing ---

// ParseID parses a required id field.
func ParseID(field, value string) (id.ID, error) {
	v, err := id.Parse(strings.TrimSpace(value))
	if err != nil || id.IsNil(v) {
		return id.Nil(), apperror.NewValidation("invalid id format").WithDetail("field", field)
	}
	return v, nil
}

// ParseOptionalID parses an optional id field. Nil and blank values give nil.
func ParseOptionalID(field string, value *string) (*id.ID, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	v, err := ParseID(field, *value)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
