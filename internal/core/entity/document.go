package entity

import (
	"context"
	"strings"
	"time"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
)

// Header holds the fields shared by movement documents and inventory counts.
type Header struct {
	BaseEntity

	// Number is the human-readable number, unique within its kind.
	Number string `db:"number" json:"number"`

	// WarehouseID is the warehouse the document operates on.
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Description string `db:"description" json:"description,omitempty"`
}

// NewHeader creates a header with generated ID.
func NewHeader(number string, warehouseID id.ID) Header {
	return Header{
		BaseEntity:  NewBaseEntity(),
		Number:      strings.TrimSpace(number),
		WarehouseID: warehouseID,
	}
}

// Validate implements Validatable.
func (h *Header) Validate(ctx context.Context) error {
	if strings.TrimSpace(h.Number) == "" {
		return apperror.NewValidation("number is required").WithDetail("field", "number")
	}
	if id.IsNil(h.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	return nil
}

// StampNow returns the current UTC time, truncated to microseconds so that
// values survive a PostgreSQL round trip unchanged.
func StampNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
