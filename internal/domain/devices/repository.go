package devices

import (
	"context"

	"tsdstock/internal/domain"
)

// Repository persists devices.
type Repository interface {
	// Create inserts a device. A taken device id or prefix yields DUPLICATE_ENTRY.
	Create(ctx context.Context, d *Device) error
	GetByDeviceID(ctx context.Context, deviceID string) (*Device, error)
	Update(ctx context.Context, d *Device) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Device], error)
	Prefixes(ctx context.Context) ([]string, error)

	// IncrementCounter atomically advances the counter of an active device
	// and returns the device as updated. It returns NOT_FOUND when no active
	// device matches.
	IncrementCounter(ctx context.Context, deviceID string) (*Device, error)
}

// ListFilter for listing devices.
type ListFilter struct {
	domain.ListFilter

	ActiveOnly bool
}
