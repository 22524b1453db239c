package inventory

import (
	"context"
	"time"

	"tsdstock/internal/core/id"
	"tsdstock/internal/domain"
)

// Repository defines operations for inventories.
type Repository interface {
	// Create inserts the header. A taken number yields a DUPLICATE_ENTRY error.
	Create(ctx context.Context, inv *Inventory) error
	GetByID(ctx context.Context, invID id.ID) (*Inventory, error)
	// Update writes the header when the stored version equals inv.Version
	// and advances inv.Version and inv.UpdatedAt to the stored values.
	Update(ctx context.Context, inv *Inventory) error
	Delete(ctx context.Context, invID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Inventory], error)

	// Item operations. CreateItem rejects a second item for the same nomenclature.
	GetItems(ctx context.Context, invID id.ID) ([]Item, error)
	GetItem(ctx context.Context, itemID id.ID) (Item, error)
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, itemID id.ID) error

	// Locking
	GetForUpdate(ctx context.Context, invID id.ID) (*Inventory, error)
}

// ListFilter for filtering inventories.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *id.ID
	Status      *Status
	DateFrom    *time.Time
	DateTo      *time.Time
}
