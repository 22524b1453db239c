package movement

import (
	"context"
	"time"

	"tsdstock/internal/core/id"
	"tsdstock/internal/domain"
)

// Repository defines operations for movement documents.
type Repository interface {
	// Create inserts the header. A taken number yields a DUPLICATE_ENTRY error.
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, docID id.ID) (*Document, error)
	// Update writes the header when the stored version equals doc.Version
	// and advances doc.Version and doc.UpdatedAt to the stored values.
	Update(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, docID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error)

	// Item operations
	GetItems(ctx context.Context, docID id.ID) ([]Item, error)
	GetItem(ctx context.Context, itemID id.ID) (Item, error)
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, itemID id.ID) error

	// Locking
	GetForUpdate(ctx context.Context, docID id.ID) (*Document, error)
}

// ListFilter for filtering documents.
type ListFilter struct {
	domain.ListFilter

	Type        *Type
	WarehouseID *id.ID
	Status      *Status
	DeviceID    string
	DateFrom    *time.Time
	DateTo      *time.Time
}
