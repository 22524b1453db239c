// Package stock provides the ledger store and the movement journal.
package stock

import (
	"context"
	"time"

	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain"
)

// Repository persists stock lines and journal entries.
//
// Acquire is the exclusive-scope half of the ledger transaction: it must be
// called inside a transaction and holds the keys until commit or rollback.
// Implementations create absent lines at zero and lock keys in the order
// given; callers pass them sorted (see SortKeys).
type Repository interface {
	Acquire(ctx context.Context, keys ...entity.StockKey) error

	// GetLine returns the line and whether it exists.
	GetLine(ctx context.Context, key entity.StockKey) (entity.StockLine, bool, error)
	SaveLine(ctx context.Context, line entity.StockLine) error
	ListLines(ctx context.Context, filter LineFilter) (domain.ListResult[entity.StockLine], error)

	// AppendMovement writes a journal entry and assigns its Seq.
	AppendMovement(ctx context.Context, m *entity.StockMovement) error
	// ListMovementsFor returns the entries of a document or inventory in append order.
	ListMovementsFor(ctx context.Context, ref entity.Reference) ([]entity.StockMovement, error)
	ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[entity.StockMovement], error)
}

// LineFilter selects stock lines.
type LineFilter struct {
	domain.ListFilter

	WarehouseID    *id.ID
	NomenclatureID *id.ID
	ExcludeZero    bool
}

// MovementFilter selects journal entries.
type MovementFilter struct {
	domain.ListFilter

	WarehouseID    *id.ID
	NomenclatureID *id.ID
	MovementType   *entity.MovementType
	FromDate       *time.Time
	ToDate         *time.Time
}

// Summary aggregates a filtered set of lines.
type Summary struct {
	Lines          []SummaryLine  `json:"lines"`
	TotalQuantity  types.Quantity `json:"totalQuantity"`
	TotalReserved  types.Quantity `json:"totalReserved"`
	TotalAvailable types.Quantity `json:"totalAvailable"`
}

// SummaryLine is a stock line with its derived available quantity.
type SummaryLine struct {
	entity.StockLine
	AvailableQuantity types.Quantity `json:"availableQuantity"`
}
