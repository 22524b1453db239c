// Package inventory provides inventory counts: a physical recount of a
// warehouse reconciled against the ledger on completion.
package inventory

import (
	"context"
	"time"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/types"
)

// Status represents the status of an inventory.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Inventory represents a count session for one warehouse.
type Inventory struct {
	entity.Header

	Status    Status     `db:"status" json:"status"`
	DateStart time.Time  `db:"date_start" json:"dateStart"`
	DateEnd   *time.Time `db:"date_end" json:"dateEnd,omitempty"`

	// DeviceID is the TSD device that opened the count.
	DeviceID string `db:"device_id" json:"deviceId,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is one counted nomenclature. Planned is the ledger quantity at the
// moment the item was added; Actual stays nil until counted.
type Item struct {
	ID              id.ID           `db:"id" json:"id"`
	InventoryID     id.ID           `db:"inventory_id" json:"inventoryId"`
	NomenclatureID  id.ID           `db:"nomenclature_id" json:"nomenclatureId"`
	UnitID          id.ID           `db:"unit_id" json:"unitId"`
	PlannedQuantity types.Quantity  `db:"planned_quantity" json:"plannedQuantity"`
	ActualQuantity  *types.Quantity `db:"actual_quantity" json:"actualQuantity,omitempty"`
	Difference      *types.Quantity `db:"difference" json:"difference,omitempty"`
	CountedBy       string          `db:"counted_by" json:"countedBy,omitempty"`
	CountedAt       *time.Time      `db:"counted_at" json:"countedAt,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}

// NewInventory creates an inventory in progress.
func NewInventory(number string, warehouseID id.ID) *Inventory {
	return &Inventory{
		Header:    entity.NewHeader(number, warehouseID),
		Status:    StatusInProgress,
		DateStart: entity.StampNow(),
		Items:     make([]Item, 0),
	}
}

// Counted reports whether the item has an actual quantity.
func (it *Item) Counted() bool {
	return it.ActualQuantity != nil
}

// SetCount records the actual quantity and derives the difference.
func (it *Item) SetCount(actual types.Quantity, countedBy string, at time.Time) error {
	if actual.IsNegative() {
		return apperror.NewValidation("actual quantity cannot be negative").
			WithDetail("field", "actualQuantity")
	}
	actual = types.NormalizeQuantity(actual)
	diff := actual.Sub(it.PlannedQuantity)
	it.ActualQuantity = &actual
	it.Difference = &diff
	it.CountedBy = countedBy
	it.CountedAt = &at
	return nil
}

// Validate implements entity.Validatable.
func (inv *Inventory) Validate(ctx context.Context) error {
	if err := inv.Header.Validate(ctx); err != nil {
		return err
	}
	if inv.DateStart.IsZero() {
		return apperror.NewValidation("start date is required").
			WithDetail("field", "dateStart")
	}
	return nil
}

// CanModify reports whether the inventory and its items may change.
func (inv *Inventory) CanModify() error {
	switch inv.Status {
	case StatusInProgress:
		return nil
	case StatusCancelled:
		return apperror.NewAlreadyCancelled("inventory", inv.ID)
	}
	return apperror.NewNotEditable("inventory", string(inv.Status))
}

// CanComplete checks the InProgress → Completed transition against the loaded items.
func (inv *Inventory) CanComplete() error {
	if inv.Status != StatusInProgress {
		if inv.Status == StatusCancelled {
			return apperror.NewAlreadyCancelled("inventory", inv.ID)
		}
		return apperror.NewInvalidTransition("inventory", string(inv.Status), string(StatusCompleted))
	}
	uncounted := 0
	for i := range inv.Items {
		if !inv.Items[i].Counted() {
			uncounted++
		}
	}
	if len(inv.Items) == 0 || uncounted > 0 {
		return apperror.NewIncompleteCount(inv.ID, uncounted)
	}
	return nil
}

// CanCancel checks the InProgress → Cancelled transition.
func (inv *Inventory) CanCancel() error {
	switch inv.Status {
	case StatusInProgress:
		return nil
	case StatusCancelled:
		return apperror.NewAlreadyCancelled("inventory", inv.ID)
	}
	return apperror.NewInvalidTransition("inventory", string(inv.Status), string(StatusCancelled))
}

// MarkCompleted moves the inventory to Completed and stamps DateEnd.
func (inv *Inventory) MarkCompleted(at time.Time) {
	inv.Status = StatusCompleted
	inv.DateEnd = &at
}

// MarkCancelled moves the inventory to Cancelled.
func (inv *Inventory) MarkCancelled() {
	inv.Status = StatusCancelled
}

// Keys returns the ledger keys of items with a non-zero difference.
func (inv *Inventory) Keys() []entity.StockKey {
	keys := make([]entity.StockKey, 0, len(inv.Items))
	for _, it := range inv.Items {
		if it.Difference != nil && !it.Difference.IsZero() {
			keys = append(keys, entity.StockKey{NomenclatureID: it.NomenclatureID, WarehouseID: inv.WarehouseID})
		}
	}
	return keys
}

// Comparison contains planned versus actual quantities of an inventory.
type Comparison struct {
	InventoryID   id.ID            `json:"inventoryId"`
	WarehouseID   id.ID            `json:"warehouseId"`
	Status        Status           `json:"status"`
	Items         []ComparisonItem `json:"items"`
	TotalPlanned  types.Quantity   `json:"totalPlanned"`
	TotalActual   types.Quantity   `json:"totalActual"`
	TotalSurplus  types.Quantity   `json:"totalSurplus"`
	TotalShortage types.Quantity   `json:"totalShortage"`
	Uncounted     int              `json:"uncounted"`
}

// ComparisonItem is one line of a Comparison.
type ComparisonItem struct {
	ItemID          id.ID           `json:"itemId"`
	NomenclatureID  id.ID           `json:"nomenclatureId"`
	PlannedQuantity types.Quantity  `json:"plannedQuantity"`
	ActualQuantity  *types.Quantity `json:"actualQuantity,omitempty"`
	Difference      *types.Quantity `json:"difference,omitempty"`
	Counted         bool            `json:"counted"`
}

// Compare builds the comparison of the loaded items.
func (inv *Inventory) Compare() Comparison {
	c := Comparison{
		InventoryID:   inv.ID,
		WarehouseID:   inv.WarehouseID,
		Status:        inv.Status,
		Items:         make([]ComparisonItem, 0, len(inv.Items)),
		TotalPlanned:  types.ZeroQuantity(),
		TotalActual:   types.ZeroQuantity(),
		TotalSurplus:  types.ZeroQuantity(),
		TotalShortage: types.ZeroQuantity(),
	}

	for _, it := range inv.Items {
		c.Items = append(c.Items, ComparisonItem{
			ItemID:          it.ID,
			NomenclatureID:  it.NomenclatureID,
			PlannedQuantity: it.PlannedQuantity,
			ActualQuantity:  it.ActualQuantity,
			Difference:      it.Difference,
			Counted:         it.Counted(),
		})
		c.TotalPlanned = c.TotalPlanned.Add(it.PlannedQuantity)
		if !it.Counted() {
			c.Uncounted++
			continue
		}
		c.TotalActual = c.TotalActual.Add(*it.ActualQuantity)
		switch {
		case it.Difference.IsPositive():
			c.TotalSurplus = c.TotalSurplus.Add(*it.Difference)
		case it.Difference.IsNegative():
			c.TotalShortage = c.TotalShortage.Add(it.Difference.Neg())
		}
	}
	return c
}

var _ entity.Validatable = (*Inventory)(nil)
