package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"tsdstock/internal/core/id"
	"tsdstock/internal/core/types"
)

// MovementType is the kind of a journal entry. For every type except
// Inventory the stored quantity is positive and the type gives the direction.
type MovementType string

const (
	MovementReceipt     MovementType = "receipt"
	MovementExpense     MovementType = "expense"
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
	// MovementInventory carries a signed quantity (the applied difference).
	MovementInventory MovementType = "inventory"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementReceipt, MovementExpense, MovementTransferIn, MovementTransferOut, MovementInventory:
		return true
	}
	return false
}

// Inverse returns the type that undoes t.
func (t MovementType) Inverse() MovementType {
	switch t {
	case MovementReceipt:
		return MovementExpense
	case MovementExpense:
		return MovementReceipt
	case MovementTransferIn:
		return MovementTransferOut
	case MovementTransferOut:
		return MovementTransferIn
	}
	return t
}

// StockKey identifies one ledger line.
type StockKey struct {
	NomenclatureID id.ID `db:"nomenclature_id" json:"nomenclatureId"`
	WarehouseID    id.ID `db:"warehouse_id" json:"warehouseId"`
}

// Compare orders keys by nomenclature, then warehouse.
func (k StockKey) Compare(other StockKey) int {
	if c := id.Compare(k.NomenclatureID, other.NomenclatureID); c != 0 {
		return c
	}
	return id.Compare(k.WarehouseID, other.WarehouseID)
}

// StockLine is the ledger row for one (nomenclature, warehouse) pair.
type StockLine struct {
	StockKey
	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	ReservedQuantity types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// NewStockLine returns an empty line for key.
func NewStockLine(key StockKey) StockLine {
	return StockLine{StockKey: key, Quantity: decimal.Zero, ReservedQuantity: decimal.Zero}
}

// Available is quantity not held by reservations.
func (l StockLine) Available() types.Quantity {
	return l.Quantity.Sub(l.ReservedQuantity)
}

// Reference points a movement at the entity that produced it.
// At most one of DocumentID and InventoryID is set.
type Reference struct {
	DocumentID  *id.ID `db:"document_id" json:"documentId,omitempty"`
	InventoryID *id.ID `db:"inventory_id" json:"inventoryId,omitempty"`
}

// DocumentRef references a movement document.
func DocumentRef(docID id.ID) Reference {
	return Reference{DocumentID: &docID}
}

// InventoryRef references an inventory count.
func InventoryRef(invID id.ID) Reference {
	return Reference{InventoryID: &invID}
}

// IsZero reports whether the reference points nowhere (manual adjustment).
func (r Reference) IsZero() bool {
	return r.DocumentID == nil && r.InventoryID == nil
}

// StockMovement is an immutable journal entry.
type StockMovement struct {
	ID id.ID `db:"id" json:"id"`
	StockKey
	MovementType MovementType   `db:"movement_type" json:"movementType"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	Reference
	Date        time.Time `db:"movement_date" json:"date"`
	UserID      string    `db:"user_id" json:"userId"`
	Description string    `db:"description" json:"description,omitempty"`
	// Seq is the append order assigned by the journal.
	Seq       int64     `db:"seq" json:"seq"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedDelta is the change this entry applies to the ledger quantity.
func (m StockMovement) SignedDelta() types.Quantity {
	switch m.MovementType {
	case MovementExpense, MovementTransferOut:
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Reversal builds the entry that undoes m, keeping its reference.
func (m StockMovement) Reversal(userID string, at time.Time) StockMovement {
	qty := m.Quantity
	if m.MovementType == MovementInventory {
		qty = qty.Neg()
	}
	return StockMovement{
		ID:           id.New(),
		StockKey:     m.StockKey,
		MovementType: m.MovementType.Inverse(),
		Quantity:     qty,
		Reference:    m.Reference,
		Date:         at,
		UserID:       userID,
		Description:  "reversal",
		CreatedAt:    at,
	}
}
