// Package movement provides goods-movement documents: receipt, expense,
// transfer and inventory adjustment.
package movement

import (
	"context"
	"time"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/types"
)

// Type is the document kind.
type Type string

const (
	TypeReceipt             Type = "receipt"
	TypeExpense             Type = "expense"
	TypeTransfer            Type = "transfer"
	TypeInventoryAdjustment Type = "inventory_adjustment"
)

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	switch t {
	case TypeReceipt, TypeExpense, TypeTransfer, TypeInventoryAdjustment:
		return true
	}
	return false
}

// Tag is the type name used in device-issued document numbers.
func (t Type) Tag() string {
	if t == TypeInventoryAdjustment {
		return "adjustment"
	}
	return string(t)
}

// Status is the document lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPosted    Status = "posted"
	StatusCancelled Status = "cancelled"
)

// Document is a goods-movement document.
type Document struct {
	entity.Header

	Type Type `db:"document_type" json:"documentType"`

	// DestinationWarehouseID is required for transfers and must differ from WarehouseID.
	DestinationWarehouseID *id.ID `db:"destination_warehouse_id" json:"destinationWarehouseId,omitempty"`

	Date   time.Time `db:"document_date" json:"date"`
	Status Status    `db:"status" json:"status"`

	// DeviceID is the TSD device that produced the document.
	DeviceID string `db:"device_id" json:"deviceId,omitempty"`

	PostedAt    *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is a document line.
type Item struct {
	ID             id.ID          `db:"id" json:"id"`
	DocumentID     id.ID          `db:"document_id" json:"documentId"`
	LineNo         int            `db:"line_no" json:"lineNo"`
	NomenclatureID id.ID          `db:"nomenclature_id" json:"nomenclatureId"`
	UnitID         id.ID          `db:"unit_id" json:"unitId"`
	Quantity       types.Quantity `db:"quantity" json:"quantity"`
	Price          *types.Money   `db:"price" json:"price,omitempty"`
	Total          *types.Money   `db:"total" json:"total,omitempty"`
	Description    string         `db:"description" json:"description,omitempty"`
}

// NewDocument creates a draft document.
func NewDocument(docType Type, number string, warehouseID id.ID) *Document {
	return &Document{
		Header: entity.NewHeader(number, warehouseID),
		Type:   docType,
		Date:   entity.StampNow(),
		Status: StatusDraft,
		Items:  make([]Item, 0),
	}
}

// NewItem creates a line. Total defaults to price × quantity.
func NewItem(nomenclatureID, unitID id.ID, qty types.Quantity, price *types.Money) Item {
	it := Item{
		ID:             id.New(),
		NomenclatureID: nomenclatureID,
		UnitID:         unitID,
		Quantity:       types.NormalizeQuantity(qty),
		Price:          price,
	}
	it.Recalculate()
	return it
}

// Recalculate derives Total from Price when no explicit total is set.
func (it *Item) Recalculate() {
	if it.Price != nil && it.Total == nil {
		total := types.LineTotal(*it.Price, it.Quantity)
		it.Total = &total
	}
}

// Validate checks the line without database access.
func (it *Item) Validate() error {
	if id.IsNil(it.NomenclatureID) {
		return apperror.NewValidation("nomenclature is required").WithDetail("field", "nomenclatureId")
	}
	if id.IsNil(it.UnitID) {
		return apperror.NewValidation("unit is required").WithDetail("field", "unitId")
	}
	if !it.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("lineNo", it.LineNo)
	}
	if it.Price != nil && it.Price.IsNegative() {
		return apperror.NewValidation("price cannot be negative").WithDetail("field", "price")
	}
	return nil
}

// Validate implements entity.Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if !d.Type.Valid() {
		return apperror.NewValidation("unknown document type").WithDetail("documentType", string(d.Type))
	}
	if err := d.Header.Validate(ctx); err != nil {
		return err
	}
	if d.Type == TypeTransfer {
		if d.DestinationWarehouseID == nil || id.IsNil(*d.DestinationWarehouseID) {
			return apperror.NewValidation("destination warehouse is required for transfer").
				WithDetail("field", "destinationWarehouseId")
		}
		if *d.DestinationWarehouseID == d.WarehouseID {
			return apperror.NewValidation("destination warehouse must differ from source").
				WithDetail("field", "destinationWarehouseId")
		}
	} else if d.DestinationWarehouseID != nil {
		return apperror.NewValidation("destination warehouse is only allowed for transfer").
			WithDetail("field", "destinationWarehouseId")
	}
	return nil
}

// CanModify reports whether header and items may change.
func (d *Document) CanModify() error {
	switch d.Status {
	case StatusDraft:
		return nil
	case StatusCancelled:
		return apperror.NewAlreadyCancelled("document", d.ID)
	}
	return apperror.NewNotEditable("document", string(d.Status))
}

// CanPost checks the Draft → Posted transition.
func (d *Document) CanPost() error {
	switch d.Status {
	case StatusDraft:
		return nil
	case StatusPosted:
		return apperror.NewAlreadyPosted("document", d.ID)
	}
	return apperror.NewAlreadyCancelled("document", d.ID)
}

// CanCancel checks the transition to Cancelled.
func (d *Document) CanCancel() error {
	if d.Status == StatusCancelled {
		return apperror.NewAlreadyCancelled("document", d.ID)
	}
	return nil
}

// MarkPosted moves the document to Posted.
func (d *Document) MarkPosted(at time.Time) {
	d.Status = StatusPosted
	d.PostedAt = &at
}

// MarkCancelled moves the document to Cancelled.
func (d *Document) MarkCancelled(at time.Time) {
	d.Status = StatusCancelled
	d.CancelledAt = &at
}

// Keys returns every ledger key the items touch.
func (d *Document) Keys() []entity.StockKey {
	keys := make([]entity.StockKey, 0, len(d.Items)*2)
	for _, it := range d.Items {
		keys = append(keys, entity.StockKey{NomenclatureID: it.NomenclatureID, WarehouseID: d.WarehouseID})
		if d.Type == TypeTransfer {
			keys = append(keys, entity.StockKey{NomenclatureID: it.NomenclatureID, WarehouseID: *d.DestinationWarehouseID})
		}
	}
	return keys
}

// Movements builds the journal entries of a receipt, expense or transfer.
// Inventory adjustments depend on current ledger values and are built by the service.
func (d *Document) Movements(userID string, at time.Time) []entity.StockMovement {
	ref := entity.DocumentRef(d.ID)
	out := make([]entity.StockMovement, 0, len(d.Items)*2)
	add := func(mt entity.MovementType, warehouseID id.ID, it Item) {
		out = append(out, entity.StockMovement{
			ID:           id.New(),
			StockKey:     entity.StockKey{NomenclatureID: it.NomenclatureID, WarehouseID: warehouseID},
			MovementType: mt,
			Quantity:     it.Quantity,
			Reference:    ref,
			Date:         d.Date,
			UserID:       userID,
			Description:  it.Description,
			CreatedAt:    at,
		})
	}

	for _, it := range d.Items {
		switch d.Type {
		case TypeReceipt:
			add(entity.MovementReceipt, d.WarehouseID, it)
		case TypeExpense:
			add(entity.MovementExpense, d.WarehouseID, it)
		case TypeTransfer:
			add(entity.MovementTransferOut, d.WarehouseID, it)
			add(entity.MovementTransferIn, *d.DestinationWarehouseID, it)
		}
	}
	return out
}

var _ entity.Validatable = (*Document)(nil)
