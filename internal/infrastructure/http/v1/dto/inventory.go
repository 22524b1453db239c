package dto

import (
	"time"

	"tsdstock/internal/core/types"
	"tsdstock/internal/domain/documents/inventory"
)

// --- Request DTOs ---

// CreateInventoryRequest opens an inventory.
type CreateInventoryRequest struct {
	Number      string     `json:"number,omitempty"`
	WarehouseID string     `json:"warehouseId" binding:"required"`
	DateStart   *time.Time `json:"dateStart,omitempty"`
	DeviceID    string     `json:"deviceId,omitempty"`
	Description string     `json:"description,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateInventoryRequest) ToEntity() (*inventory.Inventory, error) {
	warehouseID, err := ParseID("warehouseId", r.WarehouseID)
	if err != nil {
		return nil, err
	}
	inv := inventory.NewInventory(r.Number, warehouseID)
	inv.DeviceID = r.DeviceID
	inv.Description = r.Description
	if r.DateStart != nil {
		inv.DateStart = r.DateStart.UTC()
	}
	return inv, nil
}

// UpdateInventoryRequest edits the header of an inventory in progress.
type UpdateInventoryRequest struct {
	Number      *string    `json:"number,omitempty"`
	WarehouseID *string    `json:"warehouseId,omitempty"`
	DateStart   *time.Time `json:"dateStart,omitempty"`
	Description *string    `json:"description,omitempty"`
	Version     int        `json:"version" binding:"omitempty,min=1"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateInventoryRequest) ApplyTo(inv *inventory.Inventory) error {
	if r.Number != nil {
		inv.Number = *r.Number
	}
	if r.WarehouseID != nil {
		warehouseID, err := ParseID("warehouseId", *r.WarehouseID)
		if err != nil {
			return err
		}
		inv.WarehouseID = warehouseID
	}
	if r.DateStart != nil {
		inv.DateStart = r.DateStart.UTC()
	}
	if r.Description != nil {
		inv.Description = *r.Description
	}
	inv.Version = r.Version
	return nil
}

// InventoryItemRequest adds a nomenclature to the count.
type InventoryItemRequest struct {
	NomenclatureID string `json:"nomenclatureId" binding:"required"`
	UnitID         string `json:"unitId" binding:"required"`
}

// UpdateInventoryItemRequest changes the unit of an item.
type UpdateInventoryItemRequest struct {
	UnitID string `json:"unitId" binding:"required"`
}

// CountRequest records the actual quantity of an item. CountedBy defaults
// to the acting user.
type CountRequest struct {
	ActualQuantity types.Quantity `json:"actualQuantity"`
	CountedBy      string         `json:"countedBy,omitempty"`
}

// ListInventoriesRequest holds the query of GET /inventories.
type ListInventoriesRequest struct {
	ListRequest
	WarehouseID *string    `form:"warehouseId"`
	Status      string     `form:"status"`
	DateFrom    *time.Time `form:"dateFrom"`
	DateTo      *time.Time `form:"dateTo"`
}

// ToFilter converts the query to a domain filter.
func (r *ListInventoriesRequest) ToFilter() (inventory.ListFilter, error) {
	f := inventory.ListFilter{
		ListFilter: r.ToListFilter(),
		DateFrom:   r.DateFrom,
		DateTo:     r.DateTo,
	}
	warehouseID, err := ParseOptionalID("warehouseId", r.WarehouseID)
	if err != nil {
		return f, err
	}
	f.WarehouseID = warehouseID
	if r.Status != "" {
		s := inventory.Status(r.Status)
		f.Status = &s
	}
	return f, nil
}

// --- Response DTOs ---

// FillResponse lists the items added from the ledger.
type FillResponse struct {
	Added []inventory.Item `json:"added"`
	Count int              `json:"count"`
}
