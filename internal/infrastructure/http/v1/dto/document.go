package dto

import (
	"time"

	"tsdstock/internal/core/types"
	"tsdstock/internal/domain/documents/movement"
)

// --- Request DTOs ---

// DocumentItemRequest is one line in create requests and item endpoints.
type DocumentItemRequest struct {
	NomenclatureID string         `json:"nomenclatureId" binding:"required"`
	UnitID         string         `json:"unitId" binding:"required"`
	Quantity       types.Quantity `json:"quantity"`
	Price          *types.Money   `json:"price,omitempty"`
	Total          *types.Money   `json:"total,omitempty"`
	Description    string         `json:"description,omitempty"`
}

// ToItem converts the line to a domain item.
func (r *DocumentItemRequest) ToItem() (movement.Item, error) {
	nomID, err := ParseID("nomenclatureId", r.NomenclatureID)
	if err != nil {
		return movement.Item{}, err
	}
	unitID, err := ParseID("unitId", r.UnitID)
	if err != nil {
		return movement.Item{}, err
	}
	it := movement.NewItem(nomID, unitID, r.Quantity, r.Price)
	if r.Total != nil {
		it.Total = r.Total
	}
	it.Description = r.Description
	return it, nil
}

// CreateDocumentRequest creates a draft. An empty number is drawn from the
// device counter when deviceId is set.
type CreateDocumentRequest struct {
	DocumentType           string                `json:"documentType" binding:"required"`
	Number                 string                `json:"number,omitempty"`
	Date                   *time.Time            `json:"date,omitempty"`
	WarehouseID            string                `json:"warehouseId" binding:"required"`
	DestinationWarehouseID *string               `json:"destinationWarehouseId,omitempty"`
	DeviceID               string                `json:"deviceId,omitempty"`
	Description            string                `json:"description,omitempty"`
	Items                  []DocumentItemRequest `json:"items" binding:"omitempty,dive"`
}

// ToEntity converts request to domain entity.
func (r *CreateDocumentRequest) ToEntity() (*movement.Document, error) {
	warehouseID, err := ParseID("warehouseId", r.WarehouseID)
	if err != nil {
		return nil, err
	}
	destID, err := ParseOptionalID("destinationWarehouseId", r.DestinationWarehouseID)
	if err != nil {
		return nil, err
	}

	doc := movement.NewDocument(movement.Type(r.DocumentType), r.Number, warehouseID)
	doc.DestinationWarehouseID = destID
	doc.DeviceID = r.DeviceID
	doc.Description = r.Description
	if r.Date != nil {
		doc.Date = r.Date.UTC()
	}

	for i := range r.Items {
		it, err := r.Items[i].ToItem()
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, it)
	}
	return doc, nil
}

// UpdateDocumentRequest edits the header of a draft. Version, when set,
// must match the stored document.
type UpdateDocumentRequest struct {
	Number                 *string    `json:"number,omitempty"`
	Date                   *time.Time `json:"date,omitempty"`
	WarehouseID            *string    `json:"warehouseId,omitempty"`
	DestinationWarehouseID *string    `json:"destinationWarehouseId,omitempty"`
	Description            *string    `json:"description,omitempty"`
	Version                int        `json:"version" binding:"omitempty,min=1"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateDocumentRequest) ApplyTo(doc *movement.Document) error {
	if r.Number != nil {
		doc.Number = *r.Number
	}
	if r.Date != nil {
		doc.Date = r.Date.UTC()
	}
	if r.WarehouseID != nil {
		warehouseID, err := ParseID("warehouseId", *r.WarehouseID)
		if err != nil {
			return err
		}
		doc.WarehouseID = warehouseID
	}
	if r.DestinationWarehouseID != nil {
		destID, err := ParseOptionalID("destinationWarehouseId", r.DestinationWarehouseID)
		if err != nil {
			return err
		}
		doc.DestinationWarehouseID = destID
	}
	if r.Description != nil {
		doc.Description = *r.Description
	}
	doc.Version = r.Version
	return nil
}

// ListDocumentsRequest holds the query of GET /documents.
type ListDocumentsRequest struct {
	ListRequest
	DocumentType string     `form:"documentType"`
	WarehouseID  *string    `form:"warehouseId"`
	Status       string     `form:"status"`
	DeviceID     string     `form:"deviceId"`
	DateFrom     *time.Time `form:"dateFrom"`
	DateTo       *time.Time `form:"dateTo"`
}

// ToFilter converts the query to a domain filter.
func (r *ListDocumentsRequest) ToFilter() (movement.ListFilter, error) {
	f := movement.ListFilter{
		ListFilter: r.ToListFilter(),
		DeviceID:   r.DeviceID,
		DateFrom:   r.DateFrom,
		DateTo:     r.DateTo,
	}
	warehouseID, err := ParseOptionalID("warehouseId", r.WarehouseID)
	if err != nil {
		return f, err
	}
	f.WarehouseID = warehouseID
	if r.DocumentType != "" {
		t := movement.Type(r.DocumentType)
		f.Type = &t
	}
	if r.Status != "" {
		s := movement.Status(r.Status)
		f.Status = &s
	}
	return f, nil
}
