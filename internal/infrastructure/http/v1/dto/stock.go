package dto

import (
	"time"

	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain/registers/stock"
)

// --- Request DTOs ---

// ListStockRequest holds the query of GET /stock and GET /stock/summary.
type ListStockRequest struct {
	ListRequest
	WarehouseID    *string `form:"warehouseId"`
	NomenclatureID *string `form:"nomenclatureId"`
	ExcludeZero    bool    `form:"excludeZero"`
}

// ToFilter converts the query to a domain filter.
func (r *ListStockRequest) ToFilter() (stock.LineFilter, error) {
	f := stock.LineFilter{ListFilter: r.ToListFilter(), ExcludeZero: r.ExcludeZero}
	var err error
	if f.WarehouseID, err = ParseOptionalID("warehouseId", r.WarehouseID); err != nil {
		return f, err
	}
	if f.NomenclatureID, err = ParseOptionalID("nomenclatureId", r.NomenclatureID); err != nil {
		return f, err
	}
	return f, nil
}

// ListMovementsRequest holds the query of GET /stock/movements.
type ListMovementsRequest struct {
	ListRequest
	WarehouseID    *string    `form:"warehouseId"`
	NomenclatureID *string    `form:"nomenclatureId"`
	MovementType   string     `form:"movementType"`
	FromDate       *time.Time `form:"fromDate"`
	ToDate         *time.Time `form:"toDate"`
}

// ToFilter converts the query to a domain filter.
func (r *ListMovementsRequest) ToFilter() (stock.MovementFilter, error) {
	f := stock.MovementFilter{ListFilter: r.ToListFilter(), FromDate: r.FromDate, ToDate: r.ToDate}
	var err error
	if f.WarehouseID, err = ParseOptionalID("warehouseId", r.WarehouseID); err != nil {
		return f, err
	}
	if f.NomenclatureID, err = ParseOptionalID("nomenclatureId", r.NomenclatureID); err != nil {
		return f, err
	}
	if r.MovementType != "" {
		t := entity.MovementType(r.MovementType)
		f.MovementType = &t
	}
	return f, nil
}

// ReservationRequest reserves or releases an amount of one stock line.
type ReservationRequest struct {
	NomenclatureID string         `json:"nomenclatureId" binding:"required"`
	WarehouseID    string         `json:"warehouseId" binding:"required"`
	Quantity       types.Quantity `json:"quantity"`
}

// Key parses the stock line key.
func (r *ReservationRequest) Key() (entity.StockKey, error) {
	nomID, err := ParseID("nomenclatureId", r.NomenclatureID)
	if err != nil {
		return entity.StockKey{}, err
	}
	whID, err := ParseID("warehouseId", r.WarehouseID)
	if err != nil {
		return entity.StockKey{}, err
	}
	return entity.StockKey{NomenclatureID: nomID, WarehouseID: whID}, nil
}
