package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /stock
func (h *StockHandler) List(c *gin.Context) {
	var req dto.ListStockRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	out := domain.ListResult[stock.SummaryLine]{
		Items:      make([]stock.SummaryLine, len(res.Items)),
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	}
	for i, l := range res.Items {
		out.Items[i] = stock.SummaryLine{StockLine: l, AvailableQuantity: l.Available()}
	}
	h.OK(c, out)
}

// Summary handles GET /stock/summary
func (h *StockHandler) Summary(c *gin.Context) {
	var req dto.ListStockRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	sum, err := h.service.Summary(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sum)
}

// Get handles GET /stock/:nomenclatureId/:warehouseId
func (h *StockHandler) Get(c *gin.Context) {
	nomID, ok := h.PathID(c, "nomenclatureId")
	if !ok {
		return
	}
	whID, ok := h.PathID(c, "warehouseId")
	if !ok {
		return
	}

	line, err := h.service.Get(c.Request.Context(), entity.StockKey{NomenclatureID: nomID, WarehouseID: whID})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, stock.SummaryLine{StockLine: line, AvailableQuantity: line.Available()})
}

// Reserve handles POST /stock/reserve
func (h *StockHandler) Reserve(c *gin.Context) {
	h.reservation(c, h.service.Reserve)
}

// Release handles POST /stock/release
func (h *StockHandler) Release(c *gin.Context) {
	h.reservation(c, h.service.Release)
}

func (h *StockHandler) reservation(c *gin.Context, apply func(ctx context.Context, key entity.StockKey, amount types.Quantity) (entity.StockLine, error)) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	key, err := req.Key()
	if err != nil {
		h.Error(c, err)
		return
	}

	line, err := apply(c.Request.Context(), key, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, stock.SummaryLine{StockLine: line, AvailableQuantity: line.Available()})
}

// Movements handles GET /stock/movements
func (h *StockHandler) Movements(c *gin.Context) {
	var req dto.ListMovementsRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Movements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}
