package handlers

import (
	"github.com/gin-gonic/gin"

	"tsdstock/internal/domain/documents/inventory"
	"tsdstock/internal/infrastructure/http/v1/dto"
)

// InventoryHandler handles HTTP requests for inventory counts.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /inventories
func (h *InventoryHandler) List(c *gin.Context) {
	var req dto.ListInventoriesRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /inventories
func (h *InventoryHandler) Create(c *gin.Context) {
	var req dto.CreateInventoryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), inv); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, inv)
}

// Get handles GET /inventories/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.Get(c.Request.Context(), invID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// Update handles PUT /inventories/:id
func (h *InventoryHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateInventoryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.service.Get(ctx, invID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.ApplyTo(inv); err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.Update(ctx, inv)
	if err != nil {
		h.Error(c, err)
		return
	}
	updated.Items = inv.Items
	h.OK(c, updated)
}

// Delete handles DELETE /inventories/:id
func (h *InventoryHandler) Delete(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), invID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Complete handles POST /inventories/:id/complete
func (h *InventoryHandler) Complete(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.Complete(c.Request.Context(), invID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// Cancel handles POST /inventories/:id/cancel
func (h *InventoryHandler) Cancel(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.Cancel(c.Request.Context(), invID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// Fill handles POST /inventories/:id/fill
func (h *InventoryHandler) Fill(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	added, err := h.service.FillFromStock(c.Request.Context(), invID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if added == nil {
		added = []inventory.Item{}
	}
	h.OK(c, dto.FillResponse{Added: added, Count: len(added)})
}

// Comparison handles GET /inventories/:id/comparison
func (h *InventoryHandler) Comparison(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	cmp, err := h.service.Comparison(c.Request.Context(), invID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cmp)
}

// AddItem handles POST /inventories/:id/items
func (h *InventoryHandler) AddItem(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.InventoryItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	nomID, err := dto.ParseID("nomenclatureId", req.NomenclatureID)
	if err != nil {
		h.Error(c, err)
		return
	}
	unitID, err := dto.ParseID("unitId", req.UnitID)
	if err != nil {
		h.Error(c, err)
		return
	}

	item, err := h.service.AddItem(c.Request.Context(), invID, nomID, unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, item)
}

// UpdateItem handles PUT /inventories/:id/items/:itemId
func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.PathID(c, "itemId")
	if !ok {
		return
	}
	var req dto.UpdateInventoryItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	unitID, err := dto.ParseID("unitId", req.UnitID)
	if err != nil {
		h.Error(c, err)
		return
	}

	item, err := h.service.UpdateItem(c.Request.Context(), invID, itemID, unitID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// RemoveItem handles DELETE /inventories/:id/items/:itemId
func (h *InventoryHandler) RemoveItem(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.PathID(c, "itemId")
	if !ok {
		return
	}

	if err := h.service.RemoveItem(c.Request.Context(), invID, itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Count handles PUT /inventories/:id/items/:itemId/count
func (h *InventoryHandler) Count(c *gin.Context) {
	invID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.PathID(c, "itemId")
	if !ok {
		return
	}
	var req dto.CountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.CountItem(c.Request.Context(), invID, itemID, req.ActualQuantity, req.CountedBy)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}
