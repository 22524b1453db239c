package handlers

import (
	"github.com/gin-gonic/gin"

	"tsdstock/internal/domain/documents/movement"
	"tsdstock/internal/infrastructure/http/v1/dto"
)

// DocumentHandler handles HTTP requests for movement documents.
type DocumentHandler struct {
	*BaseHandler
	service *movement.Service
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *BaseHandler, service *movement.Service) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	var req dto.ListDocumentsRequest
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

// Create handles POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc)
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Update handles PUT /documents/:id
func (h *DocumentHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.Get(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.ApplyTo(doc); err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.Update(ctx, doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	updated.Items = doc.Items
	h.OK(c, updated)
}

// Delete handles DELETE /documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Post handles POST /documents/:id/post
func (h *DocumentHandler) Post(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.Post(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Cancel handles POST /documents/:id/cancel
func (h *DocumentHandler) Cancel(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.Cancel(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Movements handles GET /documents/:id/movements
func (h *DocumentHandler) Movements(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	movements, err := h.service.Movements(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": movements})
}

// AddItem handles POST /documents/:id/items
func (h *DocumentHandler) AddItem(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.DocumentItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := req.ToItem()
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.service.AddItem(c.Request.Context(), docID, item)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created)
}

// UpdateItem handles PUT /documents/:id/items/:itemId
func (h *DocumentHandler) UpdateItem(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.PathID(c, "itemId")
	if !ok {
		return
	}
	var req dto.DocumentItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := req.ToItem()
	if err != nil {
		h.Error(c, err)
		return
	}
	item.ID = itemID

	updated, err := h.service.UpdateItem(c.Request.Context(), docID, item)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// RemoveItem handles DELETE /documents/:id/items/:itemId
func (h *DocumentHandler) RemoveItem(c *gin.Context) {
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.PathID(c, "itemId")
	if !ok {
		return
	}

	if err := h.service.RemoveItem(c.Request.Context(), docID, itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
