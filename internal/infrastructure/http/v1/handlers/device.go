package handlers

import (
	"github.com/gin-gonic/gin"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/domain/devices"
	"tsdstock/internal/infrastructure/http/v1/dto"
)

// DeviceHandler handles TSD registration and numbering.
type DeviceHandler struct {
	*BaseHandler
	service *devices.Service
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(base *BaseHandler, service *devices.Service) *DeviceHandler {
	return &DeviceHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Register handles POST /devices/register
func (h *DeviceHandler) Register(c *gin.Context) {
	var req dto.DeviceInfoRequest
	if !h.BindJSON(c, &req) {
		return
	}

	device, err := h.service.Register(c.Request.Context(), req.ToInfo())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, device)
}

// List handles GET /devices
func (h *DeviceHandler) List(c *gin.Context) {
	var req dto.ListDevicesRequest
	if !h.BindQuery(c, &req) {
		return
	}

	result, err := h.service.List(c.Request.Context(), devices.ListFilter{
		ListFilter: req.ToListFilter(),
		ActiveOnly: req.ActiveOnly,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /devices/:deviceId
func (h *DeviceHandler) Get(c *gin.Context) {
	device, err := h.service.Get(c.Request.Context(), c.Param("deviceId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, device)
}

// Update handles PUT /devices/:deviceId
func (h *DeviceHandler) Update(c *gin.Context) {
	var req dto.DeviceInfoRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.DeviceID != c.Param("deviceId") {
		h.Error(c, apperror.NewValidation("device id does not match the path").WithDetail("field", "deviceId"))
		return
	}

	device, err := h.service.Update(c.Request.Context(), req.ToInfo())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, device)
}

// SetActive handles PATCH /devices/:deviceId/active
func (h *DeviceHandler) SetActive(c *gin.Context) {
	var req dto.SetActiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	device, err := h.service.SetActive(c.Request.Context(), c.Param("deviceId"), *req.IsActive)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, device)
}

// NextDocumentNumber handles POST /devices/next-document-number
func (h *DeviceHandler) NextDocumentNumber(c *gin.Context) {
	var req dto.NextNumberRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.service.NextDocumentNumber(c.Request.Context(), req.DeviceID, req.DocumentType)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, n)
}
