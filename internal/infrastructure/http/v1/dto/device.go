package dto

import (
	"tsdstock/internal/domain/devices"
)

// DeviceInfoRequest is what a TSD reports on register and update.
type DeviceInfoRequest struct {
	DeviceID       string `json:"deviceId" binding:"required"`
	DeviceName     string `json:"deviceName,omitempty"`
	DeviceModel    string `json:"deviceModel,omitempty"`
	AndroidVersion string `json:"androidVersion,omitempty"`
	AppVersion     string `json:"appVersion,omitempty"`
}

// ToInfo converts to domain info.
func (r *DeviceInfoRequest) ToInfo() devices.Info {
	return devices.Info{
		DeviceID:       r.DeviceID,
		DeviceName:     r.DeviceName,
		DeviceModel:    r.DeviceModel,
		AndroidVersion: r.AndroidVersion,
		AppVersion:     r.AppVersion,
	}
}

// SetActiveRequest enables or disables a device.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// NextNumberRequest asks for the next document number of a device.
type NextNumberRequest struct {
	DeviceID     string `json:"deviceId" binding:"required"`
	DocumentType string `json:"documentType" binding:"required"`
}

// ListDevicesRequest holds the query of GET /devices.
type ListDevicesRequest struct {
	ListRequest
	ActiveOnly bool `form:"activeOnly"`
}
