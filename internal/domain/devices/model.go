// Package devices registers TSD handhelds and issues their document numbers.
package devices

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
)

// PrefixBase starts every device prefix. Prefixes are PrefixBase followed
// by a zero-padded three digit number.
const PrefixBase = "ТСД"

// Device is a registered TSD.
type Device struct {
	ID              id.ID     `db:"id" json:"id"`
	DeviceID        string    `db:"device_id" json:"deviceId"`
	DeviceName      string    `db:"device_name" json:"deviceName"`
	DeviceModel     string    `db:"device_model" json:"deviceModel"`
	AndroidVersion  string    `db:"android_version" json:"androidVersion"`
	AppVersion      string    `db:"app_version" json:"appVersion"`
	Prefix          string    `db:"prefix" json:"prefix"`
	IsActive        bool      `db:"is_active" json:"isActive"`
	DocumentCounter int64     `db:"document_counter" json:"documentCounter"`
	LastSeen        time.Time `db:"last_seen" json:"lastSeen"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Info is what a device reports about itself.
type Info struct {
	DeviceID       string `json:"deviceId"`
	DeviceName     string `json:"deviceName"`
	DeviceModel    string `json:"deviceModel"`
	AndroidVersion string `json:"androidVersion"`
	AppVersion     string `json:"appVersion"`
}

// Validate checks the reported info.
func (i Info) Validate() error {
	if strings.TrimSpace(i.DeviceID) == "" {
		return apperror.NewValidation("device id is required").WithDetail("field", "deviceId")
	}
	return nil
}

// NewDevice creates an active device with a zero counter.
func NewDevice(info Info, prefix string) *Device {
	now := time.Now().UTC().Truncate(time.Microsecond)
	d := &Device{
		ID:        id.New(),
		Prefix:    prefix,
		IsActive:  true,
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.Apply(info)
	return d
}

// Apply copies the descriptive fields of info.
func (d *Device) Apply(info Info) {
	d.DeviceID = strings.TrimSpace(info.DeviceID)
	d.DeviceName = info.DeviceName
	d.DeviceModel = info.DeviceModel
	d.AndroidVersion = info.AndroidVersion
	d.AppVersion = info.AppVersion
}

// FormatPrefix renders the prefix for number n.
func FormatPrefix(n int) string {
	return fmt.Sprintf("%s%03d", PrefixBase, n)
}

// NextFreePrefix returns the lowest-numbered prefix not in used.
// Prefixes that do not follow the PrefixBase format are ignored.
func NextFreePrefix(used []string) string {
	taken := make(map[int]struct{}, len(used))
	for _, p := range used {
		rest, ok := strings.CutPrefix(p, PrefixBase)
		if !ok || len(rest) != 3 {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil {
			taken[n] = struct{}{}
		}
	}
	n := 1
	for {
		if _, ok := taken[n]; !ok {
			return FormatPrefix(n)
		}
		n++
	}
}
