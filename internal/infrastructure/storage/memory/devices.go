package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/devices"
)

// DeviceRepo implements devices.Repository.
type DeviceRepo struct {
	store *Store
}

// NewDeviceRepo creates a device repository over store.
func NewDeviceRepo(store *Store) *DeviceRepo {
	return &DeviceRepo{store: store}
}

var _ devices.Repository = (*DeviceRepo)(nil)

// Create implements devices.Repository.
func (r *DeviceRepo) Create(ctx context.Context, d *devices.Device) error {
	return r.store.write(ctx, func() (func(), error) {
		if _, ok := r.store.devices[d.DeviceID]; ok {
			return nil, apperror.NewDuplicate("device", "device_id", d.DeviceID)
		}
		for _, x := range r.store.devices {
			if x.Prefix == d.Prefix {
				return nil, apperror.NewDuplicate("device", "prefix", d.Prefix)
			}
		}
		r.store.devices[d.DeviceID] = *d
		key := d.DeviceID
		return func() { delete(r.store.devices, key) }, nil
	})
}

// GetByDeviceID implements devices.Repository.
func (r *DeviceRepo) GetByDeviceID(ctx context.Context, deviceID string) (*devices.Device, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.devices[deviceID]
	if !ok {
		return nil, apperror.NewNotFound("device", deviceID)
	}
	return &d, nil
}

// Update implements devices.Repository. The counter is owned by IncrementCounter.
func (r *DeviceRepo) Update(ctx context.Context, d *devices.Device) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.devices[d.DeviceID]
		if !ok {
			return nil, apperror.NewNotFound("device", d.DeviceID)
		}
		next := *d
		next.DocumentCounter = prev.DocumentCounter
		r.store.devices[d.DeviceID] = next
		return func() { r.store.devices[prev.DeviceID] = prev }, nil
	})
}

// List implements devices.Repository. Devices are ordered by prefix.
func (r *DeviceRepo) List(ctx context.Context, filter devices.ListFilter) (domain.ListResult[*devices.Device], error) {
	r.store.mu.RLock()
	all := make([]*devices.Device, 0, len(r.store.devices))
	for _, d := range r.store.devices {
		if filter.ActiveOnly && !d.IsActive {
			continue
		}
		all = append(all, &d)
	}
	r.store.mu.RUnlock()

	slices.SortFunc(all, func(a, b *devices.Device) int { return cmp.Compare(a.Prefix, b.Prefix) })
	return domain.Page(all, filter.ListFilter), nil
}

// Prefixes implements devices.Repository.
func (r *DeviceRepo) Prefixes(ctx context.Context) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]string, 0, len(r.store.devices))
	for _, d := range r.store.devices {
		out = append(out, d.Prefix)
	}
	return out, nil
}

// IncrementCounter implements devices.Repository.
func (r *DeviceRepo) IncrementCounter(ctx context.Context, deviceID string) (*devices.Device, error) {
	var out devices.Device
	err := r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.devices[deviceID]
		if !ok || !prev.IsActive {
			return nil, apperror.NewNotFound("device", deviceID)
		}
		next := prev
		next.DocumentCounter++
		next.LastSeen = time.Now().UTC().Truncate(time.Microsecond)
		r.store.devices[deviceID] = next
		out = next
		return func() { r.store.devices[deviceID] = prev }, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
