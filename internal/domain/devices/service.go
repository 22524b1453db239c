package devices

import (
	"context"
	"fmt"
	"time"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/numerator"
	"tsdstock/internal/core/tx"
	"tsdstock/internal/domain"
	"tsdstock/pkg/logger"
)

// registerAttempts bounds retries when two devices race for the same prefix.
const registerAttempts = 5

// Service manages devices and their document counters.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new device service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Register returns the device with info.DeviceID, creating it with the
// first free prefix when it is unknown.
func (s *Service) Register(ctx context.Context, info Info) (*Device, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		existing, err := s.repo.GetByDeviceID(ctx, info.DeviceID)
		if err == nil {
			return existing, nil
		}
		if !apperror.IsNotFound(err) {
			return nil, apperror.Normalize(err)
		}

		var device *Device
		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			used, err := s.repo.Prefixes(ctx)
			if err != nil {
				return fmt.Errorf("list prefixes: %w", err)
			}
			device = NewDevice(info, NextFreePrefix(used))
			return s.repo.Create(ctx, device)
		})
		if err == nil {
			logger.Info(ctx, "device registered",
				"device_id", device.DeviceID,
				"prefix", device.Prefix)
			return device, nil
		}
		if !apperror.HasCode(err, apperror.CodeDuplicate) || attempt >= registerAttempts {
			return nil, apperror.Normalize(err)
		}
		logger.Debug(ctx, "device registration raced, retrying", "device_id", info.DeviceID, "attempt", attempt)
	}
}

// Get returns a device by its hardware id.
func (s *Service) Get(ctx context.Context, deviceID string) (*Device, error) {
	d, err := s.repo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	return d, nil
}

// List returns devices, optionally only active ones.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Device], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	res, err := s.repo.List(ctx, filter)
	if err != nil {
		return res, apperror.Normalize(err)
	}
	return res, nil
}

// Update refreshes the descriptive fields and last_seen of a device.
func (s *Service) Update(ctx context.Context, info Info) (*Device, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return s.modify(ctx, info.DeviceID, func(d *Device) {
		d.Apply(info)
		d.LastSeen = time.Now().UTC().Truncate(time.Microsecond)
	})
}

// SetActive enables or disables a device. Inactive devices cannot draw numbers.
func (s *Service) SetActive(ctx context.Context, deviceID string, active bool) (*Device, error) {
	d, err := s.modify(ctx, deviceID, func(d *Device) {
		d.IsActive = active
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "device activity changed", "device_id", deviceID, "active", active)
	return d, nil
}

func (s *Service) modify(ctx context.Context, deviceID string, fn func(*Device)) (*Device, error) {
	var device *Device
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetByDeviceID(ctx, deviceID)
		if err != nil {
			return err
		}
		fn(d)
		d.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		if err := s.repo.Update(ctx, d); err != nil {
			return err
		}
		device = d
		return nil
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	return device, nil
}

// NextDocumentNumber implements numerator.Generator.
func (s *Service) NextDocumentNumber(ctx context.Context, deviceID, typeTag string) (numerator.Number, error) {
	if typeTag == "" {
		return numerator.Number{}, apperror.NewValidation("document type is required").WithDetail("field", "documentType")
	}

	d, err := s.repo.IncrementCounter(ctx, deviceID)
	if apperror.IsNotFound(err) {
		known, getErr := s.repo.GetByDeviceID(ctx, deviceID)
		if getErr != nil {
			return numerator.Number{}, apperror.Normalize(getErr)
		}
		if !known.IsActive {
			return numerator.Number{}, apperror.NewValidation("device is inactive").WithDetail("deviceId", deviceID)
		}
	}
	if err != nil {
		return numerator.Number{}, apperror.Normalize(err)
	}

	return numerator.Number{
		DocumentNumber: numerator.Format(d.Prefix, typeTag, d.DocumentCounter),
		Counter:        d.DocumentCounter,
	}, nil
}

var _ numerator.Generator = (*Service)(nil)
