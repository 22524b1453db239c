// Package device_repo provides the PostgreSQL device registry.
package device_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/devices"
	"tsdstock/internal/infrastructure/storage/postgres"
)

const devicesTable = "sys_devices"

var deviceColumns = postgres.ExtractDBColumns[devices.Device]()

// DeviceRepo implements devices.Repository.
type DeviceRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewDeviceRepo creates a new device repository.
func NewDeviceRepo(txm *postgres.TxManager) *DeviceRepo {
	return &DeviceRepo{txm: txm, builder: postgres.Builder()}
}

var _ devices.Repository = (*DeviceRepo)(nil)

// Create implements devices.Repository.
func (r *DeviceRepo) Create(ctx context.Context, d *devices.Device) error {
	sql, args, err := r.builder.
		Insert(devicesTable).
		SetMap(postgres.StructToMap(d)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			if strings.Contains(constraint, "prefix") {
				return apperror.NewDuplicate("device", "prefix", d.Prefix)
			}
			return apperror.NewDuplicate("device", "device_id", d.DeviceID)
		}
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// GetByDeviceID implements devices.Repository.
func (r *DeviceRepo) GetByDeviceID(ctx context.Context, deviceID string) (*devices.Device, error) {
	sql, args, err := r.builder.
		Select(deviceColumns...).
		From(devicesTable).
		Where(squirrel.Eq{"device_id": deviceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var d devices.Device
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("device", deviceID)
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &d, nil
}

// Update implements devices.Repository. The document counter is never
// written here; only IncrementCounter moves it.
func (r *DeviceRepo) Update(ctx context.Context, d *devices.Device) error {
	data := postgres.Pick(postgres.StructToMap(d), deviceColumns,
		"id", "device_id", "prefix", "document_counter", "created_at")
	sql, args, err := r.builder.
		Update(devicesTable).
		SetMap(data).
		Where(squirrel.Eq{"device_id": d.DeviceID}).
		Suffix("RETURNING document_counter").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&d.DocumentCounter); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound("device", d.DeviceID)
		}
		return fmt.Errorf("update device: %w", err)
	}
	return nil
}

// List implements devices.Repository. Devices are ordered by prefix.
func (r *DeviceRepo) List(ctx context.Context, filter devices.ListFilter) (domain.ListResult[*devices.Device], error) {
	f := filter.ListFilter.Normalize()
	result := domain.ListResult[*devices.Device]{Items: []*devices.Device{}, Limit: f.Limit, Offset: f.Offset}

	q := r.builder.Select(deviceColumns...).From(devicesTable)
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	querier := r.txm.GetQuerier(ctx)
	total, err := postgres.Count(ctx, querier, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	sql, args, err := q.OrderBy("prefix").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list devices: %w", err)
	}
	return result, nil
}

// Prefixes implements devices.Repository.
func (r *DeviceRepo) Prefixes(ctx context.Context) ([]string, error) {
	var prefixes []string
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &prefixes,
		`SELECT prefix FROM `+devicesTable+` ORDER BY prefix`); err != nil {
		return nil, fmt.Errorf("list prefixes: %w", err)
	}
	return prefixes, nil
}

// IncrementCounter implements devices.Repository. A single UPDATE ...
// RETURNING makes the increment atomic without an explicit transaction.
func (r *DeviceRepo) IncrementCounter(ctx context.Context, deviceID string) (*devices.Device, error) {
	sql, args, err := r.incrementQuery(deviceID, time.Now().UTC()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var d devices.Device
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("device", deviceID)
		}
		return nil, fmt.Errorf("increment document counter: %w", err)
	}
	return &d, nil
}

func (r *DeviceRepo) incrementQuery(deviceID string, now time.Time) squirrel.UpdateBuilder {
	return r.builder.
		Update(devicesTable).
		Set("document_counter", squirrel.Expr("document_counter + 1")).
		Set("last_seen", now).
		Set("updated_at", now).
		Where(squirrel.Eq{"device_id": deviceID, "is_active": true}).
		Suffix("RETURNING " + strings.Join(deviceColumns, ", "))
}
