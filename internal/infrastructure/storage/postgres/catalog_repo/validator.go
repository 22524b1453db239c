// Package catalog_repo answers reference-data existence checks against the
// cat_* tables.
package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/catalog"
	"tsdstock/internal/infrastructure/storage/postgres"
)

// Tables maps reference kinds to their tables.
var Tables = map[catalog.Kind]string{
	catalog.KindNomenclature: "cat_nomenclature",
	catalog.KindUnit:         "cat_units",
	catalog.KindWarehouse:    "cat_warehouses",
	catalog.KindCategory:     "cat_categories",
}

// Validator implements catalog.Validator.
type Validator struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewValidator creates a new reference validator.
func NewValidator(txm *postgres.TxManager) *Validator {
	return &Validator{txm: txm, builder: postgres.Builder()}
}

var _ catalog.Validator = (*Validator)(nil)

// Exists implements catalog.Validator. Inactive rows count as absent.
func (v *Validator) Exists(ctx context.Context, kind catalog.Kind, refID id.ID) (bool, error) {
	q, err := v.existsQuery(kind, refID)
	if err != nil {
		return false, err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = v.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", kind, err)
	}
	return true, nil
}

func (v *Validator) existsQuery(kind catalog.Kind, refID id.ID) (squirrel.SelectBuilder, error) {
	table, ok := Tables[kind]
	if !ok {
		return squirrel.SelectBuilder{}, fmt.Errorf("unknown reference kind %q", kind)
	}
	return v.builder.
		Select("1").
		From(table).
		Where(squirrel.Eq{"id": refID, "is_active": true}).
		Limit(1), nil
}

// BaseUnit implements catalog.Validator.
func (v *Validator) BaseUnit(ctx context.Context, nomenclatureID id.ID) (id.ID, error) {
	sql, args, err := v.builder.
		Select("base_unit_id").
		From(Tables[catalog.KindNomenclature]).
		Where(squirrel.Eq{"id": nomenclatureID, "is_active": true}).
		ToSql()
	if err != nil {
		return id.Nil(), fmt.Errorf("build query: %w", err)
	}

	var unitID id.ID
	err = v.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&unitID)
	if errors.Is(err, pgx.ErrNoRows) {
		return id.Nil(), apperror.NewNotFound(string(catalog.KindNomenclature), nomenclatureID)
	}
	if err != nil {
		return id.Nil(), fmt.Errorf("base unit: %w", err)
	}
	return unitID, nil
}
