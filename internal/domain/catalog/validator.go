// Package catalog defines the reference-data checks the ledger depends on.
// Nomenclature, units, warehouses and categories are owned elsewhere; the
// ledger only asks whether they exist.
package catalog

import (
	"context"
	"fmt"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
)

// Kind names a reference entity type.
type Kind string

const (
	KindNomenclature Kind = "nomenclature"
	KindUnit         Kind = "unit"
	KindWarehouse    Kind = "warehouse"
	KindCategory     Kind = "category"
)

// Validator answers existence questions about reference data.
// Inactive entities are reported as absent.
type Validator interface {
	Exists(ctx context.Context, kind Kind, refID id.ID) (bool, error)
	// BaseUnit returns the unit a nomenclature is stocked in.
	BaseUnit(ctx context.Context, nomenclatureID id.ID) (id.ID, error)
}

// Require returns NotFound when the referenced entity does not exist.
func Require(ctx context.Context, v Validator, kind Kind, refID id.ID) error {
	if id.IsNil(refID) {
		return apperror.NewValidation(fmt.Sprintf("%s is required", kind)).WithDetail("field", string(kind))
	}
	ok, err := v.Exists(ctx, kind, refID)
	if err != nil {
		return fmt.Errorf("check %s: %w", kind, err)
	}
	if !ok {
		return apperror.NewNotFound(string(kind), refID)
	}
	return nil
}

// Ref is a (kind, id) pair to validate.
type Ref struct {
	Kind Kind
	ID   id.ID
}

// RequireAll validates refs in order and stops at the first failure.
func RequireAll(ctx context.Context, v Validator, refs ...Ref) error {
	for _, r := range refs {
		if err := Require(ctx, v, r.Kind, r.ID); err != nil {
			return err
		}
	}
	return nil
}
