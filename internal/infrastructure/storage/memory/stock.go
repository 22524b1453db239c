package memory

import (
	"context"
	"slices"

	"tsdstock/internal/core/entity"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/registers/stock"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	store *Store
}

// NewStockRepo creates a stock repository over store.
func NewStockRepo(store *Store) *StockRepo {
	return &StockRepo{store: store}
}

var _ stock.Repository = (*StockRepo)(nil)

func stockScope(k entity.StockKey) string {
	return "stock:" + k.NomenclatureID.String() + ":" + k.WarehouseID.String()
}

// Acquire implements stock.Repository. Absent lines are created at zero.
func (r *StockRepo) Acquire(ctx context.Context, keys ...entity.StockKey) error {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = stockScope(k)
	}
	if err := r.store.lock(ctx, names...); err != nil {
		return err
	}

	return r.store.write(ctx, func() (func(), error) {
		var created []entity.StockKey
		for _, k := range keys {
			if _, ok := r.store.lines[k]; !ok {
				line := entity.NewStockLine(k)
				line.UpdatedAt = entity.StampNow()
				r.store.lines[k] = line
				created = append(created, k)
			}
		}
		if len(created) == 0 {
			return nil, nil
		}
		return func() {
			for _, k := range created {
				delete(r.store.lines, k)
			}
		}, nil
	})
}

// GetLine implements stock.Repository.
func (r *StockRepo) GetLine(ctx context.Context, key entity.StockKey) (entity.StockLine, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	line, ok := r.store.lines[key]
	return line, ok, nil
}

// SaveLine implements stock.Repository.
func (r *StockRepo) SaveLine(ctx context.Context, line entity.StockLine) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, existed := r.store.lines[line.StockKey]
		r.store.lines[line.StockKey] = line
		return func() {
			if existed {
				r.store.lines[line.StockKey] = prev
			} else {
				delete(r.store.lines, line.StockKey)
			}
		}, nil
	})
}

// ListLines implements stock.Repository. Lines are ordered by key.
func (r *StockRepo) ListLines(ctx context.Context, filter stock.LineFilter) (domain.ListResult[entity.StockLine], error) {
	r.store.mu.RLock()
	all := make([]entity.StockLine, 0, len(r.store.lines))
	for _, l := range r.store.lines {
		if filter.WarehouseID != nil && l.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.NomenclatureID != nil && l.NomenclatureID != *filter.NomenclatureID {
			continue
		}
		if filter.ExcludeZero && l.Quantity.IsZero() {
			continue
		}
		all = append(all, l)
	}
	r.store.mu.RUnlock()

	slices.SortFunc(all, func(a, b entity.StockLine) int { return a.StockKey.Compare(b.StockKey) })
	return domain.Page(all, filter.ListFilter), nil
}

// AppendMovement implements stock.Repository.
func (r *StockRepo) AppendMovement(ctx context.Context, m *entity.StockMovement) error {
	return r.store.write(ctx, func() (func(), error) {
		r.store.seq++
		m.Seq = r.store.seq
		r.store.movements = append(r.store.movements, *m)
		seq := m.Seq
		return func() {
			r.store.movements = slices.DeleteFunc(r.store.movements, func(x entity.StockMovement) bool {
				return x.Seq == seq
			})
		}, nil
	})
}

// ListMovementsFor implements stock.Repository.
func (r *StockRepo) ListMovementsFor(ctx context.Context, ref entity.Reference) ([]entity.StockMovement, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]entity.StockMovement, 0)
	for _, m := range r.store.movements {
		if sameRef(m.Reference, ref) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListMovements implements stock.Repository. Entries are ordered newest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) (domain.ListResult[entity.StockMovement], error) {
	r.store.mu.RLock()
	all := make([]entity.StockMovement, 0)
	for i := len(r.store.movements) - 1; i >= 0; i-- {
		m := r.store.movements[i]
		if filter.WarehouseID != nil && m.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.NomenclatureID != nil && m.NomenclatureID != *filter.NomenclatureID {
			continue
		}
		if filter.MovementType != nil && m.MovementType != *filter.MovementType {
			continue
		}
		if filter.FromDate != nil && m.Date.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && m.Date.After(*filter.ToDate) {
			continue
		}
		all = append(all, m)
	}
	r.store.mu.RUnlock()

	return domain.Page(all, filter.ListFilter), nil
}

func sameRef(a, b entity.Reference) bool {
	switch {
	case b.DocumentID != nil:
		return a.DocumentID != nil && *a.DocumentID == *b.DocumentID
	case b.InventoryID != nil:
		return a.InventoryID != nil && *a.InventoryID == *b.InventoryID
	}
	return a.IsZero()
}
