package stock

import (
	"context"
	"fmt"
	"slices"

	"tsdstock/internal/core/apperror"
	appctx "tsdstock/internal/core/context"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/tx"
	"tsdstock/internal/core/types"
	"tsdstock/internal/domain"
	"tsdstock/pkg/logger"
)

// Service is the ledger store. Every quantity change goes through Record,
// which applies the delta and appends the journal entry in one transaction.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new ledger service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// SortKeys returns keys deduplicated and in lock order.
func SortKeys(keys []entity.StockKey) []entity.StockKey {
	out := slices.Clone(keys)
	slices.SortFunc(out, func(a, b entity.StockKey) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b entity.StockKey) bool { return a == b })
}

// Lock acquires exclusive scopes on keys for the current transaction.
// Multi-key operations must lock everything up front so that two
// transactions never wait on each other in opposite order.
func (s *Service) Lock(ctx context.Context, keys ...entity.StockKey) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.repo.Acquire(ctx, SortKeys(keys)...); err != nil {
		return fmt.Errorf("acquire stock lines: %w", err)
	}
	return nil
}

// Record applies m to the ledger and appends it to the journal.
// It returns the updated line, or InsufficientStock when the line would drop
// below zero or below its reserved quantity.
func (s *Service) Record(ctx context.Context, m entity.StockMovement) (entity.StockLine, error) {
	if err := validateMovement(m); err != nil {
		return entity.StockLine{}, err
	}
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = entity.StampNow()
	}
	if m.Date.IsZero() {
		m.Date = m.CreatedAt
	}

	var line entity.StockLine
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Acquire(ctx, m.StockKey); err != nil {
			return fmt.Errorf("acquire stock line: %w", err)
		}
		updated, err := s.applyDelta(ctx, m.StockKey, m.SignedDelta())
		if err != nil {
			return err
		}
		if err := s.repo.AppendMovement(ctx, &m); err != nil {
			return fmt.Errorf("append movement: %w", err)
		}
		line = updated
		return nil
	})
	if err != nil {
		return entity.StockLine{}, err
	}
	return line, nil
}

// applyDelta changes the quantity of a locked line, creating it at zero if absent.
func (s *Service) applyDelta(ctx context.Context, key entity.StockKey, delta types.Quantity) (entity.StockLine, error) {
	line, err := s.Current(ctx, key)
	if err != nil {
		return line, err
	}

	next := line.Quantity.Add(delta)
	if next.LessThan(line.ReservedQuantity) {
		return line, apperror.NewInsufficientStock(key.NomenclatureID, key.WarehouseID, delta.Neg(), line.Available())
	}

	line.Quantity = types.NormalizeQuantity(next)
	line.UpdatedAt = entity.StampNow()
	if err := s.repo.SaveLine(ctx, line); err != nil {
		return line, fmt.Errorf("save stock line: %w", err)
	}
	return line, nil
}

// Current returns the line for key, or a zero line when it does not exist yet.
func (s *Service) Current(ctx context.Context, key entity.StockKey) (entity.StockLine, error) {
	line, ok, err := s.repo.GetLine(ctx, key)
	if err != nil {
		return line, fmt.Errorf("get stock line: %w", err)
	}
	if !ok {
		return entity.NewStockLine(key), nil
	}
	return line, nil
}

// Adjust records a manual Inventory-type movement that references no document.
func (s *Service) Adjust(ctx context.Context, key entity.StockKey, delta types.Quantity, description string) (entity.StockLine, error) {
	if delta.IsZero() {
		return entity.StockLine{}, apperror.NewValidation("adjustment must be non-zero")
	}
	line, err := s.Record(ctx, entity.StockMovement{
		StockKey:     key,
		MovementType: entity.MovementInventory,
		Quantity:     delta,
		UserID:       appctx.GetUserID(ctx),
		Description:  description,
	})
	if err != nil {
		return line, apperror.Normalize(err)
	}
	logger.Info(ctx, "stock adjusted",
		"nomenclature_id", key.NomenclatureID,
		"warehouse_id", key.WarehouseID,
		"delta", delta.String(),
	)
	return line, nil
}

// Reserve holds amount of the available quantity.
func (s *Service) Reserve(ctx context.Context, key entity.StockKey, amount types.Quantity) (entity.StockLine, error) {
	if !amount.IsPositive() {
		return entity.StockLine{}, apperror.NewValidation("reserve amount must be positive").WithDetail("field", "quantity")
	}
	return s.mutateReserved(ctx, key, func(line *entity.StockLine) error {
		if line.Available().LessThan(amount) {
			return apperror.NewInsufficientStock(key.NomenclatureID, key.WarehouseID, amount, line.Available())
		}
		line.ReservedQuantity = line.ReservedQuantity.Add(amount)
		return nil
	})
}

// Release returns amount of reserved quantity to available.
func (s *Service) Release(ctx context.Context, key entity.StockKey, amount types.Quantity) (entity.StockLine, error) {
	if !amount.IsPositive() {
		return entity.StockLine{}, apperror.NewValidation("release amount must be positive").WithDetail("field", "quantity")
	}
	return s.mutateReserved(ctx, key, func(line *entity.StockLine) error {
		if line.ReservedQuantity.LessThan(amount) {
			return apperror.NewValidation("release exceeds reserved quantity").
				WithDetail("reserved", line.ReservedQuantity.String()).
				WithDetail("requested", amount.String())
		}
		line.ReservedQuantity = line.ReservedQuantity.Sub(amount)
		return nil
	})
}

func (s *Service) mutateReserved(ctx context.Context, key entity.StockKey, mutate func(*entity.StockLine) error) (entity.StockLine, error) {
	var line entity.StockLine
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Acquire(ctx, key); err != nil {
			return fmt.Errorf("acquire stock line: %w", err)
		}
		current, err := s.Current(ctx, key)
		if err != nil {
			return err
		}
		if err := mutate(&current); err != nil {
			return err
		}
		current.UpdatedAt = entity.StampNow()
		if err := s.repo.SaveLine(ctx, current); err != nil {
			return fmt.Errorf("save stock line: %w", err)
		}
		line = current
		return nil
	})
	if err != nil {
		return entity.StockLine{}, apperror.Normalize(err)
	}
	return line, nil
}

// Get returns the line for key, or NotFound when no movement ever touched it.
func (s *Service) Get(ctx context.Context, key entity.StockKey) (entity.StockLine, error) {
	line, ok, err := s.repo.GetLine(ctx, key)
	if err != nil {
		return line, apperror.NewInternal(err)
	}
	if !ok {
		return line, apperror.NewNotFound("stock line", map[string]string{
			"nomenclature_id": key.NomenclatureID.String(),
			"warehouse_id":    key.WarehouseID.String(),
		})
	}
	return line, nil
}

// Quantity returns the current book quantity, zero when the line is absent.
func (s *Service) Quantity(ctx context.Context, key entity.StockKey) (types.Quantity, error) {
	line, err := s.Current(ctx, key)
	if err != nil {
		return types.ZeroQuantity(), err
	}
	return line.Quantity, nil
}

// List returns stock lines.
func (s *Service) List(ctx context.Context, filter LineFilter) (domain.ListResult[entity.StockLine], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	res, err := s.repo.ListLines(ctx, filter)
	if err != nil {
		return res, apperror.NewInternal(err)
	}
	return res, nil
}

// WarehouseLines returns every non-zero line of a warehouse.
func (s *Service) WarehouseLines(ctx context.Context, warehouseID id.ID) ([]entity.StockLine, error) {
	var out []entity.StockLine
	filter := LineFilter{WarehouseID: &warehouseID, ExcludeZero: true}
	filter.Limit = domain.MaxLimit
	for {
		page, err := s.repo.ListLines(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list warehouse lines: %w", err)
		}
		out = append(out, page.Items...)
		filter.Offset += len(page.Items)
		if len(page.Items) == 0 || int64(filter.Offset) >= page.TotalCount {
			return out, nil
		}
	}
}

// Summary returns lines with available quantities and their totals.
func (s *Service) Summary(ctx context.Context, filter LineFilter) (Summary, error) {
	res, err := s.List(ctx, filter)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Lines:          make([]SummaryLine, 0, len(res.Items)),
		TotalQuantity:  types.ZeroQuantity(),
		TotalReserved:  types.ZeroQuantity(),
		TotalAvailable: types.ZeroQuantity(),
	}
	for _, l := range res.Items {
		sum.Lines = append(sum.Lines, SummaryLine{StockLine: l, AvailableQuantity: l.Available()})
		sum.TotalQuantity = sum.TotalQuantity.Add(l.Quantity)
		sum.TotalReserved = sum.TotalReserved.Add(l.ReservedQuantity)
		sum.TotalAvailable = sum.TotalAvailable.Add(l.Available())
	}
	return sum, nil
}

// MovementsFor returns the journal entries of a document or inventory.
func (s *Service) MovementsFor(ctx context.Context, ref entity.Reference) ([]entity.StockMovement, error) {
	ms, err := s.repo.ListMovementsFor(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return ms, nil
}

// Movements returns journal entries by filter.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) (domain.ListResult[entity.StockMovement], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	res, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return res, apperror.NewInternal(err)
	}
	return res, nil
}

func validateMovement(m entity.StockMovement) error {
	if !m.MovementType.Valid() {
		return apperror.NewValidation("unknown movement type").WithDetail("movement_type", string(m.MovementType))
	}
	if id.IsNil(m.NomenclatureID) || id.IsNil(m.WarehouseID) {
		return apperror.NewValidation("movement requires nomenclature and warehouse")
	}
	if m.DocumentID != nil && m.InventoryID != nil {
		return apperror.NewValidation("movement may reference a document or an inventory, not both")
	}
	if m.MovementType == entity.MovementInventory {
		if m.Quantity.IsZero() {
			return apperror.NewValidation("inventory movement must be non-zero")
		}
		return nil
	}
	if !m.Quantity.IsPositive() {
		return apperror.NewValidation("movement quantity must be positive").WithDetail("quantity", m.Quantity.String())
	}
	return nil
}
