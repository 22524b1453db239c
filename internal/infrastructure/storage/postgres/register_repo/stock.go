// Package register_repo provides the PostgreSQL stock ledger and movement journal.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/entity"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/registers/stock"
	"tsdstock/internal/infrastructure/storage/postgres"
)

const (
	stockLinesTable     = "reg_stock_lines"
	stockMovementsTable = "reg_stock_movements"
)

var (
	lineColumns     = []string{"nomenclature_id", "warehouse_id", "quantity", "reserved_quantity", "updated_at"}
	movementColumns = []string{
		"seq", "id", "nomenclature_id", "warehouse_id", "movement_type", "quantity",
		"document_id", "inventory_id", "movement_date", "user_id", "description", "created_at",
	}
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{txm: txm, builder: postgres.Builder()}
}

var _ stock.Repository = (*StockRepo)(nil)

// Acquire implements stock.Repository. Missing lines are inserted at zero,
// then all lines are locked with SELECT ... FOR UPDATE in key order.
func (r *StockRepo) Acquire(ctx context.Context, keys ...entity.StockKey) error {
	if len(keys) == 0 {
		return nil
	}
	if r.txm.GetTx(ctx) == nil {
		return fmt.Errorf("acquire stock lines requires transaction context")
	}

	inserts := make([]postgres.BatchQuery, 0, len(keys))
	for _, k := range keys {
		inserts = append(inserts, postgres.BatchQuery{
			SQL: `INSERT INTO ` + stockLinesTable + ` (nomenclature_id, warehouse_id, quantity, reserved_quantity, updated_at)
				VALUES ($1, $2, 0, 0, NOW())
				ON CONFLICT (nomenclature_id, warehouse_id) DO NOTHING`,
			Args: []any{k.NomenclatureID, k.WarehouseID},
		})
	}
	if err := postgres.ExecuteBatch(ctx, r.txm, inserts); err != nil {
		return fmt.Errorf("ensure stock lines: %w", err)
	}

	sql, args, err := r.lockQuery(keys).ToSql()
	if err != nil {
		return fmt.Errorf("build lock: %w", err)
	}
	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("lock stock lines: %w", err)
	}
	rows.Close()
	return rows.Err()
}

func (r *StockRepo) lockQuery(keys []entity.StockKey) squirrel.SelectBuilder {
	match := make(squirrel.Or, 0, len(keys))
	for _, k := range keys {
		match = append(match, squirrel.And{
			squirrel.Eq{"nomenclature_id": k.NomenclatureID},
			squirrel.Eq{"warehouse_id": k.WarehouseID},
		})
	}
	return r.builder.
		Select("nomenclature_id", "warehouse_id").
		From(stockLinesTable).
		Where(match).
		OrderBy("nomenclature_id", "warehouse_id").
		Suffix("FOR UPDATE")
}

// GetLine implements stock.Repository.
func (r *StockRepo) GetLine(ctx context.Context, key entity.StockKey) (entity.StockLine, bool, error) {
	sql, args, err := r.builder.
		Select(lineColumns...).
		From(stockLinesTable).
		Where(squirrel.Eq{"nomenclature_id": key.NomenclatureID, "warehouse_id": key.WarehouseID}).
		ToSql()
	if err != nil {
		return entity.StockLine{}, false, fmt.Errorf("build query: %w", err)
	}

	var line entity.StockLine
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.StockLine{}, false, nil
		}
		return entity.StockLine{}, false, fmt.Errorf("get stock line: %w", err)
	}
	return line, true, nil
}

// SaveLine implements stock.Repository.
func (r *StockRepo) SaveLine(ctx context.Context, line entity.StockLine) error {
	sql, args, err := r.builder.
		Insert(stockLinesTable).
		Columns(lineColumns...).
		Values(line.NomenclatureID, line.WarehouseID, line.Quantity, line.ReservedQuantity, line.UpdatedAt).
		Suffix(`ON CONFLICT (nomenclature_id, warehouse_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved_quantity = EXCLUDED.reserved_quantity,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if constraint, ok := postgres.CheckViolation(err); ok {
			return apperror.NewValidation("stock line constraint violated").
				WithDetail("constraint", constraint).
				WithCause(err)
		}
		return fmt.Errorf("save stock line: %w", err)
	}
	return nil
}

// ListLines implements stock.Repository. Lines are ordered by key.
func (r *StockRepo) ListLines(ctx context.Context, filter stock.LineFilter) (domain.ListResult[entity.StockLine], error) {
	f := filter.ListFilter.Normalize()
	result := domain.ListResult[entity.StockLine]{Items: []entity.StockLine{}, Limit: f.Limit, Offset: f.Offset}

	q := r.builder.Select(lineColumns...).From(stockLinesTable)
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.NomenclatureID != nil {
		q = q.Where(squirrel.Eq{"nomenclature_id": *filter.NomenclatureID})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}

	querier := r.txm.GetQuerier(ctx)
	total, err := postgres.Count(ctx, querier, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	sql, args, err := q.OrderBy("nomenclature_id", "warehouse_id").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list stock lines: %w", err)
	}
	return result, nil
}

// AppendMovement implements stock.Repository.
func (r *StockRepo) AppendMovement(ctx context.Context, m *entity.StockMovement) error {
	sql, args, err := r.builder.
		Insert(stockMovementsTable).
		Columns(movementColumns[1:]...).
		Values(
			m.ID, m.NomenclatureID, m.WarehouseID, m.MovementType, m.Quantity,
			m.DocumentID, m.InventoryID, m.Date, m.UserID, m.Description, m.CreatedAt,
		).
		Suffix("RETURNING seq").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&m.Seq); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ListMovementsFor implements stock.Repository.
func (r *StockRepo) ListMovementsFor(ctx context.Context, ref entity.Reference) ([]entity.StockMovement, error) {
	q := r.builder.Select(movementColumns...).From(stockMovementsTable)
	switch {
	case ref.DocumentID != nil:
		q = q.Where(squirrel.Eq{"document_id": *ref.DocumentID})
	case ref.InventoryID != nil:
		q = q.Where(squirrel.Eq{"inventory_id": *ref.InventoryID})
	default:
		q = q.Where(squirrel.Eq{"document_id": nil, "inventory_id": nil})
	}

	sql, args, err := q.OrderBy("seq").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]entity.StockMovement, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}

// ListMovements implements stock.Repository. Entries are ordered newest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) (domain.ListResult[entity.StockMovement], error) {
	f := filter.ListFilter.Normalize()
	result := domain.ListResult[entity.StockMovement]{Items: []entity.StockMovement{}, Limit: f.Limit, Offset: f.Offset}

	q := r.movementsQuery(filter)
	querier := r.txm.GetQuerier(ctx)
	total, err := postgres.Count(ctx, querier, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	sql, args, err := q.OrderBy("seq DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}
	return result, nil
}

func (r *StockRepo) movementsQuery(filter stock.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).From(stockMovementsTable)
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.NomenclatureID != nil {
		q = q.Where(squirrel.Eq{"nomenclature_id": *filter.NomenclatureID})
	}
	if filter.MovementType != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.MovementType})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"movement_date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"movement_date": *filter.ToDate})
	}
	return q
}
