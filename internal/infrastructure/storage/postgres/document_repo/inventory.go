package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/documents/inventory"
	"tsdstock/internal/infrastructure/storage/postgres"
)

const (
	inventoriesTable    = "doc_inventories"
	inventoryItemsTable = "doc_inventory_items"
)

var inventoryItemColumns = postgres.ExtractDBColumns[inventory.Item]()

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	*BaseDocumentRepo[*inventory.Inventory]
}

// NewInventoryRepo creates a new inventory repository.
func NewInventoryRepo(txm *postgres.TxManager) *InventoryRepo {
	return &InventoryRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"inventory",
			inventoriesTable,
			postgres.ExtractDBColumns[inventory.Inventory](),
			[]string{"date_start DESC", "id DESC"},
			func() *inventory.Inventory { return &inventory.Inventory{} },
		),
	}
}

var _ inventory.Repository = (*InventoryRepo)(nil)

// Create implements inventory.Repository.
func (r *InventoryRepo) Create(ctx context.Context, inv *inventory.Inventory) error {
	return r.create(ctx, inv)
}

// GetByID implements inventory.Repository.
func (r *InventoryRepo) GetByID(ctx context.Context, invID id.ID) (*inventory.Inventory, error) {
	return r.getByID(ctx, invID)
}

// GetForUpdate implements inventory.Repository.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, invID id.ID) (*inventory.Inventory, error) {
	return r.getForUpdate(ctx, invID)
}

// Update implements inventory.Repository.
func (r *InventoryRepo) Update(ctx context.Context, inv *inventory.Inventory) error {
	version, updatedAt, err := r.update(ctx, inv, inv.ID, inv.Version)
	if err != nil {
		return err
	}
	inv.Version = version
	inv.UpdatedAt = updatedAt
	return nil
}

// List implements inventory.Repository.
func (r *InventoryRepo) List(ctx context.Context, filter inventory.ListFilter) (domain.ListResult[*inventory.Inventory], error) {
	q := r.baseSelect()
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date_start": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date_start": *filter.DateTo})
	}
	return r.list(ctx, q, filter.ListFilter)
}

// GetItems implements inventory.Repository. Items are ordered by creation.
func (r *InventoryRepo) GetItems(ctx context.Context, invID id.ID) ([]inventory.Item, error) {
	sql, args, err := r.Builder().
		Select(inventoryItemColumns...).
		From(inventoryItemsTable).
		Where(squirrel.Eq{"inventory_id": invID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]inventory.Item, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get inventory items: %w", err)
	}
	return items, nil
}

// GetItem implements inventory.Repository.
func (r *InventoryRepo) GetItem(ctx context.Context, itemID id.ID) (inventory.Item, error) {
	sql, args, err := r.Builder().
		Select(inventoryItemColumns...).
		From(inventoryItemsTable).
		Where(squirrel.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return inventory.Item{}, fmt.Errorf("build query: %w", err)
	}

	var item inventory.Item
	if err := pgxscan.Get(ctx, r.querier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return inventory.Item{}, apperror.NewNotFound("inventory item", itemID)
		}
		return inventory.Item{}, fmt.Errorf("get inventory item: %w", err)
	}
	return item, nil
}

// CreateItem implements inventory.Repository.
func (r *InventoryRepo) CreateItem(ctx context.Context, item *inventory.Item) error {
	sql, args, err := r.Builder().
		Insert(inventoryItemsTable).
		SetMap(postgres.StructToMap(item)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return apperror.NewDuplicate("inventory item", "nomenclature_id", item.NomenclatureID.String()).WithCause(err)
		}
		if postgres.ForeignKeyViolation(err) {
			return apperror.NewNotFound("inventory", item.InventoryID)
		}
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

// UpdateItem implements inventory.Repository.
func (r *InventoryRepo) UpdateItem(ctx context.Context, item *inventory.Item) error {
	data := postgres.Pick(postgres.StructToMap(item), inventoryItemColumns, "id", "inventory_id", "created_at")
	sql, args, err := r.Builder().
		Update(inventoryItemsTable).
		SetMap(data).
		Where(squirrel.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("inventory item", item.ID)
	}
	return nil
}

// DeleteItem implements inventory.Repository.
func (r *InventoryRepo) DeleteItem(ctx context.Context, itemID id.ID) error {
	return deleteItem(ctx, r.querier(ctx), inventoryItemsTable, "inventory item", itemID)
}
