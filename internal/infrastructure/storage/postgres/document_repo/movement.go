package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain"
	"tsdstock/internal/domain/documents/movement"
	"tsdstock/internal/infrastructure/storage/postgres"
)

const (
	documentsTable     = "doc_documents"
	documentItemsTable = "doc_document_items"
)

var documentItemColumns = postgres.ExtractDBColumns[movement.Item]()

// DocumentRepo implements movement.Repository.
type DocumentRepo struct {
	*BaseDocumentRepo[*movement.Document]
}

// NewDocumentRepo creates a new movement document repository.
func NewDocumentRepo(txm *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"document",
			documentsTable,
			postgres.ExtractDBColumns[movement.Document](),
			[]string{"document_date DESC", "number DESC"},
			func() *movement.Document { return &movement.Document{} },
		),
	}
}

var _ movement.Repository = (*DocumentRepo)(nil)

// Create implements movement.Repository.
func (r *DocumentRepo) Create(ctx context.Context, doc *movement.Document) error {
	return r.create(ctx, doc)
}

// GetByID implements movement.Repository.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*movement.Document, error) {
	return r.getByID(ctx, docID)
}

// GetForUpdate implements movement.Repository.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*movement.Document, error) {
	return r.getForUpdate(ctx, docID)
}

// Update implements movement.Repository.
func (r *DocumentRepo) Update(ctx context.Context, doc *movement.Document) error {
	version, updatedAt, err := r.update(ctx, doc, doc.ID, doc.Version)
	if err != nil {
		return err
	}
	doc.Version = version
	doc.UpdatedAt = updatedAt
	return nil
}

// List implements movement.Repository.
func (r *DocumentRepo) List(ctx context.Context, filter movement.ListFilter) (domain.ListResult[*movement.Document], error) {
	return r.list(ctx, r.listQuery(filter), filter.ListFilter)
}

func (r *DocumentRepo) listQuery(filter movement.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"document_type": *filter.Type})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"warehouse_id": *filter.WarehouseID},
			squirrel.Eq{"destination_warehouse_id": *filter.WarehouseID},
		})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DeviceID != "" {
		q = q.Where(squirrel.Eq{"device_id": filter.DeviceID})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"document_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"document_date": *filter.DateTo})
	}
	return q
}

// GetItems implements movement.Repository. Items are ordered by line number.
func (r *DocumentRepo) GetItems(ctx context.Context, docID id.ID) ([]movement.Item, error) {
	sql, args, err := r.Builder().
		Select(documentItemColumns...).
		From(documentItemsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]movement.Item, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("get document items: %w", err)
	}
	return items, nil
}

// GetItem implements movement.Repository.
func (r *DocumentRepo) GetItem(ctx context.Context, itemID id.ID) (movement.Item, error) {
	sql, args, err := r.Builder().
		Select(documentItemColumns...).
		From(documentItemsTable).
		Where(squirrel.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return movement.Item{}, fmt.Errorf("build query: %w", err)
	}

	var item movement.Item
	if err := pgxscan.Get(ctx, r.querier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return movement.Item{}, apperror.NewNotFound("document item", itemID)
		}
		return movement.Item{}, fmt.Errorf("get document item: %w", err)
	}
	return item, nil
}

// CreateItem implements movement.Repository.
func (r *DocumentRepo) CreateItem(ctx context.Context, item *movement.Item) error {
	sql, args, err := r.Builder().
		Insert(documentItemsTable).
		SetMap(postgres.StructToMap(item)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.ForeignKeyViolation(err) {
			return apperror.NewNotFound("document", item.DocumentID)
		}
		return fmt.Errorf("insert document item: %w", err)
	}
	return nil
}

// UpdateItem implements movement.Repository.
func (r *DocumentRepo) UpdateItem(ctx context.Context, item *movement.Item) error {
	data := postgres.Pick(postgres.StructToMap(item), documentItemColumns, "id", "document_id")
	sql, args, err := r.Builder().
		Update(documentItemsTable).
		SetMap(data).
		Where(squirrel.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update document item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("document item", item.ID)
	}
	return nil
}

// DeleteItem implements movement.Repository.
func (r *DocumentRepo) DeleteItem(ctx context.Context, itemID id.ID) error {
	return deleteItem(ctx, r.querier(ctx), documentItemsTable, "document item", itemID)
}

func deleteItem(ctx context.Context, q postgres.Querier, table, entityName string, itemID id.ID) error {
	sql, args, err := postgres.Builder().
		Delete(table).
		Where(squirrel.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entityName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(entityName, itemID)
	}
	return nil
}
