// Package document_repo provides PostgreSQL repositories for movement
// documents and inventory counts.
package document_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain"
	"tsdstock/internal/infrastructure/storage/postgres"
)

// BaseDocumentRepo provides header CRUD shared by documents and inventories.
type BaseDocumentRepo[T any] struct {
	txm          *postgres.TxManager
	entityName   string
	tableName    string
	selectCols   []string
	defaultOrder []string
	newFn        func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T any](
	txm *postgres.TxManager,
	entityName string,
	tableName string,
	selectCols []string,
	defaultOrder []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txm:          txm,
		entityName:   entityName,
		tableName:    tableName,
		selectCols:   selectCols,
		defaultOrder: defaultOrder,
		newFn:        newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return postgres.Builder()
}

func (r *BaseDocumentRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// create inserts the header columns of entity.
func (r *BaseDocumentRepo[T]) create(ctx context.Context, entity T) error {
	data := postgres.Pick(postgres.StructToMap(entity), r.selectCols)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	sql, args, err := r.Builder().Insert(r.tableName).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return r.mapWriteError(err, data)
	}
	return nil
}

// update writes the mutable header columns when the stored version equals
// version and returns the new version and update time.
func (r *BaseDocumentRepo[T]) update(ctx context.Context, entity T, entityID id.ID, version int) (int, time.Time, error) {
	data := postgres.Pick(postgres.StructToMap(entity), r.selectCols,
		"id", "created_at", "created_by", "version", "updated_at")
	now := time.Now().UTC()

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(data).
		Set("version", version+1).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": entityID, "version": version}).
		ToSql()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, time.Time{}, r.mapWriteError(err, data)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.getByID(ctx, entityID); err != nil {
			return 0, time.Time{}, err
		}
		return 0, time.Time{}, apperror.NewConcurrentModification(r.entityName, entityID)
	}
	return version + 1, now, nil
}

func (r *BaseDocumentRepo[T]) mapWriteError(err error, data map[string]any) error {
	if _, ok := postgres.UniqueViolation(err); ok {
		return apperror.NewDuplicate(r.entityName, "number", fmt.Sprint(data["number"])).WithCause(err)
	}
	return fmt.Errorf("write %s: %w", r.tableName, err)
}

// Delete removes the header; items are removed by ON DELETE CASCADE.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	sql, args, err := r.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID)
	}
	return nil
}

func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

func (r *BaseDocumentRepo[T]) getByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID)
}

func (r *BaseDocumentRepo[T]) getForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	if r.txm.GetTx(ctx) == nil {
		var zero T
		return zero, fmt.Errorf("lock %s requires transaction context", r.entityName)
	}
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID)
}

func (r *BaseDocumentRepo[T]) get(ctx context.Context, q squirrel.SelectBuilder, entityID id.ID) (T, error) {
	entity := r.newFn()
	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			var zero T
			return zero, apperror.NewNotFound(r.entityName, entityID)
		}
		return entity, fmt.Errorf("get %s: %w", r.entityName, err)
	}
	return entity, nil
}

// list pages q with the requested or default ordering.
func (r *BaseDocumentRepo[T]) list(ctx context.Context, q squirrel.SelectBuilder, filter domain.ListFilter) (domain.ListResult[T], error) {
	f := filter.Normalize()
	result := domain.ListResult[T]{Items: []T{}, Limit: f.Limit, Offset: f.Offset}

	orderBy, err := r.parseOrderBy(f.OrderBy)
	if err != nil {
		return result, err
	}

	querier := r.querier(ctx)
	total, err := postgres.Count(ctx, querier, q)
	if err != nil {
		return result, err
	}
	result.TotalCount = total

	sql, args, err := q.OrderBy(orderBy...).
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return result, nil
}

// parseOrderBy turns "-number" into "number DESC", allowing only selected columns.
func (r *BaseDocumentRepo[T]) parseOrderBy(orderBy string) ([]string, error) {
	if strings.TrimSpace(orderBy) == "" {
		return r.defaultOrder, nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}
	field = strings.TrimSpace(field)

	for _, col := range r.selectCols {
		if col == field {
			return []string{field + " " + direction, "id " + direction}, nil
		}
	}
	return nil, apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
}
