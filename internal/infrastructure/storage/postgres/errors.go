package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Builder returns a squirrel builder with $n placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// UniqueViolation reports whether err is a unique violation and returns the
// violated constraint.
func UniqueViolation(err error) (string, bool) {
	return violation(err, codeUniqueViolation)
}

// CheckViolation reports whether err is a CHECK violation and returns the
// violated constraint.
func CheckViolation(err error) (string, bool) {
	return violation(err, codeCheckViolation)
}

// ForeignKeyViolation reports whether err is a foreign key violation.
func ForeignKeyViolation(err error) bool {
	_, ok := violation(err, codeForeignKeyViolation)
	return ok
}

func violation(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// Count runs SELECT COUNT(*) over q.
func Count(ctx context.Context, q Querier, sel squirrel.SelectBuilder) (int64, error) {
	sql, args, err := Builder().Select("COUNT(*)").FromSelect(sel, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
