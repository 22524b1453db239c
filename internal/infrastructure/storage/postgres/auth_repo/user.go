// Package auth_repo provides the PostgreSQL user repository.
package auth_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/auth"
	"tsdstock/internal/infrastructure/storage/postgres"
)

const userColumns = `id, username, email, full_name, password_hash, is_active,
	last_login_at, failed_login_attempts, locked_until, created_at, updated_at`

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txm *postgres.TxManager
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{txm: txm}
}

var _ auth.UserRepository = (*UserRepo)(nil)

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	q := r.txm.GetQuerier(ctx)

	query := `
		INSERT INTO sys_users (
			id, username, email, full_name, password_hash, is_active,
			failed_login_attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := q.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash, user.IsActive,
		user.FailedLoginAttempts, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			if strings.Contains(constraint, "username") {
				return apperror.NewDuplicate("user", "username", user.Username)
			}
			return apperror.NewDuplicate("user", "email", user.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves user by ID.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, userID.String(),
		`SELECT `+userColumns+` FROM sys_users WHERE id = $1`, userID)
}

// GetByLogin retrieves user by username (case-insensitive) or email.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*auth.User, error) {
	login = strings.TrimSpace(login)
	return r.getOne(ctx, login,
		`SELECT `+userColumns+` FROM sys_users
		WHERE LOWER(username) = LOWER($1) OR email = LOWER($1)
		ORDER BY (LOWER(username) = LOWER($1)) DESC
		LIMIT 1`, login)
}

func (r *UserRepo) getOne(ctx context.Context, key string, query string, args ...any) (*auth.User, error) {
	var user auth.User
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &user, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewNotFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// Update updates login bookkeeping and profile fields.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	q := r.txm.GetQuerier(ctx)
	user.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query := `
		UPDATE sys_users SET
			full_name = $2,
			is_active = $3,
			last_login_at = $4,
			failed_login_attempts = $5,
			locked_until = $6,
			updated_at = $7
		WHERE id = $1
	`

	result, err := q.Exec(ctx, query,
		user.ID, user.FullName, user.IsActive, user.LastLoginAt,
		user.FailedLoginAttempts, user.LockedUntil, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("user", user.ID.String())
	}
	return nil
}
