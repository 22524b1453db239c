package auth

import (
	"context"

	"tsdstock/internal/core/id"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	// Create creates a new user. A taken username or email yields DUPLICATE_ENTRY.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves user by ID.
	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByLogin retrieves user by username or email.
	GetByLogin(ctx context.Context, login string) (*User, error)

	// Update updates login bookkeeping and profile fields.
	Update(ctx context.Context, user *User) error
}
