package memory

import (
	"context"
	"strings"

	"tsdstock/internal/core/apperror"
	"tsdstock/internal/core/id"
	"tsdstock/internal/domain/auth"
)

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	store *Store
}

// NewUserRepo creates a user repository over store.
func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

var _ auth.UserRepository = (*UserRepo)(nil)

// Create implements auth.UserRepository.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	return r.store.write(ctx, func() (func(), error) {
		for _, u := range r.store.users {
			if strings.EqualFold(u.Username, user.Username) {
				return nil, apperror.NewDuplicate("user", "username", user.Username)
			}
			if u.Email == user.Email {
				return nil, apperror.NewDuplicate("user", "email", user.Email)
			}
		}
		r.store.users[user.ID] = *user
		userID := user.ID
		return func() { delete(r.store.users, userID) }, nil
	})
}

// GetByID implements auth.UserRepository.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID)
	}
	return &u, nil
}

// GetByLogin implements auth.UserRepository.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*auth.User, error) {
	login = strings.TrimSpace(login)
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, u := range r.store.users {
		if strings.EqualFold(u.Username, login) || u.Email == strings.ToLower(login) {
			return &u, nil
		}
	}
	return nil, apperror.NewNotFound("user", login)
}

// Update implements auth.UserRepository.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	return r.store.write(ctx, func() (func(), error) {
		prev, ok := r.store.users[user.ID]
		if !ok {
			return nil, apperror.NewNotFound("user", user.ID)
		}
		r.store.users[user.ID] = *user
		return func() { r.store.users[prev.ID] = prev }, nil
	})
}
