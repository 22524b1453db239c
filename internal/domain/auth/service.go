package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tsdstock/internal/core/apperror"
	appctx "tsdstock/internal/core/context"
	"tsdstock/internal/core/id"
	"tsdstock/internal/core/security"
	"tsdstock/internal/core/tx"
	"tsdstock/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts  int
	LockDuration      time.Duration
	PasswordMinLength int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:  5,
		LockDuration:      15 * time.Minute,
		PasswordMinLength: 8,
	}
}

// Service provides authentication logic.
type Service struct {
	userRepo   UserRepository
	txManager  tx.Manager
	hasher     security.PasswordHasher
	jwtService *JWTService
	config     ServiceConfig
}

// NewService creates a new auth service.
func NewService(
	userRepo UserRepository,
	txManager tx.Manager,
	hasher security.PasswordHasher,
	jwtService *JWTService,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:   userRepo,
		txManager:  txManager,
		hasher:     hasher,
		jwtService: jwtService,
		config:     config,
	}
}

// Register creates a user and issues an access token for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, *Token, error) {
	if len(req.Password) < s.config.PasswordMinLength {
		return nil, nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, nil, apperror.NewInternal(err)
	}

	user := NewUser(req.Username, req.Email, passwordHash)
	user.FullName = req.FullName
	if err := user.Validate(ctx); err != nil {
		return nil, nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.userRepo.Create(ctx, user)
	})
	if err != nil {
		return nil, nil, apperror.Normalize(err)
	}

	token, err := s.issue(user, "")
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "user registered",
		"user_id", user.ID,
		"username", user.Username)

	return user, token, nil
}

// Login authenticates by username or email and returns an access token.
// Repeated failures lock the account for the configured duration.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Token, *User, error) {
	user, err := s.userRepo.GetByLogin(ctx, creds.Login)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperror.Normalize(err)
	}
	if err := user.CanLogin(); err != nil {
		return nil, nil, err
	}

	if err := s.hasher.Verify(user.PasswordHash, creds.Password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			return nil, nil, apperror.NewInternal(err)
		}
		user.RecordFailedLogin(s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.userRepo.Update(ctx, user); err != nil {
			logger.Warn(ctx, "failed to record login failure", "user_id", user.ID, "error", err)
		}
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	token, err := s.issue(user, creds.DeviceID)
	if err != nil {
		return nil, nil, err
	}

	user.RecordSuccessfulLogin()
	if err := s.userRepo.Update(ctx, user); err != nil {
		logger.Warn(ctx, "failed to record login", "user_id", user.ID, "error", err)
	}

	logger.Info(ctx, "user logged in",
		"user_id", user.ID,
		"device_id", creds.DeviceID)

	return token, user, nil
}

// Me returns the acting user.
func (s *Service) Me(ctx context.Context) (*User, error) {
	uid, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	return user, nil
}

// ValidateToken resolves a bearer token to the acting user.
func (s *Service) ValidateToken(token string) (*appctx.UserContext, error) {
	return s.jwtService.ValidateToken(token)
}

func (s *Service) issue(user *User, deviceID string) (*Token, error) {
	access, expiresAt, err := s.jwtService.GenerateAccessToken(user, deviceID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return &Token{
		AccessToken: access,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
	}, nil
}
