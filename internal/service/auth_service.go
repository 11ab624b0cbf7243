package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/gate-access-service/internal/auth"
	"github.com/spec-kit/gate-access-service/internal/config"
	"github.com/spec-kit/gate-access-service/internal/domain"
	"github.com/spec-kit/gate-access-service/internal/repository"
	apperrors "github.com/spec-kit/gate-access-service/pkg/util"
)

// AuthService coordinates operator login and account bootstrap. Login
// password hashing is separate from the gate credential scheme.
type AuthService struct {
	identities repository.IdentityRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	adminEmail string
	adminPass  string
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, identities repository.IdentityRepository, logger *zap.Logger) *AuthService {
	return &AuthService{
		identities: identities,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		adminEmail: cfg.Auth.AdminEmail,
		adminPass:  cfg.Auth.AdminPassword,
		logger:     logger,
	}
}

// Login authenticates an identity by email and password and returns a
// session token. Expired accounts may still log in to view their status;
// only the gate denies them.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Identity, string, time.Time, error) {
	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(identity.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	sessionToken, exp, err := s.tokenMgr.GenerateToken(identity.ID, identity.IsAdmin)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return identity, sessionToken, exp, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, subjectID int64, currentPassword, newPassword string) error {
	identity, err := s.identities.GetByID(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(identity.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.identities.UpdatePasswordHash(ctx, subjectID, hash)
}

// EnsureAdmin creates the bootstrap admin identity when it does not exist.
// Runs once at startup; idempotent.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	if s.adminEmail == "" || s.adminPass == "" {
		return nil
	}

	_, err := s.identities.GetByEmail(ctx, s.adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(s.adminPass, s.bcryptCost)
	if err != nil {
		return err
	}

	admin := &domain.Identity{
		Email:        s.adminEmail,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := s.identities.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("email", s.adminEmail))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
