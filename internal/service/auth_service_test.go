package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/gate-access-service/internal/auth"
	"github.com/spec-kit/gate-access-service/internal/config"
	"github.com/spec-kit/gate-access-service/internal/domain"
)

func testAuthConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-jwt-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            4,
			AdminEmail:            "admin@admin.com",
			AdminPassword:         "admin123",
		},
	}
}

func seededIdentity(t *testing.T, id int64, email, password string) *domain.Identity {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	require.NoError(t, err)
	return &domain.Identity{ID: id, Email: email, PasswordHash: hash}
}

func TestLogin(t *testing.T) {
	repo := newFakeIdentityRepo(seededIdentity(t, 1, "person@example.com", "hunter2"))
	svc := NewAuthService(testAuthConfig(), repo, zap.NewNop())

	identity, sessionToken, _, err := svc.Login(context.Background(), "person@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), identity.ID)
	require.NotEmpty(t, sessionToken)

	claims, err := svc.TokenManager().ParseToken(sessionToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.SubjectID)
	assert.False(t, claims.IsAdmin)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newFakeIdentityRepo(seededIdentity(t, 1, "person@example.com", "hunter2"))
	svc := NewAuthService(testAuthConfig(), repo, zap.NewNop())

	_, _, _, err := svc.Login(context.Background(), "person@example.com", "wrong")
	require.Error(t, err)

	_, _, _, err = svc.Login(context.Background(), "nobody@example.com", "hunter2")
	require.Error(t, err)
}

func TestEnsureAdminIdempotent(t *testing.T) {
	repo := newFakeIdentityRepo()
	svc := NewAuthService(testAuthConfig(), repo, zap.NewNop())

	require.NoError(t, svc.EnsureAdmin(context.Background()))
	require.NoError(t, svc.EnsureAdmin(context.Background()))

	admin, err := repo.GetByEmail(context.Background(), "admin@admin.com")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Len(t, repo.identities, 1)

	_, _, _, err = svc.Login(context.Background(), "admin@admin.com", "admin123")
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	repo := newFakeIdentityRepo(seededIdentity(t, 1, "person@example.com", "hunter2"))
	svc := NewAuthService(testAuthConfig(), repo, zap.NewNop())

	require.NoError(t, svc.ChangePassword(context.Background(), 1, "hunter2", "correcthorse"))

	_, _, _, err := svc.Login(context.Background(), "person@example.com", "correcthorse")
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), 1, "hunter2", "another")
	require.Error(t, err)
}
