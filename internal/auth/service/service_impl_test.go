package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/lgndcraft2/giving-tree/internal/auth/domain"
	"github.com/lgndcraft2/giving-tree/internal/auth/repository"
	authservice "github.com/lgndcraft2/giving-tree/internal/auth/service"
	"github.com/lgndcraft2/giving-tree/internal/clock"
	"github.com/lgndcraft2/giving-tree/internal/config"
	"github.com/lgndcraft2/giving-tree/internal/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuth(t *testing.T, secret string) (domain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := authservice.New(authservice.Params{
		Log:    zap.NewNop(),
		Repo:   repository.New(dbtest.Open(t)),
		GenID:  dbtest.Node(t),
		Config: config.Config{JWTSecret: secret},
		Clock:  clk,
	})
	return svc, clk
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, clk := newAuth(t, "test-signing-secret")
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Username: "admin",
		Email:    "Admin@Example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", user.Email)

	result, err := svc.Login(ctx, domain.LoginRequest{Username: "admin", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.UserID)
	assert.Equal(t, clk.Now().Add(12*time.Hour), result.ExpiresAt)

	byEmail, err := svc.Login(ctx, domain.LoginRequest{Username: "admin@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.UserID)

	principal, err := svc.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, "admin", principal.Username)

	clk.Advance(13 * time.Hour)
	_, err = svc.Authenticate(ctx, result.Token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuth(t, "test-signing-secret")
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Username: "admin", Email: "a@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "admin", Password: "wrong horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "ghost", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Username: "admin", Email: "b@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Username: "short", Email: "s@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticateRejectsForeignTokens(t *testing.T) {
	svc, _ := newAuth(t, "test-signing-secret")
	other, _ := newAuth(t, "another-secret")
	ctx := context.Background()

	_, err := other.CreateUser(ctx, domain.CreateUserRequest{Username: "admin", Email: "a@example.com", Password: "correct horse"})
	require.NoError(t, err)
	result, err := other.Login(ctx, domain.LoginRequest{Username: "admin", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, result.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestLoginWithoutSigningKey(t *testing.T) {
	svc, _ := newAuth(t, "")
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Username: "admin", Email: "a@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "admin", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrSigningKeyMissing)
}
