package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arogyahq/arogya/internal/cache"
	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/store"
)

func setupService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&database.Customer{}, &database.CustomerProfile{}, &database.RefreshToken{},
		&database.ChatSession{}, &database.ChatMessage{}, &database.MessageFeedback{},
		&database.IPAddress{},
	))

	cfg := database.DefaultConfig()
	cfg.MinConns = 1
	cfg.MaxConns = 2
	cfg.HealthCheckInterval = 0
	gw, err := database.NewGatewayFromGorm(db, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	ccfg := cache.DefaultConfig()
	ccfg.Addr = mr.Addr()
	cm := cache.NewManager(ccfg, zap.NewNop())
	t.Cleanup(func() { cm.Close() })

	st := store.New(gw, cm, time.Minute, zap.NewNop())
	jcfg := DefaultJWTConfig()
	jcfg.Secret = "test-secret"
	tokens := NewTokenManager(jcfg, zap.NewNop())
	return NewService(st, tokens, jcfg, zap.NewNop())
}

func TestService_RegisterAndLogin(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	customer, err := s.Register(ctx, "User@Example.com", "hunter42x")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", customer.Email)
	assert.NotEqual(t, "hunter42x", customer.PasswordHash)

	_, err = s.Register(ctx, "user@example.com", "hunter42x")
	assert.ErrorIs(t, err, ErrEmailTaken)

	pair, got, err := s.Login(ctx, "user@example.com", "hunter42x")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)
	assert.Equal(t, "bearer", pair.TokenType)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := s.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, claims.Subject)
	assert.Equal(t, "user", claims.Role)

	_, _, err = s.Login(ctx, "user@example.com", "wrong-pass1")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, _, err = s.Login(ctx, "nobody@example.com", "hunter42x")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestService_RefreshRotates(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "u@example.com", "hunter42x")
	require.NoError(t, err)
	pair, _, err := s.Login(ctx, "u@example.com", "hunter42x")
	require.NoError(t, err)

	fresh, err := s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, fresh.RefreshToken)

	// The old token is revoked after rotation.
	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_Logout(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "u@example.com", "hunter42x")
	require.NoError(t, err)
	pair, _, err := s.Login(ctx, "u@example.com", "hunter42x")
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, pair.RefreshToken))
	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCheckPasswordPolicy(t *testing.T) {
	assert.NoError(t, CheckPasswordPolicy("abcdefg1"))
	assert.ErrorIs(t, CheckPasswordPolicy("short1"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPasswordPolicy("allletters"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPasswordPolicy("12345678"), ErrWeakPassword)
}

func TestTokenManager_RejectsTamperedToken(t *testing.T) {
	cfg := DefaultJWTConfig()
	cfg.Secret = "secret-a"
	a := NewTokenManager(cfg, zap.NewNop())
	cfg.Secret = "secret-b"
	b := NewTokenManager(cfg, zap.NewNop())

	token, err := a.IssueAccessToken("u1", "user")
	require.NoError(t, err)

	_, err = a.VerifyAccessToken(token)
	require.NoError(t, err)
	_, err = b.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
