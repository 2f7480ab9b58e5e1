package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 30, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1, cfg.Cache.Version)
	assert.Equal(t, 1024, cfg.Cache.CompressThreshold)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_YAMLAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
rate_limit:
  limit: 10
cache:
  version: 3
`), 0o600))

	t.Setenv("RATE_LIMIT", "99")
	t.Setenv("CACHE_TTL_SECONDS", "120")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("DISABLE_RATE_LIMIT", "true")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("REFRESH_TOKEN_EXPIRE_DAYS", "1")
	t.Setenv("LLM_PRIMARY_URL", "http://llm.internal")
	t.Setenv("ENABLE_CACHE", "0")

	cfg, err := Load(path)
	require.NoError(t, err)

	// YAML over default.
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Cache.Version)
	// Env over YAML.
	assert.Equal(t, 99, cfg.RateLimit.Limit)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.RateLimit.Disabled)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.Origins)
	assert.Equal(t, "http://llm.internal", cfg.LLM.Primary.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidate_ProductionRequiresSecret(t *testing.T) {
	cfg := Default()
	cfg.Environment = "production"
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "super-secret"
	assert.NoError(t, cfg.Validate())

	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}
