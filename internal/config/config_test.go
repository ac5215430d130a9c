package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/swachh-infra/internal/security"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGISTRY_DB_PATH", "")
	t.Setenv("ADMIN_ALLOWLIST", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "registry.db", cfg.RegistryDBPath)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 100, cfg.RateLimitCapacity)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Empty(t, cfg.AdminAllowlist)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("RATE_LIMIT_CAPACITY", "5")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("ADMIN_ALLOWLIST", "127.0.0.0/8, 10.0.0.0/8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.RateLimitCapacity)
	assert.Equal(t, 2.5, cfg.RateLimitPerSecond)
	assert.Equal(t, []string{"127.0.0.0/8", "10.0.0.0/8"}, cfg.AdminAllowlist)

	// The rate-limit fields feed the limiter struct directly.
	limiter := security.RedisTokenBucket{
		Capacity:   cfg.RateLimitCapacity,
		RefillRate: cfg.RateLimitPerSecond,
	}
	assert.Equal(t, 5, limiter.Capacity)
	assert.Equal(t, 2.5, limiter.RefillRate)
}

func TestProductionRequiresPostgres(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGISTRY_DB_PATH", "registry.db")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidateRejectsBadNumbers(t *testing.T) {
	cfg := &Config{
		Environment:        "development",
		RateLimitCapacity:  0,
		RateLimitPerSecond: 1,
		MaxBodyBytes:       1,
	}
	assert.Error(t, cfg.Validate())

	cfg.RateLimitCapacity = 10
	cfg.RateLimitPerSecond = -1
	assert.Error(t, cfg.Validate())

	cfg.RateLimitPerSecond = 1
	assert.NoError(t, cfg.Validate())
}
