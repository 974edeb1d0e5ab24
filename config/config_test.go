package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 120*time.Second, cfg.ClientTimeout)
	assert.Equal(t, 30*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 2*time.Second, cfg.CloseDelay)
	assert.Equal(t, time.Hour, cfg.JWTExpiration)
	assert.False(t, cfg.SeedOnStart)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WS_AUTH_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 5*time.Second, cfg.AuthTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("production requires jwt secret", func(t *testing.T) {
		cfg := &Config{ServerPort: 8080, Environment: EnvProduction}
		assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
	})

	t.Run("rejects unknown environment", func(t *testing.T) {
		cfg := &Config{ServerPort: 8080, Environment: "staging"}
		assert.ErrorContains(t, cfg.Validate(), "unknown environment")
	})

	t.Run("rejects bad port", func(t *testing.T) {
		cfg := &Config{ServerPort: 0, Environment: EnvDevelopment}
		assert.ErrorContains(t, cfg.Validate(), "port")
	})
}
