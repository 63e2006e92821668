package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DB_SOURCE", "SERVER_PORT", "ENVIRONMENT", "JWT_SECRET", "OPENAI_API_KEY", "OPENAI_MODEL", "SETTLE_DELAY_MS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.DBSource)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "development", cfg.Env)
	require.Equal(t, "dev-secret", cfg.JWTSecret)
	require.Equal(t, 1500*time.Millisecond, cfg.SettleDelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SETTLE_DELAY_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
}

func TestLoadBadSettleDelayFallsBack(t *testing.T) {
	t.Setenv("SETTLE_DELAY_MS", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, cfg.SettleDelay)
}
