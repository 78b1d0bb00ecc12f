package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-account-shell/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, 15*time.Second, c.GetAuthenticateTimeout())
	require.Equal(t, 10*time.Second, c.GetRefreshTimeout())
	require.Equal(t, 10*time.Minute, c.GetMonitorInterval())
	require.Equal(t, 5*time.Minute, c.GetPackageGracePeriod())
	require.Equal(t, time.UTC, c.GetTimestampLocation())
	require.Equal(t, config.StoreBackendMemory, c.GetTokenStoreBackend())
	require.Equal(t, "/dashboard", c.GetDashboardPath())
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MONITOR_INTERVAL", "30s")
	t.Setenv("REFRESH_TIMEOUT", "not-a-duration")
	t.Setenv("TOKEN_STORE", "Redis")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	c := config.New()

	require.Equal(t, ":9999", c.GetPort())
	require.Equal(t, 30*time.Second, c.GetMonitorInterval())
	require.Equal(t, 10*time.Second, c.GetRefreshTimeout(), "invalid durations fall back to the default")
	require.Equal(t, config.StoreBackendRedis, c.GetTokenStoreBackend())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://c.example.com"))
}

func TestConfig_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shell.yaml")
	require.NoError(t, os.WriteFile(path, []byte("billing_url: https://billing.example.com/portal\n"), 0o600))

	require.NoError(t, config.LoadFile(path))
	require.Equal(t, "https://billing.example.com/portal", config.New().GetBillingURL())

	require.Error(t, config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
