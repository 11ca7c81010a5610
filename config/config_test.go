package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

var allKeys = []string{
	"PORT", "DB_PATH", "CORS_ORIGINS", "SEED_SCENARIO", "LOG_LEVEL", "LOG_FORMAT", "POLICY_FILE",
	"OVERLOAD_MONITOR_ENABLED", "OVERLOAD_MONITOR_INTERVAL", "OVERLOAD_MONITOR_HORIZON_DAYS",
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, allKeys...)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "absence.db", cfg.Server.DBPath)
	assert.Len(t, cfg.Server.CORSOrigins, 2)
	assert.Empty(t, cfg.Server.SeedScenario)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Policy.File)
	assert.Equal(t, MonitorConfig{Enabled: true, Interval: time.Hour, HorizonDays: 30}, cfg.Monitor)
}

func TestLoad_FromEnvironment(t *testing.T) {
	unsetEnv(t, allKeys...)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("CORS_ORIGINS", "https://hr.example.com, https://intranet.example.com,")
	t.Setenv("OVERLOAD_MONITOR_ENABLED", "false")
	t.Setenv("OVERLOAD_MONITOR_INTERVAL", "15m")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Server.DBPath)
	assert.Equal(t, []string{"https://hr.example.com", "https://intranet.example.com"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Monitor.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Monitor.Interval)
}

func TestLoad_EnvFile(t *testing.T) {
	unsetEnv(t, allKeys...)
	// The process environment wins over the file.
	t.Setenv("LOG_LEVEL", "warn")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SEED_SCENARIO=demo-team\nLOG_LEVEL=debug\nOVERLOAD_MONITOR_HORIZON_DAYS=14\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "demo-team", cfg.Server.SeedScenario)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 14, cfg.Monitor.HorizonDays)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"port not a number":   {"PORT": "http"},
		"port out of range":   {"PORT": "70000"},
		"unknown log level":   {"LOG_LEVEL": "loud"},
		"bad interval":        {"OVERLOAD_MONITOR_INTERVAL": "hourly"},
		"zero horizon":        {"OVERLOAD_MONITOR_HORIZON_DAYS": "0"},
		"horizon over a year": {"OVERLOAD_MONITOR_HORIZON_DAYS": "400"},
		"bad monitor switch":  {"OVERLOAD_MONITOR_ENABLED": "sometimes"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			unsetEnv(t, allKeys...)
			for k, v := range env {
				t.Setenv(k, v)
			}

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))

	_, err = NewLogger(LogConfig{Level: "verbose"})
	assert.Error(t, err)
}
