// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/absence-engine/absence"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Policy  PolicyConfig
	Monitor MonitorConfig
}

type ServerConfig struct {
	Port         int
	DBPath       string
	CORSOrigins  []string
	SeedScenario string // loaded on startup when the database is empty
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

type PolicyConfig struct {
	File string // empty = built-in default policy
}

// MonitorConfig drives the background overload scan.
type MonitorConfig struct {
	Enabled     bool
	Interval    time.Duration
	HorizonDays int
}

// Load reads .env (if present) and then the process environment. Values
// already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Server = ServerConfig{
		Port:         port,
		DBPath:       getEnv("DB_PATH", "absence.db"),
		CORSOrigins:  getEnvSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
		SeedScenario: getEnv("SEED_SCENARIO", ""),
	}

	cfg.Log = LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	cfg.Policy = PolicyConfig{File: getEnv("POLICY_FILE", "")}

	enabled, err := strconv.ParseBool(getEnv("OVERLOAD_MONITOR_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERLOAD_MONITOR_ENABLED: %w", err)
	}
	interval, err := time.ParseDuration(getEnv("OVERLOAD_MONITOR_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERLOAD_MONITOR_INTERVAL: %w", err)
	}
	horizon, err := strconv.Atoi(getEnv("OVERLOAD_MONITOR_HORIZON_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERLOAD_MONITOR_HORIZON_DAYS: %w", err)
	}
	cfg.Monitor = MonitorConfig{Enabled: enabled, Interval: interval, HorizonDays: horizon}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.Log.Level, err)
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("OVERLOAD_MONITOR_INTERVAL must be positive")
	}
	if c.Monitor.HorizonDays <= 0 || c.Monitor.HorizonDays > absence.MaxConcurrencyDays {
		return fmt.Errorf("OVERLOAD_MONITOR_HORIZON_DAYS must be between 1 and %d", absence.MaxConcurrencyDays)
	}
	return nil
}

// NewLogger builds a zap logger from the log settings. "console" selects the
// colored development encoder; anything else the production JSON encoder.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
