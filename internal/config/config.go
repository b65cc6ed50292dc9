// Package config loads engine configuration from the environment, in
// the style of a twelve-factor service: every field has a sane
// default and can be overridden by an env var, optionally sourced
// from a local .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// LatencyConfig models the fixed network/processing delay a backtest
// applies before a resting order becomes visible to matching.
type LatencyConfig struct {
	MeanLatencyNs int64
}

// SlippageConfig models the adverse price adjustment applied to
// simulated fills.
type SlippageConfig struct {
	FixedBps     float64
	VolMultiplier float64
}

// Config holds every tunable the engine, live sync loop, backtester
// and storage layer read at startup.
type Config struct {
	Debug    bool
	LogLevel string

	// Engine
	TickInterval     time.Duration
	LiveSyncInterval time.Duration

	Latency  LatencyConfig
	Slippage SlippageConfig

	// Storage
	SidecarPath string
	StateDSN    string

	// Starting paper balance, used when no live backend is configured.
	StartingBalance decimal.Decimal
}

// Load reads Config from the environment. Callers are expected to
// have already called godotenv.Load() so a .env file, if present, has
// been merged into the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		Debug:    getEnvBool("DEBUG", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TickInterval:     getEnvDuration("TICK_INTERVAL", 100*time.Millisecond),
		LiveSyncInterval: getEnvDuration("LIVE_SYNC_INTERVAL", 5*time.Second),

		Latency: LatencyConfig{
			MeanLatencyNs: getEnvInt64("LATENCY_MEAN_NS", 5_000_000),
		},
		Slippage: SlippageConfig{
			FixedBps:      getEnvFloat("SLIPPAGE_FIXED_BPS", 0),
			VolMultiplier: getEnvFloat("SLIPPAGE_VOL_MULTIPLIER", 0),
		},

		SidecarPath: getEnv("SIDECAR_PATH", "data/sidecar.db"),
		StateDSN:    getEnv("STATE_DSN", "data/state.db"),

		StartingBalance: getEnvDecimal("STARTING_BALANCE", decimal.NewFromFloat(1000)),
	}

	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("config: TICK_INTERVAL must be > 0, got %s", cfg.TickInterval)
	}
	if cfg.Latency.MeanLatencyNs < 0 {
		return nil, fmt.Errorf("config: LATENCY_MEAN_NS must be >= 0, got %d", cfg.Latency.MeanLatencyNs)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
