// Package config loads process configuration from the environment,
// optionally seeded from a local .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything a host runtime (cmd/ephemeralrun, cmd/durableworker)
// needs to wire its collaborators.
type Config struct {
	LogLevel       string
	LogPretty      bool

	DatabaseURL    string
	RedisAddr      string

	StepTimeout    time.Duration
	MaxParallelism int

	MetricsAddr    string
}

// Load reads configuration from the environment. It attempts to load a
// .env file first (ignoring its absence) so local development does not
// require exporting variables into the shell.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvBool("LOG_PRETTY", false),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		MaxParallelism: getEnvInt("MAX_PARALLELISM", 0),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
	}

	timeoutStr := getEnv("STEP_TIMEOUT", "10m")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid STEP_TIMEOUT %q: %w", timeoutStr, err)
	}
	cfg.StepTimeout = timeout

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
