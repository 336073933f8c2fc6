package config

import (
	"log/slog"
	"os"
	"strings"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds process settings read from the environment. Trading rules
// live in the YAML file named by TraderConfig.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL       string
	StorageBackend string
	SQLitePath     string
	TraderConfig   string

	WorkerID          string
	CommandWebhookURL string
}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:          getEnv("REDIS_URL", "localhost:6379"),
		StorageBackend:    parseBackend(getEnv("STORAGE_BACKEND", BackendRedis)),
		SQLitePath:        getEnv("SQLITE_PATH", "trader.db"),
		TraderConfig:      getEnv("TRADER_CONFIG", "trader.yaml"),
		WorkerID:          getEnv("WORKER_ID", ""),
		CommandWebhookURL: getEnv("COMMAND_WEBHOOK_URL", ""),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseBackend(backend string) string {
	switch strings.ToLower(backend) {
	case BackendMemory, "mock":
		return BackendMemory
	case BackendSQLite:
		return BackendSQLite
	default:
		return BackendRedis
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
