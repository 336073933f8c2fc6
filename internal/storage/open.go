package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/trader-engine/internal/config"
	"github.com/jwebster45206/trader-engine/pkg/storage"
)

// Open returns the storage backend named in cfg. The Redis client is
// returned alongside so the queue and event services can share it; it is
// nil for the other backends.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, *redis.Client, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMockStorage(), nil, nil

	case config.BackendSQLite:
		s, err := OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return s, nil, nil

	case config.BackendRedis:
		s, err := NewRedisStorage(cfg.RedisURL, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Waiting for Redis connection...", "url", cfg.RedisURL)
		if err := s.WaitForConnection(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s.Client(), nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
