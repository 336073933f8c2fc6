package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/trader-engine/pkg/ledger"
	"github.com/jwebster45206/trader-engine/pkg/npc"
	"github.com/jwebster45206/trader-engine/pkg/storage"
)

const (
	npcsKey        = "trader:npcs"
	removedNPCsKey = "trader:npcs:removed"
	accountsKey    = "trader:accounts"
	lastResetKey   = "trader:last_reset"
)

// RedisStorage implements the Storage interface with one Redis hash per
// record type
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisClient accepts either a redis:// URL or a bare host:port
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisURL string, logger *slog.Logger) (*RedisStorage, error) {
	rdb, err := NewRedisClient(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisStorageFromClient(rdb, logger), nil
}

// NewRedisStorageFromClient wraps a client shared with other services
func NewRedisStorageFromClient(rdb *redis.Client, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client: rdb,
		logger: logger,
	}
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Client returns the underlying Redis client
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// replaceHash rewrites key with fields in one transaction
func (r *RedisStorage) replaceHash(ctx context.Context, key string, fields map[string]any) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	return err
}

// NPC operations

func (r *RedisStorage) SaveNPCs(ctx context.Context, recs []npc.Record) error {
	fields := make(map[string]any, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			r.logger.Error("Failed to marshal npc", "npc_id", rec.ID, "error", err)
			return fmt.Errorf("failed to marshal npc %s: %w", rec.ID, err)
		}
		fields[rec.ID] = string(data)
	}
	if err := r.replaceHash(ctx, npcsKey, fields); err != nil {
		r.logger.Error("Failed to save npcs", "count", len(recs), "error", err)
		return fmt.Errorf("failed to save npcs: %w", err)
	}
	r.logger.Debug("NPCs saved", "count", len(recs))
	return nil
}

func (r *RedisStorage) LoadNPCs(ctx context.Context) ([]npc.Record, error) {
	all, err := r.client.HGetAll(ctx, npcsKey).Result()
	if err != nil {
		r.logger.Error("Failed to load npcs", "error", err)
		return nil, fmt.Errorf("failed to load npcs: %w", err)
	}
	recs := make([]npc.Record, 0, len(all))
	for id, data := range all {
		var rec npc.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			r.logger.Warn("Skipping unreadable npc record", "npc_id", id, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// SaveRemovedNPCs rewrites the set of removed NPC ids
func (r *RedisStorage) SaveRemovedNPCs(ctx context.Context, ids []string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, removedNPCsKey)
		if len(ids) > 0 {
			members := make([]any, len(ids))
			for i, id := range ids {
				members[i] = id
			}
			pipe.SAdd(ctx, removedNPCsKey, members...)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save removed npcs", "count", len(ids), "error", err)
		return fmt.Errorf("failed to save removed npcs: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadRemovedNPCs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, removedNPCsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load removed npcs: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Account operations

func (r *RedisStorage) SaveAccounts(ctx context.Context, snaps []ledger.Snapshot) error {
	fields := make(map[string]any, len(snaps))
	for _, s := range snaps {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal account %s: %w", s.Player, err)
		}
		fields[s.Player.String()] = string(data)
	}
	if err := r.replaceHash(ctx, accountsKey, fields); err != nil {
		r.logger.Error("Failed to save accounts", "count", len(snaps), "error", err)
		return fmt.Errorf("failed to save accounts: %w", err)
	}
	r.logger.Debug("Accounts saved", "count", len(snaps))
	return nil
}

func (r *RedisStorage) LoadAccounts(ctx context.Context) ([]ledger.Snapshot, error) {
	all, err := r.client.HGetAll(ctx, accountsKey).Result()
	if err != nil {
		r.logger.Error("Failed to load accounts", "error", err)
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	snaps := make([]ledger.Snapshot, 0, len(all))
	for player, data := range all {
		var s ledger.Snapshot
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			r.logger.Warn("Skipping unreadable account", "player", player, "error", err)
			continue
		}
		snaps = append(snaps, s)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Player.String() < snaps[j].Player.String() })
	return snaps, nil
}

// Daily reset bookkeeping

func (r *RedisStorage) SaveLastReset(ctx context.Context, date string) error {
	if err := r.client.Set(ctx, lastResetKey, date, 0).Err(); err != nil {
		return fmt.Errorf("failed to save last reset: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadLastReset(ctx context.Context) (string, error) {
	date, err := r.client.Get(ctx, lastResetKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load last reset: %w", err)
	}
	return date, nil
}
