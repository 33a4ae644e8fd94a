// Package cache provides the Redis-backed external tier of the evaluation
// cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantforge/strategy-optimizer/internal/optimizer"
)

const keyPrefix = "optimizer:eval:"

// RedisCache implements optimizer.PersistentCache on a Redis instance.
// Entries are stored as JSON with a Redis-level TTL mirroring the embedded
// ExpiresAtMs, so stale entries age out server-side as well.
type RedisCache struct {
	client *redis.Client
}

// Compile-time interface check.
var _ optimizer.PersistentCache = (*RedisCache)(nil)

// NewRedis connects a cache tier to the given address. The connection is
// lazy; a down Redis surfaces as per-call errors, which the engine treats as
// cache misses.
func NewRedis(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,

			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
	}
}

// Get fetches a persisted evaluation. A missing key is (nil, nil).
func (r *RedisCache) Get(ctx context.Context, key string) (*optimizer.PersistedEval, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry optimizer.PersistedEval
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode cached evaluation: %w", err)
	}
	return &entry, nil
}

// Put stores a persisted evaluation with a TTL derived from ExpiresAtMs.
func (r *RedisCache) Put(ctx context.Context, key string, entry *optimizer.PersistedEval) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached evaluation: %w", err)
	}

	ttl := time.Until(time.UnixMilli(entry.ExpiresAtMs))
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
