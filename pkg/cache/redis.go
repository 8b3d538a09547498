package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// keyPrefix namespaces query cache entries in a shared Redis instance.
const keyPrefix = "nlq:query:"

// RedisStore backs the cache with Redis so hits survive restarts and are
// shared across replicas. Hit/miss counters stay process-local; entry
// HitCount is read-modify-write with KEEPTTL, and a lost update under racing
// hits is acceptable.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// Get fetches and unmarshals the entry, bumping its hit statistics in place.
func (r *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		r.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		r.misses.Add(1)
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is useless; drop it and miss.
		r.misses.Add(1)
		r.client.Del(ctx, keyPrefix+key)
		return nil, fmt.Errorf("cache entry corrupt: %w", err)
	}

	r.hits.Add(1)
	entry.HitCount++
	entry.LastAccessed = time.Now().UTC()
	if updated, err := json.Marshal(entry); err == nil {
		if err := r.client.Set(ctx, keyPrefix+key, updated, redis.KeepTTL).Err(); err != nil {
			r.logger.Debug("cache hit-count update failed", zap.Error(err))
		}
	}

	return &entry, nil
}

// Set marshals and stores the entry with the configured TTL.
func (r *RedisStore) Set(ctx context.Context, key string, entry Entry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.LastAccessed.IsZero() {
		entry.LastAccessed = now
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Stats returns process-local hit and miss counts.
func (r *RedisStore) Stats() Stats {
	return Stats{Hits: r.hits.Load(), Misses: r.misses.Load()}
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
