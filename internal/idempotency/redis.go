package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "txpilot:idem:"

// RedisStore backs the guard with Redis so several pipeline instances
// share one duplicate view. SETNX gives the atomic first-writer-wins
// semantics PutIfAbsent requires; expiry rides on Redis TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return e, true, nil
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, e Entry) (bool, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode idempotency entry: %w", err)
	}
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+e.Key, raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Update(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode idempotency entry: %w", err)
	}
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, redisKeyPrefix+e.Key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 256).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan: %w", err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// Sweep is a no-op: Redis expires entries by TTL on its own.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
