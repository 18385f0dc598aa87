package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gsm:idem:"

// RedisStore backs the guard with Redis. SET NX EX is the create-only
// primitive: the first sighting sets the key, later sightings see it.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a Redis-backed store with the given TTL window.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Create inserts the key unless it already exists within the TTL window.
func (s *RedisStore) Create(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, redisKeyPrefix+key, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
