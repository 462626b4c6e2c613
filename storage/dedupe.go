package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper stores processed event ids in Redis so every collector
// instance skips redelivered events.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper remembers processed ids for ttl.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(scope, id string) string {
	return fmt.Sprintf("dedupe:%s:%s", scope, id)
}

// Add records id under scope. It returns true when the id was newly added.
func (r *RedisDeduper) Add(ctx context.Context, scope, id string) (bool, error) {
	return r.client.SetNX(ctx, r.key(scope, id), 1, r.ttl).Result()
}

// Remove forgets id so a failed event can be processed again.
func (r *RedisDeduper) Remove(ctx context.Context, scope, id string) error {
	return r.client.Del(ctx, r.key(scope, id)).Err()
}
