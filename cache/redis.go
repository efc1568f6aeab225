package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisAdapter is the production-grade core.CacheAdapter backed by Redis,
// the same client the teacher uses for discovery (core.RedisDiscovery).
// Keys are namespaced so the cache never collides with discovery or
// audit/result keys sharing the same Redis instance.
type RedisAdapter struct {
	client    *redis.Client
	namespace string
}

// NewRedisAdapter wraps an existing *redis.Client. namespace defaults to
// "firefly:cache" when empty.
func NewRedisAdapter(client *redis.Client, namespace string) *RedisAdapter {
	if namespace == "" {
		namespace = "firefly:cache"
	}
	return &RedisAdapter{client: client, namespace: namespace}
}

func (r *RedisAdapter) key(key string) string {
	return r.namespace + ":" + key
}

// Get implements core.CacheAdapter.
func (r *RedisAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put implements core.CacheAdapter.
func (r *RedisAdapter) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

// Delete implements core.CacheAdapter.
func (r *RedisAdapter) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
