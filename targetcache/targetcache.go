// Package targetcache persists the set of origin URLs a global pool
// has seen, so a freshly started replica doesn't relearn every target
// from an empty vector one lookup-miss at a time. Adapted from
// redisclient/redis.go's thin ParseURL/NewClient/Ping wrapper.
package targetcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is the seed-cache capability a global pool consults at
// startup and writes through to on every new target.
type Cache interface {
	// Seeds returns every previously seen origin URL for key.
	Seeds(ctx context.Context, key string) ([]string, error)
	// Add records url as seen under key.
	Add(ctx context.Context, key, url string) error
}

// noopCache is used when Redis is unavailable or unconfigured —
// matching main.go's "continuing without Redis" pattern: the server
// still runs, it just relearns targets from scratch every restart.
type noopCache struct{}

func (noopCache) Seeds(context.Context, string) ([]string, error) { return nil, nil }
func (noopCache) Add(context.Context, string, string) error       { return nil }

// NoopCache is the zero-configuration fallback.
var NoopCache Cache = noopCache{}

// RedisCache stores seeds in a Redis set per pool key.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// New builds a RedisCache from a redis:// URL and pings it once so
// callers can fall back to NoopCache on failure the same way main.go
// falls back on a failed Redis ping.
func New(redisURL string, logger zerolog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("targetcache: invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("targetcache: redis ping failed: %w", err)
	}

	return &RedisCache{client: client, logger: logger.With().Str("component", "targetcache").Logger()}, nil
}

func setKey(key string) string {
	return "poolgateway:targets:" + key
}

func (c *RedisCache) Seeds(ctx context.Context, key string) ([]string, error) {
	members, err := c.client.SMembers(ctx, setKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("targetcache: seeds: %w", err)
	}
	return members, nil
}

func (c *RedisCache) Add(ctx context.Context, key, url string) error {
	if err := c.client.SAdd(ctx, setKey(key), url).Err(); err != nil {
		return fmt.Errorf("targetcache: add: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
