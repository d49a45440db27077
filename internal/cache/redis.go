// Package cache holds the Redis side of the directory service: the shared
// client, reported by /readyz, and the per-IP token buckets behind the API
// rate limit. Directory records themselves are never cached here.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pool sizing for the rate limiter. Every limited request runs one short
// script, so a small pool with a warm connection is enough.
const (
	poolSize        = 10
	minIdleConns    = 1
	poolTimeout     = 4 * time.Second
	connMaxIdleTime = 5 * time.Minute
)

// Cache owns the Redis client shared by readiness checks and rate limiting.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and pings it. A Cache is only returned for a
// reachable server; the client is closed otherwise.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := clientOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// clientOptions parses redisURL and applies the pool settings above.
func clientOptions(redisURL string) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = poolSize
	opt.MinIdleConns = minIdleConns
	opt.PoolTimeout = poolTimeout
	opt.ConnMaxIdleTime = connMaxIdleTime

	return opt, nil
}

// Ping satisfies the readiness checker used by /readyz.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the pool; it runs as a server shutdown hook.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client to integration tests.
func (c *Cache) Client() *redis.Client {
	return c.client
}
