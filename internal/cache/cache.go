// Package cache stores Jira responses for a short time so repeated tool
// calls for the same issue or project do not hit the API.
package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/jiramcp/internal/config"
)

// Drivers.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the stored value. found is false for missing and expired
	// keys.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// HealthCheck reports whether the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// Open builds the cache selected by cfg.Driver. The redis driver reads its
// URL from the environment variable named by cfg.AddrEnv and fails when the
// server does not answer a PING.
func Open(ctx context.Context, cfg config.CacheConfig, clock clockwork.Clock) (Cache, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return Nop{}, nil
	case DriverMemory:
		return NewMemory(clock), nil
	case DriverRedis:
		rawURL := os.Getenv(cfg.AddrEnv)
		if rawURL == "" {
			return nil, fmt.Errorf("cache: %s is not set", cfg.AddrEnv)
		}
		opts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("cache: parse %s: %w", cfg.AddrEnv, err)
		}
		if cfg.DB != 0 {
			opts.DB = cfg.DB
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("cache: ping redis: %w", err)
		}
		return NewRedis(client, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// Nop is a Cache that stores nothing.
type Nop struct{}

// Get always misses.
func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the value.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete does nothing.
func (Nop) Delete(context.Context, string) error { return nil }

// HealthCheck always succeeds.
func (Nop) HealthCheck(context.Context) error { return nil }
