package domain

import (
	"context"
	"time"
)

// Cache is the memoization layer for computed run results. Results are pure
// functions of the input dataset, so they are keyed by the dataset
// fingerprint; caching is an optimization, never a correctness requirement.
type Cache interface {
	// Get retrieves a value. Returns nil, nil if the key is not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// GetRunResult retrieves a memoized run result by dataset fingerprint.
	// Returns nil, nil on miss.
	GetRunResult(ctx context.Context, fingerprint string) (*RunResult, error)

	// SetRunResult memoizes a run result under its dataset fingerprint.
	SetRunResult(ctx context.Context, fingerprint string, result *RunResult, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `yaml:"type" env:"SHIKRA_CACHE"`

	// Local LRU cache settings
	LocalMaxSize int           `yaml:"localMaxSize"`
	LocalTTL     time.Duration `yaml:"localTTL"`

	// Redis settings
	RedisAddr     string `yaml:"redisAddr" env:"SHIKRA_REDIS_ADDR"`
	RedisPassword string `yaml:"redisPassword" env:"SHIKRA_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redisDB"`

	// EnableTwoPhase layers the local LRU in front of Redis.
	EnableTwoPhase bool `yaml:"enableTwoPhase"`
}
