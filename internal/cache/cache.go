// Package cache provides result memoization backends. Analysis runs are
// keyed by dataset fingerprint, so an unchanged dataset never pays for a
// second pass through the detectors.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-identity/shikra/internal/domain"
)

// New creates a cache from configuration.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		l2, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(NewLRUCache(cfg.LocalMaxSize), l2), nil
		}
		return l2, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache layers a local LRU in front of Redis. Reads fall through
// L1 to L2 and backfill L1 on a hit; writes go to both.
type TwoPhaseCache struct {
	l1 *LRUCache
	l2 *RedisCache
}

// NewTwoPhaseCache creates a two-phase cache with the given layers.
func NewTwoPhaseCache(l1 *LRUCache, l2 *RedisCache) *TwoPhaseCache {
	return &TwoPhaseCache{l1: l1, l2: l2}
}

// Get checks L1 first, then L2, backfilling L1 on an L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, key string) ([]byte, error) {
	if val, err := c.l1.Get(ctx, key); err == nil && val != nil {
		return val, nil
	}

	val, err := c.l2.Get(ctx, key)
	if err != nil || val == nil {
		return val, err
	}

	if err := c.l1.Set(ctx, key, val, time.Minute); err != nil {
		slog.Warn("two-phase cache: L1 backfill failed", "key", key, "error", err)
	}
	return val, nil
}

// Set writes to both layers. An L1 failure is logged but not fatal; L2 is
// the durable layer.
func (c *TwoPhaseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("two-phase cache: L1 set failed", "key", key, "error", err)
	}
	return c.l2.Set(ctx, key, value, ttl)
}

// Delete removes the key from both layers.
func (c *TwoPhaseCache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		slog.Warn("two-phase cache: L1 delete failed", "key", key, "error", err)
	}
	return c.l2.Delete(ctx, key)
}

// GetRunResult retrieves a memoized run result by dataset fingerprint.
func (c *TwoPhaseCache) GetRunResult(ctx context.Context, fingerprint string) (*domain.RunResult, error) {
	return getRunResult(ctx, c, fingerprint)
}

// SetRunResult memoizes a run result under its dataset fingerprint.
func (c *TwoPhaseCache) SetRunResult(ctx context.Context, fingerprint string, result *domain.RunResult, ttl time.Duration) error {
	return setRunResult(ctx, c, fingerprint, result, ttl)
}

// Ping checks connectivity of the durable layer.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	return c.l2.Ping(ctx)
}

// Close closes both layers.
func (c *TwoPhaseCache) Close() error {
	if err := c.l1.Close(); err != nil {
		return err
	}
	return c.l2.Close()
}
