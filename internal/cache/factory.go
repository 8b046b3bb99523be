// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"log/slog"
	"time"
)

// Config holds configuration for cache creation.
type Config struct {
	// RedisURL selects the Redis backend when set.
	RedisURL string
	// Prefix namespaces Redis keys.
	Prefix string
	// DefaultTTL is the default TTL for cache entries.
	DefaultTTL time.Duration
	// MaxSize is the maximum number of entries for memory cache (0 = unlimited).
	MaxSize int
	// CleanupInterval is the interval for expired entry cleanup.
	CleanupInterval time.Duration
}

// Info describes the cache that New selected.
type Info struct {
	Backend    string
	IsFallback bool
}

// New creates a Redis cache when RedisURL is set and reachable, otherwise an
// in-memory cache. A Redis failure is logged and falls back to memory so the
// admin keeps working without Redis.
func New(cfg Config, logger *slog.Logger) (Cache, Info) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RedisURL != "" {
		opts := DefaultRedisCacheOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}
		rc, err := NewRedisCache(opts)
		if err == nil {
			return rc, Info{Backend: "redis"}
		}
		logger.Warn("redis unavailable, using memory cache", "error", err)
		return newMemory(cfg), Info{Backend: "memory", IsFallback: true}
	}

	return newMemory(cfg), Info{Backend: "memory"}
}

func newMemory(cfg Config) *MemoryCache {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: interval,
	})
}
