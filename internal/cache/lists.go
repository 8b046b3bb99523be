// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/olegiv/feedadmin/internal/metrics"
)

const (
	// listKeyPrefix namespaces list bodies inside the shared cache.
	listKeyPrefix = "list:"
	// listFetchTimeout bounds a shared fetch once it is detached from the
	// request that started it.
	listFetchTimeout = time.Minute
)

// ListSource loads the raw list body of a backend collection.
type ListSource interface {
	FetchList(ctx context.Context, endpoint string) ([]byte, error)
}

// ListCache caches backend list bodies per resource. A successful mutation
// must call Invalidate so the next list view refetches.
type ListCache struct {
	cache  Cache
	source ListSource
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group

	mu          sync.Mutex
	epoch       uint64
	generations map[string]uint64
}

// NewListCache creates a list cache on top of c.
func NewListCache(c Cache, source ListSource, ttl time.Duration, logger *slog.Logger) *ListCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListCache{
		cache:       c,
		source:      source,
		ttl:         ttl,
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

// Get returns the list body of a resource. With refresh the cache is
// bypassed and overwritten. hit reports whether the body came from cache.
func (l *ListCache) Get(ctx context.Context, resource, endpoint string, refresh bool) (body []byte, hit bool, err error) {
	key := listKeyPrefix + resource

	if !refresh {
		data, err := l.cache.Get(ctx, key)
		switch {
		case err == nil:
			metrics.ListCacheResults.WithLabelValues(resource, "hit").Inc()
			return data, true, nil
		case !errors.Is(err, ErrCacheMiss):
			l.logger.Warn("list cache read failed", "resource", resource, "error", err)
		}
		metrics.ListCacheResults.WithLabelValues(resource, "miss").Inc()
	} else {
		metrics.ListCacheResults.WithLabelValues(resource, "refresh").Inc()
	}

	// Fetches are shared per generation so a request made after a mutation
	// never joins a fetch that started before it.
	gen := l.generation(resource)
	ch := l.group.DoChan(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listFetchTimeout)
		defer cancel()
		return l.source.FetchList(fetchCtx, endpoint)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	if res.Err != nil {
		return nil, false, res.Err
	}
	data := res.Val.([]byte)

	// A mutation during the fetch makes this body stale.
	if l.generation(resource) == gen {
		if err := l.cache.Set(ctx, key, data, l.ttl); err != nil {
			l.logger.Warn("list cache write failed", "resource", resource, "error", err)
		}
	}
	return data, false, nil
}

// Invalidate drops the cached list of a resource.
func (l *ListCache) Invalidate(ctx context.Context, resource string) error {
	l.mu.Lock()
	l.generations[resource]++
	l.mu.Unlock()

	if err := l.cache.Delete(ctx, listKeyPrefix+resource); err != nil {
		l.logger.Warn("list cache invalidation failed", "resource", resource, "error", err)
		return err
	}
	return nil
}

// InvalidateAll drops every cached list.
func (l *ListCache) InvalidateAll(ctx context.Context) error {
	l.mu.Lock()
	l.epoch++
	l.mu.Unlock()
	return l.cache.Clear(ctx)
}

// Stats returns the statistics of the underlying cache, if it keeps any.
func (l *ListCache) Stats() (Stats, bool) {
	sp, ok := l.cache.(StatsProvider)
	if !ok {
		return Stats{}, false
	}
	return sp.Stats(), true
}

func (l *ListCache) generation(resource string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch + l.generations[resource]
}

// HealthCheck pings the underlying cache when it supports it.
func (l *ListCache) HealthCheck(ctx context.Context) error {
	if p, ok := l.cache.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
