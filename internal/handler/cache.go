// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/olegiv/feedadmin/internal/cache"
	"github.com/olegiv/feedadmin/internal/render"
	"github.com/olegiv/feedadmin/internal/service"
)

// CacheAdmin is the list cache as seen by the cache page.
type CacheAdmin interface {
	Stats() (cache.Stats, bool)
	InvalidateAll(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// EventLogger writes free-form activity log entries.
type EventLogger interface {
	LogEvent(ctx context.Context, level, category, message, ipAddress string, metadata map[string]any) error
}

// CacheHandler handles cache management routes.
type CacheHandler struct {
	renderer *render.Renderer
	lists    CacheAdmin
	info     cache.Info
	events   EventLogger
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(renderer *render.Renderer, lists CacheAdmin, info cache.Info, events EventLogger) *CacheHandler {
	return &CacheHandler{
		renderer: renderer,
		lists:    lists,
		info:     info,
		events:   events,
	}
}

// CacheStatsData holds data for the cache stats template.
type CacheStatsData struct {
	Stats       cache.Stats
	HasStats    bool
	Info        cache.Info
	IsRedis     bool
	HealthError string // Non-empty if health check failed
}

// Stats handles GET /admin/cache - displays cache statistics.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	data := h.data(r.Context())

	renderPage(w, r, h.renderer, http.StatusOK, pageCache, render.TemplateData{
		Title:  "Cache",
		Active: "cache",
		Data:   data,
	})
}

func (h *CacheHandler) data(ctx context.Context) CacheStatsData {
	stats, ok := h.lists.Stats()
	data := CacheStatsData{
		Stats:    stats,
		HasStats: ok,
		Info:     h.info,
		IsRedis:  h.info.Backend == "redis",
	}
	if err := h.lists.HealthCheck(ctx); err != nil {
		data.HealthError = err.Error()
	}
	return data
}

// Clear handles POST /admin/cache/clear - drops every cached list.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.lists.InvalidateAll(r.Context()); err != nil {
		slog.Error("cache clear failed", "error", err)
		flashError(w, r, h.renderer, redirectAdminCache, "Failed to clear cache: "+err.Error())
		return
	}
	slog.Info("cache cleared", "backend", h.info.Backend)

	if h.events != nil {
		_ = h.events.LogEvent(r.Context(), service.EventLevelInfo, service.EventCategoryCache,
			"All cached lists cleared", service.ClientIP(r), map[string]any{"backend": h.info.Backend})
	}

	flashSuccess(w, r, h.renderer, redirectAdminCache, "All cached lists cleared")
}
