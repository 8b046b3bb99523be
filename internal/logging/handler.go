// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a custom slog handler that integrates with the Event Log system.
// It forwards logs at WARN level and above to the database-backed Event Log.
package logging

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"github.com/olegiv/feedadmin/internal/service"
	"github.com/olegiv/feedadmin/internal/store"
)

// EventLogHandler is a slog.Handler that wraps another handler and also writes
// WARN and ERROR level logs to the Event Log database.
type EventLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level
	attrs   []slog.Attr
	group   string
}

// NewEventLogHandler creates a new EventLogHandler that wraps the given handler.
func NewEventLogHandler(inner slog.Handler, db *sql.DB) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, db, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, db *sql.DB, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:   inner,
		queries: store.New(db),
		level:   level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.writeToEventLog(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	if name != "" {
		if clone.group != "" {
			clone.group += "." + name
		} else {
			clone.group = name
		}
	}
	return &clone
}

func (h *EventLogHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
	}
	return out
}

// writeToEventLog writes a log record to the Event Log database. The
// request context may already be cancelled, so a fresh one is used.
func (h *EventLogHandler) writeToEventLog(r slog.Record) {
	category, resource := "", ""
	var recAttrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "category":
			category = a.Value.String()
			return true
		case "resource":
			resource = a.Value.String()
		}
		recAttrs = append(recAttrs, a)
		return true
	})

	attrs := append(append([]slog.Attr(nil), h.attrs...), h.qualify(recAttrs)...)
	meta := make(map[string]string, len(attrs))
	for _, a := range attrs {
		meta[a.Key] = a.Value.Resolve().String()
	}
	if category == "" {
		category = inferCategory(r.Message)
	}

	_, _ = h.queries.CreateEvent(context.Background(), store.CreateEventParams{
		Level:     slogLevelToEventLevel(r.Level),
		Category:  category,
		Message:   r.Message,
		Resource:  resource,
		Metadata:  encodeMetadata(meta),
		CreatedAt: r.Time,
	})
}

// slogLevelToEventLevel converts a slog.Level to an Event Log level.
func slogLevelToEventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return service.EventLevelError
	case level >= slog.LevelWarn:
		return service.EventLevelWarning
	default:
		return service.EventLevelInfo
	}
}

// inferCategory guesses a category from the message text.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "backend") || strings.Contains(msg, "circuit breaker"):
		return service.EventCategoryBackend
	case strings.Contains(msg, "cache") || strings.Contains(msg, "redis"):
		return service.EventCategoryCache
	case strings.Contains(msg, "create") || strings.Contains(msg, "update") ||
		strings.Contains(msg, "delete") || strings.Contains(msg, "upload"):
		return service.EventCategoryContent
	default:
		return service.EventCategorySystem
	}
}

func encodeMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return "{}"
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(data)
}
