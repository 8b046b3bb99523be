// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service records the admin's own activity in the local event log.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/mileusna/useragent"

	"github.com/olegiv/feedadmin/internal/store"
	"github.com/olegiv/feedadmin/internal/util"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryContent = "content"
	EventCategoryBackend = "backend"
	EventCategoryCache   = "cache"
	EventCategorySystem  = "system"
)

// Action is a content mutation performed through the admin.
type Action string

// Mutation actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParsedUA is the browser summary stored with each activity entry.
type ParsedUA struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device"`
}

// ParseUserAgent extracts browser, OS, and device type from a user agent string.
func ParseUserAgent(uaString string) ParsedUA {
	ua := useragent.Parse(uaString)

	result := ParsedUA{
		Browser: ua.Name,
		OS:      ua.OS,
	}
	if result.Browser == "" {
		result.Browser = "Unknown"
	}
	if result.OS == "" {
		result.OS = "Unknown"
	}

	switch {
	case ua.Mobile:
		result.DeviceType = "mobile"
	case ua.Tablet:
		result.DeviceType = "tablet"
	case ua.Bot:
		result.DeviceType = "bot"
	default:
		result.DeviceType = "desktop"
	}
	return result
}

// ActivityService writes and reads the activity log.
type ActivityService struct {
	queries *store.Queries
	now     func() time.Time
}

// NewActivityService creates a new ActivityService.
func NewActivityService(db *sql.DB) *ActivityService {
	return &ActivityService{queries: store.New(db), now: time.Now}
}

// Record stores a successful content mutation.
func (s *ActivityService) Record(ctx context.Context, r *http.Request, action Action, resource, itemID, title string) error {
	ua := r.UserAgent()
	parsed := ParseUserAgent(ua)

	msg := fmt.Sprintf("%s %s", action, resource)
	if title != "" {
		msg = fmt.Sprintf("%s %s %q", action, resource, title)
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     EventLevelInfo,
		Category:  EventCategoryContent,
		Message:   msg,
		Resource:  resource,
		ItemID:    itemID,
		IpAddress: ClientIP(r),
		UserAgent: ua,
		Metadata:  encodeMetadata(map[string]any{"action": string(action), "client": parsed}),
		CreatedAt: s.now(),
	})
	if err != nil {
		slog.Error("failed to record activity", "action", action, "resource", resource, "error", err)
		return err
	}
	return nil
}

// LogEvent creates a free-form event log entry.
func (s *ActivityService) LogEvent(ctx context.Context, level, category, message, ipAddress string, metadata map[string]any) error {
	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		IpAddress: ipAddress,
		Metadata:  encodeMetadata(metadata),
		CreatedAt: s.now(),
	})
	return err
}

// LogSystemEvent logs a system-related event.
func (s *ActivityService) LogSystemEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, EventCategorySystem, message, "", metadata)
}

// EventPage is one page of the activity log.
type EventPage struct {
	Events  []store.Event
	Total   int64
	Page    int
	PerPage int
}

// TotalPages returns the number of pages, at least 1.
func (p EventPage) TotalPages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// List returns a page of events. page is 1-based.
func (s *ActivityService) List(ctx context.Context, f store.EventFilter, page, perPage int) (EventPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 25
	}

	total, err := s.queries.CountEvents(ctx, f)
	if err != nil {
		return EventPage{}, fmt.Errorf("counting events: %w", err)
	}
	events, err := s.queries.ListEvents(ctx, store.ListEventsParams{
		EventFilter: f,
		Limit:       int64(perPage),
		Offset:      int64((page - 1) * perPage),
	})
	if err != nil {
		return EventPage{}, fmt.Errorf("listing events: %w", err)
	}
	return EventPage{Events: events, Total: total, Page: page, PerPage: perPage}, nil
}

// Summary returns event counts per level over the last period.
func (s *ActivityService) Summary(ctx context.Context, period time.Duration) (map[string]int64, error) {
	return s.queries.CountEventsByLevelSince(ctx, s.now().Add(-period))
}

// DeleteOldEvents removes events older than the specified duration.
func (s *ActivityService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queries.DeleteEventsBefore(ctx, s.now().Add(-olderThan))
}

// ClientIP returns the request's client address without port. chi's
// RealIP middleware has already applied X-Forwarded-For when configured.
func ClientIP(r *http.Request) string {
	if ip := util.ParseIP(r.RemoteAddr); ip != nil {
		return ip.String()
	}
	return ""
}

func encodeMetadata(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}
