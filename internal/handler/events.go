// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/olegiv/feedadmin/internal/render"
	"github.com/olegiv/feedadmin/internal/resource"
	"github.com/olegiv/feedadmin/internal/service"
	"github.com/olegiv/feedadmin/internal/store"
)

// EventsPerPage is the number of events to display per page.
const EventsPerPage = 25

// EventLister pages through the activity log.
type EventLister interface {
	List(ctx context.Context, f store.EventFilter, page, perPage int) (service.EventPage, error)
}

// EventsHandler handles event log viewing routes.
type EventsHandler struct {
	events    EventLister
	renderer  *render.Renderer
	resources []string
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(events EventLister, renderer *render.Renderer, registry *resource.Registry) *EventsHandler {
	h := &EventsHandler{events: events, renderer: renderer}
	for _, res := range registry.List() {
		h.resources = append(h.resources, res.Name)
	}
	return h
}

// EventRow is an event prepared for display.
type EventRow struct {
	ID          int64
	Level       string
	Category    string
	Message     string
	Resource    string
	ItemID      string
	ItemURL     string
	IPAddress   string
	Details     string
	DetailsLong bool
	CreatedAt   string
}

// detailsLengthThreshold is the max chars before details are collapsible
const detailsLengthThreshold = 80

// formatMetadata converts JSON metadata to readable text format.
// Example: {"action":"update","client":{"browser":"Firefox"}} -> "action: update, client: {...}"
func formatMetadata(metadata string) string {
	if metadata == "" || metadata == "{}" {
		return ""
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(metadata), &data); err != nil {
		return metadata
	}

	if len(data) == 0 {
		return ""
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		var strValue string
		switch v := data[key].(type) {
		case string:
			strValue = v
		case float64:
			strValue = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			strValue = strconv.FormatBool(v)
		case map[string]any:
			strValue = formatNested(v)
		default:
			if b, err := json.Marshal(v); err == nil {
				strValue = string(b)
			}
		}
		parts = append(parts, key+": "+strValue)
	}

	return strings.Join(parts, ", ")
}

// formatNested flattens one level of nested metadata, e.g. the parsed
// client of an activity entry.
func formatNested(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			values = append(values, s)
		}
	}
	return strings.Join(values, " / ")
}

// EventsListData holds data for the events list template.
type EventsListData struct {
	Events      []EventRow
	TotalEvents int64
	Level       string
	Category    string
	Resource    string
	Levels      []string
	Categories  []string
	Resources   []string
	Pagination  AdminPagination
}

// List handles GET /admin/events - displays a paginated list of events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.EventFilter{
		Level:    query.Get("level"),
		Category: query.Get("category"),
		Resource: query.Get("resource"),
	}

	page := ParsePageParam(r)
	result, err := h.events.List(r.Context(), filter, page, EventsPerPage)
	if err != nil {
		logAndInternalError(w, "failed to list events", "error", err)
		return
	}
	if clamped := ClampPage(page, result.TotalPages()); clamped != page {
		page = clamped
		if result, err = h.events.List(r.Context(), filter, page, EventsPerPage); err != nil {
			logAndInternalError(w, "failed to list events", "error", err)
			return
		}
	}

	rows := make([]EventRow, len(result.Events))
	for i, e := range result.Events {
		rows[i] = eventRow(e)
	}

	renderPage(w, r, h.renderer, http.StatusOK, pageEvents, render.TemplateData{
		Title:  "Activity log",
		Active: "events",
		Data: EventsListData{
			Events:      rows,
			TotalEvents: result.Total,
			Level:       filter.Level,
			Category:    filter.Category,
			Resource:    filter.Resource,
			Levels:      []string{service.EventLevelInfo, service.EventLevelWarning, service.EventLevelError},
			Categories: []string{service.EventCategoryContent, service.EventCategoryBackend,
				service.EventCategoryCache, service.EventCategorySystem},
			Resources:  h.resources,
			Pagination: BuildAdminPagination(page, int(result.Total), EventsPerPage, RouteAdmin+RouteEvents, query),
		},
	})
}

// eventRow prepares an event for display.
func eventRow(e store.Event) EventRow {
	details := formatMetadata(e.Metadata)
	row := EventRow{
		ID:          e.ID,
		Level:       e.Level,
		Category:    e.Category,
		Message:     e.Message,
		Resource:    e.Resource,
		ItemID:      e.ItemID,
		IPAddress:   e.IpAddress,
		Details:     details,
		DetailsLong: len(details) > detailsLengthThreshold,
		CreatedAt:   e.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if e.Resource != "" && e.ItemID != "" && !strings.HasPrefix(e.Message, string(service.ActionDelete)) {
		row.ItemURL = RouteAdmin + "/" + e.Resource + "/" + url.PathEscape(e.ItemID)
	}
	return row
}
