// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/feedadmin/internal/render"
	"github.com/olegiv/feedadmin/internal/resource"
	"github.com/olegiv/feedadmin/internal/scheduler"
	"github.com/olegiv/feedadmin/internal/service"
	"github.com/olegiv/feedadmin/internal/store"
)

// recentEvents is the number of activity entries on the dashboard.
const recentEvents = 10

// JobRunner exposes the scheduler to the dashboard.
type JobRunner interface {
	List() []scheduler.JobInfo
	TriggerNow(name string) error
	Probe() scheduler.ProbeResult
}

// BackendInfo describes the content backend connection.
type BackendInfo interface {
	BaseURL() string
	BreakerState() string
}

// ActivityReader is the activity log as seen by the dashboard.
type ActivityReader interface {
	EventLister
	Summary(ctx context.Context, period time.Duration) (map[string]int64, error)
}

// DashboardHandler serves the admin landing page.
type DashboardHandler struct {
	renderer *render.Renderer
	registry *resource.Registry
	backend  BackendInfo
	cache    *CacheHandler
	activity ActivityReader
	jobs     JobRunner
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(renderer *render.Renderer, registry *resource.Registry, backend BackendInfo, cache *CacheHandler, activity ActivityReader, jobs JobRunner) *DashboardHandler {
	return &DashboardHandler{
		renderer: renderer,
		registry: registry,
		backend:  backend,
		cache:    cache,
		activity: activity,
		jobs:     jobs,
	}
}

// ResourceCard is one collection tile of the dashboard.
type ResourceCard struct {
	Name      string
	Title     string
	URL       string
	NewURL    string
	Placement string
}

// DashboardData holds data for the dashboard template.
type DashboardData struct {
	Resources    []ResourceCard
	BackendURL   string
	BreakerState string
	Probe        scheduler.ProbeResult
	Cache        CacheStatsData
	Summary      map[string]int64
	Events       []EventRow
	Jobs         []scheduler.JobInfo
}

// Dashboard handles GET /admin.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := DashboardData{
		BackendURL:   h.backend.BaseURL(),
		BreakerState: h.backend.BreakerState(),
	}

	for _, res := range h.registry.List() {
		card := ResourceCard{
			Name:   res.Name,
			Title:  res.Title,
			URL:    resourceURL(res),
			NewURL: resourceURL(res) + RouteSuffixNew,
		}
		if res.Placement != nil {
			card.Placement = res.Placement.ZeroCount.String()
		}
		data.Resources = append(data.Resources, card)
	}

	if h.cache != nil {
		data.Cache = h.cache.data(r.Context())
	}
	if h.jobs != nil {
		data.Probe = h.jobs.Probe()
		data.Jobs = h.jobs.List()
	}

	if h.activity != nil {
		summary, err := h.activity.Summary(r.Context(), 24*time.Hour)
		if err != nil {
			slog.Warn("failed to summarize activity", "error", err)
		}
		data.Summary = summary

		page, err := h.activity.List(r.Context(), store.EventFilter{}, 1, recentEvents)
		if err != nil {
			slog.Warn("failed to load recent events", "error", err)
		}
		for _, e := range page.Events {
			data.Events = append(data.Events, eventRow(e))
		}
	}

	renderPage(w, r, h.renderer, http.StatusOK, pageDashboard, render.TemplateData{
		Title:  "Dashboard",
		Active: "dashboard",
		Data:   data,
	})
}

// RunJob handles POST /admin/jobs/{job}/run.
func (h *DashboardHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	if h.jobs == nil {
		flashError(w, r, h.renderer, redirectAdmin, "Scheduler is not running")
		return
	}

	err := h.jobs.TriggerNow(name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		flashError(w, r, h.renderer, redirectAdmin, "Unknown job "+name)
	case errors.Is(err, scheduler.ErrTriggerLimited):
		flashError(w, r, h.renderer, redirectAdmin, "Job "+name+" was run moments ago, try again shortly")
	case err != nil:
		slog.Warn("manual job run failed", "job", name, "error", err)
		flashError(w, r, h.renderer, redirectAdmin, "Job "+name+" failed: "+err.Error())
	default:
		flashSuccess(w, r, h.renderer, redirectAdmin, "Job "+name+" completed")
	}
}

var _ ActivityReader = (*service.ActivityService)(nil)
