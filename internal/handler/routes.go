// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"github.com/go-chi/chi/v5"
)

// Admin groups the handlers of the admin surface.
type Admin struct {
	Dashboard *DashboardHandler
	Resources *ResourceHandler
	Placement *PlacementHandler
	Geo       *GeoHandler
	Events    *EventsHandler
	Cache     *CacheHandler
}

// Mount registers the admin pages on r under /admin and the JSON API
// under /api. Fixed pages are registered before the resource catch-all.
func (a *Admin) Mount(r chi.Router) {
	r.Route(RouteAdmin, func(r chi.Router) {
		r.Get(RouteRoot, a.Dashboard.Dashboard)
		r.Post(RouteJobRun, a.Dashboard.RunJob)
		r.Get(RoutePlacement, a.Placement.Preview)
		r.Get(RouteGeoPreview, a.Geo.Preview)
		r.Get(RouteEvents, a.Events.List)
		r.Get(RouteCache, a.Cache.Stats)
		r.Post(RouteCacheClear, a.Cache.Clear)
		a.Resources.Mount(r)
	})
	r.Get(RouteAPIPlacementSlots, a.Placement.APISlots)
}

// MountHealth registers the health probes.
func (h *HealthHandler) MountHealth(r chi.Router) {
	r.Get(RouteHealth, h.Health)
	r.Get(RouteHealthLive, h.Liveness)
	r.Get(RouteHealthReady, h.Readiness)
}
