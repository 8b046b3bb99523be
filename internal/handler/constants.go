// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot is the root path.
	RouteRoot = "/"
	// RouteSuffixNew is the suffix for "new" routes.
	RouteSuffixNew = "/new"
	// RouteSuffixDelete is the suffix of the form-friendly delete route.
	RouteSuffixDelete = "/delete"

	// RouteParamID is the ID parameter pattern.
	RouteParamID = "/{id}"
	// RouteParamResource is the resource name parameter pattern.
	RouteParamResource = "/{resource}"

	// RouteAdmin is the admin mount point.
	RouteAdmin = "/admin"
	// RoutePlacement is the placement preview page.
	RoutePlacement = "/placement"
	// RouteGeoPreview is the geo-ads preview page.
	RouteGeoPreview = "/geo-preview"
	// RouteEvents is the activity log page.
	RouteEvents = "/events"
	// RouteCache is the cache stats page.
	RouteCache = "/cache"
	// RouteCacheClear clears cached lists.
	RouteCacheClear = "/cache/clear"
	// RouteJobRun triggers a scheduled job.
	RouteJobRun = "/jobs/{job}/run"

	// RouteAPIPlacementSlots is the slot calculator JSON endpoint.
	RouteAPIPlacementSlots = "/api/placement/slots"

	// RouteHealth and its sub-routes serve probes.
	RouteHealth      = "/health"
	RouteHealthLive  = "/health/live"
	RouteHealthReady = "/health/ready"
	// RouteMetrics serves Prometheus metrics.
	RouteMetrics = "/metrics"
	// RouteStatic serves embedded assets.
	RouteStatic = "/static/*"
)

// Redirect targets.
const (
	redirectAdmin          = "/admin"
	redirectAdminCache     = "/admin/cache"
	redirectAdminPlacement = "/admin/placement"
)

// Page template names.
const (
	pageDashboard  = "admin/dashboard"
	pageList       = "admin/list"
	pageForm       = "admin/form"
	pagePlacement  = "admin/placement"
	pageGeoPreview = "admin/geo_preview"
	pageEvents     = "admin/events"
	pageCache      = "admin/cache"
	pageError      = "admin/error"
)

// Query parameters.
const (
	paramQuery   = "q"
	paramRefresh = "refresh"
	paramPage    = "page"
	paramPerPage = "per_page"
)

// ListPerPage is the default number of list rows per page.
const ListPerPage = 25

// MaxListPerPage bounds the per_page query parameter.
const MaxListPerPage = 200
