// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/olegiv/feedadmin/internal/backend"
	"github.com/olegiv/feedadmin/internal/geoip"
	"github.com/olegiv/feedadmin/internal/render"
	"github.com/olegiv/feedadmin/internal/resource"
	"github.com/olegiv/feedadmin/internal/service"
)

// geoResource is the collection targeted by country.
const geoResource = "geo-ads"

// GeoLookup resolves addresses to country codes.
type GeoLookup interface {
	Country(addr string) (string, error)
	IsEnabled() bool
}

// GeoHandler previews which geo ads a visitor would see.
type GeoHandler struct {
	renderer *render.Renderer
	registry *resource.Registry
	lists    ListStore
	geo      GeoLookup
	now      func() time.Time
}

// NewGeoHandler creates a GeoHandler.
func NewGeoHandler(renderer *render.Renderer, registry *resource.Registry, lists ListStore, geo GeoLookup) *GeoHandler {
	return &GeoHandler{
		renderer: renderer,
		registry: registry,
		lists:    lists,
		geo:      geo,
		now:      time.Now,
	}
}

// GeoMatch is a geo ad targeting the resolved country.
type GeoMatch struct {
	Row      ListRow
	Priority int
	Live     bool
	Status   string
}

// GeoPreviewData is the data of the geo preview page.
type GeoPreviewData struct {
	IP          string
	Country     string
	CountryName string
	GeoEnabled  bool
	Error       string
	Matches     []GeoMatch
	LiveCount   int
	Checked     bool
}

// Preview handles GET /admin/geo-preview. ?ip= picks the address, falling
// back to the caller's. ?country= skips the lookup.
func (h *GeoHandler) Preview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	data := GeoPreviewData{
		IP:         strings.TrimSpace(query.Get("ip")),
		GeoEnabled: h.geo != nil && h.geo.IsEnabled(),
	}
	if data.IP == "" {
		data.IP = service.ClientIP(r)
	}

	status := http.StatusOK
	code := strings.ToUpper(strings.TrimSpace(query.Get("country")))
	if code == "" && h.geo != nil {
		var err error
		code, err = h.geo.Country(data.IP)
		if err != nil {
			if errors.Is(err, geoip.ErrInvalidIP) {
				data.Error = "Not a valid IP address"
				status = http.StatusBadRequest
			} else {
				slog.Warn("geo lookup failed", "ip", data.IP, "error", err)
				data.Error = "Country lookup failed"
			}
		}
	}
	data.Country = code
	data.CountryName = geoip.CountryName(code)

	if code != "" {
		res, ok := h.registry.Get(geoResource)
		if !ok {
			renderError(w, r, h.renderer, http.StatusNotFound, "Geo ads are not configured", redirectAdmin)
			return
		}
		body, _, err := h.lists.Get(r.Context(), res.Name, res.Endpoint, false)
		if err == nil {
			var records []backend.Record
			if records, err = backend.DecodeList(body); err == nil {
				data.Matches = h.match(res, records, code)
				data.Checked = true
			}
		}
		if err != nil {
			slog.Error("failed to load geo ads", "error", err)
			data.Error = backend.UserMessage(err)
			status = http.StatusBadGateway
		}
	}
	for _, m := range data.Matches {
		if m.Live {
			data.LiveCount++
		}
	}

	renderPage(w, r, h.renderer, status, pageGeoPreview, render.TemplateData{
		Title:  "Geo preview",
		Active: "geo-preview",
		Data:   data,
	})
}

// match returns the ads listing code, live ones first, then by priority.
func (h *GeoHandler) match(res *resource.Resource, records []backend.Record, code string) []GeoMatch {
	now := h.now()
	var out []GeoMatch
	for _, rec := range records {
		if !targets(rec.Strings("countries"), code) {
			continue
		}
		live, status := liveStatus(rec, now)
		out = append(out, GeoMatch{
			Row:      buildRow(res.NewItem(rec)),
			Priority: rec.Int("priority"),
			Live:     live,
			Status:   status,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Live != out[j].Live {
			return out[i].Live
		}
		return out[i].Priority > out[j].Priority
	})
	return out
}

func targets(countries []string, code string) bool {
	for _, c := range countries {
		if strings.EqualFold(strings.TrimSpace(c), code) {
			return true
		}
	}
	return false
}

// liveStatus reports whether an ad is active and inside its schedule.
func liveStatus(rec backend.Record, now time.Time) (bool, string) {
	if _, ok := rec["isActive"]; ok && !rec.Bool("isActive") {
		return false, "inactive"
	}
	if s := rec.String("startsAt"); s != "" {
		if t, err := resource.ParseDateTime(s); err == nil && now.Before(t) {
			return false, "scheduled"
		}
	}
	if s := rec.String("endsAt"); s != "" {
		if t, err := resource.ParseDateTime(s); err == nil && !now.Before(t) {
			return false, "ended"
		}
	}
	return true, "live"
}
