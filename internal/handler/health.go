// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/olegiv/feedadmin/internal/scheduler"
)

// readyTimeout bounds the live backend ping of the readiness probe.
const readyTimeout = 3 * time.Second

// Health check states.
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
	statusUnknown   = "unknown"
)

// BackendPinger checks backend reachability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// ProbeSource returns the last scheduled backend probe.
type ProbeSource interface {
	Probe() scheduler.ProbeResult
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db        *sql.DB
	backend   BackendPinger
	probes    ProbeSource
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler. probes may be nil.
func NewHealthHandler(db *sql.DB, backend BackendPinger, probes ProbeSource, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		backend:   backend,
		probes:    probes,
		version:   version,
		startTime: time.Now(),
	}
}

// StartTime returns when the handler (and application) was started.
func (h *HealthHandler) StartTime() time.Time {
	return h.startTime
}

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

// Health handles GET /health. The local database decides between healthy
// and unhealthy; an unreachable backend only degrades the status since
// the admin still serves cached lists.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbCheck := h.checkDatabase(r.Context())
	backendCheck := h.checkProbe()

	overallStatus := statusHealthy
	code := http.StatusOK
	switch {
	case dbCheck.Status != statusHealthy:
		overallStatus = statusUnhealthy
		code = http.StatusServiceUnavailable
	case backendCheck.Status == statusUnhealthy:
		overallStatus = statusDegraded
	}

	status := HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks: map[string]Check{
			"database": dbCheck,
			"backend":  backendCheck,
		},
	}
	if r.URL.Query().Get("verbose") == "true" {
		status.System = getSystemInfo()
	}

	writeJSON(w, code, status)
}

// Liveness handles GET /health/live - simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

// Readiness handles GET /health/ready. It requires the local database and
// a live answer from the content backend.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	dbCheck := h.checkDatabase(r.Context())
	backendCheck := h.checkBackend(r.Context())

	if dbCheck.Status == statusHealthy && backendCheck.Status == statusHealthy {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
		})
		return
	}

	resp := map[string]string{"status": "not_ready"}
	if dbCheck.Status != statusHealthy {
		resp["database"] = dbCheck.Message
	}
	if backendCheck.Status != statusHealthy {
		resp["backend"] = backendCheck.Message
	}
	writeJSON(w, http.StatusServiceUnavailable, resp)
}

// checkDatabase verifies database connectivity.
func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	start := time.Now()
	err := h.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{
			Status:  statusUnhealthy,
			Message: err.Error(),
			Latency: latency.String(),
		}
	}
	return Check{
		Status:  statusHealthy,
		Message: "Connected",
		Latency: latency.String(),
	}
}

// checkBackend pings the content backend directly.
func (h *HealthHandler) checkBackend(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	start := time.Now()
	err := h.backend.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: statusHealthy, Message: "Reachable", Latency: latency.String()}
}

// checkProbe reports the last scheduled backend probe.
func (h *HealthHandler) checkProbe() Check {
	if h.probes == nil {
		return Check{Status: statusUnknown, Message: "No probe configured"}
	}
	p := h.probes.Probe()
	switch {
	case p.CheckedAt.IsZero():
		return Check{Status: statusUnknown, Message: "Not probed yet"}
	case !p.OK:
		return Check{Status: statusUnhealthy, Message: p.Error, Latency: p.Latency.String()}
	default:
		return Check{
			Status:  statusHealthy,
			Message: "Checked " + p.CheckedAt.UTC().Format(time.RFC3339),
			Latency: p.Latency.String(),
		}
	}
}

// getSystemInfo returns system-level metrics.
func getSystemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     formatBytes(m.Alloc),
		MemSys:       formatBytes(m.Sys),
	}
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
