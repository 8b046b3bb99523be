// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/feedadmin/internal/backend"
	"github.com/olegiv/feedadmin/internal/cache"
	"github.com/olegiv/feedadmin/internal/config"
	"github.com/olegiv/feedadmin/internal/geoip"
	"github.com/olegiv/feedadmin/internal/handler"
	"github.com/olegiv/feedadmin/internal/logging"
	"github.com/olegiv/feedadmin/internal/metrics"
	"github.com/olegiv/feedadmin/internal/middleware"
	"github.com/olegiv/feedadmin/internal/render"
	"github.com/olegiv/feedadmin/internal/resource"
	"github.com/olegiv/feedadmin/internal/scheduler"
	"github.com/olegiv/feedadmin/internal/service"
	"github.com/olegiv/feedadmin/internal/session"
	"github.com/olegiv/feedadmin/internal/store"
	"github.com/olegiv/feedadmin/internal/version"
	"github.com/olegiv/feedadmin/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "feedadmin - admin dashboard for feed content\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FEEDADMIN_API_BASE         Content backend origin (default: %s)\n", config.DefaultAPIBase)
		_, _ = fmt.Fprintf(os.Stderr, "  FEEDADMIN_API_TOKEN        Bearer token sent to the backend (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FEEDADMIN_SESSION_SECRET   Session and CSRF key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FEEDADMIN_DB_PATH          SQLite database path (default: ./data/feedadmin.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FEEDADMIN_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FEEDADMIN_ENV              Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FEEDADMIN_REDIS_URL        Redis URL for shared list caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FEEDADMIN_GEOIP_DB_PATH    GeoLite2-Country.mmdb for the geo preview (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.New(appVersion, appGitCommit, appBuildTime)
	if *showVersion {
		_, _ = fmt.Printf("feedadmin %s\n", info)
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the activity log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	sessionManager := session.New(db, cfg.IsDevelopment())

	listStore, cacheInfo := cache.New(cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheDuration(),
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}, logger)
	defer func() { _ = listStore.Close() }()
	if cacheInfo.IsFallback {
		slog.Warn("list cache initialized", "backend", cacheInfo.Backend, "note", "Redis unavailable, using fallback")
	} else {
		slog.Info("list cache initialized", "backend", cacheInfo.Backend)
	}

	client, err := backend.New(backend.Options{
		BaseURL: cfg.APIBase,
		Token:   cfg.APIToken,
		Timeout: cfg.BackendTimeout,
		RPS:     cfg.BackendRPS,
		Burst:   cfg.BackendBurst,
		Retries: cfg.BackendRetries,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}
	slog.Info("content backend configured", "base", client.BaseURL())
	lists := cache.NewListCache(listStore, client, cfg.CacheDuration(), logger)

	geo := geoip.NewLookup()
	if err := geo.Init(cfg.GeoIPDBPath); err != nil {
		slog.Warn("GeoIP disabled", "path", cfg.GeoIPDBPath, "error", err)
	}
	defer func() { _ = geo.Close() }()

	activity := service.NewActivityService(db)

	schedOpts := scheduler.Options{
		Purger:        activity,
		Retention:     time.Duration(cfg.EventRetentionDays) * 24 * time.Hour,
		Backend:       client,
		ProbeInterval: cfg.ProbeInterval,
	}
	if cfg.GeoIPEnabled() {
		schedOpts.GeoIP = geo
	}
	sched, err := scheduler.New(logger, schedOpts)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	registry := resource.Default()
	var nav []render.NavItem
	for _, res := range registry.List() {
		nav = append(nav, render.NavItem{Name: res.Name, Title: res.Title, URL: handler.RouteAdmin + "/" + res.Name})
	}

	renderer, err := render.New(render.Config{
		TemplatesFS:    web.Templates(),
		SessionManager: sessionManager,
		Nav:            nav,
		Version:        info.Version,
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	cacheHandler := handler.NewCacheHandler(renderer, lists, cacheInfo, activity)
	admin := &handler.Admin{
		Dashboard: handler.NewDashboardHandler(renderer, registry, client, cacheHandler, activity, sched),
		Resources: handler.NewResourceHandler(registry, client, lists, activity, renderer, cfg.MaxUploadBytes()),
		Placement: handler.NewPlacementHandler(renderer, registry),
		Geo:       handler.NewGeoHandler(renderer, registry, lists, geo),
		Events:    handler.NewEventsHandler(activity, renderer, registry),
		Cache:     cacheHandler,
	}
	healthHandler := handler.NewHealthHandler(db, client, sched, info.Version)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	// Probes and metrics sit outside sessions and CSRF.
	healthHandler.MountHealth(r)
	r.Handle(handler.RouteMetrics, metrics.Handler())

	r.Handle(handler.RouteStatic, http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.BackendTimeout + 15*time.Second))
		r.Use(middleware.NewRateLimiter(20, 60).Middleware())
		r.Use(sessionManager.LoadAndSave)
		r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerPort)))

		r.Get(handler.RouteRoot, func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, handler.RouteAdmin, http.StatusFound)
		})
		admin.Mount(r)
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute, // uploads are forwarded to the backend
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
