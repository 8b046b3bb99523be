// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the admin's housekeeping jobs on cron schedules:
// activity log retention, GeoIP database reload and the backend probe.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/olegiv/feedadmin/internal/metrics"
)

// Job names.
const (
	JobPurgeEvents  = "purge-events"
	JobReloadGeoIP  = "reload-geoip"
	JobProbeBackend = "probe-backend"
)

const jobTimeout = 30 * time.Second

// ErrJobNotFound is returned for unknown job names.
var ErrJobNotFound = errors.New("job not found")

// ErrTriggerLimited is returned when a job is triggered manually too often.
var ErrTriggerLimited = errors.New("manual trigger rate limited")

// EventPurger deletes old activity log entries.
type EventPurger interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// GeoReloader reloads a GeoIP database from disk.
type GeoReloader interface {
	Reload() error
}

// Pinger checks backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the scheduler. Nil dependencies disable their jobs.
type Options struct {
	Purger    EventPurger
	Retention time.Duration

	GeoIP GeoReloader

	Backend       Pinger
	ProbeInterval time.Duration
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	LastError   string
}

// ProbeResult is the outcome of the latest backend probe.
type ProbeResult struct {
	OK        bool
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

type job struct {
	name        string
	description string
	schedule    string
	entryID     cron.EntryID
	run         func(ctx context.Context) error
	limiter     *rate.Limiter

	mu      sync.Mutex
	lastErr string
}

// Scheduler owns the cron instance and its jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	opts   Options

	mu   sync.RWMutex
	jobs map[string]*job

	probeMu sync.RWMutex
	probe   ProbeResult
}

// New creates a scheduler and registers the jobs whose dependencies are set.
func New(logger *slog.Logger, opts Options) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger: logger,
		opts:   opts,
		jobs:   make(map[string]*job),
	}

	if opts.Purger != nil && opts.Retention > 0 {
		if err := s.add(JobPurgeEvents, "Delete activity log entries past retention", "30 3 * * *", s.purgeEvents); err != nil {
			return nil, err
		}
	}
	if opts.GeoIP != nil {
		if err := s.add(JobReloadGeoIP, "Reload the GeoIP database when the file changes", "0 4 * * *", s.reloadGeoIP); err != nil {
			return nil, err
		}
	}
	if opts.Backend != nil {
		interval := opts.ProbeInterval
		if interval <= 0 {
			interval = time.Minute
		}
		if err := s.add(JobProbeBackend, "Check that the content backend answers", "@every "+interval.String(), s.probeBackend); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, description, schedule string, run func(ctx context.Context) error) error {
	j := &job{
		name:        name,
		description: description,
		schedule:    schedule,
		run:         run,
		limiter:     rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	id, err := s.cron.AddFunc(schedule, func() { _ = s.execute(j) })
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	j.entryID = id

	s.mu.Lock()
	s.jobs[name] = j
	s.mu.Unlock()

	s.logger.Debug("registered scheduled job", "name", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) execute(j *job) error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	err := j.run(ctx)

	j.mu.Lock()
	if err != nil {
		j.lastErr = err.Error()
	} else {
		j.lastErr = ""
	}
	j.mu.Unlock()

	if err != nil {
		metrics.JobRunsTotal.WithLabelValues(j.name, "error").Inc()
		s.logger.Error("scheduled job failed", "job", j.name, "error", err)
		return err
	}
	metrics.JobRunsTotal.WithLabelValues(j.name, "success").Inc()
	return nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.entryID)
		j.mu.Lock()
		lastErr := j.lastErr
		j.mu.Unlock()
		result = append(result, JobInfo{
			Name:        j.name,
			Description: j.description,
			Schedule:    j.schedule,
			LastRun:     entry.Prev,
			NextRun:     entry.Next,
			LastError:   lastErr,
		})
	}
	sort.Slice(result, func(a, b int) bool { return result[a].Name < result[b].Name })
	return result
}

// TriggerNow runs a job immediately in the caller's goroutine.
func (s *Scheduler) TriggerNow(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !j.limiter.Allow() {
		return fmt.Errorf("%w: %s", ErrTriggerLimited, name)
	}

	s.logger.Info("manually triggering job", "name", name)
	return s.execute(j)
}

// Probe returns the latest backend probe result.
func (s *Scheduler) Probe() ProbeResult {
	s.probeMu.RLock()
	defer s.probeMu.RUnlock()
	return s.probe
}

func (s *Scheduler) purgeEvents(ctx context.Context) error {
	n, err := s.opts.Purger.DeleteOldEvents(ctx, s.opts.Retention)
	if err != nil {
		return fmt.Errorf("purging events: %w", err)
	}
	if n > 0 {
		s.logger.Info("purged old activity events", "count", n, "retention", s.opts.Retention)
	}
	return nil
}

func (s *Scheduler) reloadGeoIP(_ context.Context) error {
	if err := s.opts.GeoIP.Reload(); err != nil {
		return fmt.Errorf("reloading GeoIP: %w", err)
	}
	return nil
}

func (s *Scheduler) probeBackend(ctx context.Context) error {
	start := time.Now()
	err := s.opts.Backend.Ping(ctx)

	result := ProbeResult{OK: err == nil, Latency: time.Since(start), CheckedAt: start}
	if err != nil {
		result.Error = err.Error()
		metrics.BackendUp.Set(0)
	} else {
		metrics.BackendUp.Set(1)
	}

	s.probeMu.Lock()
	prev := s.probe
	s.probe = result
	s.probeMu.Unlock()

	if !prev.CheckedAt.IsZero() && prev.OK != result.OK {
		if result.OK {
			s.logger.Info("backend probe recovered", "latency", result.Latency)
		} else {
			s.logger.Warn("backend probe failing", "category", "backend", "error", err)
		}
	}
	if err != nil {
		return fmt.Errorf("probing backend: %w", err)
	}
	return nil
}
