package logging

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"

	"github.com/olegiv/feedadmin/internal/service"
	"github.com/olegiv/feedadmin/internal/store"
	"github.com/olegiv/feedadmin/internal/testutil"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func listEvents(t *testing.T, db *sql.DB) []store.Event {
	t.Helper()
	events, err := store.New(db).ListEvents(context.Background(), store.ListEventsParams{Limit: 50})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	return events
}

func TestEventLogHandler_ErrorLevel(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db))

	logger.Error("backend server error", "status", 502, "resource", "ads")

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Level != service.EventLevelError {
		t.Errorf("Level = %q, want %q", e.Level, service.EventLevelError)
	}
	if e.Category != service.EventCategoryBackend {
		t.Errorf("Category = %q, want %q", e.Category, service.EventCategoryBackend)
	}
	if e.Resource != "ads" {
		t.Errorf("Resource = %q, want ads", e.Resource)
	}

	var meta map[string]string
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["status"] != "502" {
		t.Errorf("metadata status = %q, want 502", meta["status"])
	}
}

func TestEventLogHandler_InfoNotForwarded(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db))

	logger.Info("list served from cache")
	logger.Debug("noise")

	if events := listEvents(t, db); len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestEventLogHandler_CustomLevel(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, db, slog.LevelInfo))

	logger.Info("created ads item")

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Level != service.EventLevelInfo {
		t.Errorf("Level = %q, want info", events[0].Level)
	}
	if events[0].Category != service.EventCategoryContent {
		t.Errorf("Category = %q, want content", events[0].Category)
	}
}

func TestEventLogHandler_ExplicitCategoryAndAttrs(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db)).
		With("component", "scheduler").
		WithGroup("job")

	logger.Warn("something odd", "category", "custom", "name", "purge")

	events := listEvents(t, db)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Category != "custom" {
		t.Errorf("Category = %q, want custom", e.Category)
	}

	var meta map[string]string
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["component"] != "scheduler" {
		t.Errorf("component = %q, want scheduler", meta["component"])
	}
	if meta["job.name"] != "purge" {
		t.Errorf("job.name = %q, want purge", meta["job.name"])
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"opening backend circuit breaker", service.EventCategoryBackend},
		{"redis unavailable, using memory cache", service.EventCategoryCache},
		{"failed to delete item", service.EventCategoryContent},
		{"server shutting down", service.EventCategorySystem},
	}
	for _, tt := range tests {
		if got := inferCategory(tt.msg); got != tt.want {
			t.Errorf("inferCategory(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestSlogLevelToEventLevel(t *testing.T) {
	if got := slogLevelToEventLevel(slog.LevelWarn); got != service.EventLevelWarning {
		t.Errorf("warn -> %q", got)
	}
	if got := slogLevelToEventLevel(slog.LevelError + 4); got != service.EventLevelError {
		t.Errorf("error+4 -> %q", got)
	}
	if got := slogLevelToEventLevel(slog.LevelDebug); got != service.EventLevelInfo {
		t.Errorf("debug -> %q", got)
	}
}
