// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"strings"
	"time"
)

// Event is one row of the activity log.
type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Resource  string    `json:"resource,omitempty"`
	ItemID    string    `json:"item_id,omitempty"`
	IpAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateEventParams holds the columns of a new event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Resource  string
	ItemID    string
	IpAddress string
	UserAgent string
	Metadata  string
	CreatedAt time.Time
}

const createEvent = `INSERT INTO events (
    level, category, message, resource, item_id, ip_address, user_agent, metadata, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateEvent inserts an event and returns the stored row.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	if arg.Metadata == "" {
		arg.Metadata = "{}"
	}
	if arg.CreatedAt.IsZero() {
		arg.CreatedAt = time.Now()
	}
	createdAt := arg.CreatedAt.UTC()
	res, err := q.db.ExecContext(ctx, createEvent,
		arg.Level, arg.Category, arg.Message, arg.Resource, arg.ItemID,
		arg.IpAddress, arg.UserAgent, arg.Metadata, createdAt,
	)
	if err != nil {
		return Event{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        id,
		Level:     arg.Level,
		Category:  arg.Category,
		Message:   arg.Message,
		Resource:  arg.Resource,
		ItemID:    arg.ItemID,
		IpAddress: arg.IpAddress,
		UserAgent: arg.UserAgent,
		Metadata:  arg.Metadata,
		CreatedAt: createdAt,
	}, nil
}

// EventFilter narrows ListEvents and CountEvents. Empty fields match all.
type EventFilter struct {
	Level    string
	Category string
	Resource string
}

func (f EventFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Level != "" {
		conds = append(conds, "level = ?")
		args = append(args, f.Level)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Resource != "" {
		conds = append(conds, "resource = ?")
		args = append(args, f.Resource)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEventsParams pages through the activity log, newest first.
type ListEventsParams struct {
	EventFilter
	Limit  int64
	Offset int64
}

// ListEvents returns one page of events.
func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]Event, error) {
	where, args := arg.where()
	query := `SELECT id, level, category, message, resource, item_id, ip_address, user_agent, metadata, created_at
FROM events` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, arg.Limit, arg.Offset)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Resource, &e.ItemID,
			&e.IpAddress, &e.UserAgent, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CountEvents counts events matching the filter.
func (q *Queries) CountEvents(ctx context.Context, f EventFilter) (int64, error) {
	where, args := f.where()
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&n)
	return n, err
}

const deleteEventsBefore = `DELETE FROM events WHERE created_at < ?`

// DeleteEventsBefore removes events created before cutoff and returns
// how many were deleted.
func (q *Queries) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEventsBefore, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countEventsByLevelSince = `SELECT level, COUNT(*) FROM events WHERE created_at >= ? GROUP BY level`

// CountEventsByLevelSince returns per-level counts since t, for the dashboard.
func (q *Queries) CountEventsByLevelSince(ctx context.Context, t time.Time) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, countEventsByLevelSince, t.UTC())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int64)
	for rows.Next() {
		var level string
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		out[level] = n
	}
	return out, rows.Err()
}
