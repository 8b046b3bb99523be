// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the admin's cookie sessions, which carry
// flash messages and form state between redirects.
package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Session defaults.
const (
	Lifetime        = 12 * time.Hour
	CleanupInterval = 10 * time.Minute
	devCookieName   = "feedadmin_session"
	prodCookieName  = "__Host-feedadmin"
)

// New creates a session manager backed by the sessions table of db.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.NewWithCleanupInterval(db, CleanupInterval)

	sm.Lifetime = Lifetime
	sm.IdleTimeout = 2 * time.Hour
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !isDev
	if isDev {
		sm.Cookie.Name = devCookieName
	} else {
		// __Host- requires Secure, Path=/ and no Domain
		sm.Cookie.Name = prodCookieName
	}
	return sm
}
