// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip provides IP-to-country lookup using MaxMind GeoLite2-Country database.
package geoip

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/olegiv/feedadmin/internal/util"
)

// Local is returned for private, loopback and documentation addresses.
const Local = "LOCAL"

// ErrInvalidIP is returned when the input is not an IP address.
var ErrInvalidIP = errors.New("invalid IP address")

// Lookup handles IP to country lookup using MaxMind GeoLite2-Country database.
type Lookup struct {
	db        *maxminddb.Reader
	dbPath    string
	dbModTime time.Time
	enabled   bool
	mu        sync.RWMutex
}

// geoRecord matches the GeoLite2-Country database structure.
type geoRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// NewLookup creates a new GeoIP lookup instance.
func NewLookup() *Lookup {
	return &Lookup{}
}

// Init loads the database from path. An empty path disables lookups.
func (g *Lookup) Init(dbPath string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dbPath = dbPath
	if dbPath == "" {
		g.enabled = false
		return nil
	}
	return g.loadDatabase()
}

// loadDatabase loads or reloads the MaxMind database.
// Caller must hold g.mu write lock.
func (g *Lookup) loadDatabase() error {
	info, err := os.Stat(g.dbPath)
	if err != nil {
		g.enabled = g.db != nil
		if os.IsNotExist(err) {
			return fmt.Errorf("GeoIP database not found: %s", g.dbPath)
		}
		return fmt.Errorf("GeoIP database stat error: %w", err)
	}

	if g.db != nil && info.ModTime().Equal(g.dbModTime) {
		return nil
	}

	db, err := maxminddb.Open(g.dbPath)
	if err != nil {
		// keep serving from the previous file if there is one
		g.enabled = g.db != nil
		return fmt.Errorf("failed to open GeoIP database: %w", err)
	}

	if g.db != nil {
		_ = g.db.Close()
	}
	g.db = db
	g.dbModTime = info.ModTime()
	g.enabled = true
	return nil
}

// Reload reloads the GeoIP database if the file has changed.
func (g *Lookup) Reload() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dbPath == "" {
		return nil
	}
	return g.loadDatabase()
}

// Country returns the 2-letter ISO country code for an address, which may
// carry a port. Private addresses yield Local. An empty code with a nil
// error means the country is unknown or lookups are disabled.
func (g *Lookup) Country(addr string) (string, error) {
	ip := util.ParseIP(addr)
	if ip == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, addr)
	}
	if util.IsPrivateIP(ip) {
		return Local, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.enabled || g.db == nil {
		return "", nil
	}

	var record geoRecord
	if err := g.db.Lookup(ip, &record); err != nil {
		return "", fmt.Errorf("GeoIP lookup: %w", err)
	}
	return strings.ToUpper(record.Country.ISOCode), nil
}

// IsEnabled returns whether GeoIP lookups are available.
func (g *Lookup) IsEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}

// Close closes the GeoIP database.
func (g *Lookup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db != nil {
		err := g.db.Close()
		g.db = nil
		g.enabled = false
		return err
	}
	return nil
}

// CountryName returns the English name for a 2-letter country code.
func CountryName(code string) string {
	switch code {
	case "":
		return "Unknown"
	case Local:
		return "Local Network"
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}
