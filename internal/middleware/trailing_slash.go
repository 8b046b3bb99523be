// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"strings"
)

// StripTrailingSlash canonicalizes paths ending in "/" (except the root).
// GET and HEAD are redirected with 301; other methods are routed in place
// so a form posted to "/admin/ads/" keeps its body.
func StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" || !strings.HasSuffix(path, "/") {
			next.ServeHTTP(w, r)
			return
		}

		trimmed := strings.TrimRight(path, "/")
		if trimmed == "" {
			trimmed = "/"
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			r2 := r.Clone(r.Context())
			r2.URL.Path = trimmed
			r2.URL.RawPath = ""
			next.ServeHTTP(w, r2)
			return
		}

		target := trimmed
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}
