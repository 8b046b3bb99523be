// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package web embeds the admin templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:templates
var templates embed.FS

//go:embed all:static/dist
var static embed.FS

// Templates returns the template tree rooted at templates/.
func Templates() fs.FS {
	return mustSub(templates, "templates")
}

// Static returns the asset tree rooted at static/, so "dist/admin.css"
// is served as /static/dist/admin.css.
func Static() fs.FS {
	return mustSub(static, "static")
}

// mustSub only fails for an invalid path, which is fixed at compile time here.
func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
