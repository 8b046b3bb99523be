// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/feedadmin/internal/render"
)

// flashAndRedirect sets a flash message and redirects to the given URL.
// Uses http.StatusSeeOther (303) for POST/PUT/DELETE redirects.
func flashAndRedirect(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, url, message, messageType string) {
	renderer.SetFlash(r, message, messageType)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// flashError sets an error flash message and redirects to the given URL.
func flashError(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, url, message string) {
	flashAndRedirect(w, r, renderer, url, message, render.FlashError)
}

// flashSuccess sets a success flash message and redirects to the given URL.
func flashSuccess(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, url, message string) {
	flashAndRedirect(w, r, renderer, url, message, render.FlashSuccess)
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, logMsg string, args ...any) {
	slog.Error(logMsg, args...)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// ErrorView is the data of the error page.
type ErrorView struct {
	Status  int
	Heading string
	Message string
	BackURL string
}

// renderPage renders a page and falls back to a plain 500 on template errors.
func renderPage(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, status int, name string, data render.TemplateData) {
	if err := renderer.Render(w, r, status, name, data); err != nil {
		logAndInternalError(w, "failed to render page", "template", name, "error", err)
	}
}

// renderError renders the error page.
func renderError(w http.ResponseWriter, r *http.Request, renderer *render.Renderer, status int, message, backURL string) {
	renderPage(w, r, renderer, status, pageError, render.TemplateData{
		Title: http.StatusText(status),
		Data: ErrorView{
			Status:  status,
			Heading: http.StatusText(status),
			Message: message,
			BackURL: backURL,
		},
	})
}
