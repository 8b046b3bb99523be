// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/feedadmin/internal/backend"
	"github.com/olegiv/feedadmin/internal/metrics"
	"github.com/olegiv/feedadmin/internal/render"
	"github.com/olegiv/feedadmin/internal/resource"
	"github.com/olegiv/feedadmin/internal/service"
)

// multipartOverhead is the form field allowance on top of the upload limit.
const multipartOverhead = 1 << 20

// ContentAPI is the subset of the backend client used for item pages.
type ContentAPI interface {
	Get(ctx context.Context, endpoint, id string) (backend.Record, error)
	Create(ctx context.Context, endpoint string, body backend.Body) (backend.Record, error)
	Update(ctx context.Context, endpoint, id, method string, body backend.Body) (backend.Record, error)
	Delete(ctx context.Context, endpoint, id string) error
}

// ListStore serves cached list bodies.
type ListStore interface {
	Get(ctx context.Context, resource, endpoint string, refresh bool) ([]byte, bool, error)
	Invalidate(ctx context.Context, resource string) error
}

// ActivityRecorder stores admin mutations in the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, r *http.Request, action service.Action, resource, itemID, title string) error
}

// ResourceHandler serves list and form pages for every registered resource.
type ResourceHandler struct {
	registry  *resource.Registry
	api       ContentAPI
	lists     ListStore
	activity  ActivityRecorder
	renderer  *render.Renderer
	maxUpload int64
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(registry *resource.Registry, api ContentAPI, lists ListStore, activity ActivityRecorder, renderer *render.Renderer, maxUpload int64) *ResourceHandler {
	return &ResourceHandler{
		registry:  registry,
		api:       api,
		lists:     lists,
		activity:  activity,
		renderer:  renderer,
		maxUpload: maxUpload,
	}
}

// Mount registers the resource routes on an /admin router.
func (h *ResourceHandler) Mount(r chi.Router) {
	r.Route(RouteParamResource, func(r chi.Router) {
		r.Get(RouteRoot, h.List)
		r.Post(RouteRoot, h.Create)
		r.Get(RouteSuffixNew, h.New)
		r.Get(RouteParamID, h.Edit)
		r.Post(RouteParamID, h.Update)
		r.Put(RouteParamID, h.Update)
		r.Delete(RouteParamID, h.Delete)
		r.Post(RouteParamID+RouteSuffixDelete, h.DeleteForm)
	})
}

// resolve looks up the resource named in the URL. It writes a 404 page and
// returns nil when the name is unknown.
func (h *ResourceHandler) resolve(w http.ResponseWriter, r *http.Request) *resource.Resource {
	name := chi.URLParam(r, "resource")
	res, ok := h.registry.Get(name)
	if !ok {
		renderError(w, r, h.renderer, http.StatusNotFound, "Unknown collection "+name, redirectAdmin)
		return nil
	}
	return res
}

// List handles GET /admin/{resource}.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	res := h.resolve(w, r)
	if res == nil {
		return
	}

	query := r.URL.Query()
	refresh := query.Get(paramRefresh) == "1"
	body, hit, err := h.lists.Get(r.Context(), res.Name, res.Endpoint, refresh)
	if err != nil {
		slog.Error("failed to load list", "resource", res.Name, "error", err)
		renderError(w, r, h.renderer, http.StatusBadGateway, backend.UserMessage(err), redirectAdmin)
		return
	}
	records, err := backend.DecodeList(body)
	if err != nil {
		slog.Error("failed to decode list", "resource", res.Name, "error", err)
		renderError(w, r, h.renderer, http.StatusBadGateway, backend.UserMessage(err), redirectAdmin)
		return
	}

	q := query.Get(paramQuery)
	var rows []ListRow
	for _, rec := range records {
		item := res.NewItem(rec)
		if item.Matches(q) {
			rows = append(rows, buildRow(item))
		}
	}

	perPage := ParsePerPageParam(r, ListPerPage, MaxListPerPage)
	page, _ := NormalizePagination(ParsePageParam(r), len(rows), perPage)
	pageQuery := url.Values{}
	if q != "" {
		pageQuery.Set(paramQuery, q)
	}
	if perPage != ListPerPage {
		pageQuery.Set(paramPerPage, strconv.Itoa(perPage))
	}

	renderPage(w, r, h.renderer, http.StatusOK, pageList, render.TemplateData{
		Title:  res.Title,
		Active: res.Name,
		Data: ListView{
			Resource:   res,
			Columns:    columnLabels(res),
			Rows:       PageSlice(rows, page, perPage),
			Query:      q,
			Total:      len(rows),
			Cached:     hit,
			Pagination: BuildAdminPagination(page, len(rows), perPage, resourceURL(res), pageQuery),
			NewURL:     resourceURL(res) + RouteSuffixNew,
		},
	})
}

// New handles GET /admin/{resource}/new.
func (h *ResourceHandler) New(w http.ResponseWriter, r *http.Request) {
	res := h.resolve(w, r)
	if res == nil {
		return
	}
	h.renderForm(w, r, http.StatusOK, buildForm(res, url.Values{}, nil, nil))
}

// Edit handles GET /admin/{resource}/{id}.
func (h *ResourceHandler) Edit(w http.ResponseWriter, r *http.Request) {
	res := h.resolve(w, r)
	if res == nil {
		return
	}
	id, err := URLParam(r, "id")
	if err != nil {
		renderError(w, r, h.renderer, http.StatusBadRequest, "Missing item id", resourceURL(res))
		return
	}

	item, ok := h.load(w, r, res, id)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, buildForm(res, item.FormValues(), nil, &item))
}

// load fetches one item or renders the matching error page.
func (h *ResourceHandler) load(w http.ResponseWriter, r *http.Request, res *resource.Resource, id string) (resource.Item, bool) {
	rec, err := h.api.Get(r.Context(), res.Endpoint, id)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrNotFound) {
			status = http.StatusNotFound
		} else {
			slog.Error("failed to load item", "resource", res.Name, "id", id, "error", err)
		}
		renderError(w, r, h.renderer, status, backend.UserMessage(err), resourceURL(res))
		return resource.Item{}, false
	}
	if rec.ID() == "" {
		rec["id"] = id
	}
	return res.NewItem(rec), true
}

// Create handles POST /admin/{resource}.
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	res := h.resolve(w, r)
	if res == nil {
		return
	}

	form, files, err := h.parseForm(w, r, res)
	if err != nil {
		view := buildForm(res, url.Values{}, nil, nil)
		view.Error = "The form could not be read, the upload may be too large"
		h.renderForm(w, r, http.StatusBadRequest, view)
		return
	}

	sub, errs := res.Decode(form, files, resource.DecodeOptions{Creating: true, MaxUploadBytes: h.maxUpload})
	if len(errs) > 0 {
		view := buildForm(res, form, errs, nil)
		view.Error = "Please correct the highlighted fields"
		h.renderForm(w, r, http.StatusUnprocessableEntity, view)
		return
	}

	rec, err := h.api.Create(r.Context(), res.Endpoint, sub.Body)
	if err != nil {
		h.mutationFailed(w, r, res, service.ActionCreate, form, nil, err)
		return
	}

	item := res.NewItem(rec)
	title := item.Title()
	if title == "" {
		title = form.Get(res.TitleKey)
	}
	h.mutationDone(r, res, service.ActionCreate, item.ID(), title)
	flashSuccess(w, r, h.renderer, resourceURL(res), res.Singular+" created")
}

// Update handles POST and PUT /admin/{resource}/{id}.
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	res := h.resolve(w, r)
	if res == nil {
		return
	}
	id, err := URLParam(r, "id")
	if err != nil {
		renderError(w, r, h.renderer, http.StatusBadRequest, "Missing item id", resourceURL(res))
		return
	}
	current := res.NewItem(backend.Record{"id": id})

	form, files, err := h.parseForm(w, r, res)
	if err != nil {
		view := buildForm(res, url.Values{}, nil, &current)
		view.Error = "The form could not be read, the upload may be too large"
		h.renderForm(w, r, http.StatusBadRequest, view)
		return
	}

	sub, errs := res.Decode(form, files, resource.DecodeOptions{MaxUploadBytes: h.maxUpload})
	if len(errs) > 0 {
		view := buildForm(res, form, errs, &current)
		view.Error = "Please correct the highlighted fields"
		h.renderForm(w, r, http.StatusUnprocessableEntity, view)
		return
	}

	if _, err := h.api.Update(r.Context(), res.Endpoint, id, res.Method(), sub.Body); err != nil {
		h.mutationFailed(w, r, res, service.ActionUpdate, form, &current, err)
		return
	}

	h.mutationDone(r, res, service.ActionUpdate, id, form.Get(res.TitleKey))
	flashSuccess(w, r, h.renderer, resourceURL(res), res.Singular+" updated")
}

// Delete handles DELETE /admin/{resource}/{id} and answers with JSON.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, ok := h.registry.Get(chi.URLParam(r, "resource"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown collection")
		return
	}
	id, err := URLParam(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing item id")
		return
	}

	if err := h.api.Delete(r.Context(), res.Endpoint, id); err != nil {
		h.countMutation(res, service.ActionDelete, err)
		slog.Warn("failed to delete item", "resource", res.Name, "id", id, "error", err)
		writeJSONError(w, deleteStatus(err), backend.UserMessage(err))
		return
	}

	h.mutationDone(r, res, service.ActionDelete, id, "")
	writeJSONSuccess(w, map[string]any{"id": id})
}

// DeleteForm handles POST /admin/{resource}/{id}/delete.
func (h *ResourceHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	res := h.resolve(w, r)
	if res == nil {
		return
	}
	id, err := URLParam(r, "id")
	if err != nil {
		flashError(w, r, h.renderer, resourceURL(res), "Missing item id")
		return
	}

	if err := h.api.Delete(r.Context(), res.Endpoint, id); err != nil {
		h.countMutation(res, service.ActionDelete, err)
		slog.Warn("failed to delete item", "resource", res.Name, "id", id, "error", err)
		flashError(w, r, h.renderer, resourceURL(res), "Delete failed: "+backend.UserMessage(err))
		return
	}

	h.mutationDone(r, res, service.ActionDelete, id, "")
	flashSuccess(w, r, h.renderer, resourceURL(res), res.Singular+" deleted")
}

func deleteStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

// parseForm parses url-encoded or multipart bodies. The body size is
// capped at the upload limit plus form overhead.
func (h *ResourceHandler) parseForm(w http.ResponseWriter, r *http.Request, res *resource.Resource) (url.Values, map[string][]*multipart.FileHeader, error) {
	if !res.HasFiles() {
		if err := r.ParseForm(); err != nil {
			return nil, nil, err
		}
		return r.PostForm, nil, nil
	}

	limit := int64(len(res.FileFields()))*h.maxUpload + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			if err := r.ParseForm(); err != nil {
				return nil, nil, err
			}
			return r.PostForm, nil, nil
		}
		return nil, nil, err
	}
	return r.PostForm, r.MultipartForm.File, nil
}

// mutationFailed shows a backend rejection next to the form, or flashes
// and redirects for transport and server failures.
func (h *ResourceHandler) mutationFailed(w http.ResponseWriter, r *http.Request, res *resource.Resource, action service.Action, form url.Values, item *resource.Item, err error) {
	h.countMutation(res, action, err)

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() && apiErr.Status != http.StatusNotFound {
		slog.Info("backend rejected "+string(action), "resource", res.Name, "status", apiErr.Status, "message", apiErr.Message)
		view := buildForm(res, form, nil, item)
		view.Error = apiErr.Message
		h.renderForm(w, r, http.StatusUnprocessableEntity, view)
		return
	}

	slog.Error("backend "+string(action)+" failed", "resource", res.Name, "error", err)
	target := resourceURL(res)
	if action == service.ActionCreate {
		target += RouteSuffixNew
	}
	flashError(w, r, h.renderer, target, "Could not save: "+backend.UserMessage(err))
}

// mutationDone invalidates the list and records the change.
func (h *ResourceHandler) mutationDone(r *http.Request, res *resource.Resource, action service.Action, id, title string) {
	h.countMutation(res, action, nil)

	if err := h.lists.Invalidate(r.Context(), res.Name); err != nil {
		slog.Warn("failed to invalidate list cache", "resource", res.Name, "error", err)
	}
	if h.activity != nil {
		if err := h.activity.Record(r.Context(), r, action, res.Name, id, title); err != nil {
			slog.Warn("failed to record activity", "resource", res.Name, "error", err)
		}
	}
}

func (h *ResourceHandler) countMutation(res *resource.Resource, action service.Action, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.MutationsTotal.WithLabelValues(res.Name, string(action), outcome).Inc()
}

func (h *ResourceHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, view FormView) {
	title := "New " + view.Resource.Singular
	if !view.Creating {
		title = "Edit " + view.Resource.Singular
	}
	renderPage(w, r, h.renderer, status, pageForm, render.TemplateData{
		Title:  title,
		Active: view.Resource.Name,
		Data:   view,
	})
}
