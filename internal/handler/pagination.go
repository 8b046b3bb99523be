// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ErrMissingParam is returned when a required URL parameter is empty.
var ErrMissingParam = errors.New("missing URL parameter")

// CalculateTotalPages returns the number of pages needed for totalItems.
// It never returns less than 1.
func CalculateTotalPages(totalItems, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	pages := (totalItems + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage keeps page within [1, totalPages].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// NormalizePagination clamps page and returns it with the total page count.
func NormalizePagination(page, totalItems, perPage int) (int, int) {
	totalPages := CalculateTotalPages(totalItems, perPage)
	return ClampPage(page, totalPages), totalPages
}

// ParsePageParam reads the "page" query parameter, defaulting to 1.
func ParsePageParam(r *http.Request) int {
	return ParseIntParam(r, paramPage, 1, 1, 0)
}

// ParsePerPageParam reads "per_page" within [1, maxVal], else defaultVal.
func ParsePerPageParam(r *http.Request, defaultVal, maxVal int) int {
	return ParseIntParam(r, paramPerPage, defaultVal, 1, maxVal)
}

// ParseIntParam reads an integer query parameter. Values outside
// [minVal, maxVal] yield defaultVal; a zero bound disables that check.
func ParseIntParam(r *http.Request, param string, defaultVal, minVal, maxVal int) int {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	if minVal != 0 && v < minVal {
		return defaultVal
	}
	if maxVal != 0 && v > maxVal {
		return defaultVal
	}
	return v
}

// URLParam returns a non-empty chi URL parameter.
func URLParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
	}
	return v, nil
}

// PageSlice returns the items shown on a page (1-based).
func PageSlice[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	start := (page - 1) * perPage
	if start < 0 || start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// AdminPagination holds pagination data for admin templates.
type AdminPagination struct {
	CurrentPage int
	TotalPages  int
	TotalItems  int64
	PerPage     int
	HasPrev     bool
	HasNext     bool
	PrevPage    int
	NextPage    int
	Pages       []AdminPaginationPage
	BaseURL     string
	QueryString string
}

// AdminPaginationPage is one entry of the page bar: a link, the current
// page, or an ellipsis.
type AdminPaginationPage struct {
	Number     int
	URL        string
	IsCurrent  bool
	IsEllipsis bool
}

// pageWindowSize is the number of consecutive page links around the current page.
const pageWindowSize = 5

// BuildAdminPagination creates pagination data for admin templates.
// baseURL is the path without query string (e.g. "/admin/events").
// queryParams are preserved in every link except "page"; empty values are dropped.
func BuildAdminPagination(currentPage, totalItems, perPage int, baseURL string, queryParams url.Values) AdminPagination {
	totalPages := CalculateTotalPages(totalItems, perPage)

	p := AdminPagination{
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		TotalItems:  int64(totalItems),
		PerPage:     perPage,
		HasPrev:     currentPage > 1,
		HasNext:     currentPage < totalPages,
		PrevPage:    currentPage - 1,
		NextPage:    currentPage + 1,
		BaseURL:     baseURL,
	}

	params := make(url.Values)
	for k, v := range queryParams {
		if k != paramPage && len(v) > 0 && v[0] != "" {
			params[k] = v
		}
	}
	p.QueryString = params.Encode()

	start, end := pageWindow(currentPage, totalPages)
	if start > 1 {
		p.Pages = append(p.Pages, AdminPaginationPage{Number: 1, URL: p.PageURL(1)})
		if start > 2 {
			p.Pages = append(p.Pages, AdminPaginationPage{IsEllipsis: true})
		}
	}
	for i := start; i <= end; i++ {
		p.Pages = append(p.Pages, AdminPaginationPage{Number: i, URL: p.PageURL(i), IsCurrent: i == currentPage})
	}
	if end < totalPages {
		if end < totalPages-1 {
			p.Pages = append(p.Pages, AdminPaginationPage{IsEllipsis: true})
		}
		p.Pages = append(p.Pages, AdminPaginationPage{Number: totalPages, URL: p.PageURL(totalPages)})
	}
	return p
}

// pageWindow returns the first and last page of the link window, keeping
// it pageWindowSize wide where the total allows.
func pageWindow(current, total int) (start, end int) {
	half := pageWindowSize / 2
	start = max(current-half, 1)
	end = min(start+pageWindowSize-1, total)
	start = max(end-pageWindowSize+1, 1)
	return start, end
}

// PageURL returns the URL for a specific page number.
func (p AdminPagination) PageURL(page int) string {
	if p.QueryString != "" {
		return fmt.Sprintf("%s?%s&page=%d", p.BaseURL, p.QueryString, page)
	}
	return fmt.Sprintf("%s?page=%d", p.BaseURL, page)
}

// FirstURL returns the URL for the first page.
func (p AdminPagination) FirstURL() string { return p.PageURL(1) }

// PrevURL returns the URL for the previous page.
func (p AdminPagination) PrevURL() string { return p.PageURL(p.PrevPage) }

// NextURL returns the URL for the next page.
func (p AdminPagination) NextURL() string { return p.PageURL(p.NextPage) }

// LastURL returns the URL for the last page.
func (p AdminPagination) LastURL() string { return p.PageURL(p.TotalPages) }

// ShouldShow reports whether there is more than one page.
func (p AdminPagination) ShouldShow() bool { return p.TotalPages > 1 }

// PageRange describes the rows on the current page, e.g. "26-28".
func (p AdminPagination) PageRange() string {
	if p.TotalItems == 0 {
		return "0"
	}
	start := (p.CurrentPage-1)*p.PerPage + 1
	end := min(p.CurrentPage*p.PerPage, int(p.TotalItems))
	return fmt.Sprintf("%d-%d", start, end)
}
