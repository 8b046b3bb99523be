// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Sentinel errors for callers that branch on the failure category.
var (
	// ErrNotFound matches any *APIError with status 404.
	ErrNotFound = errors.New("backend: not found")
	// ErrUnavailable is returned while the circuit breaker rejects calls.
	ErrUnavailable = errors.New("backend: temporarily unavailable")
	// ErrUnexpectedResponse is returned when a 2xx body has an unknown shape.
	ErrUnexpectedResponse = errors.New("backend: unexpected response")
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status   int
	Message  string
	Method   string
	Endpoint string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s %s: HTTP %d: %s", e.Method, e.Endpoint, e.Status, e.Message)
}

// Is makes errors.Is(err, ErrNotFound) work for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// IsClientError reports whether the backend rejected the request itself (4xx).
// Such errors are shown to the admin next to the form instead of being retried.
func (e *APIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// NetworkError wraps transport failures (DNS, refused connections, timeouts).
type NetworkError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend %s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UserMessage returns a short text suitable for a flash message.
func UserMessage(err error) string {
	var apiErr *APIError
	var netErr *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnavailable):
		return "The content backend is temporarily unavailable, please try again shortly"
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusNotFound {
			return "Item not found"
		}
		return apiErr.Message
	case errors.As(err, &netErr):
		return "Could not reach the content backend"
	default:
		return "Unexpected backend error"
	}
}

// errorMessage extracts a readable message from an error response body.
// The backend answers with {"error": "..."} or plain text.
func errorMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			if payload.Error != "" {
				return payload.Error
			}
			if payload.Message != "" {
				return payload.Message
			}
		}
	}
	if trimmed != "" && !strings.HasPrefix(trimmed, "<") {
		if len(trimmed) > 500 {
			trimmed = trimmed[:500] + "..."
		}
		return trimmed
	}
	return http.StatusText(status)
}
