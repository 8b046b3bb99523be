// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backend is the REST client for the external content backend.
// All content state lives there; this package only moves JSON and
// multipart payloads between the admin and the backend's resource
// collections.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/olegiv/feedadmin/internal/metrics"
)

// Client configuration defaults.
const (
	DefaultTimeout = 15 * time.Second
	DefaultBackoff = 200 * time.Millisecond
	UserAgent      = "feedadmin/1.0"
	breakerName    = "content-backend"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the backend origin including any path prefix, e.g. https://api.example.com/api.
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Timeout bounds every single HTTP attempt.
	Timeout time.Duration
	// RPS and Burst throttle outbound requests (0 RPS = unlimited).
	RPS   float64
	Burst int
	// Retries is the number of extra attempts for idempotent reads.
	Retries uint64
	// Backoff is the base delay between read retries.
	Backoff time.Duration
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the content backend.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*response]
	retries uint64
	backoff time.Duration
	logger  *slog.Logger
}

type response struct {
	status int
	body   []byte
}

// New creates a backend client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend base URL must be absolute, got %q", opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	c := &Client{
		base:    base,
		token:   opts.Token,
		http:    httpClient,
		limiter: limiter,
		retries: opts.Retries,
		backoff: opts.Backoff,
		logger:  opts.Logger,
	}
	c.breaker = newBreaker(c.logger)
	return c, nil
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// FetchList returns the raw list body of a collection.
func (c *Client) FetchList(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	// validate shape before handing bytes to a cache
	if _, err := DecodeList(resp.body); err != nil {
		return nil, err
	}
	return resp.body, nil
}

// List returns all records of a collection.
func (c *Client) List(ctx context.Context, endpoint string) ([]Record, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	return DecodeList(resp.body)
}

// Get returns one record.
func (c *Client) Get(ctx context.Context, endpoint, id string) (Record, error) {
	if id == "" {
		return nil, fmt.Errorf("backend GET %s: empty id", endpoint)
	}
	resp, err := c.do(ctx, http.MethodGet, endpoint, id, nil)
	if err != nil {
		return nil, err
	}
	return DecodeRecord(resp.body)
}

// Create posts a new record to the collection.
func (c *Client) Create(ctx context.Context, endpoint string, body Body) (Record, error) {
	resp, err := c.do(ctx, http.MethodPost, endpoint, "", &body)
	if err != nil {
		return nil, err
	}
	return DecodeRecord(resp.body)
}

// Update replaces (PUT) or patches (PATCH) a record. An empty method means PUT.
func (c *Client) Update(ctx context.Context, endpoint, id, method string, body Body) (Record, error) {
	if id == "" {
		return nil, fmt.Errorf("backend update %s: empty id", endpoint)
	}
	switch method {
	case "":
		method = http.MethodPut
	case http.MethodPut, http.MethodPatch:
	default:
		return nil, fmt.Errorf("backend update %s: unsupported method %q", endpoint, method)
	}
	resp, err := c.do(ctx, method, endpoint, id, &body)
	if err != nil {
		return nil, err
	}
	return DecodeRecord(resp.body)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, endpoint, id string) error {
	if id == "" {
		return fmt.Errorf("backend DELETE %s: empty id", endpoint)
	}
	_, err := c.do(ctx, http.MethodDelete, endpoint, id, nil)
	return err
}

// Ping checks that the backend answers at all. Any response below 500
// counts as reachable. The circuit breaker is bypassed so readiness
// reflects the live state.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.send(ctx, http.MethodGet, "", "", nil, ""); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return nil
		}
		return err
	}
	return nil
}

// BreakerState returns the circuit breaker state as text.
func (c *Client) BreakerState() string {
	return stateToString(c.breaker.State())
}

// do runs one logical call through the breaker, retrying idempotent reads.
func (c *Client) do(ctx context.Context, method, endpoint, id string, body *Body) (*response, error) {
	if endpoint == "" {
		return nil, errors.New("backend: empty endpoint")
	}

	var payload []byte
	var contentType string
	if body != nil {
		var err error
		payload, contentType, err = body.encode()
		if err != nil {
			return nil, err
		}
	}

	attempt := func(ctx context.Context) (*response, error) {
		resp, err := c.breaker.Execute(func() (*response, error) {
			return c.send(ctx, method, endpoint, id, payload, contentType)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.BackendRequestsTotal.WithLabelValues(endpoint, method, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return resp, err
	}

	if method != http.MethodGet || c.retries == 0 {
		return attempt(ctx)
	}

	var result *response
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := attempt(ctx)
		if err != nil {
			if isRetryable(err) {
				c.logger.Debug("retrying backend read", "endpoint", endpoint, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// send performs a single HTTP exchange. Non-2xx answers become *APIError.
func (c *Client) send(ctx context.Context, method, endpoint, id string, payload []byte, contentType string) (*response, error) {
	target := c.base
	if endpoint != "" {
		target = target.JoinPath(endpoint)
	}
	if id != "" {
		target = target.JoinPath(url.PathEscape(id))
	}
	label := endpoint
	if label == "" {
		label = "/"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Method: method, Endpoint: label, Err: err}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("building backend request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(label, method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(label, method, "error").Inc()
		c.logger.Warn("backend request failed",
			"method", method, "endpoint", label, "request_id", requestID, "error", err)
		return nil, &NetworkError{Method: method, Endpoint: label, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.BackendRequestsTotal.WithLabelValues(label, method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &NetworkError{Method: method, Endpoint: label, Err: fmt.Errorf("reading body: %w", err)}
		}
		c.logger.Debug("backend request",
			"method", method, "endpoint", label, "status", resp.StatusCode,
			"request_id", requestID, "duration", time.Since(start))
		return &response{status: resp.StatusCode, body: data}, nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{
		Status:   resp.StatusCode,
		Message:  errorMessage(resp.StatusCode, data),
		Method:   method,
		Endpoint: label,
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Warn("backend server error",
			"method", method, "endpoint", label, "status", resp.StatusCode,
			"request_id", requestID, "message", apiErr.Message)
	}
	return nil, apiErr
}

// isRetryable reports whether a read should be attempted again.
func isRetryable(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError ||
			apiErr.Status == http.StatusTooManyRequests ||
			apiErr.Status == http.StatusRequestTimeout
	}
	return false
}
