// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of attempts for idempotent requests.
	DefaultMaxRetries = 3

	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 4 * time.Second

	// MaxResponseSize bounds every buffered response body. History pages
	// carry inline media, so this is generous.
	MaxResponseSize = 32 * 1024 * 1024

	userAgent = "parley/0.3.0"
)

// Client talks to the backend REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        *sessionJar
	maxRetries int
	log        zerolog.Logger
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. http://localhost:5001/api).
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	jar := newSessionJar()
	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		jar:        jar,
		maxRetries: DefaultMaxRetries,
		log:        log.With().Str("component", "api").Logger(),
	}, nil
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithMaxRetries sets the attempt count for idempotent requests.
func (c *Client) WithMaxRetries(n int) *Client {
	if n < 1 {
		n = 1
	}
	c.maxRetries = n
	return c
}

// WithTransport replaces the HTTP transport (tests use httptest's).
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	c.httpClient.Transport = rt
	return c
}

// WithLogger replaces the component logger.
func (c *Client) WithLogger(l zerolog.Logger) *Client {
	c.log = l
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// =============================================================================
// SESSION COOKIES
// =============================================================================

// sessionJar is a cookie jar that can be emptied while requests are in
// flight.
type sessionJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newSessionJar() *sessionJar {
	jar, _ := cookiejar.New(nil) // only fails with a bad PublicSuffixList
	return &sessionJar{jar: jar}
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

func (j *sessionJar) reset() {
	jar, _ := cookiejar.New(nil)
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

// Cookies returns the cookies the jar would send to the API.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

// SetCookies restores previously exported cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	root := *c.baseURL
	root.Path = "/"
	for _, ck := range cookies {
		if ck.Path == "" {
			ck.Path = "/"
		}
	}
	c.jar.SetCookies(&root, cookies)
}

// ClearCookies forgets the session.
func (c *Client) ClearCookies() {
	c.jar.reset()
}

// =============================================================================
// REQUESTS
// =============================================================================

// envelope is the backend's success wrapper. Auth endpoints additionally
// put the user at the top level.
type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// endpoint joins an already-escaped path onto the API root.
func (c *Client) endpoint(path string, query url.Values) string {
	s := c.baseURL.String() + path
	if len(query) > 0 {
		s += "?" + query.Encode()
	}
	return s
}

// segment escapes a caller-supplied id for use in a path.
func segment(id string) string {
	return "/" + url.PathEscape(id)
}

// newRequest builds a JSON request with the standard headers.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, string, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	return req, requestID, nil
}

// do performs a request and decodes the JSON response into out (when
// non-nil). GET requests are retried on 5xx and transport errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	attempts := 1
	if method == http.MethodGet {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		err := c.doOnce(ctx, method, path, query, body, out)
		if err == nil {
			return nil
		}
		if !isRetryable(ctx, err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, requestID, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Paths and status only. Bodies carry credentials and message text.
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Str("request_id", requestID).
		Msg("api response")

	data, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return handleErrorResponse(resp.StatusCode, data, requestID)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// stream performs a GET and hands back the open body for large downloads.
// The caller must close it.
func (c *Client) stream(ctx context.Context, path string) (io.ReadCloser, error) {
	req, requestID, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/zip, application/octet-stream")

	// The transfer may outlast the client-wide timeout; the context bounds it.
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := readResponse(resp)
		return nil, handleErrorResponse(resp.StatusCode, data, requestID)
	}
	return resp.Body, nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrServer) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	// Transport-level failure (connection refused, reset)
	return true
}

// calculateBackoff returns the delay to wait before the next retry.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
