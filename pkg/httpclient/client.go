package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/middleware"
	"github.com/richxcame/route-traffic/pkg/resilience"
)

// maxBodyBytes bounds how much of an upstream response is read into memory.
const maxBodyBytes = 4 << 20

// Client wraps http.Client with convenience methods and retry support
type Client struct {
	httpClient  *http.Client
	baseURL     string
	retryConfig *resilience.RetryConfig
	upstream    string
}

// Option configures the HTTP client
type Option func(*Client)

// WithRetry enables retries against the named upstream. Without a custom
// checker only transient failures are retried; auth and quota refusals are not.
func WithRetry(upstream string, config resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retryConfig = &config
		c.upstream = upstream
	}
}

// NewClient creates a new HTTP client
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get makes a GET request. query may be nil.
func (c *Client) Get(ctx context.Context, path string, query url.Values, headers map[string]string) ([]byte, error) {
	if c.retryConfig != nil {
		return c.getWithRetry(ctx, path, query, headers)
	}
	return c.doGet(ctx, path, query, headers)
}

// GetJSON makes a GET request and decodes the JSON body into out
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, headers map[string]string, out interface{}) error {
	body, err := c.Get(ctx, path, query, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func (c *Client) getWithRetry(ctx context.Context, path string, query url.Values, headers map[string]string) ([]byte, error) {
	return resilience.Do(ctx, *c.retryConfig, c.upstream, func(ctx context.Context) ([]byte, error) {
		return c.doGet(ctx, path, query, headers)
	})
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values, headers map[string]string) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	injectCorrelationID(ctx, req)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

// ErrDecode is returned by GetJSON when the body is not valid JSON for the target
var ErrDecode = errors.New("failed to decode response body")

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus exposes the status to resilience.ClassifyUpstreamError
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// StatusCode extracts the upstream status from err, or 0 when err is not an HTTPError
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func injectCorrelationID(ctx context.Context, req *http.Request) {
	if ctx == nil || req == nil {
		return
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set(middleware.CorrelationIDHeader, correlationID)
	}
}
