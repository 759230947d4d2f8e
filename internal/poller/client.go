package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// bodies are drained up to this size so the connection can be reused
const maxDrainSize = 64 << 10 // 64KB

const (
	defaultMaxIdleConns        = 4
	defaultMaxIdleConnsPerHost = 2
	defaultIdleConnTimeout     = 30 * time.Second
)

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// StatusCode is the HTTP status code (e.g., 200, 503).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Error contains any transport error that occurred during the request.
	// nil means a response was received, whatever its status.
	Error error
}

// TimedOut reports whether the request failed because its deadline passed.
func (r Response) TimedOut() bool {
	return r.Error != nil && isDeadline(r.Error)
}

// Client is an HTTP client wrapper for single readiness requests.
//
// Client uses per-request timeouts via context rather than a global timeout,
// so every attempt of a poll gets its own budget.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new [Client].
//
// Attempts against the same endpoint reuse the idle connection when the
// server keeps it alive. Timeouts are applied per request in [Client.Fetch].
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch performs one HTTP request and returns a structured [Response].
//
// If method is empty, GET is used. The timeout is applied via context
// cancellation. Fetch always returns a Response; transport errors are
// captured in the Error field rather than returned separately.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return Response{Error: fmt.Errorf("failed to create request: %w", err)}
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{Error: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	// the status line is all a readiness check needs; a failed drain only
	// costs the connection
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))

	return Response{StatusCode: resp.StatusCode}
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times and on a nil client.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
