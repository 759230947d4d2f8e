package matrixsend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jpalmerr/matrixsend/internal/poller"
)

// Probe performs a single readiness request against an [Endpoint].
//
// Implementations return nil when the endpoint is healthy, an error
// wrapping [ErrConnectionFailure] or [ErrProbeTimeout] when the attempt
// should be retried, and any other error (typically an
// [*UnhealthyStatusError]) to stop polling.
type Probe interface {
	Probe(ctx context.Context, ep Endpoint) error
}

// ProbeFunc adapts an ordinary function to the [Probe] interface.
type ProbeFunc func(ctx context.Context, ep Endpoint) error

// Probe calls f(ctx, ep).
func (f ProbeFunc) Probe(ctx context.Context, ep Endpoint) error {
	return f(ctx, ep)
}

// HTTPProbe is the default [Probe]. It issues one HTTP request per call
// with the endpoint's method, headers and timeout.
type HTTPProbe struct {
	client *poller.Client
}

// NewHTTPProbe creates an [HTTPProbe] with its own connection pool.
func NewHTTPProbe() *HTTPProbe {
	return &HTTPProbe{client: poller.NewClient()}
}

// Probe issues the request and classifies the response.
func (p *HTTPProbe) Probe(ctx context.Context, ep Endpoint) error {
	resp := p.client.Fetch(ctx, ep.Method(), ep.URL(), ep.Headers(), ep.Timeout())

	if resp.Error != nil {
		// the caller gave up, not the endpoint
		if err := ctx.Err(); err != nil {
			return err
		}
		if resp.TimedOut() {
			return fmt.Errorf("%w: %w", ErrProbeTimeout, resp.Error)
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailure, resp.Error)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &UnhealthyStatusError{Endpoint: ep.URL(), StatusCode: resp.StatusCode}
	}
	return nil
}

// Close releases idle connections held by the probe.
func (p *HTTPProbe) Close() {
	if p == nil {
		return
	}
	p.client.Close()
}
