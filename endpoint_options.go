package matrixsend

import (
	"errors"
	"net/http"
	"time"
)

// endpointConfig holds mutable state during endpoint construction.
type endpointConfig struct {
	headers map[string]string
	timeout time.Duration
	method  string
}

// EndpointOption configures an [Endpoint] during construction.
//
// Options return an error if validation fails.
type EndpointOption func(*endpointConfig) error

// WithHeaders adds custom HTTP headers to every probe of this endpoint.
//
// Use this for health endpoints behind authentication.
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	ep, err := matrixsend.NewEndpoint(url,
//	    matrixsend.WithHeaders("Authorization", "Bearer token"),
//	)
func WithHeaders(keyValues ...string) EndpointOption {
	return func(cfg *endpointConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the per-attempt timeout.
//
// A probe that does not complete within this duration counts as a timed
// out attempt, which is retryable. Defaults to [DefaultProbeTimeout].
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) EndpointOption {
	return func(cfg *endpointConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMethod sets the HTTP method for probes.
//
// Supported methods are GET (default), HEAD, and POST.
// Returns an error for any other method.
func WithMethod(method string) EndpointOption {
	return func(cfg *endpointConfig) error {
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodPost:
			cfg.method = method
			return nil
		default:
			return errors.New("method must be GET, HEAD, or POST")
		}
	}
}
