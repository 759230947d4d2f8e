package matrixsend

import (
	"errors"
	"net/url"
	"time"
)

// DefaultProbeTimeout is the per-attempt timeout used when [WithTimeout] is not given.
const DefaultProbeTimeout = 5 * time.Second

// Endpoint is a readiness target probed by a [Poller].
//
// Endpoint is immutable after creation via [NewEndpoint]. Getters return
// copies of mutable data (maps).
type Endpoint struct {
	url     string
	headers map[string]string
	timeout time.Duration
	method  string
}

// URL returns the URL that is probed.
func (e Endpoint) URL() string {
	return e.url
}

// Headers returns a copy of the custom HTTP headers sent with every probe.
// Returns nil if no custom headers are set.
func (e Endpoint) Headers() map[string]string {
	return copyMap(e.headers)
}

// Timeout returns the per-attempt timeout.
// Defaults to [DefaultProbeTimeout] if not explicitly set via [WithTimeout].
func (e Endpoint) Timeout() time.Duration {
	return e.timeout
}

// Method returns the HTTP method for probes.
// Returns empty string if not explicitly set, which means GET will be used.
func (e Endpoint) Method() string {
	return e.method
}

// NewEndpoint creates an [Endpoint] for the given URL.
//
// The rawURL parameter must be an absolute http:// or https:// URL with a
// host. Options are applied in order; see [WithHeaders], [WithTimeout] and
// [WithMethod].
//
// Example:
//
//	ep, err := matrixsend.NewEndpoint("https://synapse.example.org/health",
//	    matrixsend.WithTimeout(3 * time.Second),
//	)
func NewEndpoint(rawURL string, opts ...EndpointOption) (Endpoint, error) {
	if rawURL == "" {
		return Endpoint{}, errors.New("endpoint URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Endpoint{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Endpoint{}, errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsedURL.Host == "" {
		return Endpoint{}, errors.New("URL must have a host")
	}

	cfg := &endpointConfig{
		headers: make(map[string]string),
		timeout: DefaultProbeTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Endpoint{}, err
		}
	}

	return Endpoint{
		url:     rawURL,
		headers: cfg.headers,
		timeout: cfg.timeout,
		method:  cfg.method,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
