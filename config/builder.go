package config

import (
	"sort"

	"github.com/jpalmerr/matrixsend"
)

// HealthEndpoint picks the endpoint sendmsg should check: the override when
// given, otherwise the stored one. The second result is false when neither
// is set and no health check should run.
func HealthEndpoint(creds *Credentials, override string) (string, bool) {
	if override != "" {
		return override, true
	}
	if creds != nil && creds.Endpoint != "" {
		return creds.Endpoint, true
	}
	return "", false
}

// BuildEndpoint converts the health settings into an SDK Endpoint for rawURL.
// A nil Health yields an endpoint with the SDK defaults.
func BuildEndpoint(h *Health, rawURL string) (matrixsend.Endpoint, error) {
	var opts []matrixsend.EndpointOption

	if h != nil {
		if h.Method != "" {
			opts = append(opts, matrixsend.WithMethod(h.Method))
		}
		if h.Timeout != 0 {
			opts = append(opts, matrixsend.WithTimeout(h.Timeout.Duration()))
		}
		if len(h.Headers) > 0 {
			opts = append(opts, matrixsend.WithHeaders(mapToKeyValuePairs(h.Headers)...))
		}
	}

	return matrixsend.NewEndpoint(rawURL, opts...)
}

// PollerOptions converts the health settings into poller options.
// Unset values are left to the SDK defaults.
func PollerOptions(h *Health) []matrixsend.Option {
	if h == nil {
		return nil
	}

	var opts []matrixsend.Option
	if h.Attempts != 0 {
		opts = append(opts, matrixsend.WithAttempts(h.Attempts))
	}
	if h.RetryDelay != 0 {
		opts = append(opts, matrixsend.WithRetryDelay(h.RetryDelay.Duration()))
	}
	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
