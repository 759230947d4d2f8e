// Package config is the matrixsend credential store.
//
// A credential store is a single file holding what is needed to send
// messages without re-authenticating, plus optional defaults for the room
// and the health check run before sending.
//
// Example (config.json, the default file name):
//
//	{
//	  "homeserver": "https://matrix.example.org",
//	  "user_id": "@bot:example.org",
//	  "device_id": "ABCDEFGHIJ",
//	  "access_token": "${MATRIX_TOKEN}",
//	  "room_id": "!abc123:example.org",
//	  "endpoint": "http://localhost:8008/health",
//	  "health": {"attempts": 10, "timeout": "5s", "retry_delay": "2s"}
//	}
//
// The same record may be kept as YAML (.yaml, .yml) or TOML (.toml); the
// format is chosen by file extension.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultFileName is the file used when the store path names a directory.
const DefaultFileName = "config.json"

// Sentinel errors for credential store operations.
var (
	// ErrNotFound is returned by Load when the store file does not exist.
	ErrNotFound = errors.New("config: credentials not found")

	// ErrExists is returned by Save when the store file exists and force is false.
	ErrExists = errors.New("config: credentials already exist")
)

// Credentials is the record kept in the credential store.
type Credentials struct {
	// Homeserver is the base URL of the Matrix homeserver,
	// e.g. "https://matrix.example.org".
	Homeserver string `json:"homeserver" yaml:"homeserver" toml:"homeserver"`

	// UserID is the fully qualified Matrix user, e.g. "@bot:example.org".
	UserID string `json:"user_id" yaml:"user_id" toml:"user_id"`

	// DeviceID is the device the access token was issued to.
	DeviceID string `json:"device_id" yaml:"device_id" toml:"device_id"`

	// AccessToken authenticates client-server API calls.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	AccessToken string `json:"access_token" yaml:"access_token" toml:"access_token"`

	// RoomID is the default room for sendmsg.
	RoomID string `json:"room_id,omitempty" yaml:"room_id,omitempty" toml:"room_id,omitempty"`

	// Endpoint is the default health endpoint checked before sending.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`

	// Health overrides the health check defaults.
	Health *Health `json:"health,omitempty" yaml:"health,omitempty" toml:"health,omitempty"`
}

// Health holds the poller settings used when sendmsg checks Endpoint.
// Zero values mean "use the default".
type Health struct {
	// Attempts is the attempt budget. Defaults to 10.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty" toml:"attempts,omitempty"`

	// Timeout is the per-attempt timeout. Defaults to 5s.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	// RetryDelay is the pause between attempts. Defaults to 2s.
	RetryDelay Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty" toml:"retry_delay,omitempty"`

	// Method is the HTTP method (GET, HEAD, POST). Defaults to GET.
	Method string `json:"method,omitempty" yaml:"method,omitempty" toml:"method,omitempty"`

	// Headers are sent with every probe. Values support environment
	// variable substitution.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`
}

// MaskedToken returns the access token with all but the last four
// characters hidden, for display.
func (c *Credentials) MaskedToken() string {
	const visible = 4
	if len(c.AccessToken) <= visible {
		return strings.Repeat("*", len(c.AccessToken))
	}
	return strings.Repeat("*", len(c.AccessToken)-visible) + c.AccessToken[len(c.AccessToken)-visible:]
}

// expandAndValidate expands environment variables and validates the record.
func (c *Credentials) expandAndValidate() error {
	if err := c.expand(); err != nil {
		return err
	}
	return c.Validate()
}

type stringField struct {
	name     string
	value    *string
	required bool
}

func (c *Credentials) stringFields() []stringField {
	return []stringField{
		{"homeserver", &c.Homeserver, true},
		{"user_id", &c.UserID, true},
		{"device_id", &c.DeviceID, true},
		{"access_token", &c.AccessToken, true},
		{"room_id", &c.RoomID, false},
		{"endpoint", &c.Endpoint, false},
	}
}

// expand replaces ${VAR} references in string fields and health headers.
func (c *Credentials) expand() error {
	for _, f := range c.stringFields() {
		expanded, err := expandEnvVars(*f.value)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = strings.TrimSpace(expanded)
	}

	if c.Health != nil {
		for k, v := range c.Health.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("health: headers[%s]: %w", k, err)
			}
			c.Health.Headers[k] = expanded
		}
	}
	return nil
}

// Validate checks required fields and URL shapes. It does not expand
// environment variables.
func (c *Credentials) Validate() error {
	for _, f := range c.stringFields() {
		if f.required && strings.TrimSpace(*f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}

	if err := validateHTTPURL(c.Homeserver); err != nil {
		return fmt.Errorf("homeserver: %w", err)
	}
	if !strings.HasPrefix(c.UserID, "@") {
		return fmt.Errorf("user_id must be a fully qualified Matrix ID (@user:server), got %q", c.UserID)
	}
	if c.Endpoint != "" {
		if err := validateHTTPURL(c.Endpoint); err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
	}

	if c.Health != nil {
		if err := c.Health.validate(); err != nil {
			return fmt.Errorf("health: %w", err)
		}
	}

	return nil
}

func (h *Health) validate() error {
	if h.Attempts < 0 {
		return fmt.Errorf("attempts cannot be negative, got %d", h.Attempts)
	}
	if h.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", h.Timeout.Duration())
	}
	if h.RetryDelay.Duration() < 0 {
		return fmt.Errorf("retry_delay cannot be negative, got %s", h.RetryDelay.Duration())
	}

	switch h.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodPost:
	default:
		return fmt.Errorf("method must be GET, HEAD, or POST, got %q", h.Method)
	}
	return nil
}

// validateHTTPURL checks that s is an absolute http or https URL.
func validateHTTPURL(s string) error {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}
