package matrixsend

import (
	"errors"
	"log/slog"
	"time"
)

const (
	// DefaultAttempts is the attempt budget used when [WithAttempts] is not given.
	DefaultAttempts = 10

	// DefaultRetryDelay is the pause between attempts used when
	// [WithRetryDelay] is not given.
	DefaultRetryDelay = 2 * time.Second
)

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
	attempts   int
	retryDelay time.Duration
	probe      Probe
	logger     *slog.Logger
	hooks      []func(AttemptResult)
}

// Option configures a [Poller] during construction.
//
// Option implements the functional options pattern. Options return an
// error if validation fails.
//
// Built-in options: [WithAttempts], [WithRetryDelay], [WithProbe],
// [WithLogger], [WithAttemptHook].
type Option func(*pollerConfig) error

// WithAttempts sets the attempt budget: the maximum number of probes issued
// before the poller gives up. Defaults to [DefaultAttempts].
//
// Returns an error if n is less than 1.
func WithAttempts(n int) Option {
	return func(cfg *pollerConfig) error {
		if n < 1 {
			return errors.New("attempts must be at least 1")
		}
		cfg.attempts = n
		return nil
	}
}

// WithRetryDelay sets the pause between a failed attempt and the next one.
// Defaults to [DefaultRetryDelay]. Zero disables the pause.
//
// Returns an error if the duration is negative.
func WithRetryDelay(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d < 0 {
			return errors.New("retry delay cannot be negative")
		}
		cfg.retryDelay = d
		return nil
	}
}

// WithProbe replaces the default [HTTPProbe].
//
// Returns an error if the probe is nil.
func WithProbe(p Probe) Option {
	return func(cfg *pollerConfig) error {
		if p == nil {
			return errors.New("probe cannot be nil")
		}
		cfg.probe = p
		return nil
	}
}

// WithLogger sets the [slog.Logger] used for per-attempt progress notices.
// If not specified, progress is discarded.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithAttemptHook registers a function called after every attempt.
//
// Hooks run synchronously on the polling goroutine in registration order and
// should return quickly. Panics within hooks are recovered and logged.
//
// Example:
//
//	p, err := matrixsend.NewPoller(ep,
//	    matrixsend.WithAttemptHook(func(r matrixsend.AttemptResult) {
//	        attempts.WithLabelValues(r.Result()).Inc()
//	    }),
//	)
//
// Nil hooks are silently ignored.
func WithAttemptHook(hook func(AttemptResult)) Option {
	return func(cfg *pollerConfig) error {
		if hook == nil {
			return nil
		}
		cfg.hooks = append(cfg.hooks, hook)
		return nil
	}
}
