package matrixsend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Poller waits for an [Endpoint] to report ready within a fixed attempt
// budget.
//
// A Poller holds no state between calls; [Poller.Wait] may be called again
// to run a fresh poll with the full budget.
type Poller struct {
	endpoint   Endpoint
	attempts   int
	retryDelay time.Duration
	probe      Probe
	logger     *slog.Logger
	hooks      []func(AttemptResult)

	// sleep waits between attempts; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a [Poller] for the endpoint.
//
// Without options the poller makes [DefaultAttempts] attempts,
// [DefaultRetryDelay] apart, through an [HTTPProbe].
//
// Returns an error if any option fails validation.
func NewPoller(ep Endpoint, opts ...Option) (*Poller, error) {
	if ep.URL() == "" {
		return nil, fmt.Errorf("endpoint is required (use NewEndpoint)")
	}

	cfg := &pollerConfig{
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.probe == nil {
		cfg.probe = NewHTTPProbe()
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Poller{
		endpoint:   ep,
		attempts:   cfg.attempts,
		retryDelay: cfg.retryDelay,
		probe:      cfg.probe,
		logger:     cfg.logger,
		hooks:      cfg.hooks,
		sleep:      sleepContext,
	}, nil
}

// Endpoint returns the endpoint being polled.
func (p *Poller) Endpoint() Endpoint {
	return p.endpoint
}

// Attempts returns the attempt budget.
func (p *Poller) Attempts() int {
	return p.attempts
}

// RetryDelay returns the pause between attempts.
func (p *Poller) RetryDelay() time.Duration {
	return p.retryDelay
}

// Wait probes the endpoint until it is ready or the budget is spent.
//
// Wait returns:
//   - [StatusReady] and a nil error on the first healthy probe;
//   - [StatusAborted] and the probe error when an attempt fails with a
//     non-retryable error (for example an [*UnhealthyStatusError]);
//   - [StatusAborted] and ctx.Err() when ctx is cancelled;
//   - [StatusExhausted] and an error matching [ErrAttemptsExhausted] when
//     every attempt failed with a connection failure or timeout.
//
// Wait blocks for at most attempts x timeout + (attempts-1) x retry delay.
func (p *Poller) Wait(ctx context.Context) (Outcome, error) {
	url := p.endpoint.URL()
	var lastErr error

	for attempt := 1; attempt <= p.attempts; attempt++ {
		start := time.Now()
		err := p.probe.Probe(ctx, p.endpoint)
		p.notify(AttemptResult{
			Endpoint:    url,
			Attempt:     attempt,
			MaxAttempts: p.attempts,
			Latency:     time.Since(start),
			Err:         err,
		})

		if err == nil {
			p.logger.Info("health ok", "endpoint", url, "attempt", attempt)
			return Outcome{Status: StatusReady, Attempts: attempt}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{Status: StatusAborted, Attempts: attempt}, ctxErr
		}

		if !IsRetryable(err) {
			p.logger.Error("endpoint unhealthy",
				"endpoint", url,
				"attempt", attempt,
				"error", err,
			)
			return Outcome{Status: StatusAborted, Attempts: attempt}, err
		}

		lastErr = err
		p.logger.Warn("unable to connect",
			"endpoint", url,
			"attempt", attempt,
			"max_attempts", p.attempts,
			"error", err,
		)

		if attempt == p.attempts {
			break
		}

		if err := p.sleep(ctx, p.retryDelay); err != nil {
			return Outcome{Status: StatusAborted, Attempts: attempt}, err
		}
	}

	return Outcome{Status: StatusExhausted, Attempts: p.attempts},
		fmt.Errorf("%w after %d attempts against %s: %w", ErrAttemptsExhausted, p.attempts, url, lastErr)
}

// notify runs the attempt hooks, recovering from panics so a misbehaving
// hook cannot abort the poll.
func (p *Poller) notify(result AttemptResult) {
	for _, hook := range p.hooks {
		p.safeHook(hook, result)
	}
}

func (p *Poller) safeHook(hook func(AttemptResult), result AttemptResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("attempt hook panic",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	hook(result)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
