package matrixsend

import (
	"errors"
	"fmt"
	"time"
)

// Status is the terminal state of a [Poller.Wait] call.
type Status string

const (
	// StatusReady indicates the endpoint answered with a 2xx status.
	StatusReady Status = "ready"

	// StatusExhausted indicates every attempt ended in a connection failure
	// or timeout.
	StatusExhausted Status = "exhausted"

	// StatusAborted indicates the poll stopped before the budget was spent,
	// either on a non-retryable error or because the context was cancelled.
	StatusAborted Status = "aborted"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Outcome is the result of a [Poller.Wait] call.
type Outcome struct {
	// Status is the terminal state of the poll.
	Status Status

	// Attempts is the number of probes issued.
	Attempts int
}

// Ready reports whether the endpoint was found healthy.
func (o Outcome) Ready() bool {
	return o.Status == StatusReady
}

// String renders the outcome as "ready(2)", "exhausted(10)" and so on.
func (o Outcome) String() string {
	return fmt.Sprintf("%s(%d)", o.Status, o.Attempts)
}

// AttemptResult describes a single probe issued by a [Poller].
//
// AttemptResult values are passed to hooks registered with
// [WithAttemptHook] after every attempt, including the last.
type AttemptResult struct {
	// Endpoint is the URL that was probed.
	Endpoint string

	// Attempt is the 1-based attempt number.
	Attempt int

	// MaxAttempts is the attempt budget of the poller.
	MaxAttempts int

	// Latency is the time the probe took.
	Latency time.Duration

	// Err is the probe error, nil when the endpoint was healthy.
	Err error
}

// Result returns a short label for the attempt: "ok", "timeout",
// "connection_failure", "unhealthy" or "error".
func (r AttemptResult) Result() string {
	switch {
	case r.Err == nil:
		return "ok"
	case errors.Is(r.Err, ErrProbeTimeout):
		return "timeout"
	case errors.Is(r.Err, ErrConnectionFailure):
		return "connection_failure"
	case errors.Is(r.Err, ErrUnhealthyStatus):
		return "unhealthy"
	default:
		return "error"
	}
}
