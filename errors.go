package matrixsend

import (
	"errors"
	"fmt"
)

// Sentinel errors for readiness polling.
var (
	// ErrConnectionFailure is returned by a probe that could not reach the endpoint.
	ErrConnectionFailure = errors.New("matrixsend: connection failure")

	// ErrProbeTimeout is returned by a probe whose request exceeded the per-attempt timeout.
	ErrProbeTimeout = errors.New("matrixsend: probe timed out")

	// ErrUnhealthyStatus matches every [*UnhealthyStatusError].
	ErrUnhealthyStatus = errors.New("matrixsend: unhealthy status")

	// ErrAttemptsExhausted is returned when every attempt failed with a retryable error.
	ErrAttemptsExhausted = errors.New("matrixsend: readiness attempts exhausted")
)

// UnhealthyStatusError reports that the endpoint answered with a non-2xx status.
type UnhealthyStatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *UnhealthyStatusError) Error() string {
	return fmt.Sprintf("matrixsend: %s returned status %d", e.Endpoint, e.StatusCode)
}

// Is makes errors.Is(err, ErrUnhealthyStatus) true.
func (e *UnhealthyStatusError) Is(target error) bool {
	return target == ErrUnhealthyStatus
}

// IsRetryable reports whether err consumes an attempt and allows another one.
// Only connection failures and probe timeouts are retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnectionFailure) || errors.Is(err, ErrProbeTimeout)
}
