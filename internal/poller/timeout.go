package poller

import (
	"context"
	"errors"
	"net"
)

// isDeadline reports whether err was caused by an expired deadline, either
// the request context or a network-level timeout.
func isDeadline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
