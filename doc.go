// Package matrixsend waits for a remote service to report ready before a
// Matrix notification is sent.
//
// The package provides a bounded readiness poller: it probes an HTTP
// endpoint until the endpoint answers with a 2xx status or a fixed attempt
// budget runs out, sleeping a fixed delay between attempts.
//
// # Quick Start
//
//	ep, _ := matrixsend.NewEndpoint("http://localhost:8008/health",
//	    matrixsend.WithTimeout(5 * time.Second),
//	)
//	p, _ := matrixsend.NewPoller(ep,
//	    matrixsend.WithAttempts(10),
//	    matrixsend.WithRetryDelay(2 * time.Second),
//	)
//
//	outcome, err := p.Wait(ctx)
//	if err != nil {
//	    // errors.Is(err, matrixsend.ErrAttemptsExhausted) or ErrUnhealthyStatus
//	}
//
// # Attempt Semantics
//
// Every attempt issues exactly one request through a [Probe]. The result
// decides what happens next:
//
//   - 2xx status: the poller returns [StatusReady] at once.
//   - Any other status: the poller stops with an [*UnhealthyStatusError].
//   - Connection failure or per-attempt timeout: the attempt is consumed
//     and, unless it was the last one, the poller sleeps the retry delay.
//
// When every attempt ends in a connection failure or timeout the poller
// returns [StatusExhausted] and an error matching [ErrAttemptsExhausted].
// The retry delay is never applied after the final attempt.
//
// # Architecture
//
//   - internal/poller: pooled HTTP transport used by [HTTPProbe]
//   - internal/matrix: Matrix client-server API client (login, room send)
//   - internal/telemetry: optional tracing and Pushgateway metrics
//   - config: credential store and the poller settings kept with it
//   - cmd/matrixsend: the command-line interface
package matrixsend
