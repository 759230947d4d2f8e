package main

import (
	"context"
	"fmt"

	"github.com/jpalmerr/matrixsend"
	"github.com/jpalmerr/matrixsend/internal/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// waitHealthy polls ep until it reports success. It prints one line per
// unreachable attempt and "Health OK" on success, and returns an error when
// the endpoint is unhealthy or never came up.
func (c *cli) waitHealthy(ctx context.Context, cmd *cobra.Command, ep matrixsend.Endpoint, opts ...matrixsend.Option) error {
	out := cmd.OutOrStdout()

	ctx, span := telemetry.StartSpan(ctx, "health.wait", attribute.String("endpoint", ep.URL()))

	probe := matrixsend.NewHTTPProbe()
	defer probe.Close()

	base := []matrixsend.Option{
		matrixsend.WithProbe(probe),
		matrixsend.WithLogger(c.logger),
		matrixsend.WithAttemptHook(func(r matrixsend.AttemptResult) {
			c.metrics.ObserveProbe(r.Result(), r.Latency)
			span.AddEvent("attempt", trace.WithAttributes(
				attribute.Int("attempt", r.Attempt),
				attribute.String("result", r.Result()),
			))
			if matrixsend.IsRetryable(r.Err) {
				fmt.Fprintf(out, "Unable to connect to %s... attempt %d/%d\n", r.Endpoint, r.Attempt, r.MaxAttempts)
			}
		}),
	}

	poller, err := matrixsend.NewPoller(ep, append(base, opts...)...)
	if err != nil {
		telemetry.EndSpan(span, err)
		return fmt.Errorf("invalid health check settings: %w", err)
	}

	c.logger.Debug("waiting for endpoint",
		"endpoint", poller.Endpoint().URL(),
		"max_attempts", poller.Attempts(),
		"retry_delay", poller.RetryDelay(),
	)

	outcome, err := poller.Wait(ctx)
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	telemetry.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Fprintln(out, "Health OK")
	return nil
}
