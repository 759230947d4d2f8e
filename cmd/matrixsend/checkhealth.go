package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jpalmerr/matrixsend"
	"github.com/spf13/cobra"
)

const defaultHealthEndpoint = "http://localhost:8008/health"

type checkHealthOptions struct {
	endpoint   string
	attempts   int
	timeout    time.Duration
	retryDelay time.Duration
}

func newCheckHealthCmd(c *cli) *cobra.Command {
	var opts checkHealthOptions

	cmd := &cobra.Command{
		Use:   "check-health",
		Short: "Wait for a health endpoint to report success",
		Long: `Poll an HTTP health endpoint until it answers with a 2xx status.

Each attempt is a single GET bounded by --timeout. Connection failures and
timeouts use up an attempt and are retried after --retry-delay. Any other
status stops immediately. The command exits 1 when the endpoint is
unhealthy or every attempt failed.

Exit codes:
  0 - Health OK
  1 - Unhealthy, unreachable after all attempts, or invalid flags

Example:
  matrixsend check-health
  matrixsend check-health --endpoint http://localhost:8080/ready --attempts 30 --retry-delay 1s`,
		RunE: c.run("check-health", func(ctx context.Context, cmd *cobra.Command) error {
			return c.runCheckHealth(ctx, cmd, &opts)
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.endpoint, "endpoint", defaultHealthEndpoint, "health endpoint to query")
	flags.IntVar(&opts.attempts, "attempts", matrixsend.DefaultAttempts, "number of health check attempts")
	flags.DurationVar(&opts.timeout, "timeout", matrixsend.DefaultProbeTimeout, "timeout of each attempt")
	flags.DurationVar(&opts.retryDelay, "retry-delay", matrixsend.DefaultRetryDelay, "pause between attempts")

	return cmd
}

func (c *cli) runCheckHealth(ctx context.Context, cmd *cobra.Command, opts *checkHealthOptions) error {
	ep, err := matrixsend.NewEndpoint(opts.endpoint, matrixsend.WithTimeout(opts.timeout))
	if err != nil {
		return fmt.Errorf("invalid --endpoint: %w", err)
	}

	return c.waitHealthy(ctx, cmd, ep,
		matrixsend.WithAttempts(opts.attempts),
		matrixsend.WithRetryDelay(opts.retryDelay),
	)
}
