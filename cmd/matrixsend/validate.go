package main

import (
	"context"
	"fmt"

	"github.com/jpalmerr/matrixsend"
	"github.com/jpalmerr/matrixsend/config"
	"github.com/spf13/cobra"
)

func newValidateCmd(c *cli) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a credential store",
		Long: `Validate a credential store without contacting the homeserver.

This command parses the store, expands environment variables, and validates
all fields. The access token is printed masked.

Exit codes:
  0 - Store is valid
  1 - Store is missing or invalid (error details printed to stderr)

Example:
  matrixsend validate
  matrixsend validate --path ~/.matrixsend/creds.yaml`,
		RunE: c.run("validate", func(ctx context.Context, cmd *cobra.Command) error {
			return runValidate(cmd, path)
		}),
	}

	cmd.Flags().StringVar(&path, "path", ".", "credential store directory or file")
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return fmt.Errorf("invalid credentials path: %w", err)
	}
	creds, err := config.Load(resolved)
	if err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Credentials are valid!\n")
	fmt.Fprintf(out, "  File:         %s\n", resolved)
	fmt.Fprintf(out, "  Homeserver:   %s\n", creds.Homeserver)
	fmt.Fprintf(out, "  User:         %s\n", creds.UserID)
	fmt.Fprintf(out, "  Device:       %s\n", creds.DeviceID)
	fmt.Fprintf(out, "  Access token: %s\n", creds.MaskedToken())
	fmt.Fprintf(out, "  Room:         %s\n", orNotSet(creds.RoomID))
	fmt.Fprintf(out, "  Health check: %s\n", healthSummary(creds))

	return nil
}

func healthSummary(creds *config.Credentials) string {
	if creds.Endpoint == "" {
		return "(not set)"
	}

	attempts := matrixsend.DefaultAttempts
	timeout := matrixsend.DefaultProbeTimeout
	delay := matrixsend.DefaultRetryDelay
	if h := creds.Health; h != nil {
		if h.Attempts != 0 {
			attempts = h.Attempts
		}
		if h.Timeout != 0 {
			timeout = h.Timeout.Duration()
		}
		if h.RetryDelay != 0 {
			delay = h.RetryDelay.Duration()
		}
	}
	return fmt.Sprintf("%s (%d attempts, %s timeout, %s delay)", creds.Endpoint, attempts, timeout, delay)
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
