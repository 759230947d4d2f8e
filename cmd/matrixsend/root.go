package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jpalmerr/matrixsend/internal/telemetry"
	"github.com/spf13/cobra"
)

const flushTimeout = 5 * time.Second

// cli holds the persistent flags and the per-run logger, metrics and tracer
// shutdown shared by every subcommand.
type cli struct {
	logFormat     string
	logLevel      string
	traceExporter string
	pushgateway   string

	logger      *slog.Logger
	metrics     *telemetry.Metrics
	stopTracing telemetry.ShutdownFunc
	started     time.Time
}

// newRootCmd builds the command tree. Each call returns independent flag
// state, so tests can execute it repeatedly.
func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "matrixsend",
		Short: "Send Matrix messages from scripts",
		Long: `matrixsend sends a single text message to a Matrix room.

Log in once with "init" to store an access token, then use "sendmsg" as
often as needed. A send can first wait for an HTTP health endpoint to
report success, retrying while the endpoint is unreachable.

Quick start:
  1. matrixsend init --homeserver matrix.example.org --userid @bot:example.org --roomid '!abc:example.org'
  2. matrixsend sendmsg --message "deploy finished"`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.logFormat, "log-format", "json", "log format: json or text")
	flags.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&c.traceExporter, "trace-exporter", telemetry.ExporterNone, "trace exporter: none, stdout or otlp")
	flags.StringVar(&c.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL to push run metrics to")

	root.AddCommand(
		newInitCmd(c),
		newSendCmd(c),
		newCheckHealthCmd(c),
		newValidateCmd(c),
		newVersionCmd(),
	)
	return root
}

// setup runs before every subcommand.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), c.logFormat, c.logLevel)
	if err != nil {
		return err
	}
	c.logger = logger

	stop, err := telemetry.SetupTracing(cmd.Context(), c.traceExporter, version, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.stopTracing = stop

	c.metrics = telemetry.NewMetrics()
	c.started = time.Now()
	return nil
}

// run wraps a subcommand body in a span and flushes telemetry afterwards,
// whether or not the body failed.
func (c *cli) run(name string, fn func(ctx context.Context, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, span := telemetry.StartSpan(cmd.Context(), name)
		err := fn(ctx, cmd)
		telemetry.EndSpan(span, err)
		c.finish(name)
		return err
	}
}

func (c *cli) finish(name string) {
	c.metrics.ObserveCommand(name, time.Since(c.started))

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if c.pushgateway != "" {
		if err := c.metrics.Push(ctx, c.pushgateway); err != nil {
			c.logger.Warn("metrics push failed", "pushgateway", c.pushgateway, "error", err)
		}
	}
	if c.stopTracing != nil {
		if err := c.stopTracing(ctx); err != nil {
			c.logger.Warn("trace flush failed", "error", err)
		}
	}
}

// newLogger creates the CLI logger. Logs go to w (stderr) so stdout only
// carries command results.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (expected json or text)", format)
	}
}

// newVersionCmd prints version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this matrixsend binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "matrixsend %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// userAgent identifies this build to the homeserver.
func userAgent() string {
	return "matrixsend/" + version
}
