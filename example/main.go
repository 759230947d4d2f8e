package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/matrixsend"
)

func main() {
	// the mock only starts listening after 3s (see mock_server.go)
	go StartMockHealthServer(":9999", 3*time.Second)

	ep, err := matrixsend.NewEndpoint("http://localhost:9999/health",
		matrixsend.WithTimeout(time.Second),
	)
	if err != nil {
		slog.Error("failed to create endpoint", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	poller, err := matrixsend.NewPoller(ep,
		matrixsend.WithAttempts(5),
		matrixsend.WithRetryDelay(time.Second),
		matrixsend.WithLogger(logger),
		matrixsend.WithAttemptHook(func(r matrixsend.AttemptResult) {
			fmt.Printf("  attempt %d/%d: %s (%s)\n", r.Attempt, r.MaxAttempts, r.Result(), r.Latency.Round(time.Millisecond))
		}),
	)
	if err != nil {
		slog.Error("failed to create poller", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Waiting for http://localhost:9999/health")
	fmt.Println("  (the mock server comes up after 3s, 5 attempts 1s apart)")
	fmt.Println()

	// set up context with signal handling so Ctrl+C stops the wait
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := poller.Wait(ctx)
	fmt.Printf("\n  outcome: %s\n", outcome)
	if err != nil {
		slog.Error("endpoint not ready", "error", err)
		os.Exit(1)
	}
}
