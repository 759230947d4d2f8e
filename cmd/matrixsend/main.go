// Package main is the entry point for the matrixsend CLI.
//
// matrixsend logs in to a Matrix homeserver once, stores the session, and
// later sends single text messages to a room. A send can wait for an HTTP
// health endpoint to come up first, which makes it usable as the last step
// of a deploy script.
//
// Usage:
//
//	matrixsend init --homeserver matrix.example.org --userid @bot:example.org
//	matrixsend sendmsg --roomid '!abc:example.org' --message "deploy finished"
//	matrixsend check-health --endpoint http://localhost:8008/health
//	matrixsend validate --path .
//	matrixsend version
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}
