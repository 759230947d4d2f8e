package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// StartMockHealthServer serves a /health endpoint on addr after waiting
// startDelay, so the first probes against it fail to connect the way they
// would against a service that is still booting.
// Call this in a goroutine before polling.
func StartMockHealthServer(addr string, startDelay time.Duration) {
	time.Sleep(startDelay)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	slog.Info("mock health server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
