// Standalone mock homeserver for trying the CLI without a real Matrix server.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/matrixsend init --homeserver http://localhost:8008 --userid @demo:localhost --password demo --roomid '!demo:localhost'
//	go run ./cmd/matrixsend sendmsg --message "hello" --endpoint http://localhost:8008/health
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
)

func main() {
	fmt.Println("Mock homeserver starting on :8008")
	fmt.Println("Any password logs in; sent messages are logged")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var sent atomic.Int64

	http.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	http.HandleFunc("POST /_matrix/client/v3/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Identifier struct {
				User string `json:"user"`
			} `json:"identifier"`
			DeviceName string `json:"initial_device_display_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "M_NOT_JSON", err.Error())
			return
		}

		slog.Info("login", "user_id", req.Identifier.User, "device_name", req.DeviceName)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"user_id":      req.Identifier.User,
			"device_id":    "MOCKDEVICE",
			"access_token": "syt_mock_" + uuid.NewString(),
		})
	})

	http.HandleFunc("PUT /_matrix/client/v3/rooms/{room}/send/m.room.message/{txn}", func(w http.ResponseWriter, r *http.Request) {
		var content struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
			writeError(w, http.StatusBadRequest, "M_NOT_JSON", err.Error())
			return
		}

		n := sent.Add(1)
		slog.Info("message",
			"room_id", r.PathValue("room"),
			"txn_id", r.PathValue("txn"),
			"body", content.Body,
		)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"event_id": fmt.Sprintf("$mock%d", n),
		})
	})

	if err := http.ListenAndServe(":8008", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeError(w http.ResponseWriter, status int, errcode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"errcode": errcode, "error": msg})
}
