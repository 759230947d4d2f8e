package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/matrixsend"
	"github.com/jpalmerr/matrixsend/config"
)

// executeCmd runs a fresh command tree with args and returns captured
// stdout, stderr and the command error.
func executeCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type sentMessage struct {
	room string
	body string
}

// fakeHomeserver accepts password "hunter2" and records room sends.
type fakeHomeserver struct {
	*httptest.Server

	mu     sync.Mutex
	logins int
	sent   []sentMessage
}

func newFakeHomeserver(t *testing.T) *fakeHomeserver {
	t.Helper()
	f := &fakeHomeserver{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /_matrix/client/v3/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Identifier struct {
				User string `json:"user"`
			} `json:"identifier"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.logins++
		f.mu.Unlock()

		if req.Password != "hunter2" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"Invalid password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"user_id":      req.Identifier.User,
			"device_id":    "QWERTYUIOP",
			"access_token": "syt_test_token_abcd",
		})
	})
	mux.HandleFunc("PUT /_matrix/client/v3/rooms/{room}/send/m.room.message/{txn}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer syt_test_token_abcd" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errcode":"M_UNKNOWN_TOKEN","error":"Unknown token"}`))
			return
		}
		var content struct {
			Body string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&content)

		f.mu.Lock()
		f.sent = append(f.sent, sentMessage{room: r.PathValue("room"), body: content.Body})
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"event_id":"$event"}`))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeHomeserver) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeHomeserver) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

// healthServer answers every request with status and counts requests.
func healthServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// closedURL returns a URL nothing listens on.
func closedURL(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	u := server.URL + "/health"
	server.Close()
	return u
}

// storeCredentials writes a credential store pointing at hs into a temp dir.
func storeCredentials(t *testing.T, hs *fakeHomeserver, mutate func(*config.Credentials)) string {
	t.Helper()
	dir := t.TempDir()
	creds := &config.Credentials{
		Homeserver:  hs.URL,
		UserID:      "@bot:example.org",
		DeviceID:    "QWERTYUIOP",
		AccessToken: "syt_test_token_abcd",
	}
	if mutate != nil {
		mutate(creds)
	}
	if _, err := config.Save(dir, creds, false); err != nil {
		t.Fatalf("config.Save() error = %v", err)
	}
	return dir
}

func TestInit_StoresCredentials(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := t.TempDir()

	stdout, _, err := executeCmd(t, "", "init",
		"--homeserver", hs.URL,
		"--userid", "@bot:example.org",
		"--password", "hunter2",
		"--path", dir,
		"--roomid", "!room:example.org",
		"--endpoint", "http://localhost:8008/health",
	)
	if err != nil {
		t.Fatalf("init error = %v", err)
	}
	if !strings.Contains(stdout, "Credentials were stored.") {
		t.Errorf("stdout = %q", stdout)
	}

	creds, err := config.Load(dir)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	if creds.AccessToken != "syt_test_token_abcd" || creds.DeviceID != "QWERTYUIOP" {
		t.Errorf("stored creds = %+v", creds)
	}
	if creds.RoomID != "!room:example.org" || creds.Endpoint != "http://localhost:8008/health" {
		t.Errorf("stored room/endpoint = %q / %q", creds.RoomID, creds.Endpoint)
	}

	info, err := os.Stat(filepath.Join(dir, config.DefaultFileName))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %o, want 600", info.Mode().Perm())
	}
}

func TestInit_MissingDottedDirectory(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := filepath.Join(t.TempDir(), ".matrixsend")

	_, _, err := executeCmd(t, "", "init",
		"--homeserver", hs.URL,
		"--userid", "@bot:example.org",
		"--password", "hunter2",
		"--path", dir,
	)
	if err != nil {
		t.Fatalf("init error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.DefaultFileName)); err != nil {
		t.Errorf("Stat() error = %v", err)
	}
}

func TestInit_PasswordSources(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		stdin string
	}{
		{"environment", "hunter2", ""},
		{"stdin line", "", "hunter2\n"},
		{"stdin without newline", "", "hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(passwordEnv, tt.env)
			hs := newFakeHomeserver(t)
			dir := t.TempDir()

			_, _, err := executeCmd(t, tt.stdin, "init",
				"--homeserver", hs.URL,
				"--userid", "@bot:example.org",
				"--path", filepath.Join(dir, "creds.yaml"),
			)
			if err != nil {
				t.Fatalf("init error = %v", err)
			}
			if _, err := config.Load(filepath.Join(dir, "creds.yaml")); err != nil {
				t.Errorf("config.Load() error = %v", err)
			}
		})
	}
}

func TestInit_NoPassword(t *testing.T) {
	t.Setenv(passwordEnv, "")
	hs := newFakeHomeserver(t)

	_, _, err := executeCmd(t, "", "init",
		"--homeserver", hs.URL,
		"--userid", "@bot:example.org",
		"--path", t.TempDir(),
	)
	if err == nil || !strings.Contains(err.Error(), "password is required") {
		t.Fatalf("init error = %v, want password is required", err)
	}
	if hs.loginCount() != 0 {
		t.Errorf("logins = %d, want 0", hs.loginCount())
	}
}

func TestInit_ExistingRequiresForce(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := t.TempDir()
	args := []string{"init", "--homeserver", hs.URL, "--userid", "@bot:example.org", "--password", "hunter2", "--path", dir}

	if _, _, err := executeCmd(t, "", args...); err != nil {
		t.Fatalf("first init error = %v", err)
	}

	_, _, err := executeCmd(t, "", args...)
	if !errors.Is(err, config.ErrExists) {
		t.Fatalf("second init error = %v, want ErrExists", err)
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Errorf("error = %v, want --force hint", err)
	}
	if hs.loginCount() != 1 {
		t.Errorf("logins = %d, refused init must not log in", hs.loginCount())
	}

	if _, _, err := executeCmd(t, "", append(args, "--force")...); err != nil {
		t.Fatalf("forced init error = %v", err)
	}
	if hs.loginCount() != 2 {
		t.Errorf("logins = %d, want 2", hs.loginCount())
	}
}

func TestInit_LoginFailure(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := t.TempDir()

	_, _, err := executeCmd(t, "", "init",
		"--homeserver", hs.URL,
		"--userid", "@bot:example.org",
		"--password", "wrong",
		"--path", dir,
	)
	if err == nil {
		t.Fatal("init expected error for bad password")
	}
	if !strings.Contains(err.Error(), "M_FORBIDDEN") {
		t.Errorf("error = %v, want M_FORBIDDEN", err)
	}

	ok, err := config.Exists(dir)
	if err != nil {
		t.Fatalf("config.Exists() error = %v", err)
	}
	if ok {
		t.Error("credentials stored after failed login")
	}
}

func TestInit_InvalidEndpoint(t *testing.T) {
	hs := newFakeHomeserver(t)

	_, _, err := executeCmd(t, "", "init",
		"--homeserver", hs.URL,
		"--userid", "@bot:example.org",
		"--password", "hunter2",
		"--path", t.TempDir(),
		"--endpoint", "ftp://example.org/health",
	)
	if err == nil || !strings.Contains(err.Error(), "invalid --endpoint") {
		t.Fatalf("init error = %v, want invalid --endpoint", err)
	}
	if hs.loginCount() != 0 {
		t.Errorf("logins = %d, want 0", hs.loginCount())
	}
}

func TestInit_MissingRequiredFlags(t *testing.T) {
	_, _, err := executeCmd(t, "", "init", "--userid", "@bot:example.org")
	if err == nil || !strings.Contains(err.Error(), "homeserver") {
		t.Fatalf("init error = %v, want missing homeserver", err)
	}
}

func TestSendmsg_StoredRoom(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := storeCredentials(t, hs, func(c *config.Credentials) {
		c.RoomID = "!stored:example.org"
	})

	stdout, _, err := executeCmd(t, "", "sendmsg", "--message", "deploy finished", "--path", dir)
	if err != nil {
		t.Fatalf("sendmsg error = %v", err)
	}
	if !strings.Contains(stdout, "Sent message.") {
		t.Errorf("stdout = %q", stdout)
	}

	msgs := hs.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].room != "!stored:example.org" || msgs[0].body != "deploy finished" {
		t.Errorf("sent = %+v", msgs[0])
	}
}

func TestSendmsg_RoomFlagOverridesStore(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := storeCredentials(t, hs, func(c *config.Credentials) {
		c.RoomID = "!stored:example.org"
	})

	if _, _, err := executeCmd(t, "", "sendmsg", "--message", "hi", "--roomid", "!flag:example.org", "--path", dir); err != nil {
		t.Fatalf("sendmsg error = %v", err)
	}

	msgs := hs.messages()
	if len(msgs) != 1 || msgs[0].room != "!flag:example.org" {
		t.Errorf("sent = %+v, want one message to !flag:example.org", msgs)
	}
}

func TestSendmsg_NoStore(t *testing.T) {
	_, _, err := executeCmd(t, "", "sendmsg", "--message", "hi", "--path", t.TempDir())
	if !errors.Is(err, config.ErrNotFound) {
		t.Fatalf("sendmsg error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "run init first") {
		t.Errorf("error = %v, want init hint", err)
	}
}

func TestSendmsg_NoRoom(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := storeCredentials(t, hs, nil)

	_, _, err := executeCmd(t, "", "sendmsg", "--message", "hi", "--path", dir)
	if !errors.Is(err, errNoRoom) {
		t.Fatalf("sendmsg error = %v, want errNoRoom", err)
	}
	if len(hs.messages()) != 0 {
		t.Error("message sent without a room")
	}
}

func TestSendmsg_RevokedToken(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := storeCredentials(t, hs, func(c *config.Credentials) {
		c.AccessToken = "syt_revoked"
		c.RoomID = "!room:example.org"
	})

	_, _, err := executeCmd(t, "", "sendmsg", "--message", "hi", "--path", dir)
	if err == nil || !strings.Contains(err.Error(), "M_UNKNOWN_TOKEN") {
		t.Fatalf("sendmsg error = %v, want M_UNKNOWN_TOKEN", err)
	}
	if !strings.Contains(err.Error(), "run init --force again") {
		t.Errorf("error = %v, want re-init hint", err)
	}
}

func TestSendmsg_WaitsForHealthyEndpoint(t *testing.T) {
	hs := newFakeHomeserver(t)
	health, calls := healthServer(t, http.StatusOK)
	dir := storeCredentials(t, hs, func(c *config.Credentials) {
		c.RoomID = "!room:example.org"
		c.Endpoint = health.URL + "/health"
	})

	stdout, _, err := executeCmd(t, "", "sendmsg", "--message", "hi", "--path", dir)
	if err != nil {
		t.Fatalf("sendmsg error = %v", err)
	}
	if !strings.Contains(stdout, "Health OK") {
		t.Errorf("stdout = %q, want Health OK", stdout)
	}
	if calls.Load() != 1 {
		t.Errorf("health calls = %d, want 1", calls.Load())
	}
	if len(hs.messages()) != 1 {
		t.Errorf("sent %d messages, want 1", len(hs.messages()))
	}
}

func TestSendmsg_UnhealthyEndpointBlocksSend(t *testing.T) {
	hs := newFakeHomeserver(t)
	health, calls := healthServer(t, http.StatusInternalServerError)
	dir := storeCredentials(t, hs, func(c *config.Credentials) {
		c.RoomID = "!room:example.org"
	})

	_, _, err := executeCmd(t, "", "sendmsg", "--message", "hi", "--path", dir, "--endpoint", health.URL)
	if !errors.Is(err, matrixsend.ErrUnhealthyStatus) {
		t.Fatalf("sendmsg error = %v, want ErrUnhealthyStatus", err)
	}
	if calls.Load() != 1 {
		t.Errorf("health calls = %d, want 1 (no retry on unhealthy status)", calls.Load())
	}
	if len(hs.messages()) != 0 {
		t.Error("message sent despite unhealthy endpoint")
	}
}

func TestSendmsg_UnreachableEndpointBlocksSend(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := storeCredentials(t, hs, func(c *config.Credentials) {
		c.RoomID = "!room:example.org"
		c.Endpoint = closedURL(t)
		c.Health = &config.Health{
			Attempts:   2,
			Timeout:    config.Duration(time.Second),
			RetryDelay: config.Duration(10 * time.Millisecond),
		}
	})

	stdout, _, err := executeCmd(t, "", "sendmsg", "--message", "hi", "--path", dir)
	if !errors.Is(err, matrixsend.ErrAttemptsExhausted) {
		t.Fatalf("sendmsg error = %v, want ErrAttemptsExhausted", err)
	}
	if n := strings.Count(stdout, "Unable to connect"); n != 2 {
		t.Errorf("progress lines = %d, want 2\n%s", n, stdout)
	}
	if !strings.Contains(stdout, "attempt 2/2") {
		t.Errorf("stdout = %q, want attempt 2/2", stdout)
	}
	if len(hs.messages()) != 0 {
		t.Error("message sent despite unreachable endpoint")
	}
}

func TestCheckHealth_OK(t *testing.T) {
	health, calls := healthServer(t, http.StatusNoContent)

	stdout, _, err := executeCmd(t, "", "check-health", "--endpoint", health.URL)
	if err != nil {
		t.Fatalf("check-health error = %v", err)
	}
	if strings.TrimSpace(stdout) != "Health OK" {
		t.Errorf("stdout = %q, want Health OK", stdout)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCheckHealth_Exhausted(t *testing.T) {
	stdout, _, err := executeCmd(t, "", "check-health",
		"--endpoint", closedURL(t),
		"--attempts", "2",
		"--retry-delay", "1ms",
	)
	if !errors.Is(err, matrixsend.ErrAttemptsExhausted) {
		t.Fatalf("check-health error = %v, want ErrAttemptsExhausted", err)
	}
	if n := strings.Count(stdout, "Unable to connect"); n != 2 {
		t.Errorf("progress lines = %d, want 2\n%s", n, stdout)
	}
	if strings.Contains(stdout, "Health OK") {
		t.Error("Health OK printed after exhaustion")
	}
}

func TestCheckHealth_Unhealthy(t *testing.T) {
	health, calls := healthServer(t, http.StatusServiceUnavailable)

	_, _, err := executeCmd(t, "", "check-health", "--endpoint", health.URL, "--attempts", "5", "--retry-delay", "1ms")

	var statusErr *matrixsend.UnhealthyStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("check-health error = %v, want *UnhealthyStatusError", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", statusErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want exactly 1", calls.Load())
	}
}

func TestCheckHealth_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero attempts", []string{"--attempts", "0"}, "attempts must be at least 1"},
		{"negative attempts", []string{"--attempts", "-1"}, "attempts must be at least 1"},
		{"endpoint without scheme", []string{"--endpoint", "localhost:8008/health"}, "invalid --endpoint"},
		{"zero timeout", []string{"--timeout", "0s"}, "invalid --endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"check-health"}, tt.args...)
			_, _, err := executeCmd(t, "", args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("check-health error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestValidate_MasksToken(t *testing.T) {
	hs := newFakeHomeserver(t)
	dir := storeCredentials(t, hs, func(c *config.Credentials) {
		c.Endpoint = "http://localhost:8008/health"
		c.Health = &config.Health{Attempts: 3}
	})

	stdout, _, err := executeCmd(t, "", "validate", "--path", dir)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}

	expectedPhrases := []string{
		"Credentials are valid!",
		"User:         @bot:example.org",
		"Access token: ***************abcd",
		"Room:         (not set)",
		"http://localhost:8008/health (3 attempts, 5s timeout, 2s delay)",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(stdout, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, stdout)
		}
	}
	if strings.Contains(stdout, "syt_test_token_abcd") {
		t.Error("validate printed the raw access token")
	}
}

func TestValidate_Invalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte(`{"homeserver": "https://m.example.org"}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, _, err := executeCmd(t, "", "validate", "--path", dir)
	if err == nil || !strings.Contains(err.Error(), "user_id is required") {
		t.Fatalf("validate error = %v, want user_id is required", err)
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(stdout, "matrixsend dev") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestPersistentFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"log level", []string{"--log-level", "loud", "version"}, "invalid --log-level"},
		{"log format", []string{"--log-format", "xml", "version"}, "invalid --log-format"},
		{"trace exporter", []string{"--trace-exporter", "zipkin", "version"}, "unknown trace exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCmd(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLogsGoToStderr(t *testing.T) {
	health, _ := healthServer(t, http.StatusOK)

	stdout, stderr, err := executeCmd(t, "", "--log-format", "text", "check-health", "--endpoint", health.URL)
	if err != nil {
		t.Fatalf("check-health error = %v", err)
	}
	if strings.Contains(stdout, "level=") {
		t.Errorf("log line on stdout: %q", stdout)
	}
	if !strings.Contains(stderr, "health ok") {
		t.Errorf("stderr = %q, want health ok log line", stderr)
	}
}

func TestPushgateway(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(gateway.Close)

	health, _ := healthServer(t, http.StatusOK)

	if _, _, err := executeCmd(t, "", "--pushgateway", gateway.URL, "check-health", "--endpoint", health.URL); err != nil {
		t.Fatalf("check-health error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "PUT /metrics/job/matrixsend" {
		t.Errorf("gateway requests = %v, want one PUT /metrics/job/matrixsend", paths)
	}
}

func TestPushgateway_FailureDoesNotFailCommand(t *testing.T) {
	health, _ := healthServer(t, http.StatusOK)

	_, stderr, err := executeCmd(t, "", "--pushgateway", closedURL(t), "check-health", "--endpoint", health.URL)
	if err != nil {
		t.Fatalf("check-health error = %v", err)
	}
	if !strings.Contains(stderr, "metrics push failed") {
		t.Errorf("stderr = %q, want push warning", stderr)
	}
}
