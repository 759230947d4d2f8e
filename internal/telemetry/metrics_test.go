package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	_ = c.Write(m)
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	_ = g.Write(m)
	return m.GetGauge().GetValue()
}

func getHistogramCount(h prometheus.Histogram) uint64 {
	m := &dto.Metric{}
	_ = h.Write(m)
	return m.GetHistogram().GetSampleCount()
}

func TestObserveProbe(t *testing.T) {
	m := NewMetrics()

	m.ObserveProbe("connection_failure", 10*time.Millisecond)
	m.ObserveProbe("connection_failure", 12*time.Millisecond)
	m.ObserveProbe("ok", 5*time.Millisecond)

	if got := getCounterValue(m.ProbeAttempts.WithLabelValues("connection_failure")); got != 2 {
		t.Errorf("connection_failure attempts = %v, want 2", got)
	}
	if got := getCounterValue(m.ProbeAttempts.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok attempts = %v, want 1", got)
	}
	if got := getHistogramCount(m.ProbeLatency); got != 3 {
		t.Errorf("latency samples = %v, want 3", got)
	}
}

func TestObserveLoginAndSend(t *testing.T) {
	m := NewMetrics()

	m.ObserveLogin(nil)
	m.ObserveLogin(errors.New("forbidden"))
	m.ObserveSend(nil)

	tests := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"logins ok", m.Logins.WithLabelValues(ResultOK), 1},
		{"logins error", m.Logins.WithLabelValues(ResultError), 1},
		{"sent ok", m.MessagesSent.WithLabelValues(ResultOK), 1},
		{"sent error", m.MessagesSent.WithLabelValues(ResultError), 0},
	}

	for _, tt := range tests {
		if got := getCounterValue(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestObserveCommand(t *testing.T) {
	m := NewMetrics()
	m.ObserveCommand("sendmsg", 1500*time.Millisecond)

	if got := getGaugeValue(m.CommandDuration.WithLabelValues("sendmsg")); got != 1.5 {
		t.Errorf("command duration = %v, want 1.5", got)
	}
}

func TestMetrics_PrivateRegistry(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.ObserveSend(nil)
	if got := getCounterValue(b.MessagesSent.WithLabelValues(ResultOK)); got != 0 {
		t.Errorf("second instance saw %v sends, want 0", got)
	}

	families, err := a.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "matrixsend_messages_sent_total" {
			found = true
		}
	}
	if !found {
		t.Error("matrixsend_messages_sent_total not gathered")
	}
}

func TestPush(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method = r.Method
		path = r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	m := NewMetrics()
	m.ObserveSend(nil)

	if err := m.Push(context.Background(), server.URL); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %q, want PUT", method)
	}
	if path != "/metrics/job/matrixsend" {
		t.Errorf("path = %q, want /metrics/job/matrixsend", path)
	}
}

func TestPush_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	err := NewMetrics().Push(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Push() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "push metrics") {
		t.Errorf("error = %v, want push metrics prefix", err)
	}
}
