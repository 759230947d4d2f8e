package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Result label values for login and send counters.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the counters a single CLI run records. Each instance owns
// its registry so nothing leaks into the default Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	ProbeAttempts   *prometheus.CounterVec
	ProbeLatency    prometheus.Histogram
	Logins          *prometheus.CounterVec
	MessagesSent    *prometheus.CounterVec
	CommandDuration *prometheus.GaugeVec
}

// NewMetrics creates and registers the matrixsend metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ProbeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixsend_probe_attempts_total",
			Help: "Health probe attempts by result (ok, timeout, connection_failure, unhealthy, error)",
		}, []string{"result"}),

		ProbeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matrixsend_probe_latency_seconds",
			Help:    "Latency of individual health probe attempts",
			Buckets: prometheus.DefBuckets,
		}),

		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixsend_logins_total",
			Help: "Password logins by result",
		}, []string{"result"}),

		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixsend_messages_sent_total",
			Help: "Room messages sent by result",
		}, []string{"result"}),

		CommandDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matrixsend_command_duration_seconds",
			Help: "Wall time of the last run of each command",
		}, []string{"command"}),
	}

	m.registry.MustRegister(
		m.ProbeAttempts,
		m.ProbeLatency,
		m.Logins,
		m.MessagesSent,
		m.CommandDuration,
	)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveProbe records one health probe attempt.
func (m *Metrics) ObserveProbe(result string, latency time.Duration) {
	m.ProbeAttempts.WithLabelValues(result).Inc()
	m.ProbeLatency.Observe(latency.Seconds())
}

// ObserveLogin records the result of a login.
func (m *Metrics) ObserveLogin(err error) {
	m.Logins.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveSend records the result of a message send.
func (m *Metrics) ObserveSend(err error) {
	m.MessagesSent.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveCommand records how long command took.
func (m *Metrics) ObserveCommand(command string, d time.Duration) {
	m.CommandDuration.WithLabelValues(command).Set(d.Seconds())
}

// Push sends the current values to the Pushgateway at url under the
// matrixsend job, replacing what was previously pushed for the job.
func (m *Metrics) Push(ctx context.Context, url string) error {
	err := push.New(url, ServiceName).
		Gatherer(m.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
