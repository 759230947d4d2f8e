// Package telemetry wires optional tracing and metrics for the matrixsend CLI.
//
// Tracing installs a global OpenTelemetry tracer provider backed by a stdout
// or OTLP gRPC exporter. Metrics are kept in a private Prometheus registry
// and pushed once to a Pushgateway when the command finishes, since a CLI
// run is too short-lived to be scraped.
package telemetry
