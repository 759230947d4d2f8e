package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewSpanExporter(t *testing.T) {
	tests := []struct {
		name    string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"none", true, false},
		{"stdout", false, false},
		{"jaeger", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := NewSpanExporter(context.Background(), tt.name, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSpanExporter(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if (exp == nil) != tt.wantNil {
				t.Errorf("NewSpanExporter(%q) exporter nil = %v, want %v", tt.name, exp == nil, tt.wantNil)
			}
		})
	}
}

func TestNewSpanExporter_OTLPRequiresEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	_, err := NewSpanExporter(context.Background(), ExporterOTLP, nil)
	if err == nil {
		t.Fatal("NewSpanExporter(otlp) expected error without endpoint")
	}
	if !strings.Contains(err.Error(), "OTEL_EXPORTER_OTLP_ENDPOINT") {
		t.Errorf("error = %v, want hint about OTEL_EXPORTER_OTLP_ENDPOINT", err)
	}
}

func TestSetupTracing_None(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), ExporterNone, "test", nil)
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSetupTracing_Stdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := SetupTracing(context.Background(), ExporterStdout, "1.2.3", &buf)
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}

	_, span := StartSpan(context.Background(), "sendmsg")
	EndSpan(span, nil)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"sendmsg"`) {
		t.Errorf("exporter output missing span name:\n%s", out)
	}
	if !strings.Contains(out, "1.2.3") {
		t.Errorf("exporter output missing service version:\n%s", out)
	}
}

func TestSetupTracing_UnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), "zipkin", "test", nil); err == nil {
		t.Fatal("SetupTracing() expected error for unknown exporter")
	}
}

func TestStartEndSpan(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	_, ok := StartSpan(context.Background(), "check-health", attribute.String("endpoint", "http://localhost/health"))
	EndSpan(ok, nil)

	_, failed := StartSpan(context.Background(), "sendmsg")
	EndSpan(failed, errors.New("room not found"))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span[0] status = %v, want Ok", spans[0].Status().Code)
	}
	attrs := spans[0].Attributes()
	if len(attrs) != 1 || attrs[0].Value.AsString() != "http://localhost/health" {
		t.Errorf("span[0] attributes = %v", attrs)
	}

	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "room not found" {
		t.Errorf("span[1] status = %+v, want Error(room not found)", spans[1].Status())
	}
	if len(spans[1].Events()) != 1 {
		t.Errorf("span[1] events = %d, want 1 recorded error", len(spans[1].Events()))
	}
}
