package instrumentation

import (
	"context"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.Meter("security") == nil {
		t.Error("Meter() returned nil")
	}
	if inst.Tracer("security") == nil {
		t.Error("Tracer() returned nil")
	}
	if inst.Metrics() == nil {
		t.Error("Metrics() returned nil")
	}
	if inst.MeterProvider() == nil {
		t.Error("MeterProvider() returned nil")
	}
	if inst.TracerProvider() == nil {
		t.Error("TracerProvider() returned nil")
	}
}

func TestMetricsRecording(t *testing.T) {
	inst, err := New(Config{ServiceName: "test", ServiceVersion: "0.0.1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	m := inst.Metrics()

	// No-op providers: recording must be safe and silent.
	m.RecordCheck(ctx, "rate_limit", true)
	m.RecordCheck(ctx, "rate_limit", false)
	m.RecordDenial(ctx, "rate_limit_exceeded")
	m.RecordCacheFailure(ctx, "rate_limiter")
	m.CSRFTokensIssuedTotal.Add(ctx, 1)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordCheck(ctx, "origin", true)
	m.RecordDenial(ctx, "invalid_origin")
	m.RecordCacheFailure(ctx, "reputation")
}

func TestShutdownIdempotent(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("first Shutdown() error = %v", err)
	}
	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
