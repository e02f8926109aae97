package otelx

import (
	"context"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "OFF")
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	cfg := ConfigFromEnv("meeting-service")
	if cfg.Enabled {
		t.Fatalf("expected tracing disabled")
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("expected invalid ratio to fall back to 1, got %v", cfg.SampleRatio)
	}
	if cfg.ServiceName != "meeting-service" || cfg.Environment != "local" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestSetupDisabledAndTraceContext(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdown(context.Background()) //nolint:errcheck

	tp, ts := TraceContextStrings(context.Background())
	if tp != "" || ts != "" {
		t.Fatalf("expected empty trace context, got %q %q", tp, ts)
	}
	ctx := ContextWithTraceContext(context.Background(), "", "")
	if ctx != context.Background() {
		t.Fatalf("expected unchanged context")
	}
}
