package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No request ID set
	if rid := RequestID(ctx); rid != "" {
		t.Errorf("expected empty request id, got %q", rid)
	}

	// Set and retrieve
	ctx = WithRequestID(ctx, "req_1718000000123_9f2b41aa")
	if rid := RequestID(ctx); rid != "req_1718000000123_9f2b41aa" {
		t.Errorf("expected round-tripped request id, got %q", rid)
	}
}

func TestLogWithRequestID(t *testing.T) {
	ctx := context.Background()

	// No request ID
	attrs := LogWithRequestID(ctx)
	if attrs != nil {
		t.Errorf("expected nil attrs when no request id, got %v", attrs)
	}

	// With request ID — returns a single slog.Attr element
	ctx = WithRequestID(ctx, "req_1_abc")
	attrs = LogWithRequestID(ctx)
	if len(attrs) == 0 {
		t.Fatal("expected non-empty attrs with request id set")
	}
}
