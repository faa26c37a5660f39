package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerRoundTrip(t *testing.T) {
	logger := zap.NewExample()
	ctx := WithLogger(context.Background(), logger)
	if got := Logger(ctx); got != logger {
		t.Fatal("expected the attached logger back")
	}
}

func TestLoggerFallsBackToNoop(t *testing.T) {
	if got := Logger(context.Background()); got != NoopLogger() {
		t.Fatal("expected the shared no-op for a bare context")
	}
	if got := Logger(nil); got != NoopLogger() {
		t.Fatal("expected the shared no-op for a nil context")
	}
	ctx := WithLogger(context.Background(), nil)
	if got := Logger(ctx); got != NoopLogger() {
		t.Fatal("expected a nil logger to attach the shared no-op")
	}
}

func TestTraceRoundTrip(t *testing.T) {
	info := TraceInfo{TraceID: "abc123", SpanID: "42", Sampled: true, ProjectID: "poshak-ghar"}
	ctx := WithTrace(context.Background(), info)

	got, ok := Trace(ctx)
	if !ok || got != info {
		t.Fatalf("trace round trip failed: %+v ok=%v", got, ok)
	}
	if TraceID(ctx) != "abc123" {
		t.Fatalf("unexpected trace id %q", TraceID(ctx))
	}
	if TraceID(context.Background()) != "" {
		t.Fatal("expected empty trace id without trace data")
	}
}
