// Package requestctx carries per-request values through the context chain:
// the request-scoped logger every handler and service writes through, and the
// Cloud Trace correlation data stamped on error envelopes. Handlers never see
// the keys; they go through the accessors here.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}
type traceKey struct{}

var fallbackLogger = zap.NewNop()

// TraceInfo is the trace correlation data extracted from the incoming
// X-Cloud-Trace-Context header.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger attaches the request-scoped logger. A nil logger attaches the
// shared no-op so callers downstream never need a nil check.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = fallbackLogger
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the request-scoped logger, or the shared no-op when the
// context never passed through the logging middleware. Writing through the
// no-op discards silently rather than panicking, which is what background
// jobs without a request want.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return fallbackLogger
	}
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallbackLogger
}

// NoopLogger returns the shared no-op instance. Callers compare against it to
// detect a context that carries no real logger.
func NoopLogger() *zap.Logger { return fallbackLogger }

// WithTrace attaches the trace correlation data for the request.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey{}, info)
}

// Trace reports the trace correlation data and whether any was attached.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey{}).(TraceInfo)
	return info, ok
}

// TraceID is a shortcut for the bare trace identifier, empty when the request
// carries no trace.
func TraceID(ctx context.Context) string {
	info, ok := Trace(ctx)
	if !ok {
		return ""
	}
	return info.TraceID
}
