// Package logging configures the process-wide slog logger and provides
// event helpers for the things the engine logs most: HTTP requests,
// reference-table loads, formula resolutions, and WebSocket sessions.
// Request IDs travel in the context and are attached automatically by
// the context-aware helpers.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ContextKey is the type for context keys owned by this package.
type ContextKey string

// RequestIDKey carries the request ID assigned by RequestIDMiddleware.
const RequestIDKey ContextKey = "request_id"

var defaultLogger *slog.Logger

func init() {
	InitLogger(LevelInfo, FormatJSON)
}

// Level selects the minimum severity the logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Unknown levels fall back to info.
func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Format selects the handler encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// InitLogger replaces the process-wide logger. Timestamps are RFC3339
// in both formats.
func InitLogger(level Level, format Format) {
	opts := &slog.HandlerOptions{
		Level: level.slogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID returns the request ID from ctx, or "" when none is set.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns the process-wide logger, with the request
// ID from ctx attached when one exists.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if id := GetRequestID(ctx); id != "" {
		return defaultLogger.With("request_id", id)
	}
	return defaultLogger
}

// Debug logs at debug level with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs at info level with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs at warn level with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs at error level with optional key-value pairs.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with the request ID from ctx
// attached when one exists.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// HTTPRequestContext emits one access-log entry for a finished request.
func HTTPRequestContext(ctx context.Context, method, path, remoteAddr string, statusCode int, duration time.Duration, args ...any) {
	LoggerFromContext(ctx).Info("http_request", append([]any{
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	}, args...)...)
}

// TableLoad records a successful reference-table load.
func TableLoad(source, format string, elements, ions int, args ...any) {
	defaultLogger.Info("table_load", append([]any{
		"source", source,
		"format", format,
		"elements", elements,
		"ions", ions,
	}, args...)...)
}

// TableLoadError records a failed reference-table load.
func TableLoadError(source, format string, err error, args ...any) {
	defaultLogger.Error("table_load_error", append([]any{
		"source", source,
		"format", format,
		"error", err.Error(),
	}, args...)...)
}

// Resolve traces one formula resolution. Debug level; resolutions are
// frequent and individually uninteresting when healthy.
func Resolve(formula string, unresolved, warnings int, args ...any) {
	defaultLogger.Debug("resolve", append([]any{
		"formula", formula,
		"unresolved", unresolved,
		"warnings", warnings,
	}, args...)...)
}

// WebSocketEvent records a WebSocket lifecycle event such as a client
// connecting or disconnecting.
func WebSocketEvent(event string, clientCount int, args ...any) {
	defaultLogger.Info("websocket_event", append([]any{
		"event", event,
		"client_count", clientCount,
	}, args...)...)
}

// ServerStartup records a listener coming up.
func ServerStartup(serverType, protocol string, port int, args ...any) {
	defaultLogger.Info("server_startup", append([]any{
		"server_type", serverType,
		"protocol", protocol,
		"port", port,
	}, args...)...)
}
