// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// MemberIDKey is the context key for the conversation member ID
	MemberIDKey contextKey = "member_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if memberID, ok := ctx.Value(MemberIDKey).(string); ok && memberID != "" {
		newLogger = newLogger.WithMemberID(memberID)
	}

	return newLogger
}

// WithMemberID returns a logger scoped to one member's conversation.
func (l *Logger) WithMemberID(memberID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("member_id", memberID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// InboundMessage logs a processed inbound message. The body must already be
// redacted by the caller.
func (l *Logger) InboundMessage(memberID, providerMessageID string, suppressed bool) {
	l.Info("inbound_message",
		slog.String("member_id", memberID),
		slog.String("provider_message_id", providerMessageID),
		slog.Bool("suppressed", suppressed),
	)
}

// OutboundMessage logs an outbound reply tagged with the flow that produced it.
func (l *Logger) OutboundMessage(memberID, flow, decision string) {
	l.Info("outbound_message",
		slog.String("member_id", memberID),
		slog.String("flow", flow),
		slog.String("decision", decision),
	)
}

// OracleFallback logs an oracle failure that degraded to the deterministic path.
func (l *Logger) OracleFallback(operation string, err error) {
	l.Warn("oracle_fallback",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
