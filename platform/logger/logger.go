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
	// TenantKey is the context key for the tenant scope key
	TenantKey contextKey = "tenant"
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

// WithContext returns a logger with request_id and tenant extracted from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if tenant, ok := ctx.Value(TenantKey).(string); ok && tenant != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("tenant", tenant))}
	}

	return newLogger
}

// WithTenant returns a logger with the tenant scope key attached.
func (l *Logger) WithTenant(scopeKey string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("tenant", scopeKey)),
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

// MatchStage logs one cascade stage decision.
func (l *Logger) MatchStage(stage, query string, score float64, accepted bool) {
	l.Debug("match_stage",
		slog.String("stage", stage),
		slog.String("query", query),
		slog.Float64("score", score),
		slog.Bool("accepted", accepted),
	)
}

// StageDegraded logs a matching stage that was disabled for the current call
// because a dependency (cache, embedding API) failed or is absent.
func (l *Logger) StageDegraded(stage, reason string, err error) {
	if err != nil {
		l.Warn("stage_degraded",
			slog.String("stage", stage),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Warn("stage_degraded",
		slog.String("stage", stage),
		slog.String("reason", reason),
	)
}

// ModelTurn logs one orchestration round against the language model.
func (l *Logger) ModelTurn(round int, toolCalls int, final bool) {
	l.Debug("model_turn",
		slog.Int("round", round),
		slog.Int("tool_calls", toolCalls),
		slog.Bool("final", final),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
