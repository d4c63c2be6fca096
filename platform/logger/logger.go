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
	// MessageIDKey is the context key for the inbound message being processed
	MessageIDKey contextKey = "message_id"
	// ContactIDKey is the context key for the CRM contact ID
	ContactIDKey contextKey = "contact_id"
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
// Supports request_id, message_id, and contact_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if messageID, ok := ctx.Value(MessageIDKey).(string); ok && messageID != "" {
		newLogger = newLogger.WithMessageID(messageID)
	}

	if contactID, ok := ctx.Value(ContactIDKey).(string); ok && contactID != "" {
		newLogger = newLogger.WithContactID(contactID)
	}

	return newLogger
}

// WithMessageID returns a logger with the inbound message ID attached.
func (l *Logger) WithMessageID(messageID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("message_id", messageID)),
	}
}

// WithContactID returns a logger with the contact ID attached.
func (l *Logger) WithContactID(contactID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("contact_id", contactID)),
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

// ClassificationEvent logs the outcome of one classification pass.
func (l *Logger) ClassificationEvent(messageID, classification string, confidence float64, fallback bool) {
	l.Info("classification_event",
		slog.String("message_id", messageID),
		slog.String("classification", classification),
		slog.Float64("confidence", confidence),
		slog.Bool("fallback", fallback),
	)
}

// SequenceEvent logs a sequence lifecycle transition.
func (l *Logger) SequenceEvent(event, contactID, sequenceType string, step int) {
	l.Info("sequence_event",
		slog.String("event", event),
		slog.String("contact_id", contactID),
		slog.String("sequence_type", sequenceType),
		slog.Int("step", step),
	)
}

// ScoreEvent logs an applied lead score delta.
func (l *Logger) ScoreEvent(contactID string, delta int, campaign string) {
	l.Info("score_event",
		slog.String("contact_id", contactID),
		slog.Int("delta", delta),
		slog.String("campaign", campaign),
	)
}

// MailboxError logs mail transport errors.
func (l *Logger) MailboxError(operation string, err error) {
	l.Error("mailbox_error",
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
