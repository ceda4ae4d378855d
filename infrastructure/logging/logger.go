// Package logging provides structured logging with trace/tenant context for
// the orchestrator.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type used for context keys owned by this package.
type ContextKey string

const (
	TraceIDKey  ContextKey = "trace_id"
	TenantIDKey ContextKey = "tenant_id"
	StageKey    ContextKey = "stage"
)

// Logger wraps logrus.Logger with orchestrator-specific helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for the given service name, level and format ("json"|"text").
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv builds a Logger from LOG_LEVEL/LOG_FORMAT environment variables.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns a logrus.Entry carrying trace/tenant/stage fields found on ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if tenantID := GetTenantID(ctx); tenantID != "" {
		entry = entry.WithField("tenant_id", tenantID)
	}
	if stage := GetStage(ctx); stage != "" {
		entry = entry.WithField("stage", stage)
	}
	return entry
}

// WithFields returns an entry carrying the service name plus the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// Context helpers

func NewTraceID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return ""
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

func GetStage(ctx context.Context) string {
	if v, ok := ctx.Value(StageKey).(string); ok {
		return v
	}
	return ""
}

// Structured helpers

// LogRequest logs an inbound HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, dur time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": status,
		"duration_ms": dur.Milliseconds(),
	}).Info("http request")
}

// LogToolCall logs one tool invocation outcome.
func (l *Logger) LogToolCall(ctx context.Context, tool string, dur time.Duration, errCode string) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"tool":        tool,
		"duration_ms": dur.Milliseconds(),
	})
	if errCode != "" {
		entry.WithField("error_code", errCode).Warn("tool call failed")
		return
	}
	entry.Debug("tool call completed")
}

// LogStageTransition logs a stage pipeline transition.
func (l *Logger) LogStageTransition(ctx context.Context, stage string, dur time.Duration, status string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"stage":       stage,
		"duration_ms": dur.Milliseconds(),
		"status":      status,
	}).Info("stage completed")
}

// LogReplanDecision logs a control-loop replan decision.
func (l *Logger) LogReplanDecision(ctx context.Context, triggerType string, approved bool, reason string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"trigger_type": triggerType,
		"approved":     approved,
		"reason":       reason,
	}).Info("replan decision")
}

// Global default logger, matching the teacher's Default()/InitDefault() pattern.
var defaultLogger *Logger

func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("orchestrator", "info", "json")
	}
	return defaultLogger
}
