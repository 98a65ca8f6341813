package logger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// WithContext extracts request context for logging
func WithContext(c *gin.Context) Fields {
	fields := Fields{
		"request_id": c.GetString("request_id"),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	}

	if userID, exists := c.Get("user_id"); exists {
		fields["user_id"] = userID
	}
	if sessionID := c.Param("id"); sessionID != "" {
		fields["session_id"] = sessionID
	}

	return fields
}

// Merge returns a copy of f with extra added on top.
func (f Fields) Merge(extra Fields) Fields {
	out := make(Fields, len(f)+len(extra))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Info logs an informational message with structured fields
func Info(msg string, fields Fields) {
	emit("INFO", "info", sentry.LevelInfo, msg, fields)
}

// Warn logs a soft failure that did not stop processing
func Warn(msg string, fields Fields) {
	emit("WARN", "warning", sentry.LevelWarning, msg, fields)
}

// Debug logs a debug message with structured fields
func Debug(msg string, fields Fields) {
	emit("DEBUG", "debug", sentry.LevelDebug, msg, fields)
}

// Error logs an error message with structured fields and sends to Sentry
func Error(msg string, err error, fields Fields) {
	log.Printf("[ERROR] %s: %v %s", msg, err, formatFields(fields))

	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		applyScope(scope, fields)
		hub.CaptureException(err)
	})
}

// LogToSentry sends a log message directly to Sentry as an event
func LogToSentry(level sentry.Level, msg string, fields Fields) {
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		applyScope(scope, fields)
		hub.CaptureMessage(msg)
	})
}

// LogAPIRequest logs one completed HTTP request
func LogAPIRequest(c *gin.Context, duration time.Duration, statusCode int, fields Fields) {
	fields = WithContext(c).Merge(fields).Merge(Fields{
		"duration_ms": duration.Milliseconds(),
		"status_code": statusCode,
		"client_ip":   c.ClientIP(),
	})

	if statusCode >= 500 {
		Warn("API request failed", fields)
		return
	}
	Info("API request completed", fields)
}

// LogGenerationRequest logs one model call and records it as a span on the
// request's Sentry transaction.
func LogGenerationRequest(ctx context.Context, model, operation string, duration time.Duration, inputTokens, outputTokens int64, fields Fields) {
	fields = fields.Merge(Fields{
		"model":         model,
		"operation":     operation,
		"duration_ms":   duration.Milliseconds(),
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
		"total_tokens":  inputTokens + outputTokens,
	})

	Info("Generation request completed", fields)

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		span := sentry.StartSpan(ctx, "llm."+operation)
		span.Description = model
		span.SetData("input_tokens", inputTokens)
		span.SetData("output_tokens", outputTokens)
		span.Finish()
	}
}

func emit(label, kind string, level sentry.Level, msg string, fields Fields) {
	log.Printf("[%s] %s %s", label, msg, formatFields(fields))

	if hub := sentry.CurrentHub(); hub.Client() != nil {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Type:     kind,
			Category: "log",
			Message:  msg,
			Data:     map[string]interface{}(fields.Merge(nil)),
			Level:    level,
		})
	}
}

func applyScope(scope *sentry.Scope, fields Fields) {
	for key, value := range fields {
		scope.SetContext(key, map[string]interface{}{"value": value})
	}
	for _, tag := range []string{"request_id", "model", "session_id"} {
		if v, ok := fields[tag].(string); ok && v != "" {
			scope.SetTag(tag, v)
		}
	}
}

// formatFields renders fields as {k=v, ...} in key order.
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(fields[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.2f", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
