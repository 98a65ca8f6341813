package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryMetrics records each measurement as a child span of the request
// transaction. Without sentry.Init the spans are dropped.
type SentryMetrics struct{}

func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{}
}

type spanData map[string]interface{}

func record(ctx context.Context, op, description string, ok bool, tags map[string]string, data spanData) {
	span := sentry.StartSpan(ctx, op)
	defer span.Finish()

	span.Description = description
	for k, v := range tags {
		span.SetTag(k, v)
	}
	for k, v := range data {
		span.SetData(k, v)
	}
	if ok {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}
}

func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	ok := statusCode < http.StatusBadRequest
	record(ctx, "api.request", "API Request: "+endpoint, ok,
		map[string]string{
			"endpoint":    endpoint,
			"status_code": strconv.Itoa(statusCode),
			"success":     strconv.FormatBool(ok),
		},
		spanData{"duration_ms": duration.Milliseconds()})
}

// RecordTokenUsage also tags the enclosing transaction so usage shows up on
// the turn itself.
func (m *SentryMetrics) RecordTokenUsage(ctx context.Context, model string, totalTokens, inputTokens, outputTokens int64) {
	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("llm.model", model)
		transaction.SetTag("llm.total_tokens", strconv.FormatInt(totalTokens, 10))
	}
	record(ctx, "llm.token_usage", "Token Usage: "+model, true,
		map[string]string{"model": model},
		spanData{"total_tokens": totalTokens, "input_tokens": inputTokens, "output_tokens": outputTokens})
}

func (m *SentryMetrics) RecordGenerationDuration(ctx context.Context, operation string, duration time.Duration, success bool) {
	record(ctx, "generation.request", "Generation: "+operation, success,
		map[string]string{"operation": operation, "success": strconv.FormatBool(success)},
		spanData{"duration_ms": duration.Milliseconds()})
}

func (m *SentryMetrics) RecordDiagnostics(ctx context.Context, stage string, count int) {
	if count == 0 {
		return
	}
	record(ctx, "conversion.diagnostics", "Skipped inputs: "+stage, true,
		map[string]string{"stage": stage},
		spanData{"skipped": count})
}
