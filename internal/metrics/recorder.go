package metrics

import (
	"context"
	"time"
)

// Recorder is the metrics surface used by the services and HTTP middleware.
type Recorder interface {
	RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration)
	RecordTokenUsage(ctx context.Context, model string, totalTokens, inputTokens, outputTokens int64)
	RecordGenerationDuration(ctx context.Context, operation string, duration time.Duration, success bool)
	RecordDiagnostics(ctx context.Context, stage string, count int)
}

// Multi fans each call out to every recorder.
type Multi []Recorder

func (m Multi) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	for _, r := range m {
		r.RecordAPIRequest(ctx, endpoint, statusCode, duration)
	}
}

func (m Multi) RecordTokenUsage(ctx context.Context, model string, totalTokens, inputTokens, outputTokens int64) {
	for _, r := range m {
		r.RecordTokenUsage(ctx, model, totalTokens, inputTokens, outputTokens)
	}
}

func (m Multi) RecordGenerationDuration(ctx context.Context, operation string, duration time.Duration, success bool) {
	for _, r := range m {
		r.RecordGenerationDuration(ctx, operation, duration, success)
	}
}

func (m Multi) RecordDiagnostics(ctx context.Context, stage string, count int) {
	for _, r := range m {
		r.RecordDiagnostics(ctx, stage, count)
	}
}

// Noop discards everything. Used by tests and the CLI.
type Noop struct{}

func (Noop) RecordAPIRequest(context.Context, string, int, time.Duration) {}
func (Noop) RecordTokenUsage(context.Context, string, int64, int64, int64) {}
func (Noop) RecordGenerationDuration(context.Context, string, time.Duration, bool) {}
func (Noop) RecordDiagnostics(context.Context, string, int) {}
