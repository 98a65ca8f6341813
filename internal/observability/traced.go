package observability

import (
	"context"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/llm"
	"github.com/Conceptual-Machines/melodycomp-api/internal/logger"
)

// TracedProvider records every Generate call as a Langfuse generation and a
// structured log line.
type TracedProvider struct {
	inner     llm.Provider
	client    *LangfuseClient
	operation string
}

// NewTracedProvider wraps inner. operation names the trace ("chords",
// "abc_conversion") so calls made by different components stay apart.
func NewTracedProvider(inner llm.Provider, client *LangfuseClient, operation string) *TracedProvider {
	return &TracedProvider{inner: inner, client: client, operation: operation}
}

func (p *TracedProvider) Name() string {
	return p.inner.Name()
}

func (p *TracedProvider) Generate(ctx context.Context, request *llm.GenerationRequest) (*llm.GenerationResponse, error) {
	trace := p.client.StartTrace(p.operation, map[string]interface{}{"provider": p.inner.Name()})
	gen := trace.Generation(p.operation, request.Model, map[string]interface{}{
		"system": request.SystemPrompt,
		"input":  request.InputArray,
	})

	start := time.Now()
	resp, err := p.inner.Generate(ctx, request)
	if err != nil {
		gen.End("", 0, 0, err)
		return nil, err
	}
	gen.End(resp.RawOutput, resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)

	logger.LogGenerationRequest(ctx, request.Model, p.operation, time.Since(start),
		resp.Usage.InputTokens, resp.Usage.OutputTokens,
		logger.Fields{"provider": p.inner.Name(), "cost_usd": CalculateCost(request.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)})
	return resp, nil
}

// TracedCompleter is the Completer counterpart of TracedProvider.
type TracedCompleter struct {
	inner     llm.Completer
	client    *LangfuseClient
	operation string
}

func NewTracedCompleter(inner llm.Completer, client *LangfuseClient, operation string) *TracedCompleter {
	return &TracedCompleter{inner: inner, client: client, operation: operation}
}

func (c *TracedCompleter) Complete(ctx context.Context, request *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	trace := c.client.StartTrace(c.operation, nil)
	gen := trace.Generation(c.operation, request.Model, request.Prompt)

	start := time.Now()
	resp, err := c.inner.Complete(ctx, request)
	if err != nil {
		gen.End("", 0, 0, err)
		return nil, err
	}
	gen.End(resp.Text, resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)

	logger.LogGenerationRequest(ctx, request.Model, c.operation, time.Since(start),
		resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)
	return resp, nil
}
