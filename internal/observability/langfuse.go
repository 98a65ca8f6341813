package observability

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/config"
	langfuse "github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"
)

// LangfuseClient wraps the Langfuse client with our configuration
type LangfuseClient struct {
	client  *langfuse.Langfuse
	enabled bool
}

// NewLangfuse returns an enabled client when LANGFUSE_ENABLED is set and a
// secret key is present, otherwise a no-op client. The SDK reads its keys
// and host from the LANGFUSE_* environment variables.
func NewLangfuse(ctx context.Context, cfg *config.Config) *LangfuseClient {
	if !cfg.LangfuseEnabled || cfg.LangfuseSecretKey == "" {
		log.Println("⚠️  Langfuse not configured (LANGFUSE_ENABLED=false or LANGFUSE_SECRET_KEY not set)")
		return Disabled()
	}

	lf := langfuse.New(ctx)
	log.Printf("✅ Langfuse initialized (host: %s, public key set: %v)",
		cfg.LangfuseHost, os.Getenv("LANGFUSE_PUBLIC_KEY") != "")
	return &LangfuseClient{client: lf, enabled: true}
}

// Disabled returns a client whose traces do nothing.
func Disabled() *LangfuseClient {
	return &LangfuseClient{}
}

// IsEnabled returns whether Langfuse is enabled
func (c *LangfuseClient) IsEnabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Flush sends queued events. Call it on shutdown.
func (c *LangfuseClient) Flush(ctx context.Context) {
	if c.IsEnabled() {
		c.client.Flush(ctx)
	}
}

// StartTrace starts a new trace in Langfuse
func (c *LangfuseClient) StartTrace(name string, metadata map[string]interface{}) *Trace {
	if !c.IsEnabled() {
		return &Trace{}
	}

	trace, err := c.client.Trace(&model.Trace{
		Name:     name,
		Metadata: metadata,
	})
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse trace: %v", err)
		return &Trace{}
	}
	return &Trace{trace: trace, enabled: true, client: c.client}
}

// Trace represents a Langfuse trace
type Trace struct {
	trace   *model.Trace
	enabled bool
	client  *langfuse.Langfuse
}

// Generation creates a new generation span within the trace
func (t *Trace) Generation(name, modelName string, input interface{}) *Generation {
	if !t.enabled {
		return &Generation{}
	}

	now := time.Now()
	gen, err := t.client.Generation(&model.Generation{
		TraceID:   t.trace.ID,
		Name:      name,
		Model:     modelName,
		StartTime: &now,
		Input:     input,
	}, nil)
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse generation: %v", err)
		return &Generation{}
	}
	return &Generation{generation: gen, enabled: true, client: t.client}
}

// Generation represents a Langfuse generation span
type Generation struct {
	generation *model.Generation
	enabled    bool
	client     *langfuse.Langfuse
}

// End records the outcome of the call and queues the generation for sending.
// A non-nil err marks the generation as an error.
func (g *Generation) End(output string, inputTokens, outputTokens int64, err error) {
	if !g.enabled || g.generation == nil {
		return
	}

	now := time.Now()
	g.generation.EndTime = &now
	if err != nil {
		g.generation.Level = model.ObservationLevel("ERROR")
		g.generation.StatusMessage = err.Error()
	} else {
		g.generation.Output = output
	}

	cost := CalculateCost(g.generation.Model, inputTokens, outputTokens)
	g.generation.Usage = model.Usage{
		Input:     int(inputTokens),
		Output:    int(outputTokens),
		Total:     int(inputTokens + outputTokens),
		Unit:      model.ModelUsageUnitTokens,
		TotalCost: cost,
	}
	g.generation.Metadata = map[string]interface{}{"cost_usd": FormatCost(cost)}

	if _, err := g.client.GenerationEnd(g.generation); err != nil {
		log.Printf("⚠️  Failed to end Langfuse generation: %v", err)
	}
}
