package llm

import (
	"context"
)

// Provider defines the interface for chat-style LLM providers.
// Callers parse RawOutput themselves, so there is no streaming variant.
type Provider interface {
	// Generate sends the system prompt plus the ordered input messages and
	// returns the model's complete output text.
	Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// Completer sends a raw prompt to a text-completion model.
// Used for the melody model, which is prompted in its own chat format.
type Completer interface {
	Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error)
}

// GenerationRequest contains all parameters needed for generation
type GenerationRequest struct {
	Model         string
	InputArray    []map[string]any
	ReasoningMode string
	SystemPrompt  string
	// Optional sampling controls; zero values leave the provider default
	Temperature     *float64
	MaxOutputTokens int64
	// Structured output schema for JSON responses
	OutputSchema *OutputSchema
	// CFG Grammar for DSL output (alternative to JSON Schema)
	CFGGrammar *CFGConfig
}

// CFGConfig contains context-free grammar configuration
type CFGConfig struct {
	ToolName    string // Name of the tool that will receive the DSL output
	Description string // Description of what the tool does
	Grammar     string // Lark grammar definition
	Syntax      string // "lark" or "regex" (default: "lark")
}

// OutputSchema defines the expected JSON output structure
type OutputSchema struct {
	Name        string
	Description string
	Schema      map[string]any // JSON Schema object
}

// Usage is provider-neutral token accounting.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// GenerationResponse contains the result from the LLM
type GenerationResponse struct {
	RawOutput string `json:"-"`
	Model     string `json:"model"`
	Usage     Usage  `json:"usage"`
}

// CompletionRequest is a raw-prompt completion call.
type CompletionRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int64
	Temperature *float64
	Stop        []string
}

// CompletionResponse holds the completion text.
type CompletionResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Message builds one input item in the shape InputArray expects.
func Message(role, content string) map[string]any {
	return map[string]any{"role": role, "content": content}
}

// Float returns a pointer for the optional sampling fields.
func Float(v float64) *float64 {
	return &v
}
