package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const (
	providerNameGemini = "gemini"
	mimeTypeJSON       = "application/json"
	geminiUserRole     = "user"
	geminiModelRole    = "model"
)

// GeminiProvider implements the Provider interface using Google's Gemini API
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := NewGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client}, nil
}

// NewGeminiClient creates a Gemini API client. Shared with the embedder.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return providerNameGemini
}

// Generate implements non-streaming generation using Gemini's API
func (p *GeminiProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	log.Printf("🎵 GEMINI GENERATION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "gemini.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameGemini)

	contents, err := p.buildGeminiContents(request.InputArray)
	if err != nil {
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("failed to build Gemini contents: %w", err)
	}

	config := p.buildConfig(request)

	span := transaction.StartChild("gemini.api_call")
	apiStartTime := time.Now()
	result, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	apiDuration := time.Since(apiStartTime)
	span.Finish()

	if err != nil {
		log.Printf("❌ GEMINI REQUEST FAILED after %v: %v", apiDuration, err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	log.Printf("⏱️  GEMINI API CALL COMPLETED in %v", apiDuration)

	text, usage, err := p.processGeminiResponse(result)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	transaction.SetTag("success", "true")
	log.Printf("✅ GEMINI GENERATION COMPLETED in %v", time.Since(startTime))

	return &GenerationResponse{RawOutput: text, Model: request.Model, Usage: usage}, nil
}

// Complete sends a single-turn prompt without a system instruction.
func (p *GeminiProvider) Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error) {
	log.Printf("🎻 GEMINI COMPLETION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "gemini.complete")
	defer transaction.Finish()
	transaction.SetTag("model", request.Model)

	config := &genai.GenerateContentConfig{StopSequences: request.Stop}
	if request.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	contents := []*genai.Content{{
		Role:  geminiUserRole,
		Parts: []*genai.Part{{Text: request.Prompt}},
	}}

	result, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	if err != nil {
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}

	text, usage, err := p.processGeminiResponse(result)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}
	transaction.SetTag("success", "true")

	return &CompletionResponse{Text: text, Model: request.Model, Usage: usage}, nil
}

func (p *GeminiProvider) buildConfig(request *GenerationRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		},
	}
	if request.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxOutputTokens)
	}

	if request.OutputSchema != nil {
		config.ResponseMIMEType = mimeTypeJSON
		config.ResponseSchema = p.convertSchemaToGemini(request.OutputSchema.Schema)
	}

	// Gemini has no grammar-constrained decoding; the grammar goes in as instructions
	if request.CFGGrammar != nil {
		config.SystemInstruction.Parts = append(config.SystemInstruction.Parts, &genai.Part{
			Text: fmt.Sprintf("Respond only with code matching this Lark grammar:\n%s", request.CFGGrammar.Grammar),
		})
	}

	return config
}

// buildGeminiContents converts our input array to Gemini Content format
func (p *GeminiProvider) buildGeminiContents(inputArray []map[string]any) ([]*genai.Content, error) {
	var contents []*genai.Content

	for _, item := range inputArray {
		role, hasRole := item["role"].(string)
		content, hasContent := item["content"].(string)

		if !hasRole || !hasContent {
			log.Printf("⚠️  Skipping invalid input item (missing role or content): %v", item)
			continue
		}

		// Gemini only knows "user" and "model"; system messages go as user
		geminiRole := geminiUserRole
		if role == assistantRole {
			geminiRole = geminiModelRole
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{{Text: content}},
		})
	}

	return contents, nil
}

// convertSchemaToGemini maps a JSON Schema object onto genai.Schema
func (p *GeminiProvider) convertSchemaToGemini(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{}
	switch t, _ := schema["type"].(string); t {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	}

	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				out.Properties[name] = p.convertSchemaToGemini(prop)
			}
		}
	}

	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = p.convertSchemaToGemini(items)
	}

	switch req := schema["required"].(type) {
	case []string:
		out.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}

	return out
}

// processGeminiResponse extracts the output text and usage
func (p *GeminiProvider) processGeminiResponse(result *genai.GenerateContentResponse) (string, Usage, error) {
	if len(result.Candidates) == 0 {
		return "", Usage{}, fmt.Errorf("no candidates in Gemini response")
	}

	candidate := result.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", Usage{}, fmt.Errorf("no parts in Gemini response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	textOutput := strings.TrimSpace(sb.String())
	log.Printf("📥 GEMINI RESPONSE: output_length=%d", len(textOutput))

	if textOutput == "" {
		return "", Usage{}, fmt.Errorf("gemini response did not include any output text")
	}

	var usage Usage
	if result.UsageMetadata != nil {
		usage = Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int64(result.UsageMetadata.TotalTokenCount),
		}
		log.Printf("📊 GEMINI USAGE: input=%d, output=%d, total=%d",
			usage.InputTokens, usage.OutputTokens, usage.TotalTokens)
	}

	return textOutput, usage, nil
}
