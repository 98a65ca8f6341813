package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Conceptual-Machines/grammar-school-go/gs"
	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	// Role constants
	userRole      = "user"
	developerRole = "developer"
	assistantRole = "assistant"

	// Reasoning effort levels
	reasoningNone    = "none"
	reasoningMinimal = "minimal"
	reasoningLow     = "low"
	reasoningMedium  = "medium"
	reasoningHigh    = "high"
	reasoningMin     = "min"
	reasoningMed     = "med"

	// Provider name
	providerNameOpenAI = "openai"

	defaultOpenAIBaseURL = "https://api.openai.com/v1"

	// Logging limits
	maxPreviewChars = 200
)

// modelsWithReasoning lists models that accept the reasoning parameter.
// Models like gpt-4.1-mini reject it.
var modelsWithReasoning = map[string]bool{
	"gpt-5":        true,
	"gpt-5-mini":   true,
	"gpt-5-nano":   true,
	"gpt-5.1":      true,
	"gpt-5.1-mini": true,
	"gpt-5.1-nano": true,
}

// OpenAIProvider implements Provider with OpenAI's Responses API and Completer
// with the Completions API, which OpenAI-compatible servers also expose.
type OpenAIProvider struct {
	client  *openai.Client
	apiKey  string // Store API key for raw HTTP requests when needed
	baseURL string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return NewOpenAIProviderWithBaseURL(apiKey, "")
}

// NewOpenAIProviderWithBaseURL targets an OpenAI-compatible endpoint, such as a
// local inference server hosting the melody model.
func NewOpenAIProviderWithBaseURL(apiKey, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	} else {
		baseURL = defaultOpenAIBaseURL
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		client:  &client,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return providerNameOpenAI
}

// Generate implements non-streaming generation using OpenAI's Responses API
func (p *OpenAIProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	log.Printf("🎵 OPENAI GENERATION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "openai.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameOpenAI)
	transaction.SetTag("cfg_enabled", fmt.Sprintf("%t", request.CFGGrammar != nil))

	params := p.buildRequestParams(request)

	span := transaction.StartChild("openai.api_call")
	apiStartTime := time.Now()

	// The SDK has no CFG tool type, so grammar requests go over raw HTTP
	if request.CFGGrammar != nil {
		cfgResp, cfgErr := p.executeRawCFGRequest(ctx, params, request)
		span.Finish()
		if cfgErr != nil {
			log.Printf("❌ OPENAI REQUEST FAILED after %v: %v", time.Since(apiStartTime), cfgErr)
			transaction.SetTag("success", "false")
			sentry.CaptureException(cfgErr)
			return nil, fmt.Errorf("openai request failed: %w", cfgErr)
		}
		transaction.SetTag("success", "true")
		log.Printf("✅ OPENAI CFG GENERATION COMPLETED in %v", time.Since(startTime))
		return cfgResp, nil
	}

	resp, err := p.client.Responses.New(ctx, params)

	apiDuration := time.Since(apiStartTime)
	span.Finish()

	if err != nil {
		log.Printf("❌ OPENAI REQUEST FAILED after %v: %v", apiDuration, err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	log.Printf("⏱️  OPENAI API CALL COMPLETED in %v", apiDuration)

	textOutput := p.extractAndCleanTextOutput(resp)
	log.Printf("📥 OPENAI RESPONSE: output_length=%d, output_items=%d, tokens=%d",
		len(textOutput), len(resp.Output), resp.Usage.TotalTokens)

	if textOutput == "" {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("openai response did not include any output text")
	}

	p.logUsageStats(resp.Usage)
	transaction.SetTag("success", "true")
	log.Printf("✅ OPENAI GENERATION COMPLETED in %v", time.Since(startTime))

	return &GenerationResponse{
		RawOutput: textOutput,
		Model:     request.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// Complete sends a raw prompt through the Completions API.
func (p *OpenAIProvider) Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error) {
	startTime := time.Now()
	log.Printf("🎻 COMPLETION REQUEST STARTED (Model: %s, base: %s)", request.Model, p.baseURL)

	transaction := sentry.StartTransaction(ctx, "openai.complete")
	defer transaction.Finish()
	transaction.SetTag("model", request.Model)

	resp, err := p.client.Completions.New(ctx, p.buildCompletionParams(request))
	if err != nil {
		log.Printf("❌ COMPLETION REQUEST FAILED after %v: %v", time.Since(startTime), err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("completion response had no choices")
	}

	text := resp.Choices[0].Text
	log.Printf("📥 COMPLETION RESPONSE: output_length=%d, tokens=%d (%v)",
		len(text), resp.Usage.TotalTokens, time.Since(startTime))
	transaction.SetTag("success", "true")

	return &CompletionResponse{
		Text:  text,
		Model: request.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) buildCompletionParams(request *CompletionRequest) openai.CompletionNewParams {
	params := openai.CompletionNewParams{
		Model: openai.CompletionNewParamsModel(request.Model),
		Prompt: openai.CompletionNewParamsPromptUnion{
			OfString: openai.String(request.Prompt),
		},
	}
	if request.MaxTokens > 0 {
		params.MaxTokens = openai.Int(request.MaxTokens)
	}
	if request.Temperature != nil {
		params.Temperature = openai.Float(*request.Temperature)
	}
	if len(request.Stop) > 0 {
		params.Stop = openai.CompletionNewParamsStopUnion{OfStringArray: request.Stop}
	}
	return params
}

// buildRequestParams converts GenerationRequest to OpenAI-specific ResponseNewParams
func (p *OpenAIProvider) buildRequestParams(request *GenerationRequest) responses.ResponseNewParams {
	inputItems := responses.ResponseInputParam{}

	for _, item := range request.InputArray {
		role, hasRole := item["role"].(string)
		content, hasContent := item["content"].(string)

		if !hasRole || !hasContent {
			log.Printf("⚠️  Skipping invalid input item (missing role or content): %v", item)
			continue
		}

		var roleEnum responses.EasyInputMessageRole
		switch role {
		case developerRole:
			roleEnum = responses.EasyInputMessageRoleDeveloper
		case assistantRole:
			roleEnum = responses.EasyInputMessageRoleAssistant
		default:
			roleEnum = responses.EasyInputMessageRoleUser
		}

		inputItems = append(inputItems,
			responses.ResponseInputItemParamOfMessage(content, roleEnum),
		)
	}

	params := responses.ResponseNewParams{
		Model: request.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
		Instructions: openai.String(request.SystemPrompt),
	}

	supportsReasoning := modelsWithReasoning[request.Model]
	if supportsReasoning {
		params.Reasoning = shared.ReasoningParam{
			Effort: reasoningEffort(request.ReasoningMode),
		}
	}

	// Reasoning models reject sampling temperature
	if request.Temperature != nil && !supportsReasoning {
		params.Temperature = openai.Float(*request.Temperature)
	}
	if request.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(request.MaxOutputTokens)
	}

	if request.OutputSchema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(
				request.OutputSchema.Name,
				request.OutputSchema.Schema,
			),
		}
		log.Printf("📋 JSON SCHEMA CONFIGURED: %s", request.OutputSchema.Name)
	}

	if request.CFGGrammar != nil {
		params.ParallelToolCalls = openai.Bool(false)
	}

	return params
}

func reasoningEffort(mode string) shared.ReasoningEffort {
	switch mode {
	case reasoningMinimal, reasoningMin:
		return shared.ReasoningEffort(reasoningMinimal)
	case reasoningLow:
		return responses.ReasoningEffortLow
	case reasoningMedium, reasoningMed:
		return responses.ReasoningEffortMedium
	case reasoningHigh:
		return responses.ReasoningEffortHigh
	case reasoningNone:
		return shared.ReasoningEffort(reasoningNone)
	default:
		return responses.ReasoningEffortLow
	}
}

// executeRawCFGRequest handles CFG grammar requests via raw HTTP
func (p *OpenAIProvider) executeRawCFGRequest(
	ctx context.Context,
	params responses.ResponseNewParams,
	request *GenerationRequest,
) (*GenerationResponse, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	var paramsMap map[string]any
	if err := json.Unmarshal(paramsJSON, &paramsMap); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	p.addCFGToolToParams(paramsMap, request.CFGGrammar)

	body, err := p.makeRawHTTPRequest(ctx, paramsMap)
	if err != nil {
		return nil, err
	}

	var rawResponse map[string]any
	if err := json.Unmarshal(body, &rawResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	dsl := p.extractDSLFromOutput(rawResponse)
	if dsl == "" {
		return nil, fmt.Errorf("CFG grammar was configured but the model did not call the %s tool", request.CFGGrammar.ToolName)
	}

	return &GenerationResponse{
		RawOutput: dsl,
		Model:     request.Model,
		Usage:     p.extractUsageFromRawResponse(rawResponse),
	}, nil
}

// addCFGToolToParams adds CFG tool configuration to request params
func (p *OpenAIProvider) addCFGToolToParams(paramsMap map[string]any, cfgGrammar *CFGConfig) {
	cleanedGrammar := gs.CleanGrammarForCFG(cfgGrammar.Grammar)
	cfgTool := gs.BuildOpenAICFGTool(gs.CFGConfig{
		ToolName:    cfgGrammar.ToolName,
		Description: cfgGrammar.Description,
		Grammar:     cleanedGrammar,
		Syntax:      cfgGrammar.Syntax,
	})
	log.Printf("🔧 CFG GRAMMAR CONFIGURED: %s (syntax: %s, %d chars)", cfgGrammar.ToolName, cfgGrammar.Syntax, len(cleanedGrammar))

	// Plain text format when using CFG
	paramsMap["text"] = gs.GetOpenAITextFormatForCFG()

	tools, _ := paramsMap["tools"].([]any)
	paramsMap["tools"] = append(tools, cfgTool)
	paramsMap["parallel_tool_calls"] = false
}

// makeRawHTTPRequest sends raw HTTP request to the Responses endpoint
func (p *OpenAIProvider) makeRawHTTPRequest(ctx context.Context, paramsMap map[string]any) ([]byte, error) {
	payload, err := json.Marshal(paramsMap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	log.Printf("📤 Making raw HTTP request (JSON size: %d bytes)", len(payload))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			log.Printf("⚠️  Failed to close response body: %v", closeErr)
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, truncate(string(body), maxPreviewChars))
	}

	return body, nil
}

// extractDSLFromOutput returns the input of the first custom_tool_call item
func (p *OpenAIProvider) extractDSLFromOutput(rawResponse map[string]any) string {
	output, ok := rawResponse["output"].([]any)
	if !ok {
		log.Printf("⚠️  No output array found in raw response")
		return ""
	}

	for _, item := range output {
		itemMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if itemType, _ := itemMap["type"].(string); itemType != "custom_tool_call" {
			continue
		}
		if input, ok := itemMap["input"].(string); ok && input != "" {
			log.Printf("✅ Found DSL code: %s", truncate(input, maxPreviewChars))
			return input
		}
	}

	return ""
}

// extractUsageFromRawResponse extracts usage from raw JSON response
func (p *OpenAIProvider) extractUsageFromRawResponse(rawResponse map[string]any) Usage {
	usageMap, ok := rawResponse["usage"].(map[string]any)
	if !ok {
		return Usage{}
	}
	number := func(key string) int64 {
		if v, ok := usageMap[key].(float64); ok {
			return int64(v)
		}
		return 0
	}
	return Usage{
		InputTokens:  number("input_tokens"),
		OutputTokens: number("output_tokens"),
		TotalTokens:  number("total_tokens"),
	}
}

// extractAndCleanTextOutput extracts and cleans text output from response
func (p *OpenAIProvider) extractAndCleanTextOutput(resp *responses.Response) string {
	textOutput := resp.OutputText()
	if textOutput == "" {
		return ""
	}

	cleaned := strings.TrimSpace(textOutput)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned != textOutput {
		log.Printf("🧹 Stripped markdown code blocks from output: %d -> %d chars", len(textOutput), len(cleaned))
	}

	return cleaned
}

// logUsageStats logs token usage statistics
func (p *OpenAIProvider) logUsageStats(usage responses.ResponseUsage) {
	log.Printf("📊 USAGE: input=%d, output=%d, reasoning=%d, total=%d",
		usage.InputTokens, usage.OutputTokens,
		usage.OutputTokensDetails.ReasoningTokens, usage.TotalTokens)
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
