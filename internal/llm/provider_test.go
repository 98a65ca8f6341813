package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProvider is a test implementation of the Provider interface
type MockProvider struct {
	name         string
	generateFunc func(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, request)
	}
	return &GenerationResponse{}, nil
}

func TestProviderInterface(t *testing.T) {
	var provider Provider = &MockProvider{name: "mock"}
	assert.Equal(t, "mock", provider.Name())

	var _ Provider = (*OpenAIProvider)(nil)
	var _ Provider = (*GeminiProvider)(nil)
	var _ Completer = (*OpenAIProvider)(nil)
	var _ Completer = (*GeminiProvider)(nil)
}

func TestMockProviderGenerate(t *testing.T) {
	callCount := 0
	mock := &MockProvider{
		name: "test",
		generateFunc: func(_ context.Context, request *GenerationRequest) (*GenerationResponse, error) {
			callCount++
			require.Equal(t, "test-model", request.Model)
			require.Len(t, request.InputArray, 2)
			return &GenerationResponse{RawOutput: "['C', 'G']", Usage: Usage{TotalTokens: 12}}, nil
		},
	}

	req := &GenerationRequest{
		Model: "test-model",
		InputArray: []map[string]any{
			Message("user", "in C major"),
			Message("assistant", "['C']"),
		},
	}

	resp, err := mock.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "['C', 'G']", resp.RawOutput)
	assert.Equal(t, int64(12), resp.Usage.TotalTokens)
}

func TestProviderFactory(t *testing.T) {
	ctx := context.Background()

	factory := NewProviderFactory("sk-test", "")

	provider, err := factory.GetProvider(ctx, "gpt-4.1-mini", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())

	_, err = factory.GetProvider(ctx, "gemini-2.5-flash", "")
	assert.Error(t, err, "gemini key is not configured")

	_, err = factory.GetProvider(ctx, "", "anthropic")
	assert.Error(t, err)

	_, err = NewProviderFactory("", "").GetProvider(ctx, "gpt-5-mini", "")
	assert.Error(t, err)
}

func TestChordSchemas(t *testing.T) {
	schema := ChordProgressionOutputSchema()
	assert.Equal(t, "chord_progression", schema.Name)
	props, ok := schema.Schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "chords")

	cfg := ChordDSLConfig()
	assert.Equal(t, "lark", cfg.Syntax)
	assert.Contains(t, cfg.Grammar, "chord_call")
}
