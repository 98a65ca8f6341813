package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiProvider_Name(t *testing.T) {
	// A real client needs an API key; the name does not
	provider := &GeminiProvider{client: nil}
	assert.Equal(t, "gemini", provider.Name())
}

func TestGeminiProvider_BuildContents(t *testing.T) {
	provider := &GeminiProvider{client: nil}

	tests := []struct {
		name       string
		inputArray []map[string]any
		wantRoles  []string
	}{
		{
			name: "single user message",
			inputArray: []map[string]any{
				{"role": "user", "content": "test content"},
			},
			wantRoles: []string{"user"},
		},
		{
			name: "developer role converted to user",
			inputArray: []map[string]any{
				{"role": "developer", "content": "system message"},
			},
			wantRoles: []string{"user"},
		},
		{
			name: "assistant history becomes model",
			inputArray: []map[string]any{
				{"role": "user", "content": "in C major"},
				{"role": "assistant", "content": "['C', 'F']"},
				{"role": "user", "content": "darker"},
			},
			wantRoles: []string{"user", "model", "user"},
		},
		{
			name: "invalid message skipped",
			inputArray: []map[string]any{
				{"role": "user", "content": "valid"},
				{"role": "user"}, // missing content
			},
			wantRoles: []string{"user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, err := provider.buildGeminiContents(tt.inputArray)
			require.NoError(t, err)
			require.Len(t, contents, len(tt.wantRoles))

			for i, content := range contents {
				assert.Equal(t, tt.wantRoles[i], content.Role)
				assert.NotEmpty(t, content.Parts)
			}
		})
	}
}

func TestGeminiProvider_ConvertSchema(t *testing.T) {
	provider := &GeminiProvider{client: nil}

	geminiSchema := provider.convertSchemaToGemini(GetChordProgressionSchema())
	require.NotNil(t, geminiSchema)
	assert.Equal(t, genai.TypeObject, geminiSchema.Type)
	require.Contains(t, geminiSchema.Properties, "chords")

	chords := geminiSchema.Properties["chords"]
	assert.Equal(t, genai.TypeArray, chords.Type)
	require.NotNil(t, chords.Items)
	assert.Equal(t, genai.TypeString, chords.Items.Type)
	assert.Equal(t, []string{"chords"}, geminiSchema.Required)
}

func TestGeminiProvider_BuildConfig(t *testing.T) {
	provider := &GeminiProvider{client: nil}

	config := provider.buildConfig(&GenerationRequest{
		SystemPrompt:    "be brief",
		Temperature:     Float(0.5),
		MaxOutputTokens: 256,
		OutputSchema:    ChordProgressionOutputSchema(),
	})

	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.5, float64(*config.Temperature), 1e-6)
	assert.Equal(t, int32(256), config.MaxOutputTokens)
	assert.Equal(t, "application/json", config.ResponseMIMEType)
	assert.Equal(t, "be brief", config.SystemInstruction.Parts[0].Text)
}

func TestGeminiProvider_ProcessResponse(t *testing.T) {
	provider := &GeminiProvider{client: nil}

	text, usage, err := provider.processGeminiResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "['Am', "}, {Text: "'F']"}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     7,
			CandidatesTokenCount: 3,
			TotalTokenCount:      10,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "['Am', 'F']", text)
	assert.Equal(t, int64(10), usage.TotalTokens)

	_, _, err = provider.processGeminiResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}
