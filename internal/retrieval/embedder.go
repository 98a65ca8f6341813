package retrieval

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"strings"
	"unicode"

	"github.com/Conceptual-Machines/melodycomp-api/internal/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

const (
	defaultGeminiEmbeddingModel = "text-embedding-004"
	defaultOpenAIEmbeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)
	hashDimensions              = 256

	EmbedderGemini = "gemini"
	EmbedderOpenAI = "openai"
	EmbedderHash   = "hash"
)

// Embedder turns texts into vectors. Vectors from one embedder are only
// comparable with vectors from the same embedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// NewEmbedder picks an embedder by name. An unconfigured provider falls back
// to the offline hash embedder so the service still starts.
func NewEmbedder(ctx context.Context, name, openaiAPIKey, geminiAPIKey string) (Embedder, error) {
	switch strings.ToLower(name) {
	case EmbedderGemini:
		if geminiAPIKey == "" {
			log.Printf("⚠️  GEMINI_API_KEY not set, using hash embeddings")
			return NewHashEmbedder(hashDimensions), nil
		}
		return NewGeminiEmbedder(ctx, geminiAPIKey, "")
	case EmbedderOpenAI:
		if openaiAPIKey == "" {
			log.Printf("⚠️  OPENAI_API_KEY not set, using hash embeddings")
			return NewHashEmbedder(hashDimensions), nil
		}
		return NewOpenAIEmbedder(openaiAPIKey, ""), nil
	case EmbedderHash, "":
		return NewHashEmbedder(hashDimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (allowed: gemini, openai, hash)", name)
	}
}

// GeminiEmbedder uses the Gemini embedding endpoint.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates a Gemini embedder. An empty model uses text-embedding-004.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	client, err := llm.NewGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) Name() string {
	return "gemini:" + e.model
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// OpenAIEmbedder uses the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder creates an OpenAI embedder. An empty model uses text-embedding-3-small.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Name() string {
	return "openai:" + e.model
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("openai embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// HashEmbedder is a deterministic bag-of-words embedding that needs no
// network access. Words and adjacent word pairs are hashed into a fixed
// number of signed buckets and the result is L2-normalised.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder with the given dimensionality.
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Name() string {
	return fmt.Sprintf("hash:%d", e.dims)
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#'
	})

	add := func(token string) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(e.dims))] += sign
	}
	for i, w := range words {
		add(w)
		if i > 0 {
			add(words[i-1] + " " + w)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
