package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Collection names in the index.
const (
	GenreCollection    = "genre-knowledge"
	ExamplesCollection = "few-shot-examples"
)

// NoContextSentinel is returned in place of genre context when the index is empty.
const NoContextSentinel = "No genre context available."

// ContextSeparator joins retrieved documents into one prompt section.
const ContextSeparator = "\n\n---\n\n"

// DefaultGenreResults and DefaultExampleResults are the per-turn query sizes.
const (
	DefaultGenreResults   = 5
	DefaultExampleResults = 2
)

// Retriever returns documents relevant to a request.
type Retriever interface {
	Query(ctx context.Context, text string, maxResults int) ([]string, error)
}

// Collection binds one named collection of an index to the embedder that filled it.
type Collection struct {
	index    *SQLiteIndex
	embedder Embedder
	name     string
}

// NewCollection returns a handle on the named collection.
func NewCollection(index *SQLiteIndex, embedder Embedder, name string) *Collection {
	return &Collection{index: index, embedder: embedder, name: name}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Add embeds and stores documents. Existing ids are overwritten.
func (c *Collection) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %s documents: %w", c.name, err)
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}
	return c.index.Upsert(ctx, c.name, c.embedder.Name(), docs)
}

// Count returns the number of stored documents.
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.index.Count(ctx, c.name)
}

// Reset removes every document from the collection.
func (c *Collection) Reset(ctx context.Context) error {
	return c.index.Reset(ctx, c.name)
}

// Search embeds text and returns the nearest documents.
func (c *Collection) Search(ctx context.Context, text string, k int) ([]Match, error) {
	vectors, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return c.index.Search(ctx, c.name, c.embedder.Name(), vectors[0], k)
}

// GenreRetriever returns genre knowledge chunks for a request.
type GenreRetriever struct {
	collection *Collection
}

// NewGenreRetriever wraps the genre collection.
func NewGenreRetriever(collection *Collection) *GenreRetriever {
	return &GenreRetriever{collection: collection}
}

// Query returns the nearest chunks, or the sentinel alone when the
// collection is empty.
func (r *GenreRetriever) Query(ctx context.Context, text string, maxResults int) ([]string, error) {
	n, err := r.collection.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []string{NoContextSentinel}, nil
	}

	matches, err := r.collection.Search(ctx, text, min(maxResults, n))
	if err != nil {
		return nil, err
	}
	docs := make([]string, len(matches))
	for i, m := range matches {
		docs[i] = m.Content
	}
	return docs, nil
}

// JoinContext joins retrieved documents for the system prompt.
func JoinContext(docs []string) string {
	if len(docs) == 0 {
		return NoContextSentinel
	}
	return strings.Join(docs, ContextSeparator)
}

// ExamplesRetriever finds the few-shot examples closest to a request.
type ExamplesRetriever struct {
	collection *Collection
}

// NewExamplesRetriever wraps the examples collection.
func NewExamplesRetriever(collection *Collection) *ExamplesRetriever {
	return &ExamplesRetriever{collection: collection}
}

// Query returns the matching example instructions.
func (r *ExamplesRetriever) Query(ctx context.Context, text string, maxResults int) ([]string, error) {
	matches, err := r.search(ctx, text, maxResults)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Content
	}
	return out, nil
}

// FewShot formats the nearest examples as a prompt section. An empty
// collection yields an empty string.
func (r *ExamplesRetriever) FewShot(ctx context.Context, text string, maxResults int) (string, error) {
	matches, err := r.search(ctx, text, maxResults)
	if err != nil || len(matches) == 0 {
		return "", err
	}

	var b strings.Builder
	b.WriteString("### HIGH-QUALITY EXAMPLES\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "Example %d (Similarity: %.3f):\n", i+1, m.Similarity)
		fmt.Fprintf(&b, "- Request: %q\n", m.Content)
		fmt.Fprintf(&b, "- Response: %s\n\n", m.Metadata["output"])
	}
	return b.String(), nil
}

func (r *ExamplesRetriever) search(ctx context.Context, text string, maxResults int) ([]Match, error) {
	n, err := r.collection.Count(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	return r.collection.Search(ctx, text, min(maxResults, n))
}
