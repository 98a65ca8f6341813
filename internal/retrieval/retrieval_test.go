package retrieval

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	index, err := OpenIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func TestSplitter(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := NewSplitter(DefaultChunkSize, DefaultChunkOverlap).Split("  Blues uses dominant sevenths.  ")
		assert.Equal(t, []string{"Blues uses dominant sevenths."}, chunks)
	})

	t.Run("paragraphs preferred", func(t *testing.T) {
		chunks := NewSplitter(5, 0).Split("aaa\n\nbbb")
		assert.Equal(t, []string{"aaa", "bbb"}, chunks)
	})

	t.Run("long text is bounded and overlaps", func(t *testing.T) {
		words := make([]string, 300)
		for i := range words {
			words[i] = fmt.Sprintf("w%03d", i)
		}
		chunks := NewSplitter(DefaultChunkSize, DefaultChunkOverlap).Split(strings.Join(words, " "))
		require.Len(t, chunks, 2)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), DefaultChunkSize)
		}
		first := strings.Fields(chunks[1])[0]
		assert.Contains(t, chunks[0], first, "second chunk starts inside the first")
		assert.True(t, strings.HasSuffix(chunks[1], "w299"))
	})

	t.Run("unbreakable text falls back to characters", func(t *testing.T) {
		chunks := NewSplitter(4, 0).Split("abcdefghij")
		assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
	})
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"Jazz ii-V-I", "Jazz ii-V-I", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, vecs[0], vecs[1])
	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	for _, v := range vecs[2] {
		assert.Zero(t, v)
	}
	assert.Equal(t, "hash:64", e.Name())
}

func TestNewEmbedder(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, "hash", "", "")
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	e, err = NewEmbedder(ctx, "gemini", "", "")
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e, "missing key falls back")

	e, err = NewEmbedder(ctx, "OpenAI", "sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", e.Name())

	_, err = NewEmbedder(ctx, "word2vec", "", "")
	assert.Error(t, err)
}

func TestSQLiteIndex(t *testing.T) {
	ctx := context.Background()
	index := openTestIndex(t)

	docs := []Document{
		{ID: "a", Content: "alpha", Metadata: map[string]string{"genre": "jazz"}, Embedding: []float32{1, 0, 0}},
		{ID: "b", Content: "beta", Embedding: []float32{0, 1, 0}},
		{ID: "c", Content: "gamma", Embedding: []float32{0.7, 0.7, 0}},
		{ID: "d", Content: "short", Embedding: []float32{1, 0}},
	}
	require.NoError(t, index.Upsert(ctx, "test", "unit", docs))
	require.NoError(t, index.Upsert(ctx, "test", "other", []Document{{ID: "e", Content: "foreign", Embedding: []float32{1, 0, 0}}}))

	n, err := index.Count(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	matches, err := index.Search(ctx, "test", "unit", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3, "wrong dimensionality and other embedders are ignored")
	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	assert.Equal(t, "jazz", matches[0].Metadata["genre"])
	assert.Equal(t, "c", matches[1].ID)
	assert.Equal(t, "b", matches[2].ID)

	top, err := index.Search(ctx, "test", "unit", []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "b", top[0].ID)

	// upsert replaces content
	require.NoError(t, index.Upsert(ctx, "test", "unit", []Document{{ID: "a", Content: "alpha2", Embedding: []float32{1, 0, 0}}}))
	top, err = index.Search(ctx, "test", "unit", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "alpha2", top[0].Content)

	require.NoError(t, index.Reset(ctx, "test"))
	n, err = index.Count(ctx, "test")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenreRetriever(t *testing.T) {
	ctx := context.Background()
	collection := NewCollection(openTestIndex(t), NewHashEmbedder(hashDimensions), GenreCollection)
	retriever := NewGenreRetriever(collection)

	docs, err := retriever.Query(ctx, "anything", DefaultGenreResults)
	require.NoError(t, err)
	assert.Equal(t, []string{NoContextSentinel}, docs)
	assert.Equal(t, NoContextSentinel, JoinContext(docs))

	fsys := fstest.MapFS{
		"jazz.md":   {Data: []byte("jazz harmony uses seventh chords and the ii V I progression")},
		"blues.md":  {Data: []byte("blues uses dominant chords over a twelve bar form with a shuffle rhythm")},
		"notes.txt": {Data: []byte("not indexed")},
	}
	added, err := IndexGenres(ctx, collection, fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	docs, err = retriever.Query(ctx, "jazz harmony with seventh chords", DefaultGenreResults)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0], "jazz harmony")

	joined := JoinContext(docs)
	assert.Equal(t, docs[0]+ContextSeparator+docs[1], joined)
}

func TestExamplesRetriever(t *testing.T) {
	ctx := context.Background()
	collection := NewCollection(openTestIndex(t), NewHashEmbedder(hashDimensions), ExamplesCollection)
	retriever := NewExamplesRetriever(collection)

	section, err := retriever.FewShot(ctx, "pop chorus", DefaultExampleResults)
	require.NoError(t, err)
	assert.Empty(t, section)

	examples, err := LoadExamples([]byte(`[
		{"instruction": "Upbeat pop chorus in C major", "output": "['C', 'G', 'Am', 'F']"},
		{"instruction": "A twelve bar blues in A", "output": "['A7', 'D7', 'E7']"},
		{"instruction": "Modal vamp in D dorian", "output": "['Dm7', 'G7']"}
	]`))
	require.NoError(t, err)
	_, err = IndexExamples(ctx, collection, examples)
	require.NoError(t, err)

	section, err = retriever.FewShot(ctx, "an upbeat pop chorus", DefaultExampleResults)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(section, "### HIGH-QUALITY EXAMPLES\nExample 1 (Similarity: "))
	assert.Contains(t, section, "- Request: \"Upbeat pop chorus in C major\"\n- Response: ['C', 'G', 'Am', 'F']\n\n")
	assert.Contains(t, section, "Example 2 (Similarity: ")
	assert.NotContains(t, section, "Example 3")

	instructions, err := retriever.Query(ctx, "blues", 1)
	require.NoError(t, err)
	assert.Len(t, instructions, 1)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("embedded defaults", func(t *testing.T) {
		r, err := Bootstrap(ctx, ":memory:", "", NewHashEmbedder(hashDimensions))
		require.NoError(t, err)
		defer r.Index.Close()

		docs, err := r.Genres.Query(ctx, "lofi hip hop chords", DefaultGenreResults)
		require.NoError(t, err)
		assert.Len(t, docs, DefaultGenreResults)
		assert.NotEqual(t, NoContextSentinel, docs[0])

		section, err := r.Examples.FewShot(ctx, "jazz ballad", DefaultExampleResults)
		require.NoError(t, err)
		assert.Contains(t, section, "Example 2")
	})

	t.Run("knowledge directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ambient.md"), []byte("Ambient music favours sus2 chords."), 0o600))

		r, err := Bootstrap(ctx, filepath.Join(t.TempDir(), "index.db"), dir, NewHashEmbedder(hashDimensions))
		require.NoError(t, err)
		defer r.Index.Close()

		docs, err := r.Genres.Query(ctx, "ambient", DefaultGenreResults)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ambient music favours sus2 chords."}, docs)
	})

	t.Run("missing knowledge directory", func(t *testing.T) {
		_, err := Bootstrap(ctx, ":memory:", filepath.Join(t.TempDir(), "nope"), NewHashEmbedder(hashDimensions))
		assert.Error(t, err)
	})
}
