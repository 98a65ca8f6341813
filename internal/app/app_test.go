package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Conceptual-Machines/melodycomp-api/internal/config"
	"github.com/Conceptual-Machines/melodycomp-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:       "test",
		OpenAIAPIKey:      "sk-test",
		ChordModel:        "gpt-4o-mini",
		ChordTemperature:  0.7,
		ProgressionFormat: "list",
		DurationPerChord:  2,
		TipsEnabled:       true,
		EmbeddingProvider: "hash",
		RetrievalDBPath:   filepath.Join(t.TempDir(), "index.db"),
		GenreResults:      5,
		ExampleResults:    2,
		ABCConverterModel: "gpt-4o-mini",
		MelodyModel:       "melody-llama",
	}
}

func TestLoadTheory(t *testing.T) {
	t.Run("embedded defaults", func(t *testing.T) {
		th, err := LoadTheory(&config.Config{})
		require.NoError(t, err)
		assert.Contains(t, th.Table.Names(), "harmonic_minor")
		assert.True(t, th.Vocab.Contains("Cmaj7"))
		assert.Equal(t, []string{"C", "Cmaj7"}, th.Palette.Generate("C", "major")[:2])
	})

	t.Run("missing scales file falls back", func(t *testing.T) {
		th, err := LoadTheory(&config.Config{ScalesConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"major", "minor"}, th.Table.Names())
	})

	t.Run("custom chord library", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chords.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"C": [60, 64, 67]}`), 0o600))

		th, err := LoadTheory(&config.Config{ChordLibraryPath: path})
		require.NoError(t, err)
		assert.Equal(t, 1, th.Vocab.Len())
	})

	t.Run("unreadable chord library", func(t *testing.T) {
		_, err := LoadTheory(&config.Config{ChordLibraryPath: filepath.Join(t.TempDir(), "missing.json")})
		assert.Error(t, err)
	})
}

func TestNew_InMemory(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Nil(t, a.DB)
	assert.IsType(t, &store.MemoryStore{}, a.Store)
	assert.NotNil(t, a.Retrievers)
	assert.Nil(t, a.Melody)

	info := a.Info()
	assert.Equal(t, "memory", info["store"])
	assert.Equal(t, false, info["melody_enabled"])
	assert.Equal(t, true, info["retrieval_enabled"])

	session, err := a.Manager.Create(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
}

func TestNew_MelodyEnabledWithBaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.MelodyBaseURL = "http://localhost:8081/v1"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.NotNil(t, a.Melody)
}

func TestConversationConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReasoningMode = "low"

	got := ConversationConfig(cfg)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.7, *got.Temperature)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "low", got.ReasoningMode)
	assert.True(t, got.TipsEnabled)
	assert.Equal(t, 5, got.GenreResults)
	assert.Equal(t, 2, got.ExampleResults)
	assert.Equal(t, 2.0, got.DurationPerChord)

	cfg.ChordTemperature = 0.3
	assert.Equal(t, 0.7, *got.Temperature)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{name: "no chord model key", modify: func(c *config.Config) { c.OpenAIAPIKey = "" }},
		{name: "unknown format", modify: func(c *config.Config) { c.ProgressionFormat = "xml" }},
		{name: "unknown provider", modify: func(c *config.Config) { c.ChordProvider = "anthropic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)
			_, err := New(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}
