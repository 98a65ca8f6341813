// Package app assembles the shared components from configuration. The HTTP
// server and melodyctl both build on it.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/Conceptual-Machines/melodycomp-api/internal/config"
	"github.com/Conceptual-Machines/melodycomp-api/internal/conversation"
	"github.com/Conceptual-Machines/melodycomp-api/internal/database"
	"github.com/Conceptual-Machines/melodycomp-api/internal/llm"
	"github.com/Conceptual-Machines/melodycomp-api/internal/melody"
	"github.com/Conceptual-Machines/melodycomp-api/internal/metrics"
	"github.com/Conceptual-Machines/melodycomp-api/internal/observability"
	"github.com/Conceptual-Machines/melodycomp-api/internal/progression"
	"github.com/Conceptual-Machines/melodycomp-api/internal/prompt"
	"github.com/Conceptual-Machines/melodycomp-api/internal/render"
	"github.com/Conceptual-Machines/melodycomp-api/internal/retrieval"
	"github.com/Conceptual-Machines/melodycomp-api/internal/store"
	"github.com/Conceptual-Machines/melodycomp-api/internal/theory"
	"github.com/Conceptual-Machines/melodycomp-api/pkg/embedded"
	"gorm.io/gorm"
)

// Theory is the read-only music theory state shared by every session.
type Theory struct {
	Table    *theory.ModeTable
	Vocab    *theory.ChordVocabulary
	Resolver *theory.Resolver
	Palette  *theory.PaletteGenerator
	Renderer *render.Renderer
}

// LoadTheory reads the mode table and chord vocabulary. Without a configured
// path the embedded scales file and the generated vocabulary are used.
func LoadTheory(cfg *config.Config) (*Theory, error) {
	var (
		table *theory.ModeTable
		err   error
	)
	if cfg.ScalesConfigPath != "" {
		table, err = theory.LoadModeTable(cfg.ScalesConfigPath)
	} else {
		table, err = theory.ParseModeTable(embedded.ScalesYAML)
	}
	if err != nil {
		return nil, err
	}

	vocab := theory.GenerateVocabulary()
	if cfg.ChordLibraryPath != "" {
		if vocab, err = theory.LoadVocabulary(cfg.ChordLibraryPath); err != nil {
			return nil, err
		}
	}
	log.Printf("🎼 Theory loaded: %d modes, %d chords", len(table.Names()), vocab.Len())

	return &Theory{
		Table:    table,
		Vocab:    vocab,
		Resolver: theory.NewResolver(table),
		Palette:  theory.NewPaletteGenerator(table, vocab),
		Renderer: render.NewRenderer(vocab),
	}, nil
}

// App holds every long-lived component of a running service.
type App struct {
	Config     *config.Config
	Theory     *Theory
	Prompts    *prompt.Builder
	Metrics    metrics.Recorder
	Langfuse   *observability.LangfuseClient
	Retrievers *retrieval.Retrievers // nil when the index could not be opened
	DB         *gorm.DB              // nil when sessions live in memory
	Store      store.Store
	Manager    *conversation.Manager
	Melody     *melody.Service // nil when no melody endpoint is configured
}

// New builds the application. Retrieval failures are logged and the service
// runs without grounding; everything else is an error.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	th, err := LoadTheory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load theory tables: %w", err)
	}

	a := &App{
		Config:   cfg,
		Theory:   th,
		Prompts:  prompt.NewPromptBuilder(),
		Langfuse: observability.NewLangfuse(ctx, cfg),
	}
	a.Metrics = newRecorder(ctx, cfg)

	parser, err := progression.NewParser(cfg.ProgressionFormat)
	if err != nil {
		return nil, err
	}

	factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	chordProvider, err := factory.GetProvider(ctx, cfg.ChordModel, cfg.ChordProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create chord provider: %w", err)
	}

	a.Retrievers = openRetrievers(ctx, cfg)

	if cfg.UsesDatabase() {
		if a.DB, err = database.Connect(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		if err := database.Migrate(a.DB); err != nil {
			return nil, err
		}
		a.Store = store.NewGormStore(a.DB)
	} else {
		log.Println("⚠️  DATABASE_URL not set, sessions are kept in memory")
		a.Store = store.NewMemoryStore()
	}

	deps := conversation.Dependencies{
		Provider: observability.NewTracedProvider(chordProvider, a.Langfuse, "chords"),
		Resolver: th.Resolver,
		Palette:  th.Palette,
		Parser:   parser,
		Renderer: th.Renderer,
		Prompts:  a.Prompts,
		Metrics:  a.Metrics,
	}
	if a.Retrievers != nil {
		deps.Genres = a.Retrievers.Genres
		deps.Examples = a.Retrievers.Examples
	}
	a.Manager = conversation.NewManager(deps, ConversationConfig(cfg), a.Store)

	a.Melody = a.newMelodyService(ctx, factory)
	return a, nil
}

// Info is the static deployment summary served by /api/metrics.
func (a *App) Info() map[string]interface{} {
	storeKind := "memory"
	if a.DB != nil {
		storeKind = "postgres"
	}
	return map[string]interface{}{
		"chord_model":        a.Config.ChordModel,
		"progression_format": a.Config.ProgressionFormat,
		"melody_enabled":     a.Melody != nil,
		"retrieval_enabled":  a.Retrievers != nil,
		"embedding_provider": a.Config.EmbeddingProvider,
		"store":              storeKind,
		"modes":              a.Theory.Table.Names(),
	}
}

// Close releases the index and database handles and flushes traces.
func (a *App) Close(ctx context.Context) {
	if a.Retrievers != nil {
		if err := a.Retrievers.Index.Close(); err != nil {
			log.Printf("⚠️  Failed to close retrieval index: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	a.Langfuse.Flush(ctx)
}

func (a *App) newMelodyService(ctx context.Context, factory *llm.ProviderFactory) *melody.Service {
	cfg := a.Config
	if cfg.MelodyBaseURL == "" {
		log.Println("⚠️  MELODY_BASE_URL not set, melody generation disabled")
		return nil
	}
	completer := observability.NewTracedCompleter(
		llm.NewOpenAIProviderWithBaseURL(cfg.MelodyAPIKey, cfg.MelodyBaseURL), a.Langfuse, "melody")

	var converter llm.Provider
	if p, err := factory.GetProvider(ctx, cfg.ABCConverterModel, ""); err != nil {
		log.Printf("⚠️  ABC converter unavailable (%v), using the built-in reader only", err)
	} else {
		converter = observability.NewTracedProvider(p, a.Langfuse, "abc_conversion")
	}

	return melody.NewService(completer, converter, a.Prompts, a.Metrics, melody.Config{
		MelodyModel:    cfg.MelodyModel,
		ConverterModel: cfg.ABCConverterModel,
	})
}

func newRecorder(ctx context.Context, cfg *config.Config) metrics.Recorder {
	recorders := metrics.Multi{metrics.NewSentryMetrics()}
	cw, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		log.Printf("⚠️  CloudWatch metrics unavailable: %v", err)
		return recorders
	}
	return append(recorders, cw)
}

func openRetrievers(ctx context.Context, cfg *config.Config) *retrieval.Retrievers {
	embedder, err := retrieval.NewEmbedder(ctx, cfg.EmbeddingProvider, cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	if err != nil {
		log.Printf("⚠️  Retrieval disabled: %v", err)
		return nil
	}
	retrievers, err := retrieval.Bootstrap(ctx, cfg.RetrievalDBPath, cfg.KnowledgeDir, embedder)
	if err != nil {
		log.Printf("⚠️  Retrieval disabled: %v", err)
		return nil
	}
	return retrievers
}

// ConversationConfig maps the chord generation settings onto each session.
func ConversationConfig(cfg *config.Config) conversation.Config {
	temperature := cfg.ChordTemperature
	return conversation.Config{
		Model:            cfg.ChordModel,
		ReasoningMode:    cfg.ReasoningMode,
		Temperature:      &temperature,
		TipsEnabled:      cfg.TipsEnabled,
		GenreResults:     cfg.GenreResults,
		ExampleResults:   cfg.ExampleResults,
		DurationPerChord: cfg.DurationPerChord,
	}
}
