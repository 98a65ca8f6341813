package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/llm"
	"github.com/Conceptual-Machines/melodycomp-api/internal/logger"
	"github.com/Conceptual-Machines/melodycomp-api/internal/metrics"
	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/Conceptual-Machines/melodycomp-api/internal/progression"
	"github.com/Conceptual-Machines/melodycomp-api/internal/prompt"
	"github.com/Conceptual-Machines/melodycomp-api/internal/render"
	"github.com/Conceptual-Machines/melodycomp-api/internal/retrieval"
	"github.com/Conceptual-Machines/melodycomp-api/internal/theory"
	"github.com/getsentry/sentry-go"
)

// ErrNoProgression is returned when the model output held no valid chord list.
// The turn is still recorded in history.
var ErrNoProgression = errors.New("no valid chord progression in model output")

// FailureMessage is the user-facing text for ErrNoProgression.
const FailureMessage = "Sorry, I couldn't generate a valid progression. Please try again."

// ExampleSource supplies the optional few-shot section of the system prompt.
type ExampleSource interface {
	FewShot(ctx context.Context, text string, maxResults int) (string, error)
}

// Dependencies are the shared, read-only collaborators of every orchestrator.
type Dependencies struct {
	Provider llm.Provider
	Resolver *theory.Resolver
	Palette  *theory.PaletteGenerator
	Genres   retrieval.Retriever
	Examples ExampleSource
	Parser   progression.Parser
	Renderer *render.Renderer
	Prompts  *prompt.Builder
	Metrics  metrics.Recorder
}

// Config holds the per-deployment generation settings.
type Config struct {
	Model            string
	ReasoningMode    string
	Temperature      *float64
	TipsEnabled      bool
	GenreResults     int
	ExampleResults   int
	DurationPerChord float64
}

// TurnResult is everything a successful turn produced.
type TurnResult struct {
	Key         *theory.Key         `json:"key,omitempty"`
	Palette     []string            `json:"palette"`
	Chords      []string            `json:"chords"`
	Notes       []models.NoteEvent  `json:"notes"`
	Diagnostics []models.Diagnostic `json:"diagnostics,omitempty"`
	Tips        string              `json:"tips,omitempty"`
	Usage       llm.Usage           `json:"usage"`
}

// Orchestrator runs the turns of one session against its Log.
type Orchestrator struct {
	deps Dependencies
	cfg  Config
	log  *Log

	mu      sync.Mutex
	current uint64
	cancel  context.CancelFunc
}

// NewOrchestrator binds the shared dependencies to one session log.
func NewOrchestrator(deps Dependencies, cfg Config, history *Log) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if cfg.GenreResults <= 0 {
		cfg.GenreResults = retrieval.DefaultGenreResults
	}
	if cfg.ExampleResults <= 0 {
		cfg.ExampleResults = retrieval.DefaultExampleResults
	}
	if cfg.DurationPerChord <= 0 {
		cfg.DurationPerChord = render.DefaultDuration
	}
	return &Orchestrator{deps: deps, cfg: cfg, log: history}
}

// History returns the committed messages of the session.
func (o *Orchestrator) History() []models.ChatMessage {
	return o.log.Messages()
}

// begin reserves a ticket and cancels the turn it supersedes.
func (o *Orchestrator) begin(ctx context.Context) (Ticket, context.Context, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	ticket := o.log.Begin()
	turnCtx, cancel := context.WithCancel(ctx)
	o.current = ticket.seq
	o.cancel = cancel

	return ticket, turnCtx, func() {
		o.mu.Lock()
		if o.current == ticket.seq {
			o.cancel = nil
		}
		o.mu.Unlock()
		cancel()
	}
}

// Turn answers one user utterance with a chord progression, its rendered
// notes and optional theory tips.
func (o *Orchestrator) Turn(ctx context.Context, utterance string) (*TurnResult, error) {
	ticket, ctx, done := o.begin(ctx)
	defer done()

	startTime := time.Now()
	transaction := sentry.StartTransaction(ctx, "conversation.turn")
	defer transaction.Finish()
	ctx = transaction.Context()
	transaction.SetTag("model", o.cfg.Model)

	result := &TurnResult{Palette: []string{}}

	genreContext := o.genreContext(ctx, utterance)
	examples := o.fewShot(ctx, utterance)

	if key, ok := o.deps.Resolver.Resolve(utterance); ok {
		result.Key = &key
		result.Palette = o.deps.Palette.ForKey(key)
		transaction.SetTag("key", key.String())
	}

	systemPrompt, err := o.deps.Prompts.BuildSystemPrompt(prompt.SystemInput{
		PaletteDirective: prompt.PaletteDirective(result.Palette),
		GenreContext:     genreContext,
		Examples:         examples,
		Format:           o.deps.Parser.Format(),
	})
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	request := o.chordRequest(systemPrompt, utterance)
	log.Printf("🎹 TURN REQUEST: %s model=%s, history=%d, palette=%d",
		o.deps.Provider.Name(), o.cfg.Model, len(request.InputArray)-1, len(result.Palette))

	resp, err := o.deps.Provider.Generate(ctx, request)
	if err != nil {
		transaction.SetTag("success", "false")
		o.deps.Metrics.RecordGenerationDuration(ctx, "turn", time.Since(startTime), false)
		if !o.log.Current(ticket) {
			return nil, ErrSuperseded
		}
		sentry.CaptureException(err)
		return nil, fmt.Errorf("chord model request failed: %w", err)
	}
	result.Usage = resp.Usage
	o.deps.Metrics.RecordTokenUsage(ctx, o.cfg.Model, resp.Usage.TotalTokens, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	// history records the exchange before the output is validated
	if err := o.log.Commit(ctx, ticket,
		models.ChatMessage{Role: models.RoleUser, Content: utterance},
		models.ChatMessage{Role: models.RoleAssistant, Content: resp.RawOutput},
	); err != nil {
		transaction.SetTag("success", "false")
		if errors.Is(err, ErrSuperseded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record turn: %w", err)
	}

	chords, err := o.deps.Parser.Parse(resp.RawOutput)
	if err != nil {
		logger.Warn("Model output held no chord list", logger.Fields{
			"model":  o.cfg.Model,
			"format": o.deps.Parser.Format(),
			"error":  err.Error(),
		})
		transaction.SetTag("success", "false")
		o.deps.Metrics.RecordGenerationDuration(ctx, "turn", time.Since(startTime), false)
		return nil, fmt.Errorf("%w: %v", ErrNoProgression, err)
	}

	rendered := o.deps.Renderer.Render(chords, o.cfg.DurationPerChord)
	result.Chords = chords
	result.Notes = rendered.Notes
	result.Diagnostics = rendered.Diagnostics
	o.deps.Metrics.RecordDiagnostics(ctx, "render", len(rendered.Diagnostics))

	if o.cfg.TipsEnabled {
		result.Tips = o.tips(ctx, utterance, chords)
	}

	transaction.SetTag("success", "true")
	transaction.SetTag("chord_count", fmt.Sprintf("%d", len(chords)))
	o.deps.Metrics.RecordGenerationDuration(ctx, "turn", time.Since(startTime), true)

	log.Printf("✅ TURN COMPLETE: %d chords, %d notes, %d skipped", len(chords), len(result.Notes), len(result.Diagnostics))
	return result, nil
}

func (o *Orchestrator) chordRequest(systemPrompt, utterance string) *llm.GenerationRequest {
	history := o.log.Messages()
	input := make([]map[string]any, 0, len(history)+1)
	for _, m := range history {
		input = append(input, llm.Message(m.Role, m.Content))
	}
	input = append(input, llm.Message(models.RoleUser, utterance))

	request := &llm.GenerationRequest{
		Model:         o.cfg.Model,
		InputArray:    input,
		ReasoningMode: o.cfg.ReasoningMode,
		SystemPrompt:  systemPrompt,
		Temperature:   o.cfg.Temperature,
	}
	switch o.deps.Parser.Format() {
	case progression.FormatJSON:
		request.OutputSchema = llm.ChordProgressionOutputSchema()
	case progression.FormatDSL:
		request.CFGGrammar = llm.ChordDSLConfig()
	}
	return request
}

// genreContext never fails the turn; retrieval problems yield the sentinel.
func (o *Orchestrator) genreContext(ctx context.Context, utterance string) string {
	if o.deps.Genres == nil {
		return retrieval.NoContextSentinel
	}
	docs, err := o.deps.Genres.Query(ctx, utterance, o.cfg.GenreResults)
	if err != nil {
		logger.Warn("Genre retrieval failed", logger.Fields{"error": err.Error()})
		return retrieval.NoContextSentinel
	}
	return retrieval.JoinContext(docs)
}

func (o *Orchestrator) fewShot(ctx context.Context, utterance string) string {
	if o.deps.Examples == nil {
		return ""
	}
	section, err := o.deps.Examples.FewShot(ctx, utterance, o.cfg.ExampleResults)
	if err != nil {
		logger.Warn("Example retrieval failed", logger.Fields{"error": err.Error()})
		return ""
	}
	return section
}

// tips asks for theory tips on the accepted progression. Failures leave the
// tips empty.
func (o *Orchestrator) tips(ctx context.Context, utterance string, chords []string) string {
	span := sentry.StartSpan(ctx, "conversation.tips")
	defer span.Finish()

	tipsPrompt, err := o.deps.Prompts.BuildTipsPrompt(utterance, chords)
	if err != nil {
		logger.Warn("Tips prompt failed", logger.Fields{"error": err.Error()})
		return ""
	}
	resp, err := o.deps.Provider.Generate(ctx, &llm.GenerationRequest{
		Model:         o.cfg.Model,
		InputArray:    []map[string]any{llm.Message(models.RoleUser, tipsPrompt)},
		ReasoningMode: o.cfg.ReasoningMode,
		Temperature:   o.cfg.Temperature,
	})
	if err != nil {
		logger.Warn("Tips generation failed", logger.Fields{"model": o.cfg.Model, "error": err.Error()})
		return ""
	}
	o.deps.Metrics.RecordTokenUsage(ctx, o.cfg.Model, resp.Usage.TotalTokens, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp.RawOutput
}
