package melody

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/llm"
	"github.com/Conceptual-Machines/melodycomp-api/internal/metrics"
	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/Conceptual-Machines/melodycomp-api/internal/prompt"
	"github.com/getsentry/sentry-go"
)

const (
	melodyMaxTokens       = 1024
	melodyTemperature     = 0.8
	conversionTemperature = 0.1
	defaultKey            = "C"
	abcHeaderTemplate     = "M:4/4\nL:1/8\nK:%s\n"
)

var (
	// ErrNoChords is returned when a melody is requested without a progression.
	ErrNoChords = errors.New("no chords to build a melody on")
	// ErrNoMelody is returned when neither the ABC reader nor the converter
	// produced any events.
	ErrNoMelody = errors.New("melody model produced no usable notation")

	melodyStops   = []string{"Human:", "</s>"}
	leadingRoot   = regexp.MustCompile(`^[A-G][#b]?`)
	jsonCodeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Config selects the models used for melody generation.
type Config struct {
	MelodyModel    string
	ConverterModel string
}

// Result is a generated melody with the intermediate notation kept for display.
type Result struct {
	Key         string                       `json:"key"`
	ABC         string                       `json:"abc"`
	Events      []models.MelodyNotationEvent `json:"events"`
	Notes       []models.NoteEvent           `json:"notes"`
	Diagnostics []models.Diagnostic          `json:"diagnostics,omitempty"`
	Converted   bool                         `json:"converted_by_model"`
}

// Service generates a monophonic melody over a chord progression.
type Service struct {
	completer llm.Completer
	converter llm.Provider
	prompts   *prompt.Builder
	metrics   metrics.Recorder
	cfg       Config
}

// NewService creates a melody service. converter may be nil, in which case
// only the built-in ABC reader is used.
func NewService(completer llm.Completer, converter llm.Provider, prompts *prompt.Builder, recorder metrics.Recorder, cfg Config) *Service {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Service{
		completer: completer,
		converter: converter,
		prompts:   prompts,
		metrics:   recorder,
		cfg:       cfg,
	}
}

// KeyForChords returns the ABC key of the first chord: its root, plus "m"
// when the chord is minor. Unreadable or missing chords give C.
func KeyForChords(chords []string) string {
	if len(chords) == 0 {
		return defaultKey
	}
	symbol := strings.TrimSpace(chords[0])
	root := leadingRoot.FindString(symbol)
	if root == "" {
		return defaultKey
	}
	if quality := symbol[len(root):]; strings.HasPrefix(quality, "m") && !strings.HasPrefix(quality, "maj") {
		return root + "m"
	}
	return root
}

// Generate prompts the melody model, reads its ABC output and decodes it into notes.
func (s *Service) Generate(ctx context.Context, chords []string) (*Result, error) {
	if len(chords) == 0 {
		return nil, ErrNoChords
	}
	startTime := time.Now()

	transaction := sentry.StartTransaction(ctx, "melody.generate")
	defer transaction.Finish()
	ctx = transaction.Context()
	transaction.SetTag("model", s.cfg.MelodyModel)

	key := KeyForChords(chords)
	promptText, err := s.prompts.BuildMelodyPrompt(chords, key)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	log.Printf("🎻 MELODY REQUEST: model=%s, key=%s, chords=%d", s.cfg.MelodyModel, key, len(chords))
	resp, err := s.completer.Complete(ctx, &llm.CompletionRequest{
		Model:       s.cfg.MelodyModel,
		Prompt:      promptText,
		MaxTokens:   melodyMaxTokens,
		Temperature: llm.Float(melodyTemperature),
		Stop:        melodyStops,
	})
	if err != nil {
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		s.metrics.RecordGenerationDuration(ctx, "melody", time.Since(startTime), false)
		return nil, fmt.Errorf("melody model request failed: %w", err)
	}
	s.metrics.RecordTokenUsage(ctx, s.cfg.MelodyModel, resp.Usage.TotalTokens, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	abc := fmt.Sprintf(abcHeaderTemplate, key) + strings.TrimSpace(resp.Text)
	result := &Result{Key: key, ABC: abc}

	events, err := ParseABC(abc)
	if err != nil {
		log.Printf("⚠️  ABC reader stopped early: %v", err)
	}
	if len(events) == 0 {
		converted, diags, convErr := s.convert(ctx, abc)
		if convErr != nil {
			log.Printf("⚠️  ABC conversion failed: %v", convErr)
		}
		events = converted
		result.Diagnostics = append(result.Diagnostics, diags...)
		result.Converted = true
	}
	if len(events) == 0 {
		transaction.SetTag("success", "false")
		s.metrics.RecordGenerationDuration(ctx, "melody", time.Since(startTime), false)
		return nil, ErrNoMelody
	}

	notes, diags := Decode(events)
	result.Events = events
	result.Notes = notes
	result.Diagnostics = append(result.Diagnostics, diags...)
	s.metrics.RecordDiagnostics(ctx, "melody", len(result.Diagnostics))

	transaction.SetTag("success", "true")
	transaction.SetTag("note_count", fmt.Sprintf("%d", len(notes)))
	s.metrics.RecordGenerationDuration(ctx, "melody", time.Since(startTime), true)

	log.Printf("✅ MELODY COMPLETE: %d notes, %d skipped", len(notes), len(result.Diagnostics))
	return result, nil
}

// convert asks the converter model to turn ABC notation into JSON events.
func (s *Service) convert(ctx context.Context, abc string) ([]models.MelodyNotationEvent, []models.Diagnostic, error) {
	if s.converter == nil {
		return nil, nil, fmt.Errorf("no converter model configured")
	}

	span := sentry.StartSpan(ctx, "melody.convert")
	defer span.Finish()

	promptText, err := s.prompts.BuildABCConversionPrompt(abc)
	if err != nil {
		return nil, nil, err
	}

	resp, err := s.converter.Generate(ctx, &llm.GenerationRequest{
		Model:       s.cfg.ConverterModel,
		InputArray:  []map[string]any{llm.Message(models.RoleUser, promptText)},
		Temperature: llm.Float(conversionTemperature),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("converter request failed: %w", err)
	}
	s.metrics.RecordTokenUsage(ctx, s.cfg.ConverterModel, resp.Usage.TotalTokens, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return ParseEvents([]byte(stripFences(resp.RawOutput)))
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := jsonCodeFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
