package render

import (
	"fmt"
	"log"
	"regexp"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/Conceptual-Machines/melodycomp-api/internal/theory"
)

const (
	// DefaultDuration is the chord length in beats when none is given.
	DefaultDuration = 2.0
	// DefaultVelocity is applied to every rendered note.
	DefaultVelocity = 100
)

var chordRoot = regexp.MustCompile(`^([A-G][#b]?)(.*)$`)

// Result is the rendered note sequence plus a diagnostic per skipped chord.
type Result struct {
	Notes       []models.NoteEvent  `json:"notes"`
	Diagnostics []models.Diagnostic `json:"diagnostics,omitempty"`
}

// Renderer voices chord names as block chords using the vocabulary's C shapes.
type Renderer struct {
	vocab *theory.ChordVocabulary
}

func NewRenderer(vocab *theory.ChordVocabulary) *Renderer {
	return &Renderer{vocab: vocab}
}

// Render places each chord at t and advances t by durationPerChord, whether the
// chord rendered or was skipped. A non-positive duration uses DefaultDuration.
func (r *Renderer) Render(chords []string, durationPerChord float64) Result {
	if durationPerChord <= 0 {
		durationPerChord = DefaultDuration
	}

	result := Result{Notes: make([]models.NoteEvent, 0, len(chords)*4)}
	t := 0.0
	for i, chord := range chords {
		pitches, err := r.voice(chord)
		if err != nil {
			log.Printf("⚠️  Skipping chord %q: %v", chord, err)
			result.Diagnostics = append(result.Diagnostics, models.Diagnostic{
				Index:  i,
				Input:  chord,
				Reason: err.Error(),
			})
		}
		for _, p := range pitches {
			result.Notes = append(result.Notes, models.NoteEvent{
				Pitch:     p,
				Velocity:  DefaultVelocity,
				StartTime: t,
				EndTime:   t + durationPerChord,
			})
		}
		t += durationPerChord
	}
	return result
}

// voice transposes the C-rooted shape of the chord's quality to its root.
func (r *Renderer) voice(chord string) ([]int, error) {
	match := chordRoot.FindStringSubmatch(chord)
	if match == nil {
		return nil, fmt.Errorf("no root note")
	}
	root, ok := theory.ParsePitchClass(match[1])
	if !ok {
		return nil, fmt.Errorf("unknown root %q", match[1])
	}
	quality := match[2]

	shape, ok := r.vocab.Lookup("C" + quality)
	if !ok {
		return nil, fmt.Errorf("unknown chord quality %q", quality)
	}
	for i := range shape {
		shape[i] += int(root)
	}
	return shape, nil
}
