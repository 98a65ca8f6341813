package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// NoKeyDirective replaces the palette when no key resolved or the palette is empty.
const NoKeyDirective = "No specific key was requested. You are free to choose."

// ProgressionSeparator joins chords in tips prompts and user-facing summaries.
const ProgressionSeparator = " -> "

// Builder renders the embedded prompt templates.
type Builder struct {
	loader *Loader
	system *template.Template
	tips   *template.Template
	melody *template.Template
	abc    *template.Template
}

// SystemInput fills the chord progression system prompt.
type SystemInput struct {
	PaletteDirective string
	GenreContext     string
	Examples         string
	Format           string
}

// NewPromptBuilder parses the embedded templates. They are compiled into the
// binary, so a parse failure is a build defect and panics.
func NewPromptBuilder() *Builder {
	loader := NewPromptLoader()
	return &Builder{
		loader: loader,
		system: template.Must(template.New("system").Parse(loader.GetSystemPrompt())),
		tips:   template.Must(template.New("tips").Parse(loader.GetTipsPrompt())),
		melody: template.Must(template.New("melody").Parse(loader.GetMelodyPrompt())),
		abc:    template.Must(template.New("abc").Parse(loader.GetABCConversionPrompt())),
	}
}

// PaletteDirective tells the model which chords to draw from.
func PaletteDirective(palette []string) string {
	if len(palette) == 0 {
		return NoKeyDirective
	}
	return fmt.Sprintf("You MUST primarily use chords from this list: \n- %s\n", strings.Join(palette, ", "))
}

// BuildSystemPrompt renders the instruction for a chord progression turn.
func (b *Builder) BuildSystemPrompt(in SystemInput) (string, error) {
	return render(b.system, map[string]string{
		"PaletteDirective":   in.PaletteDirective,
		"GenreContext":       in.GenreContext,
		"Examples":           in.Examples,
		"FormatInstructions": b.loader.GetFormatInstructions(in.Format),
	})
}

// BuildTipsPrompt asks for theory tips about a generated progression.
func (b *Builder) BuildTipsPrompt(request string, chords []string) (string, error) {
	return render(b.tips, map[string]string{
		"Request":     request,
		"Progression": strings.Join(chords, ProgressionSeparator),
	})
}

// BuildMelodyPrompt renders the melody model prompt, which ends inside the
// ABC header so the model continues with the tune body.
func (b *Builder) BuildMelodyPrompt(chords []string, key string) (string, error) {
	quoted := make([]string, len(chords))
	for i, c := range chords {
		quoted[i] = "'" + c + "'"
	}
	return render(b.melody, map[string]string{
		"Chords": strings.Join(quoted, ", "),
		"Key":    key,
	})
}

// BuildABCConversionPrompt asks a model to convert ABC notation into JSON events.
func (b *Builder) BuildABCConversionPrompt(abc string) (string, error) {
	return render(b.abc, map[string]string{"ABC": abc})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
