package prompt

import (
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/pkg/embedded"
)

type Loader struct{}

func NewPromptLoader() *Loader {
	return &Loader{}
}

// GetSystemPrompt loads the chord progression system prompt template
func (l *Loader) GetSystemPrompt() string {
	return strings.TrimSpace(string(embedded.SystemPromptTxt))
}

// GetTipsPrompt loads the theory tips prompt template
func (l *Loader) GetTipsPrompt() string {
	return strings.TrimSpace(string(embedded.TipsPromptTxt))
}

// GetMelodyPrompt loads the melody model prompt template.
// Only leading space is trimmed; the trailing header newline is part of the prompt.
func (l *Loader) GetMelodyPrompt() string {
	return strings.TrimLeft(string(embedded.MelodyPromptTxt), " \t\r\n")
}

// GetABCConversionPrompt loads the ABC to JSON conversion prompt template
func (l *Loader) GetABCConversionPrompt() string {
	return strings.TrimSpace(string(embedded.ABCConversionPromptTxt))
}

// GetFormatInstructions loads the output instructions for a progression format
func (l *Loader) GetFormatInstructions(format string) string {
	switch format {
	case "json":
		return strings.TrimSpace(string(embedded.FormatJSONTxt))
	case "dsl":
		return strings.TrimSpace(string(embedded.FormatDSLTxt))
	default:
		return strings.TrimSpace(string(embedded.FormatListTxt))
	}
}
