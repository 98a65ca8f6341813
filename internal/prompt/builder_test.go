package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaletteDirective(t *testing.T) {
	assert.Equal(t, NoKeyDirective, PaletteDirective(nil))
	assert.Equal(t,
		"You MUST primarily use chords from this list: \n- Am, C, G7\n",
		PaletteDirective([]string{"Am", "C", "G7"}))
}

func TestBuildSystemPrompt(t *testing.T) {
	builder := NewPromptBuilder()

	tests := []struct {
		name        string
		input       SystemInput
		contains    []string
		notContains []string
	}{
		{
			name: "palette and context",
			input: SystemInput{
				PaletteDirective: PaletteDirective([]string{"Am", "Dm"}),
				GenreContext:     "Jazz uses ii-V-I.",
				Format:           "list",
			},
			contains: []string{
				"expert music theorist",
				"## AVAILABLE CHORDS (PALETTE)\nYou MUST primarily use chords from this list: \n- Am, Dm",
				"## CONTEXT ON GENRE\nJazz uses ii-V-I.",
				"bracketed list",
			},
			notContains: []string{"HIGH-QUALITY EXAMPLES"},
		},
		{
			name: "examples appended",
			input: SystemInput{
				PaletteDirective: NoKeyDirective,
				GenreContext:     "No genre context available.",
				Examples:         "### HIGH-QUALITY EXAMPLES\nExample 1",
				Format:           "json",
			},
			contains: []string{NoKeyDirective, "### HIGH-QUALITY EXAMPLES", `{"chords"`},
		},
		{
			name:     "dsl format",
			input:    SystemInput{PaletteDirective: NoKeyDirective, Format: "dsl"},
			contains: []string{`chord(symbol="Am7")`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := builder.BuildSystemPrompt(tt.input)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, prompt, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, prompt, unwanted)
			}
		})
	}
}

func TestBuildTipsPrompt(t *testing.T) {
	prompt, err := NewPromptBuilder().BuildTipsPrompt("sad song in A minor", []string{"Am", "F", "C", "G"})
	require.NoError(t, err)

	assert.Contains(t, prompt, `A user requested the following: "sad song in A minor".`)
	assert.Contains(t, prompt, "Am -> F -> C -> G")
	assert.Contains(t, prompt, "markdown")
}

func TestBuildMelodyPrompt(t *testing.T) {
	prompt, err := NewPromptBuilder().BuildMelodyPrompt([]string{"C", "G"}, "C")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "Human: Develop a simple, single-line musical piece"))
	assert.Contains(t, prompt, "'C', 'G' in the key of C </s> Assistant: M:4/4\nL:1/8\nK:C\n")
}

func TestBuildABCConversionPrompt(t *testing.T) {
	prompt, err := NewPromptBuilder().BuildABCConversionPrompt(`| "C" C2 G2 |`)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(prompt, `| "C" C2 G2 |`))
	assert.Contains(t, prompt, "quarter notes")
}
