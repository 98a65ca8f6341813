package llm

const (
	chordProgressionSchemaName = "chord_progression"
	chordToolName              = "chord_progression_dsl"
	maxProgressionLength       = 32
)

// GetChordProgressionSchema returns the JSON schema for a chord progression.
// Names are not enumerated; vocabulary checks happen at render time.
func GetChordProgressionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"chords": map[string]any{
				"type":        "array",
				"description": "Chord names in playing order, e.g. Am7, Dm7, G7",
				"items":       map[string]any{"type": "string"},
				"minItems":    1,
				"maxItems":    maxProgressionLength,
			},
		},
		"required":             []string{"chords"},
		"additionalProperties": false,
	}
}

// ChordProgressionOutputSchema wraps the schema for structured output requests.
func ChordProgressionOutputSchema() *OutputSchema {
	return &OutputSchema{
		Name:        chordProgressionSchemaName,
		Description: "An ordered chord progression",
		Schema:      GetChordProgressionSchema(),
	}
}

// ChordDSLConfig returns the CFG tool configuration for chord DSL output.
func ChordDSLConfig() *CFGConfig {
	return &CFGConfig{
		ToolName:    chordToolName,
		Description: "Emit the chord progression, one chord(symbol=...) call per chord",
		Grammar:     GetChordDSLGrammar(),
		Syntax:      "lark",
	}
}
