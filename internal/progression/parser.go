package progression

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// FormatList expects a bracketed list of quoted chord names in free text.
	FormatList = "list"
	// FormatJSON expects a {"chords": [...]} object produced under a JSON schema.
	FormatJSON = "json"
	// FormatDSL expects chord(symbol="...") calls produced under a CFG tool.
	FormatDSL = "dsl"
)

var (
	// ErrNoList means the model output held no parseable chord list.
	ErrNoList = errors.New("no chord list found in response")
	// ErrNotStringList means a list was found but an element is not a string.
	ErrNotStringList = errors.New("chord list contains non-string elements")
	// ErrEmptyList means the list parsed but held no chords.
	ErrEmptyList = errors.New("chord list is empty")
)

// Parser turns raw model output into an ordered list of chord names.
// Implementations do not check names against any vocabulary.
type Parser interface {
	Parse(raw string) ([]string, error)
	Format() string
}

// NewParser returns the parser for an output format.
func NewParser(format string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatList:
		return NewBracketParser(), nil
	case FormatJSON:
		return NewJSONParser(), nil
	case FormatDSL:
		return NewDSLParser()
	default:
		return nil, fmt.Errorf("unknown progression format: %s", format)
	}
}

// stripCodeFences removes a surrounding markdown code block if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanChords(raw []string) ([]string, error) {
	chords := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		chords = append(chords, c)
	}
	if len(chords) == 0 {
		return nil, ErrEmptyList
	}
	return chords, nil
}
