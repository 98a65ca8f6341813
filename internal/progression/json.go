package progression

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSONParser reads the {"chords": [...]} object requested through a
// structured-output schema. A bare list literal is accepted as a fallback.
type JSONParser struct {
	fallback *BracketParser
}

func NewJSONParser() *JSONParser {
	return &JSONParser{fallback: NewBracketParser()}
}

func (p *JSONParser) Format() string {
	return FormatJSON
}

func (p *JSONParser) Parse(raw string) ([]string, error) {
	text := stripCodeFences(raw)

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return p.fallback.Parse(text)
	}

	var payload struct {
		Chords []json.RawMessage `json:"chords"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoList, err)
	}
	if payload.Chords == nil {
		return nil, fmt.Errorf("%w: missing chords field", ErrNoList)
	}

	items := make([]string, 0, len(payload.Chords))
	for _, rawChord := range payload.Chords {
		var chord string
		if err := json.Unmarshal(rawChord, &chord); err != nil {
			return nil, ErrNotStringList
		}
		items = append(items, chord)
	}
	return cleanChords(items)
}
