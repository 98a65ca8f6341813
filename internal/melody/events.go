package melody

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
)

// ParseEvents reads a JSON array of notation events as produced by a model.
// Numeric fields may arrive as numbers or numeric strings; an element whose
// fields cannot be coerced is skipped with a diagnostic. Only a payload that is
// not an array at all is an error.
func ParseEvents(data []byte) ([]models.MelodyNotationEvent, []models.Diagnostic, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Events []map[string]any `json:"events"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil || wrapped.Events == nil {
			return nil, nil, fmt.Errorf("melody events are not a JSON array: %w", err)
		}
		raw = wrapped.Events
	}

	events := make([]models.MelodyNotationEvent, 0, len(raw))
	var diagnostics []models.Diagnostic
	for i, item := range raw {
		ev, err := coerceEvent(item)
		if err != nil {
			diagnostics = append(diagnostics, models.Diagnostic{Index: i, Input: fmt.Sprint(item["pitch"]), Reason: err.Error()})
			continue
		}
		events = append(events, ev)
	}
	return events, diagnostics, nil
}

func coerceEvent(item map[string]any) (models.MelodyNotationEvent, error) {
	pitch, ok := item["pitch"].(string)
	if !ok {
		return models.MelodyNotationEvent{}, fmt.Errorf("pitch is not a string")
	}
	start, err := coerceNumber(item["start_time"])
	if err != nil {
		return models.MelodyNotationEvent{}, fmt.Errorf("start_time: %w", err)
	}
	duration, err := coerceNumber(item["duration"])
	if err != nil {
		return models.MelodyNotationEvent{}, fmt.Errorf("duration: %w", err)
	}
	return models.MelodyNotationEvent{Pitch: pitch, StartTime: start, Duration: duration}, nil
}

func coerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("missing")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
