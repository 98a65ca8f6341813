package melody

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
)

const (
	defaultOctave   = 4
	defaultVelocity = 100
	restToken       = "rest"
)

var letterOffsets = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

var trailingOctave = regexp.MustCompile(`(\d+)$`)

// Decode converts notation events into note events. Rests are dropped without
// a diagnostic; malformed events are skipped with one.
func Decode(events []models.MelodyNotationEvent) ([]models.NoteEvent, []models.Diagnostic) {
	notes := make([]models.NoteEvent, 0, len(events))
	var diagnostics []models.Diagnostic

	for i, ev := range events {
		token := strings.TrimSpace(ev.Pitch)
		if strings.EqualFold(token, restToken) {
			continue
		}

		pitch, err := PitchFromSymbol(token)
		if err == nil {
			err = validateTiming(ev)
		}
		if err != nil {
			diagnostics = append(diagnostics, models.Diagnostic{Index: i, Input: ev.Pitch, Reason: err.Error()})
			continue
		}

		notes = append(notes, models.NoteEvent{
			Pitch:     pitch,
			Velocity:  defaultVelocity,
			StartTime: ev.StartTime,
			EndTime:   ev.StartTime + ev.Duration,
		})
	}
	return notes, diagnostics
}

// PitchFromSymbol resolves scientific pitch notation to a MIDI number.
// The octave defaults to 4 when the symbol has no trailing digits.
func PitchFromSymbol(symbol string) (int, error) {
	if symbol == "" {
		return 0, fmt.Errorf("empty pitch")
	}
	letter, ok := letterOffsets[strings.ToUpper(symbol[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("unknown note letter in %q", symbol)
	}

	accidental := 0
	if strings.Contains(symbol, "#") {
		accidental = 1
	} else if strings.Contains(symbol, "b") {
		accidental = -1
	}

	octave := defaultOctave
	if m := trailingOctave.FindStringSubmatch(symbol); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("bad octave in %q", symbol)
		}
		octave = n
	}

	pitch := 12*(octave+1) + letter + accidental
	if pitch < 0 || pitch > 127 {
		return 0, fmt.Errorf("pitch %d outside MIDI range", pitch)
	}
	return pitch, nil
}

func validateTiming(ev models.MelodyNotationEvent) error {
	if math.IsNaN(ev.StartTime) || math.IsInf(ev.StartTime, 0) || ev.StartTime < 0 {
		return fmt.Errorf("invalid start_time %v", ev.StartTime)
	}
	if math.IsNaN(ev.Duration) || math.IsInf(ev.Duration, 0) || ev.Duration <= 0 {
		return fmt.Errorf("invalid duration %v", ev.Duration)
	}
	return nil
}
