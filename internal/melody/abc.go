package melody

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/Conceptual-Machines/melodycomp-api/internal/theory"
)

const (
	defaultUnitLength = 1.0 / 8
	beatsPerWhole     = 4.0
	beatsPerBar       = 4.0
)

var headerLine = regexp.MustCompile(`^\s*([A-Za-z]):(.*)$`)

// naturalSemitones maps an ABC note letter to its offset above C.
var naturalSemitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// Order in which key signatures add sharps and flats.
var (
	sharpOrder = []byte{'F', 'C', 'G', 'D', 'A', 'E', 'B'}
	flatOrder  = []byte{'B', 'E', 'A', 'D', 'G', 'C', 'F'}
)

// signatureByMajorTonic gives the sharp (+) or flat (-) count of each major key.
var signatureByMajorTonic = map[theory.PitchClass]int{
	0: 0, 7: 1, 2: 2, 9: 3, 4: 4, 11: 5, 6: 6,
	5: -1, 10: -2, 3: -3, 8: -4, 1: -5,
}

// modeShift is the distance from a mode's tonic up to its relative major tonic.
var modeShift = map[string]int{
	"":    0,
	"maj": 0,
	"ion": 0,
	"m":   3,
	"min": 3,
	"aeo": 3,
	"dor": 10,
	"phr": 8,
	"lyd": 7,
	"mix": 5,
	"loc": 1,
}

// ParseABC reads a single-voice ABC tune into notation events measured in
// quarter notes. Chord symbols, annotations, decorations and grace notes are
// ignored; bracketed chords contribute their first note only.
func ParseABC(text string) ([]models.MelodyNotationEvent, error) {
	r := &abcReader{unit: defaultUnitLength, key: map[byte]int{}, bar: map[string]int{}}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '%'); i >= 0 {
			line = line[:i]
		}
		if m := headerLine.FindStringSubmatch(line); m != nil && !looksLikeBody(line) {
			r.header(m[1], strings.TrimSpace(m[2]))
			continue
		}
		if err := r.body(line); err != nil {
			return r.events, err
		}
	}
	if err := scanner.Err(); err != nil {
		return r.events, fmt.Errorf("failed to read ABC: %w", err)
	}
	return r.events, nil
}

// looksLikeBody guards against "A:" style headers matching a tune line that
// happens to begin with a note letter followed by a repeat colon.
func looksLikeBody(line string) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) > 2 && trimmed[1] == ':' && trimmed[2] == '|'
}

type abcReader struct {
	events []models.MelodyNotationEvent
	t      float64
	unit   float64
	key    map[byte]int
	bar    map[string]int

	// tuplet state
	tupletLeft  int
	tupletRatio float64

	// broken rhythm carried to the next note
	carry float64
}

func (r *abcReader) header(field, value string) {
	switch field {
	case "L":
		if f, ok := parseFraction(value); ok && f > 0 {
			r.unit = f
		}
	case "K":
		r.key = keySignature(value)
	}
}

func (r *abcReader) body(line string) error {
	s := line
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"':
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return nil
			}
			i += end + 2
		case c == '!' || c == '+':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil
			}
			i += end + 2
		case c == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return nil
			}
			i += end + 1
		case c == '|' || c == ':':
			r.bar = map[string]int{}
			i++
		case c == '[':
			n, err := r.bracket(s[i:])
			if err != nil {
				return err
			}
			i += n
		case c == '(':
			i += r.tuplet(s[i:])
		case c == '>' || c == '<':
			i += r.brokenRhythm(s[i:])
		case c == 'z' || c == 'x' || c == 'Z':
			n, err := r.rest(s[i:])
			if err != nil {
				return err
			}
			i += n
		case c == '^' || c == '_' || c == '=' || isNoteLetter(c):
			n, err := r.note(s[i:], true)
			if err != nil {
				return err
			}
			i += n
		default:
			// whitespace, ties, slurs, line continuations, decorations like ~ and .
			i++
		}
	}
	return nil
}

// bracket handles inline fields [K:G], repeat endings [1 and chords [CEG].
func (r *abcReader) bracket(s string) (int, error) {
	end := strings.IndexByte(s, ']')
	if len(s) > 2 && s[2] == ':' {
		if end < 0 {
			return len(s), nil
		}
		r.header(string(s[1]), strings.TrimSpace(s[3:end]))
		return end + 1, nil
	}
	if len(s) > 1 && s[1] >= '0' && s[1] <= '9' {
		return 2, nil
	}
	if end < 0 {
		return 1, nil
	}

	inner := s[1:end]
	emitted := false
	for j := 0; j < len(inner); {
		c := inner[j]
		if c == '^' || c == '_' || c == '=' || isNoteLetter(c) {
			n, err := r.note(inner[j:], !emitted)
			if err != nil {
				return 0, err
			}
			emitted = true
			j += n
			continue
		}
		j++
	}
	// a length written after the closing bracket applies to the whole chord
	n, mult := readLength(s[end+1:])
	if emitted && n > 0 && len(r.events) > 0 {
		last := &r.events[len(r.events)-1]
		r.t -= last.Duration
		last.Duration *= mult
		r.t += last.Duration
	}
	return end + 1 + n, nil
}

func (r *abcReader) tuplet(s string) int {
	if len(s) < 2 || s[1] < '2' || s[1] > '9' {
		return 1
	}
	p := int(s[1] - '0')
	q := 2
	switch p {
	case 2, 4, 6, 8:
		q = 3
	}
	r.tupletLeft = p
	r.tupletRatio = float64(q) / float64(p)
	return 2
}

func (r *abcReader) brokenRhythm(s string) int {
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	if len(r.events) == 0 {
		return n
	}
	shorten := 1.0
	for k := 0; k < n; k++ {
		shorten /= 2
	}
	prevFactor, nextFactor := 2-shorten, shorten
	if s[0] == '<' {
		prevFactor, nextFactor = shorten, 2-shorten
	}

	last := &r.events[len(r.events)-1]
	r.t -= last.Duration
	last.Duration *= prevFactor
	r.t += last.Duration
	r.carry = nextFactor
	return n
}

func (r *abcReader) rest(s string) (int, error) {
	n, mult := readLength(s[1:])
	dur := r.unit * mult * beatsPerWhole
	if s[0] == 'Z' {
		dur = mult * beatsPerBar
	}
	dur = r.applyModifiers(dur)
	r.events = append(r.events, models.MelodyNotationEvent{Pitch: restToken, StartTime: r.t, Duration: dur})
	r.t += dur
	return 1 + n, nil
}

// note reads accidentals, letter, octave marks and length. When emit is false
// the note is consumed without producing an event.
func (r *abcReader) note(s string, emit bool) (int, error) {
	i := 0
	accidental, explicit := 0, false
	for i < len(s) && (s[i] == '^' || s[i] == '_' || s[i] == '=') {
		explicit = true
		switch s[i] {
		case '^':
			accidental++
		case '_':
			accidental--
		case '=':
			accidental = 0
		}
		i++
	}
	if i >= len(s) || !isNoteLetter(s[i]) {
		return 0, fmt.Errorf("accidental without note at %q", s)
	}

	letter := s[i]
	upper := letter &^ 0x20
	octave := 4
	if letter >= 'a' && letter <= 'g' {
		octave = 5
	}
	i++
	for i < len(s) && (s[i] == '\'' || s[i] == ',') {
		if s[i] == '\'' {
			octave++
		} else {
			octave--
		}
		i++
	}

	barKey := fmt.Sprintf("%c%d", upper, octave)
	switch {
	case explicit:
		r.bar[barKey] = accidental
	case hasKey(r.bar, barKey):
		accidental = r.bar[barKey]
	default:
		accidental = r.key[upper]
	}

	n, mult := readLength(s[i:])
	i += n
	if !emit {
		return i, nil
	}

	dur := r.applyModifiers(r.unit * mult * beatsPerWhole)
	pitch := 12*(octave+1) + naturalSemitones[upper] + accidental
	if pitch < 0 || pitch > 127 {
		return 0, fmt.Errorf("note %q outside MIDI range", s[:i])
	}
	pc := theory.PitchClass(pitch % 12)
	symbol := pc.Sharp() + strconv.Itoa(pitch/12-1)

	r.events = append(r.events, models.MelodyNotationEvent{Pitch: symbol, StartTime: r.t, Duration: dur})
	r.t += dur
	return i, nil
}

func (r *abcReader) applyModifiers(dur float64) float64 {
	if r.carry != 0 {
		dur *= r.carry
		r.carry = 0
	}
	if r.tupletLeft > 0 {
		dur *= r.tupletRatio
		r.tupletLeft--
	}
	return dur
}

// readLength parses an ABC length suffix: "", "2", "/", "/2", "3/2", "//".
func readLength(s string) (int, float64) {
	i := 0
	num := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		num = num*10 + int(s[i]-'0')
		i++
	}
	if num == 0 {
		num = 1
	}
	mult := float64(num)

	for i < len(s) && s[i] == '/' {
		i++
		den := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			den = den*10 + int(s[i]-'0')
			i++
		}
		if den == 0 {
			den = 2
		}
		mult /= float64(den)
	}
	return i, mult
}

func parseFraction(s string) (float64, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	num, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false
	}
	if len(parts) == 1 {
		return float64(num), true
	}
	den, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// keySignature returns the per-letter accidentals implied by a K: field.
func keySignature(value string) map[byte]int {
	sig := map[byte]int{}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return sig
	}
	spec := fields[0]
	if strings.EqualFold(spec, "none") {
		return sig
	}

	rootLen := 1
	if len(spec) > 1 && (spec[1] == '#' || spec[1] == 'b') {
		rootLen = 2
	}
	root, ok := theory.ParsePitchClass(spec[:rootLen])
	if !ok {
		return sig
	}

	modeText := strings.ToLower(spec[rootLen:])
	if modeText == "" && len(fields) > 1 {
		modeText = strings.ToLower(fields[1])
	}
	if len(modeText) > 3 {
		modeText = modeText[:3]
	}
	shift, ok := modeShift[modeText]
	if !ok {
		shift = 0
	}

	count := signatureByMajorTonic[root.Transpose(shift)]
	switch {
	case count > 0:
		for _, l := range sharpOrder[:count] {
			sig[l] = 1
		}
	case count < 0:
		for _, l := range flatOrder[:-count] {
			sig[l] = -1
		}
	}
	return sig
}

func isNoteLetter(c byte) bool {
	return (c >= 'A' && c <= 'G') || (c >= 'a' && c <= 'g')
}

func hasKey(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}
