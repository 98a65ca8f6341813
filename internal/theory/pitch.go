package theory

import "strings"

const pitchClassCount = 12

// PitchClass is a note name reduced to its enharmonic class, C = 0 through B = 11.
type PitchClass int

var sharpNames = [pitchClassCount]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatNames = [pitchClassCount]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// rootSpellings lists every accepted root spelling in chord-library order
var rootSpellings = []string{
	"C", "C#", "Db", "D", "D#", "Eb", "E", "F", "F#",
	"Gb", "G", "G#", "Ab", "A", "A#", "Bb", "B",
}

var spellingToClass = map[string]PitchClass{
	"C": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3,
	"E": 4, "F": 5, "F#": 6, "Gb": 6, "G": 7, "G#": 8,
	"Ab": 8, "A": 9, "A#": 10, "Bb": 10, "B": 11,
}

// ParsePitchClass maps a root spelling such as "F#" or "Bb" to its pitch class.
// The letter is case-insensitive; the accidental must be "#" or "b".
func ParsePitchClass(name string) (PitchClass, bool) {
	pc, ok := spellingToClass[NormalizeSpelling(name)]
	return pc, ok
}

// NormalizeSpelling upper-cases the note letter and lower-cases a flat sign,
// so "bb" and "BB" both become "Bb".
func NormalizeSpelling(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

// IsFlatSpelling reports whether a root is spelled with a flat.
func IsFlatSpelling(name string) bool {
	n := NormalizeSpelling(name)
	return len(n) == 2 && n[1] == 'b'
}

// RootSpellings returns the 17 accepted root spellings.
func RootSpellings() []string {
	out := make([]string, len(rootSpellings))
	copy(out, rootSpellings)
	return out
}

// Sharp returns the sharp spelling of the pitch class.
func (p PitchClass) Sharp() string {
	return sharpNames[p.normalized()]
}

// Flat returns the flat spelling of the pitch class.
func (p PitchClass) Flat() string {
	return flatNames[p.normalized()]
}

// Transpose moves the class by n semitones, wrapping around the octave.
func (p PitchClass) Transpose(n int) PitchClass {
	return PitchClass((int(p) + n%pitchClassCount + pitchClassCount) % pitchClassCount)
}

func (p PitchClass) normalized() int {
	return ((int(p) % pitchClassCount) + pitchClassCount) % pitchClassCount
}
