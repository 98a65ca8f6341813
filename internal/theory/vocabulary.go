package theory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// middleC is the MIDI pitch the vocabulary voices every root from.
const middleC = 60

type chordFormula struct {
	suffix    string
	intervals []int
}

// chordFormulas is the fixed set of 30 chord qualities, root position.
var chordFormulas = []chordFormula{
	{"", []int{0, 4, 7}},
	{"m", []int{0, 3, 7}},
	{"sus2", []int{0, 2, 7}},
	{"sus4", []int{0, 5, 7}},
	{"dim", []int{0, 3, 6}},
	{"aug", []int{0, 4, 8}},
	{"7", []int{0, 4, 7, 10}},
	{"maj7", []int{0, 4, 7, 11}},
	{"m7", []int{0, 3, 7, 10}},
	{"m(maj7)", []int{0, 3, 7, 11}},
	{"m7b5", []int{0, 3, 6, 10}},
	{"dim7", []int{0, 3, 6, 9}},
	{"7b5", []int{0, 4, 6, 10}},
	{"7#5", []int{0, 4, 8, 10}},
	{"6", []int{0, 4, 7, 9}},
	{"m6", []int{0, 3, 7, 9}},
	{"9", []int{0, 4, 7, 10, 14}},
	{"maj9", []int{0, 4, 7, 11, 14}},
	{"m9", []int{0, 3, 7, 10, 14}},
	{"add9", []int{0, 4, 7, 14}},
	{"m(add9)", []int{0, 3, 7, 14}},
	{"6/9", []int{0, 4, 7, 9, 14}},
	{"7b9", []int{0, 4, 7, 10, 13}},
	{"7#9", []int{0, 4, 7, 10, 15}},
	{"11", []int{0, 4, 7, 10, 14, 17}},
	{"m11", []int{0, 3, 7, 10, 14, 17}},
	{"maj7#11", []int{0, 4, 7, 11, 18}},
	{"13", []int{0, 4, 7, 10, 14, 21}},
	{"maj13", []int{0, 4, 7, 11, 14, 21}},
	{"m13", []int{0, 3, 7, 10, 14, 21}},
}

// ChordVocabulary maps chord names such as "Am7" to absolute MIDI pitches.
// It is read-only after construction and safe for concurrent use.
type ChordVocabulary struct {
	chords map[string][]int
}

// QualitySuffixes returns the supported chord-quality suffixes in formula order.
func QualitySuffixes() []string {
	out := make([]string, 0, len(chordFormulas))
	for _, f := range chordFormulas {
		out = append(out, f.suffix)
	}
	return out
}

// GenerateVocabulary builds the full vocabulary: every root spelling crossed
// with every quality, voiced upward from the root's position in the C4 octave.
func GenerateVocabulary() *ChordVocabulary {
	chords := make(map[string][]int, len(rootSpellings)*len(chordFormulas))
	for _, root := range rootSpellings {
		base := middleC + int(spellingToClass[root])
		for _, f := range chordFormulas {
			pitches := make([]int, len(f.intervals))
			for i, interval := range f.intervals {
				pitches[i] = base + interval
			}
			chords[root+f.suffix] = pitches
		}
	}
	return &ChordVocabulary{chords: chords}
}

// NewVocabulary validates a chord map and wraps it as a vocabulary.
func NewVocabulary(chords map[string][]int) (*ChordVocabulary, error) {
	if len(chords) == 0 {
		return nil, fmt.Errorf("%w: chord vocabulary is empty", ErrInvalidConfig)
	}
	copied := make(map[string][]int, len(chords))
	for name, pitches := range chords {
		if len(pitches) == 0 {
			return nil, fmt.Errorf("%w: chord %q has no pitches", ErrInvalidConfig, name)
		}
		for _, p := range pitches {
			if p < 0 || p > 127 {
				return nil, fmt.Errorf("%w: chord %q pitch %d outside MIDI range", ErrInvalidConfig, name, p)
			}
		}
		copied[name] = append([]int(nil), pitches...)
	}
	return &ChordVocabulary{chords: copied}, nil
}

// LoadVocabulary reads a JSON chord library ({"Am7": [57, 60, 64, 67], ...}).
func LoadVocabulary(path string) (*ChordVocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chord library: %w", err)
	}
	var chords map[string][]int
	if err := json.Unmarshal(data, &chords); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return NewVocabulary(chords)
}

// Lookup returns a copy of the pitches for a chord name.
func (v *ChordVocabulary) Lookup(name string) ([]int, bool) {
	pitches, ok := v.chords[name]
	if !ok {
		return nil, false
	}
	return append([]int(nil), pitches...), true
}

// Contains reports whether the chord name is in the vocabulary.
func (v *ChordVocabulary) Contains(name string) bool {
	_, ok := v.chords[name]
	return ok
}

func (v *ChordVocabulary) Len() int {
	return len(v.chords)
}

// Names returns every chord name, sorted.
func (v *ChordVocabulary) Names() []string {
	names := make([]string, 0, len(v.chords))
	for name := range v.chords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Export returns a deep copy of the underlying map, for serialization.
func (v *ChordVocabulary) Export() map[string][]int {
	out := make(map[string][]int, len(v.chords))
	for name, pitches := range v.chords {
		out[name] = append([]int(nil), pitches...)
	}
	return out
}
