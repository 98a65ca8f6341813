package theory

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	minModeDegrees = 5
	maxModeDegrees = 7
)

// ErrInvalidConfig is returned when a mode table is structurally unusable.
var ErrInvalidConfig = errors.New("invalid scales configuration")

// Mode is a named scale template: ascending degree offsets from the root and,
// for each degree, the chord-quality suffixes it supports.
type Mode struct {
	Name      string     `json:"name" yaml:"name"`
	Intervals []int      `json:"intervals" yaml:"intervals"`
	Qualities [][]string `json:"qualities" yaml:"qualities"`
}

// ModeTable is the read-only mode configuration shared by every session.
type ModeTable struct {
	notes [pitchClassCount]string
	modes map[string]Mode
	names []string
}

// scalesFile mirrors the on-disk YAML layout
type scalesFile struct {
	Notes               []string              `yaml:"notes"`
	ScaleIntervals      map[string][]int      `yaml:"scale_intervals"`
	ChordTypesPerDegree map[string][][]string `yaml:"chord_types_per_degree"`
}

// DefaultModeTable is the built-in fallback used when no scales file exists.
// It covers major and minor, the two modes the key aliases resolve to.
func DefaultModeTable() *ModeTable {
	table, err := newModeTable(scalesFile{
		Notes: sharpNames[:],
		ScaleIntervals: map[string][]int{
			"major": {0, 2, 4, 5, 7, 9, 11},
			"minor": {0, 2, 3, 5, 7, 8, 10},
		},
		ChordTypesPerDegree: map[string][][]string{
			"major": {{"", "maj7", "6", "add9", "maj9"}, {"m", "m7", "m9"}, {"m", "m7"}, {"", "maj7", "6", "maj7#11"}, {"", "7", "9", "13"}, {"m", "m7", "m9", "m11"}, {"dim", "m7b5"}},
			"minor": {{"m", "m7", "m9", "m11"}, {"dim", "m7b5"}, {"", "maj7", "6"}, {"m", "m7", "m9"}, {"m", "m7"}, {"", "maj7", "6", "maj7#11"}, {"", "7", "9"}},
		},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// ParseModeTable decodes and validates a YAML scales document.
func ParseModeTable(data []byte) (*ModeTable, error) {
	var file scalesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return newModeTable(file)
}

// LoadModeTable reads a scales file from disk. A missing file falls back to
// DefaultModeTable; a file that exists but does not validate is an error.
func LoadModeTable(path string) (*ModeTable, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️  %s not found, using fallback scale configuration (major, minor)", path)
		return DefaultModeTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scales config: %w", err)
	}
	return ParseModeTable(data)
}

func newModeTable(file scalesFile) (*ModeTable, error) {
	if len(file.Notes) != pitchClassCount {
		return nil, fmt.Errorf("%w: notes must list %d pitch classes, got %d", ErrInvalidConfig, pitchClassCount, len(file.Notes))
	}
	if len(file.ScaleIntervals) == 0 {
		return nil, fmt.Errorf("%w: no scale_intervals defined", ErrInvalidConfig)
	}

	table := &ModeTable{modes: make(map[string]Mode, len(file.ScaleIntervals))}
	for i, note := range file.Notes {
		pc, ok := ParsePitchClass(note)
		if !ok || int(pc) != i {
			return nil, fmt.Errorf("%w: notes[%d] = %q is not pitch class %d", ErrInvalidConfig, i, note, i)
		}
		table.notes[i] = NormalizeSpelling(note)
	}

	for name, intervals := range file.ScaleIntervals {
		qualities, ok := file.ChordTypesPerDegree[name]
		if !ok {
			return nil, fmt.Errorf("%w: mode %q has no chord_types_per_degree", ErrInvalidConfig, name)
		}
		mode := Mode{Name: name, Intervals: intervals, Qualities: qualities}
		if err := mode.validate(); err != nil {
			return nil, err
		}
		table.modes[name] = mode
		table.names = append(table.names, name)
	}
	sort.Strings(table.names)

	return table, nil
}

func (m Mode) validate() error {
	if len(m.Intervals) < minModeDegrees || len(m.Intervals) > maxModeDegrees {
		return fmt.Errorf("%w: mode %q has %d degrees, want %d-%d", ErrInvalidConfig, m.Name, len(m.Intervals), minModeDegrees, maxModeDegrees)
	}
	if len(m.Qualities) != len(m.Intervals) {
		return fmt.Errorf("%w: mode %q has %d quality sets for %d degrees", ErrInvalidConfig, m.Name, len(m.Qualities), len(m.Intervals))
	}
	for i, offset := range m.Intervals {
		if offset < 0 || offset >= pitchClassCount {
			return fmt.Errorf("%w: mode %q degree %d offset %d out of range", ErrInvalidConfig, m.Name, i, offset)
		}
		if i > 0 && offset <= m.Intervals[i-1] {
			return fmt.Errorf("%w: mode %q offsets must ascend", ErrInvalidConfig, m.Name)
		}
	}
	return nil
}

// Mode looks up a mode by its canonical name.
func (t *ModeTable) Mode(name string) (Mode, bool) {
	m, ok := t.modes[name]
	return m, ok
}

// Names returns the configured mode names in sorted order.
func (t *ModeTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// NoteName returns the configured spelling for a pitch class.
func (t *ModeTable) NoteName(pc PitchClass) string {
	return t.notes[pc.normalized()]
}
