package theory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Conceptual-Machines/melodycomp-api/pkg/embedded"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadEmbeddedTable(t *testing.T) *ModeTable {
	t.Helper()
	table, err := ParseModeTable(embedded.ScalesYAML)
	require.NoError(t, err)
	return table
}

func TestParsePitchClass(t *testing.T) {
	tests := []struct {
		name string
		want PitchClass
		ok   bool
	}{
		{"C", 0, true},
		{"c#", 1, true},
		{"Db", 1, true},
		{"bb", 10, true},
		{"BB", 10, true},
		{"B", 11, true},
		{"H", 0, false},
		{"Cb", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePitchClass(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPitchClass_Transpose(t *testing.T) {
	assert.Equal(t, PitchClass(2), PitchClass(11).Transpose(3))
	assert.Equal(t, PitchClass(9), PitchClass(0).Transpose(-3))
	assert.Equal(t, "Bb", PitchClass(10).Flat())
	assert.Equal(t, "A#", PitchClass(10).Sharp())
}

func TestGenerateVocabulary(t *testing.T) {
	vocab := GenerateVocabulary()

	assert.Equal(t, 17*30, vocab.Len())

	tests := []struct {
		chord string
		want  []int
	}{
		{"C", []int{60, 64, 67}},
		{"Am7", []int{69, 72, 76, 79}},
		{"Bbmaj7", []int{70, 74, 77, 81}},
		{"Db", []int{61, 65, 68}},
		{"C#", []int{61, 65, 68}},
		{"G13", []int{67, 71, 74, 77, 81, 88}},
		{"F#m7b5", []int{66, 69, 72, 76}},
		{"Em(add9)", []int{64, 67, 71, 78}},
		{"C6/9", []int{60, 64, 67, 69, 74}},
	}

	for _, tt := range tests {
		t.Run(tt.chord, func(t *testing.T) {
			got, ok := vocab.Lookup(tt.chord)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := vocab.Lookup("Cmaj6")
	assert.False(t, ok)
}

func TestVocabulary_LookupReturnsCopy(t *testing.T) {
	vocab := GenerateVocabulary()
	first, _ := vocab.Lookup("C")
	first[0] = 0

	second, _ := vocab.Lookup("C")
	assert.Equal(t, 60, second[0])
}

func TestNewVocabulary_Invalid(t *testing.T) {
	_, err := NewVocabulary(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewVocabulary(map[string][]int{"X": {200}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chords.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"C": [60, 64, 67], "Am": [69, 72, 76]}`), 0o600))

	vocab, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Am", "C"}, vocab.Names())
}

func TestParseModeTable(t *testing.T) {
	table := loadEmbeddedTable(t)

	for _, name := range []string{"major", "minor", "dorian", "harmonic_minor", "minor_pentatonic"} {
		mode, ok := table.Mode(name)
		require.True(t, ok, name)
		assert.Len(t, mode.Qualities, len(mode.Intervals))
	}
	assert.Equal(t, "C#", table.NoteName(1))
}

func TestParseModeTable_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "not yaml",
			yaml: "notes: [C, D",
		},
		{
			name: "short notes",
			yaml: "notes: [C, D]\nscale_intervals: {major: [0, 2, 4, 5, 7, 9, 11]}\n",
		},
		{
			name: "mismatched qualities",
			yaml: `notes: [C, C#, D, D#, E, F, F#, G, G#, A, A#, B]
scale_intervals:
  major: [0, 2, 4, 5, 7, 9, 11]
chord_types_per_degree:
  major: [[""], [m]]
`,
		},
		{
			name: "missing qualities",
			yaml: `notes: [C, C#, D, D#, E, F, F#, G, G#, A, A#, B]
scale_intervals:
  major: [0, 2, 4, 5, 7, 9, 11]
`,
		},
		{
			name: "descending offsets",
			yaml: `notes: [C, C#, D, D#, E, F, F#, G, G#, A, A#, B]
scale_intervals:
  odd: [0, 4, 2, 7, 9]
chord_types_per_degree:
  odd: [[""], [""], [""], [""], [""]]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModeTable([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadModeTable_MissingFileFallsBack(t *testing.T) {
	table, err := LoadModeTable(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"major", "minor"}, table.Names())
}

func TestResolver_Resolve(t *testing.T) {
	resolver := NewResolver(loadEmbeddedTable(t))

	tests := []struct {
		name     string
		input    string
		wantOK   bool
		wantRoot string
		wantMode string
	}{
		{"plain", "Write a ballad in A minor please", true, "A", "minor"},
		{"lowercase root", "something in a minor", true, "A", "minor"},
		{"flat root", "funk groove in bb dorian", true, "Bb", "dorian"},
		{"sharp root", "In F# MAJOR", true, "F#", "major"},
		{"alias ionian", "in C ionian", true, "C", "major"},
		{"alias aeolian", "in E Aeolian", true, "E", "minor"},
		{"underscore mode", "in D harmonic_minor", true, "D", "harmonic_minor"},
		{"spaced mode", "in D harmonic minor", true, "D", "harmonic_minor"},
		{"first match wins", "in G major then in E minor", true, "G", "major"},
		{"no key", "make it sad", false, "", ""},
		{"moody without key", "something moody", false, "", ""},
		{"unknown mode", "in C bebop", false, "", ""},
		{"embedded word", "within C major", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := resolver.Resolve(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantRoot, key.RootName)
				assert.Equal(t, tt.wantMode, key.Mode)
			}
		})
	}
}

func TestResolver_FallbackTableIgnoresUnconfiguredModes(t *testing.T) {
	resolver := NewResolver(DefaultModeTable())

	_, ok := resolver.Resolve("in D dorian")
	assert.False(t, ok)

	key, ok := resolver.Resolve("in D aeolian")
	require.True(t, ok)
	assert.Equal(t, "D minor", key.String())
}

func TestPaletteGenerator_Generate(t *testing.T) {
	table := DefaultModeTable()
	gen := NewPaletteGenerator(table, GenerateVocabulary())

	palette := gen.Generate("C", "major")
	require.NotEmpty(t, palette)
	assert.Equal(t, "C", palette[0])
	assert.Contains(t, palette, "Dm7")
	assert.Contains(t, palette, "G7")
	assert.Contains(t, palette, "Bm7b5")
	assert.NotContains(t, palette, "C#")

	// tonic qualities come before the second degree
	assert.Less(t, indexOf(palette, "Cmaj7"), indexOf(palette, "Dm"))
}

func TestPaletteGenerator_FlatKeys(t *testing.T) {
	gen := NewPaletteGenerator(DefaultModeTable(), GenerateVocabulary())

	palette := gen.Generate("Bb", "major")
	assert.Contains(t, palette, "Bb")
	assert.Contains(t, palette, "Eb")
	assert.Contains(t, palette, "F7")
	assert.NotContains(t, palette, "A#")
	assert.NotContains(t, palette, "D#")
}

func TestPaletteGenerator_SkipsChordsOutsideVocabulary(t *testing.T) {
	vocab, err := NewVocabulary(map[string][]int{"C": {60, 64, 67}, "G7": {67, 71, 74, 77}})
	require.NoError(t, err)

	gen := NewPaletteGenerator(DefaultModeTable(), vocab)
	assert.Equal(t, []string{"C", "G7"}, gen.Generate("C", "major"))
}

func TestPaletteGenerator_Invalid(t *testing.T) {
	gen := NewPaletteGenerator(DefaultModeTable(), GenerateVocabulary())

	assert.Empty(t, gen.Generate("H", "major"))
	assert.Empty(t, gen.Generate("C", "dorian"))
	assert.Equal(t, gen.Generate("A", "minor"), gen.Generate("A", "aeolian"))
}

func TestPaletteGenerator_PropertiesAcrossKeys(t *testing.T) {
	table := loadEmbeddedTable(t)
	vocab := GenerateVocabulary()
	gen := NewPaletteGenerator(table, vocab)

	for _, root := range RootSpellings() {
		for _, mode := range table.Names() {
			t.Run(root+" "+mode, func(t *testing.T) {
				palette := gen.Generate(root, mode)
				assert.NotEmpty(t, palette)

				seen := make(map[string]bool, len(palette))
				for _, chord := range palette {
					assert.True(t, vocab.Contains(chord), "%s not in vocabulary", chord)
					assert.False(t, seen[chord], "%s listed twice", chord)
					seen[chord] = true
				}

				assert.Equal(t, palette, gen.Generate(root, mode))
			})
		}
	}
}

func TestPaletteGenerator_DropsRepeatedQualities(t *testing.T) {
	table, err := ParseModeTable([]byte(`
notes: [C, C#, D, D#, E, F, F#, G, G#, A, A#, B]
scale_intervals:
  repeats: [0, 2, 4, 7, 9]
chord_types_per_degree:
  repeats:
    - ["", maj7, "", maj7]
    - [m, m]
    - [m]
    - ["", "7", "7"]
    - [m]
`))
	require.NoError(t, err)

	gen := NewPaletteGenerator(table, GenerateVocabulary())
	assert.Equal(t, []string{"C", "Cmaj7", "Dm", "Em", "G", "G7", "Am"}, gen.Generate("C", "repeats"))
}

func indexOf(items []string, want string) int {
	for i, item := range items {
		if item == want {
			return i
		}
	}
	return -1
}
