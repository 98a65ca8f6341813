package theory

import "log"

// PaletteGenerator derives diatonic chord palettes from the shared tables.
type PaletteGenerator struct {
	table *ModeTable
	vocab *ChordVocabulary
}

// NewPaletteGenerator creates a generator over a mode table and vocabulary.
func NewPaletteGenerator(table *ModeTable, vocab *ChordVocabulary) *PaletteGenerator {
	return &PaletteGenerator{table: table, vocab: vocab}
}

// Generate returns every chord diatonic to root/mode that exists in the
// vocabulary, ordered by degree then by the configured quality order.
// Flat roots spell their degrees with flats; everything else uses the
// configured note spellings. An unknown root or mode yields an empty palette.
func (g *PaletteGenerator) Generate(root, mode string) []string {
	pc, ok := ParsePitchClass(root)
	if !ok {
		return []string{}
	}
	m, ok := g.table.Mode(canonicalModeName(mode))
	if !ok {
		return []string{}
	}
	if len(m.Intervals) != len(m.Qualities) {
		log.Printf("⚠️  mode %q has mismatched degree and quality counts, skipping palette", m.Name)
		return []string{}
	}

	preferFlats := IsFlatSpelling(root)
	palette := make([]string, 0, len(m.Intervals)*4)
	seen := make(map[string]bool)
	for degree, offset := range m.Intervals {
		degreeClass := pc.Transpose(offset)
		name := g.table.NoteName(degreeClass)
		if preferFlats {
			name = degreeClass.Flat()
		}
		for _, quality := range m.Qualities[degree] {
			chord := name + quality
			if seen[chord] || !g.vocab.Contains(chord) {
				continue
			}
			seen[chord] = true
			palette = append(palette, chord)
		}
	}
	return palette
}

// ForKey is Generate for an already-resolved key.
func (g *PaletteGenerator) ForKey(k Key) []string {
	return g.Generate(k.RootName, k.Mode)
}
