package retrieval

import (
	"strings"
	"unicode/utf8"
)

// Default chunking used for the genre knowledge base.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter breaks text into overlapping chunks, preferring paragraph breaks,
// then line breaks, then spaces, and finally single characters.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter returns a splitter with the default separators.
func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{ChunkSize: size, ChunkOverlap: overlap, Separators: defaultSeparators}
}

// Split returns the chunks of text. Every chunk is at most ChunkSize runes
// unless a single unbreakable piece is longer.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var chunks, pending []string
	for _, piece := range splitKeepingNone(text, separator) {
		if runeLen(piece) < s.ChunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, separator)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, separator)...)
	}
	return chunks
}

// merge packs small pieces into chunks, carrying up to ChunkOverlap runes of
// trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	var docs, current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n+joinCost(current, sepLen) > s.ChunkSize && len(current) > 0 {
			if doc := joinPieces(current, separator); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.ChunkOverlap || (total+n+joinCost(current, sepLen) > s.ChunkSize && total > 0) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc := joinPieces(current, separator); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func joinCost(current []string, sepLen int) int {
	if len(current) > 0 {
		return sepLen
	}
	return 0
}

func joinPieces(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}

func splitKeepingNone(text, separator string) []string {
	var out []string
	if separator == "" {
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	for _, piece := range strings.Split(text, separator) {
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
