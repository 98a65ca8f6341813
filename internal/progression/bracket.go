package progression

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// BracketParser extracts a list literal such as ['Am7', "Dm7", 'G7'] from
// free text. The span from the first '[' to the last ']' is tried first;
// if that does not parse, each balanced span is tried left to right.
type BracketParser struct{}

func NewBracketParser() *BracketParser {
	return &BracketParser{}
}

func (p *BracketParser) Format() string {
	return FormatList
}

// Parse returns the chord names in the first list literal found in raw.
func (p *BracketParser) Parse(raw string) ([]string, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end <= start {
		return nil, ErrNoList
	}

	items, err := parseStringList(raw[start : end+1])
	if err == nil {
		return cleanChords(items)
	}
	firstErr := err

	for i := start; i < len(raw); i++ {
		if raw[i] != '[' {
			continue
		}
		j := matchingBracket(raw, i)
		if j < 0 {
			continue
		}
		if items, err := parseStringList(raw[i : j+1]); err == nil {
			return cleanChords(items)
		}
	}

	if errors.Is(firstErr, ErrNotStringList) {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: %v", ErrNoList, firstErr)
}

// matchingBracket finds the ']' closing the '[' at open, skipping quoted text.
func matchingBracket(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseStringList parses exactly one list literal of quoted strings.
func parseStringList(s string) ([]string, error) {
	sc := &listScanner{src: s}
	sc.skipSpace()
	if !sc.consume('[') {
		return nil, errors.New("expected '['")
	}

	items := []string{}
	sc.skipSpace()
	if sc.consume(']') {
		return items, sc.expectEnd()
	}

	for {
		sc.skipSpace()
		if sc.consume(']') {
			// trailing comma
			return items, sc.expectEnd()
		}
		c, ok := sc.peek()
		if !ok {
			return nil, errors.New("unterminated list")
		}
		if c != '\'' && c != '"' {
			return nil, ErrNotStringList
		}
		item, err := sc.quoted()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		sc.skipSpace()
		if sc.consume(',') {
			continue
		}
		if sc.consume(']') {
			return items, sc.expectEnd()
		}
		return nil, fmt.Errorf("unexpected character at offset %d", sc.pos)
	}
}

type listScanner struct {
	src string
	pos int
}

func (s *listScanner) peek() (byte, bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos], true
}

func (s *listScanner) consume(c byte) bool {
	if got, ok := s.peek(); ok && got == c {
		s.pos++
		return true
	}
	return false
}

func (s *listScanner) skipSpace() {
	for s.pos < len(s.src) && unicode.IsSpace(rune(s.src[s.pos])) {
		s.pos++
	}
}

func (s *listScanner) expectEnd() error {
	s.skipSpace()
	if s.pos != len(s.src) {
		return fmt.Errorf("trailing content at offset %d", s.pos)
	}
	return nil
}

func (s *listScanner) quoted() (string, error) {
	quote := s.src[s.pos]
	s.pos++
	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		s.pos++
		switch {
		case c == '\\' && s.pos < len(s.src):
			b.WriteByte(s.src[s.pos])
			s.pos++
		case c == quote:
			return b.String(), nil
		case c == '\n':
			return "", errors.New("newline in string literal")
		default:
			b.WriteByte(c)
		}
	}
	return "", errors.New("unterminated string literal")
}
