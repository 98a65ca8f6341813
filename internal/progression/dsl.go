package progression

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/Conceptual-Machines/grammar-school-go/gs"
	"github.com/Conceptual-Machines/melodycomp-api/internal/llm"
)

var separatorSpace = regexp.MustCompile(`\s*;\s*`)

// DSLParser executes chord(symbol="...") programs emitted through a CFG tool.
// The engine collects into shared state, so Parse calls are serialized.
type DSLParser struct {
	mu     sync.Mutex
	engine *gs.Engine
	dsl    *ProgressionDSL
}

// ProgressionDSL implements the DSL methods invoked by the engine.
type ProgressionDSL struct {
	chords []string
}

// NewDSLParser creates a parser backed by the chord progression grammar.
func NewDSLParser() (*DSLParser, error) {
	dsl := &ProgressionDSL{}

	engine, err := gs.NewEngine(llm.GetChordDSLGrammar(), dsl, gs.NewLarkParser())
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &DSLParser{engine: engine, dsl: dsl}, nil
}

func (p *DSLParser) Format() string {
	return FormatDSL
}

// Parse runs the program and returns the chords in call order.
func (p *DSLParser) Parse(raw string) ([]string, error) {
	code := strings.TrimSpace(stripCodeFences(raw))
	if code == "" {
		return nil, ErrNoList
	}
	code = strings.TrimSuffix(separatorSpace.ReplaceAllString(code, ";"), ";")

	p.mu.Lock()
	defer p.mu.Unlock()

	p.dsl.chords = p.dsl.chords[:0]
	if err := p.engine.Execute(context.Background(), code); err != nil {
		return nil, fmt.Errorf("%w: failed to execute DSL: %v", ErrNoList, err)
	}

	chords := append([]string(nil), p.dsl.chords...)
	log.Printf("✅ Progression DSL Parser: translated %d chords", len(chords))
	return cleanChords(chords)
}

// Chord handles chord() calls.
// Example: chord(symbol="Am7")
func (d *ProgressionDSL) Chord(args gs.Args) error {
	symbol := ""
	if symbolValue, ok := args["symbol"]; ok && symbolValue.Kind == gs.ValueString {
		symbol = symbolValue.Str
	} else {
		for _, v := range args {
			if v.Kind == gs.ValueString {
				symbol = v.Str
				break
			}
		}
	}

	symbol = strings.Trim(symbol, "\"")
	if symbol == "" {
		return fmt.Errorf("chord: missing symbol")
	}

	d.chords = append(d.chords, symbol)
	return nil
}
