package llm

// GetChordDSLGrammar returns the Lark grammar for chord progression output.
// Each call names one chord; calls are joined with semicolons.
func GetChordDSLGrammar() string {
	return `
// Progression DSL Grammar
// SYNTAX:
//   chord(symbol="Am7"); chord(symbol="Dm7"); chord(symbol="G7")

// ---------- Start rule ----------
start: chord_call (";" chord_call)*

// ---------- Chord ----------
chord_call: "chord" "(" chord_params ")"

chord_params: chord_named_params

chord_named_params: chord_named_param ("," SP chord_named_param)*
chord_named_param: "symbol" "=" STRING
                 | "duration" "=" NUMBER

// ---------- Terminals ----------
SP: " "+
STRING: /"[^"]*"/
NUMBER: /-?\d+(\.\d+)?/
`
}
