package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBracketParser_Parse(t *testing.T) {
	parser := NewBracketParser()

	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr error
	}{
		{
			name: "bare list",
			raw:  "['Am7', 'Dm7', 'G7', 'Cmaj7']",
			want: []string{"Am7", "Dm7", "G7", "Cmaj7"},
		},
		{
			name: "surrounding prose",
			raw:  "Here is your progression:\n['C', 'G', 'Am', 'F']\nEnjoy!",
			want: []string{"C", "G", "Am", "F"},
		},
		{
			name: "double quotes and trailing comma",
			raw:  `["Em", "C", "G", "D",]`,
			want: []string{"Em", "C", "G", "D"},
		},
		{
			name: "multiline list",
			raw:  "[\n  'Dm9',\n  'G13',\n  'Cmaj9'\n]",
			want: []string{"Dm9", "G13", "Cmaj9"},
		},
		{
			name: "later brackets in prose",
			raw:  "['C', 'F'] and a note [see above]",
			want: []string{"C", "F"},
		},
		{
			name: "slash chord inside quotes",
			raw:  "['C6/9', 'Fmaj7']",
			want: []string{"C6/9", "Fmaj7"},
		},
		{
			name: "chords not checked against vocabulary",
			raw:  "['Xyz', 'C']",
			want: []string{"Xyz", "C"},
		},
		{
			name:    "no brackets",
			raw:     "I think C, G, Am and F would work",
			wantErr: ErrNoList,
		},
		{
			name:    "non string element",
			raw:     "['C', 7]",
			wantErr: ErrNotStringList,
		},
		{
			name:    "empty list",
			raw:     "[]",
			wantErr: ErrEmptyList,
		},
		{
			name:    "unterminated string",
			raw:     "['C', 'G]",
			wantErr: ErrNoList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBracketParser_NestedListFallsBackToInnerSpan(t *testing.T) {
	got, err := NewBracketParser().Parse("[['Am', 'F'], ['C', 'G']]")
	require.NoError(t, err)
	assert.Equal(t, []string{"Am", "F"}, got)
}

func TestJSONParser_Parse(t *testing.T) {
	parser := NewJSONParser()

	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr error
	}{
		{
			name: "schema object",
			raw:  `{"chords": ["Am", "F", "C", "G"]}`,
			want: []string{"Am", "F", "C", "G"},
		},
		{
			name: "fenced object",
			raw:  "```json\n{\"chords\": [\"Dm7\", \"G7\"]}\n```",
			want: []string{"Dm7", "G7"},
		},
		{
			name: "bare list fallback",
			raw:  `["E", "A"]`,
			want: []string{"E", "A"},
		},
		{
			name:    "missing field",
			raw:     `{"progression": ["C"]}`,
			wantErr: ErrNoList,
		},
		{
			name:    "number element",
			raw:     `{"chords": ["C", 1]}`,
			wantErr: ErrNotStringList,
		},
		{
			name:    "empty chords",
			raw:     `{"chords": []}`,
			wantErr: ErrEmptyList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDSLParser_Parse(t *testing.T) {
	parser, err := NewDSLParser()
	require.NoError(t, err)

	got, err := parser.Parse(`chord(symbol="Am7"); chord(symbol="Dm7"); chord(symbol="G7")`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Am7", "Dm7", "G7"}, got)

	// state does not leak between calls
	got, err = parser.Parse(`chord(symbol="C")`)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, got)

	_, err = parser.Parse("")
	assert.ErrorIs(t, err, ErrNoList)
}

func TestNewParser(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"", FormatList},
		{"list", FormatList},
		{"JSON", FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			p, err := NewParser(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Format())
		})
	}

	_, err := NewParser("yaml")
	assert.Error(t, err)
}
