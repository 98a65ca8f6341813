package theory

import (
	"regexp"
	"sort"
	"strings"
)

// modeAliases maps alternative mode names to their canonical entries.
var modeAliases = map[string]string{
	"ionian":  "major",
	"aeolian": "minor",
}

// Key is a resolved tonal center.
type Key struct {
	Root     PitchClass `json:"-"`
	RootName string     `json:"root"`
	Mode     string     `json:"mode"`
}

func (k Key) String() string {
	return k.RootName + " " + k.Mode
}

// Resolver extracts an "in <root> <mode>" phrase from free text.
type Resolver struct {
	table   *ModeTable
	pattern *regexp.Regexp
}

// NewResolver compiles a key pattern for the modes in table plus the fixed aliases.
func NewResolver(table *ModeTable) *Resolver {
	names := table.Names()
	for alias := range modeAliases {
		names = append(names, alias)
	}
	// Longest first so "harmonic_minor" wins over "minor".
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	alternatives := make([]string, 0, len(names))
	for _, name := range names {
		parts := strings.Split(name, "_")
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		alternatives = append(alternatives, strings.Join(parts, `[_\s]+`))
	}

	pattern := regexp.MustCompile(`(?i)\bin\s+([a-g][#b]?)\s+(` + strings.Join(alternatives, "|") + `)\b`)
	return &Resolver{table: table, pattern: pattern}
}

// Resolve returns the first key phrase in text. The boolean is false when no
// phrase matches or the matched mode is not configured.
func (r *Resolver) Resolve(text string) (Key, bool) {
	match := r.pattern.FindStringSubmatch(text)
	if match == nil {
		return Key{}, false
	}

	rootName := NormalizeSpelling(match[1])
	root, ok := ParsePitchClass(rootName)
	if !ok {
		return Key{}, false
	}

	modeName := canonicalModeName(match[2])
	if _, ok := r.table.Mode(modeName); !ok {
		return Key{}, false
	}

	return Key{Root: root, RootName: rootName, Mode: modeName}, true
}

func canonicalModeName(raw string) string {
	name := strings.ToLower(strings.Join(strings.FieldsFunc(raw, func(r rune) bool {
		return r == '_' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}), "_"))
	if canonical, ok := modeAliases[name]; ok {
		return canonical
	}
	return name
}
