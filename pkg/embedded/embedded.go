package embedded

import (
	"embed"
)

// Prompt templates
//
//go:embed data/prompts/system_prompt.txt
var SystemPromptTxt []byte

//go:embed data/prompts/tips_prompt.txt
var TipsPromptTxt []byte

//go:embed data/prompts/melody_prompt.txt
var MelodyPromptTxt []byte

//go:embed data/prompts/abc_conversion_prompt.txt
var ABCConversionPromptTxt []byte

//go:embed data/prompts/format_list.txt
var FormatListTxt []byte

//go:embed data/prompts/format_json.txt
var FormatJSONTxt []byte

//go:embed data/prompts/format_dsl.txt
var FormatDSLTxt []byte

// Default mode configuration
//
//go:embed data/theory/scales.yaml
var ScalesYAML []byte

// Default retrieval corpus
//
//go:embed data/knowledge/examples.json
var ExamplesJSON []byte

//go:embed data/knowledge/genres/*.md
var Genres embed.FS
