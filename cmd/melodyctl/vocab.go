package main

import (
	"encoding/json"
	"fmt"

	"github.com/Conceptual-Machines/melodycomp-api/internal/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var vocabFormat string

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Print the chord vocabulary",
	Long: `Print every chord symbol the renderer knows with its semitone offsets
from the root. The output can be saved and passed back as CHORD_LIBRARY_PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		th, err := app.LoadTheory(loadConfig())
		if err != nil {
			return err
		}
		chords := th.Vocab.Export()

		out := cmd.OutOrStdout()
		switch vocabFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(chords)
		case "yaml":
			enc := yaml.NewEncoder(out)
			defer func() { _ = enc.Close() }()
			return enc.Encode(chords)
		default:
			return fmt.Errorf("unsupported format %q (use json or yaml)", vocabFormat)
		}
	},
}

func init() {
	vocabCmd.Flags().StringVarP(&vocabFormat, "format", "f", "json", "Output format: json or yaml")
}
