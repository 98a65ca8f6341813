package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/internal/app"
	"github.com/spf13/cobra"
)

var (
	paletteRoot string
	paletteMode string
)

var paletteCmd = &cobra.Command{
	Use:   "palette [text]",
	Short: "Show the diatonic chords for a key",
	Long: `Resolve a key from free text, or take it from --root and --mode, and list
the diatonic chords the composer is steered towards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		th, err := app.LoadTheory(loadConfig())
		if err != nil {
			return err
		}

		root, mode := paletteRoot, paletteMode
		if len(args) == 1 {
			key, ok := th.Resolver.Resolve(args[0])
			if !ok {
				return fmt.Errorf("no key found in %q", args[0])
			}
			root, mode = key.RootName, key.Mode
		}
		if root == "" || mode == "" {
			return errors.New("give a description or both --root and --mode")
		}

		palette := th.Palette.Generate(root, mode)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(root+" "+mode))
		if len(palette) == 0 {
			fmt.Fprintln(out, dimStyle.Render("(no diatonic chords, unknown root or mode)"))
			return nil
		}
		styled := make([]string, len(palette))
		for i, chord := range palette {
			styled[i] = chordStyle.Render(chord)
		}
		fmt.Fprintln(out, strings.Join(styled, "  "))
		return nil
	},
}

func init() {
	paletteCmd.Flags().StringVar(&paletteRoot, "root", "", "Key root, e.g. A or Bb")
	paletteCmd.Flags().StringVar(&paletteMode, "mode", "", "Mode name, e.g. minor or harmonic_minor")
}
