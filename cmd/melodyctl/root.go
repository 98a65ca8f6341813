package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Conceptual-Machines/melodycomp-api/internal/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	envFile string
	version = "dev"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	chordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

var rootCmd = &cobra.Command{
	Use:   "melodyctl",
	Short: "Chord progression composer tools",
	Long: `melodyctl works with the same theory tables, retrieval index and models
as the API server.

Quick Start:
  melodyctl vocab --format yaml          # Dump the chord vocabulary
  melodyctl palette "a sad song in A minor"
  melodyctl index --knowledge ./knowledge
  melodyctl chat                         # Compose in the terminal`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("could not load "+envFile+": "+err.Error()))
			}
		} else {
			_ = godotenv.Load()
		}
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show service logs")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Environment file to load (default .env)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(vocabCmd, paletteCmd, indexCmd, chatCmd)
}

// loadConfig reads the service configuration after the env file is applied.
func loadConfig() *config.Config {
	return config.Load()
}
