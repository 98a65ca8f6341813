package main

import (
	"fmt"

	"github.com/Conceptual-Machines/melodycomp-api/internal/retrieval"
	"github.com/spf13/cobra"
)

var (
	indexDB        string
	indexKnowledge string
	indexEmbedder  string
	indexKeep      bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the retrieval index",
	Long: `Embed the genre knowledge files and the few-shot examples into the SQLite
index. Existing collections are cleared first unless --keep is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if indexDB == "" {
			indexDB = cfg.RetrievalDBPath
		}
		if indexKnowledge == "" {
			indexKnowledge = cfg.KnowledgeDir
		}
		if indexEmbedder == "" {
			indexEmbedder = cfg.EmbeddingProvider
		}

		ctx := cmd.Context()
		embedder, err := retrieval.NewEmbedder(ctx, indexEmbedder, cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
		if err != nil {
			return err
		}

		if !indexKeep {
			index, err := retrieval.OpenIndex(indexDB)
			if err != nil {
				return err
			}
			for _, name := range []string{retrieval.GenreCollection, retrieval.ExamplesCollection} {
				if err := retrieval.NewCollection(index, embedder, name).Reset(ctx); err != nil {
					_ = index.Close()
					return fmt.Errorf("failed to reset %s: %w", name, err)
				}
			}
			if err := index.Close(); err != nil {
				return err
			}
		}

		retrievers, err := retrieval.Bootstrap(ctx, indexDB, indexKnowledge, embedder)
		if err != nil {
			return err
		}
		defer func() { _ = retrievers.Index.Close() }()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render("Index "+indexDB))
		for _, name := range []string{retrieval.GenreCollection, retrieval.ExamplesCollection} {
			n, err := retrievers.Index.Count(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s %s\n", chordStyle.Render(fmt.Sprintf("%4d", n)), name)
		}
		fmt.Fprintln(out, dimStyle.Render("embedder: "+embedder.Name()))
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexDB, "db", "", "Index database path (default RETRIEVAL_DB_PATH)")
	indexCmd.Flags().StringVar(&indexKnowledge, "knowledge", "", "Directory of genre markdown files (default KNOWLEDGE_DIR, then the built-in set)")
	indexCmd.Flags().StringVar(&indexEmbedder, "embedder", "", "Embedding provider: gemini, openai or hash")
	indexCmd.Flags().BoolVar(&indexKeep, "keep", false, "Only fill empty collections")
}
