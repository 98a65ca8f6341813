package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/pkg/embedded"
)

// Example is one instruction/output pair used for few-shot prompting.
type Example struct {
	Instruction string `json:"instruction"`
	Output      string `json:"output"`
}

// LoadExamples decodes a JSON array of examples.
func LoadExamples(data []byte) ([]Example, error) {
	var examples []Example
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("failed to decode examples: %w", err)
	}
	return examples, nil
}

// GenreFS returns the knowledge directory when set, otherwise the embedded genres.
func GenreFS(knowledgeDir string) (fs.FS, error) {
	if knowledgeDir != "" {
		info, err := os.Stat(knowledgeDir)
		if err != nil {
			return nil, fmt.Errorf("knowledge directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("knowledge directory %s is not a directory", knowledgeDir)
		}
		return os.DirFS(knowledgeDir), nil
	}
	return fs.Sub(embedded.Genres, "data/knowledge/genres")
}

// IndexGenres chunks every markdown file at the root of fsys and adds the
// chunks to the collection with the file's base name as genre. It returns
// the number of chunks written.
func IndexGenres(ctx context.Context, collection *Collection, fsys fs.FS) (int, error) {
	names, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return 0, err
	}
	sort.Strings(names)

	splitter := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	var docs []Document
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", name, err)
		}
		genre := strings.TrimSuffix(path.Base(name), ".md")
		for i, chunk := range splitter.Split(string(data)) {
			docs = append(docs, Document{
				ID:       fmt.Sprintf("%s-%d", genre, i),
				Content:  chunk,
				Metadata: map[string]string{"genre": genre},
			})
		}
	}

	if err := collection.Add(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// IndexExamples adds each example instruction, keeping the output as metadata.
func IndexExamples(ctx context.Context, collection *Collection, examples []Example) (int, error) {
	docs := make([]Document, len(examples))
	for i, ex := range examples {
		docs[i] = Document{
			ID:      fmt.Sprintf("example_%d", i),
			Content: ex.Instruction,
			Metadata: map[string]string{
				"instruction": ex.Instruction,
				"output":      ex.Output,
			},
		}
	}
	if err := collection.Add(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Retrievers holds both retrievers backed by one index.
type Retrievers struct {
	Index    *SQLiteIndex
	Genres   *GenreRetriever
	Examples *ExamplesRetriever
}

// Bootstrap opens the index and fills any empty collection from the
// knowledge directory (or the embedded defaults) and the embedded examples.
func Bootstrap(ctx context.Context, dbPath, knowledgeDir string, embedder Embedder) (*Retrievers, error) {
	index, err := OpenIndex(dbPath)
	if err != nil {
		return nil, err
	}

	genres := NewCollection(index, embedder, GenreCollection)
	examples := NewCollection(index, embedder, ExamplesCollection)

	if err := fillIfEmpty(ctx, genres, func() (int, error) {
		fsys, err := GenreFS(knowledgeDir)
		if err != nil {
			return 0, err
		}
		return IndexGenres(ctx, genres, fsys)
	}); err != nil {
		_ = index.Close()
		return nil, err
	}

	if err := fillIfEmpty(ctx, examples, func() (int, error) {
		list, err := LoadExamples(embedded.ExamplesJSON)
		if err != nil {
			return 0, err
		}
		return IndexExamples(ctx, examples, list)
	}); err != nil {
		_ = index.Close()
		return nil, err
	}

	return &Retrievers{
		Index:    index,
		Genres:   NewGenreRetriever(genres),
		Examples: NewExamplesRetriever(examples),
	}, nil
}

func fillIfEmpty(ctx context.Context, collection *Collection, fill func() (int, error)) error {
	n, err := collection.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("📚 Collection '%s' has %d documents", collection.Name(), n)
		return nil
	}
	added, err := fill()
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", collection.Name(), err)
	}
	log.Printf("✅ Collection '%s' is set up with %d documents", collection.Name(), added)
	return nil
}
