package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	embedder   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);`

// Document is one indexed text with its metadata and embedding.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"-"`
}

// Match is a document returned from a similarity search.
type Match struct {
	Document
	Similarity float64 `json:"similarity"`
}

// SQLiteIndex stores documents and their embeddings in SQLite and ranks them
// by cosine similarity in process.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenIndex opens or creates an index at path. Use ":memory:" for a
// throwaway index.
func OpenIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

// Close closes the underlying database.
func (x *SQLiteIndex) Close() error {
	return x.db.Close()
}

// Upsert writes documents into a collection in one transaction.
func (x *SQLiteIndex) Upsert(ctx context.Context, collection, embedder string, docs []Document) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (collection, id, content, metadata, embedder, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedder = excluded.embedder,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, doc.ID, doc.Content, string(meta), embedder, encodeVector(doc.Embedding)); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of documents in a collection.
func (x *SQLiteIndex) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// Reset deletes every document in a collection.
func (x *SQLiteIndex) Reset(ctx context.Context, collection string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("failed to reset %s: %w", collection, err)
	}
	return nil
}

// Search returns up to k documents of the collection ranked by cosine
// similarity to query. Documents embedded by a different embedder or with a
// different dimensionality are ignored.
func (x *SQLiteIndex) Search(ctx context.Context, collection, embedder string, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding FROM documents WHERE collection = ? AND embedder = ? ORDER BY id`,
		collection, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			doc  Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		vec := decodeVector(blob)
		if len(vec) != len(query) {
			continue
		}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", doc.ID, err)
		}
		doc.Embedding = vec
		matches = append(matches, Match{Document: doc, Similarity: cosine(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
