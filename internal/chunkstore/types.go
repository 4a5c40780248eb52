package chunkstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_collection.go -package=mocks pdfrag/internal/chunkstore Collection

import (
	"context"
)

// Metadata keys as stored alongside each vector.
const (
	KeySource   = "source"
	KeyPage     = "page"
	KeyChunk    = "chunk"
	KeyFileHash = "file_hash"
)

// Metadata is attached to every stored chunk.
type Metadata struct {
	Source   string `json:"source"`
	Page     int    `json:"page"`
	Chunk    int    `json:"chunk"`
	FileHash string `json:"file_hash"`
}

// Map renders the metadata for a vector store payload.
func (m Metadata) Map() map[string]any {
	return map[string]any{
		KeySource:   m.Source,
		KeyPage:     m.Page,
		KeyChunk:    m.Chunk,
		KeyFileHash: m.FileHash,
	}
}

// Entry is one chunk ready to be stored.
type Entry struct {
	ID        string
	Text      string
	Meta      Metadata
	Embedding []float32
}

// Where selects chunks by metadata equality.
type Where struct {
	Source string
}

// Include selects which parallel arrays Get fills. IDs are always returned.
type Include struct {
	Documents bool
	Metadatas bool
}

// GetResult holds parallel arrays; Documents and Metadatas are nil unless requested.
type GetResult struct {
	IDs       []string
	Documents []string
	Metadatas []Metadata
}

// QueryResult holds parallel arrays ordered by ascending distance.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []Metadata
	Distances []float32
}

// Len returns the number of hits.
func (r QueryResult) Len() int {
	return len(r.IDs)
}

// Collection is the chunk store boundary used by ingestion and retrieval.
type Collection interface {
	// Upsert inserts or replaces entries by ID.
	Upsert(ctx context.Context, entries []Entry) error
	// Delete removes entries by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
	// DeleteWhere removes every entry matching where.
	DeleteWhere(ctx context.Context, where Where) error
	// Get returns every stored entry.
	Get(ctx context.Context, include Include) (GetResult, error)
	// Query returns up to n nearest entries to embedding.
	Query(ctx context.Context, embedding []float32, n int) (QueryResult, error)
}
