package chunkstore

import (
	"context"
	"fmt"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/storage"
	"pdfrag/internal/vectorstore"
)

// Store implements Collection on top of a vector store for embeddings and
// the SQLite catalogue for chunk text and metadata.
type Store struct {
	chunks     storage.ChunkStore
	vectors    vectorstore.VectorStore
	collection string
}

// New creates a Store writing vectors to the named collection.
func New(chunks storage.ChunkStore, vectors vectorstore.VectorStore, collection string) *Store {
	return &Store{
		chunks:     chunks,
		vectors:    vectors,
		collection: collection,
	}
}

// Ensure creates the vector collection if it does not exist yet.
func (s *Store) Ensure(ctx context.Context, vectorSize int) error {
	if err := s.vectors.EnsureCollection(ctx, s.collection, vectorSize); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", s.collection, err)
	}
	return nil
}

// Ping checks that the vector backend answers.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.vectors.CollectionExists(ctx, s.collection); err != nil {
		return fmt.Errorf("vector store unavailable: %w", err)
	}
	return nil
}

// Upsert writes vectors first, then the catalogue rows.
func (s *Store) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]vectorstore.Point, 0, len(entries))
	records := make([]storage.ChunkRecord, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			return fmt.Errorf("entry %s has no embedding", e.ID)
		}
		points = append(points, vectorstore.Point{
			ID:   e.ID,
			Vec:  e.Embedding,
			Meta: e.Meta.Map(),
		})
		records = append(records, storage.ChunkRecord{
			ID:         e.ID,
			Source:     e.Meta.Source,
			Page:       e.Meta.Page,
			ChunkIndex: e.Meta.Chunk,
			FileHash:   e.Meta.FileHash,
			Text:       e.Text,
		})
	}

	if err := s.vectors.Upsert(ctx, s.collection, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	if err := s.chunks.UpsertBatch(ctx, records); err != nil {
		return fmt.Errorf("failed to upsert chunk text: %w", err)
	}
	return nil
}

// Delete removes entries by ID from both stores.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.vectors.Delete(ctx, s.collection, ids); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if err := s.chunks.DeleteByIDs(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete chunk text: %w", err)
	}
	return nil
}

// DeleteWhere removes every entry for where.Source.
func (s *Store) DeleteWhere(ctx context.Context, where Where) error {
	if where.Source == "" {
		return fmt.Errorf("delete filter requires a source")
	}
	if err := s.vectors.DeleteByFilter(ctx, s.collection, map[string]any{KeySource: where.Source}); err != nil {
		return fmt.Errorf("failed to delete vectors for %s: %w", where.Source, err)
	}
	if err := s.chunks.DeleteBySource(ctx, where.Source); err != nil {
		return fmt.Errorf("failed to delete chunk text for %s: %w", where.Source, err)
	}
	return nil
}

// Get returns every stored entry from the catalogue.
func (s *Store) Get(ctx context.Context, include Include) (GetResult, error) {
	records, err := s.chunks.List(ctx, "")
	if err != nil {
		return GetResult{}, fmt.Errorf("failed to list chunks: %w", err)
	}

	res := GetResult{IDs: make([]string, 0, len(records))}
	if include.Documents {
		res.Documents = make([]string, 0, len(records))
	}
	if include.Metadatas {
		res.Metadatas = make([]Metadata, 0, len(records))
	}
	for _, r := range records {
		res.IDs = append(res.IDs, r.ID)
		if include.Documents {
			res.Documents = append(res.Documents, r.Text)
		}
		if include.Metadatas {
			res.Metadatas = append(res.Metadatas, metadataFromRecord(r))
		}
	}
	return res, nil
}

// Query returns up to n nearest entries. Distance is 1 - cosine similarity.
// Vector hits without a catalogue row are skipped.
func (s *Store) Query(ctx context.Context, embedding []float32, n int) (QueryResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if n <= 0 {
		return QueryResult{}, nil
	}

	results, err := s.vectors.Search(ctx, s.collection, embedding, n, nil)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to query vectors: %w", err)
	}
	if len(results) == 0 {
		return QueryResult{}, nil
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.PointID)
	}
	records, err := s.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to load chunk text: %w", err)
	}

	var out QueryResult
	for _, r := range results {
		rec, ok := records[r.PointID]
		if !ok {
			logger.WarnContext(ctx, "vector without catalogue row", "chunk_id", r.PointID)
			continue
		}
		out.IDs = append(out.IDs, r.PointID)
		out.Documents = append(out.Documents, rec.Text)
		out.Metadatas = append(out.Metadatas, metadataFromRecord(rec))
		out.Distances = append(out.Distances, 1-r.Score)
	}
	return out, nil
}

func metadataFromRecord(r storage.ChunkRecord) Metadata {
	return Metadata{
		Source:   r.Source,
		Page:     r.Page,
		Chunk:    r.ChunkIndex,
		FileHash: r.FileHash,
	}
}
