package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"pdfrag/internal/contextutil"
)

// ErrPrecomputedOnly is returned when chromem asks us to embed text itself.
var ErrPrecomputedOnly = errors.New("chromem store only accepts precomputed embeddings")

// ChromemStore implements VectorStore with the embedded chromem-go database.
// Metadata values are stored as strings and converted back on read.
type ChromemStore struct {
	db *chromem.DB
}

// NewChromemStore opens a persistent store at path, or an in-memory one when path is empty.
func NewChromemStore(path string) (*ChromemStore, error) {
	if path == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db at %s: %w", path, err)
	}
	return &ChromemStore{db: db}, nil
}

// noEmbed keeps chromem from falling back to its default OpenAI embedder.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, ErrPrecomputedOnly
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	c, err := s.db.GetOrCreateCollection(name, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	return c, nil
}

// EnsureCollection creates the collection if needed. chromem infers the dimension from the data.
func (s *ChromemStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	if _, err := s.collection(collection); err != nil {
		return err
	}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "chromem collection ready", "collection", collection)
	return nil
}

// CollectionExists checks if a collection exists.
func (s *ChromemStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return s.db.GetCollection(collection, noEmbed) != nil, nil
}

// Upsert inserts or replaces points.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}
	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Metadata:  stringifyMeta(p.Meta),
			Embedding: p.Vec,
		})
	}

	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.DebugContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search returns up to k nearest points, best-first.
func (s *ChromemStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	c := s.db.GetCollection(collection, noEmbed)
	if c == nil {
		return []SearchResult{}, nil
	}

	// chromem rejects nResults larger than the collection.
	count := c.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := c.QueryEmbedding(ctx, query, k, stringifyMeta(filters), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			PointID: r.ID,
			Score:   r.Similarity,
			Meta:    parseMeta(r.Metadata),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Delete removes points by ID.
func (s *ChromemStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c := s.db.GetCollection(collection, noEmbed)
	if c == nil {
		return nil
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// DeleteByFilter removes every point matching all filters.
func (s *ChromemStore) DeleteByFilter(ctx context.Context, collection string, filters map[string]any) error {
	if len(filters) == 0 {
		return fmt.Errorf("refusing to delete with an empty filter")
	}
	c := s.db.GetCollection(collection, noEmbed)
	if c == nil {
		return nil
	}
	if err := c.Delete(ctx, stringifyMeta(filters), nil); err != nil {
		return fmt.Errorf("failed to delete points by filter: %w", err)
	}
	return nil
}

// Count returns the number of points in the collection.
func (s *ChromemStore) Count(ctx context.Context, collection string) (int, error) {
	c := s.db.GetCollection(collection, noEmbed)
	if c == nil {
		return 0, nil
	}
	return c.Count(), nil
}

func stringifyMeta(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// parseMeta restores integer values that were stringified on write.
func parseMeta(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}
