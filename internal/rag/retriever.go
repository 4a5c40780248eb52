package rag

import (
	"context"
	"fmt"
	"strings"

	"pdfrag/internal/chunkstore"
	"pdfrag/internal/contextutil"
	"pdfrag/internal/llm"
	"pdfrag/internal/metrics"
)

// Retriever finds the chunks nearest to a question.
type Retriever struct {
	embedder llm.Embedder
	store    chunkstore.Collection
	metrics  *metrics.Metrics
}

// NewRetriever creates a retriever over store.
func NewRetriever(embedder llm.Embedder, store chunkstore.Collection) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
	}
}

// WithMetrics records retrieval counts on m.
func (r *Retriever) WithMetrics(m *metrics.Metrics) *Retriever {
	r.metrics = m
	return r
}

// Retrieve embeds question once and returns up to topK hits in the store's
// order. A blank question returns no hits without calling the embedder.
func (r *Retriever) Retrieve(ctx context.Context, question, embedModel string, topK int) ([]Hit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	q := strings.TrimSpace(question)
	if q == "" {
		return []Hit{}, nil
	}

	vec, err := r.embedder.Embed(ctx, q, embedModel)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed question", "error", err)
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	res, err := r.store.Query(ctx, vec, topK)
	if err != nil {
		logger.ErrorContext(ctx, "failed to query chunk store", "error", err)
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	hits := make([]Hit, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		hits = append(hits, Hit{
			ChunkID:  res.IDs[i],
			Text:     res.Documents[i],
			Meta:     res.Metadatas[i],
			Distance: res.Distances[i],
		})
	}

	r.metrics.RecordRetrieval(len(hits))
	logger.InfoContext(ctx, "retrieval completed", "top_k", topK, "hits", len(hits))
	if len(hits) > 0 {
		logger.DebugContext(ctx, "nearest chunk", "chunk_id", hits[0].ChunkID, "distance", hits[0].Distance)
	}
	return hits, nil
}
