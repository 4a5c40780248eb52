package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"pdfrag/internal/storage"
)

// ChunkerVersion is the version identifier for the chunker implementation.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "recursive-v1"

// CoverageStats describes what the index currently holds.
type CoverageStats struct {
	// Documents is the number of ingested files, including skipped ones.
	Documents int `json:"documents"`
	// DocumentsWith0Chunks is the number of files that produced no chunks.
	DocumentsWith0Chunks int `json:"documents_with_0_chunks"`
	// Chunks is the number of stored chunks.
	Chunks int `json:"chunks"`
	// ChunkLength summarises chunk lengths in runes.
	ChunkLength LengthStats `json:"chunk_length"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// LengthStats contains min, max, mean and p95 of a set of lengths.
type LengthStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// IndexVersion hashes the parameters that determine chunk identity and vectors.
func IndexVersion(embedModel string, chunkSize, overlap int) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d|overlap=%d", ChunkerVersion, embedModel, chunkSize, overlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// ComputeCoverageStats reads the catalogue and summarises it.
func ComputeCoverageStats(ctx context.Context, chunks storage.ChunkStore, docs storage.DocumentStore, opts Options) (*CoverageStats, error) {
	stats := &CoverageStats{
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   IndexVersion(opts.EmbedModel, opts.ChunkSize, opts.Overlap),
	}

	documents, err := docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	stats.Documents = len(documents)
	for _, d := range documents {
		if d.Chunks == 0 {
			stats.DocumentsWith0Chunks++
		}
	}

	records, err := chunks.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	stats.Chunks = len(records)

	lengths := make([]int, 0, len(records))
	for _, r := range records {
		lengths = append(lengths, utf8.RuneCountInString(r.Text))
	}
	stats.ChunkLength = computeLengthStats(lengths)

	return stats, nil
}

// computeLengthStats computes min, max, mean, and p95 from lengths.
func computeLengthStats(lengths []int) LengthStats {
	if len(lengths) == 0 {
		return LengthStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	sum := 0
	for _, n := range sorted {
		sum += n
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return LengthStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
