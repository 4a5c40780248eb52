package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ingester.go -package=mocks pdfrag/internal/service Ingester
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_library_service.go -package=mocks pdfrag/internal/service LibraryService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pdfrag/internal/chunkstore"
	"pdfrag/internal/config"
	"pdfrag/internal/contextutil"
	"pdfrag/internal/indexer"
	"pdfrag/internal/library"
	"pdfrag/internal/storage"
)

// Ingester is the part of the ingestion pipeline the library service drives.
type Ingester interface {
	IngestBatch(ctx context.Context, uploads []indexer.Upload, opts indexer.Options) indexer.BatchResult
	IngestAll(ctx context.Context, opts indexer.Options) (indexer.BatchResult, error)
	Remove(ctx context.Context, source string) error
}

// UploadOptions overrides chunking for one upload. Nil keeps the configured value.
type UploadOptions struct {
	ChunkSize  *int
	Overlap    *int
	EmbedModel string
}

// LibraryService manages the indexed document library.
type LibraryService interface {
	// Upload persists and ingests PDFs. Non-PDF files are skipped with a note.
	Upload(ctx context.Context, uploads []indexer.Upload, opts UploadOptions) (indexer.BatchResult, error)
	// Reindex ingests every PDF under the ingestion root.
	Reindex(ctx context.Context) (indexer.BatchResult, error)
	// Documents lists the ingested documents.
	Documents(ctx context.Context) ([]storage.DocumentRecord, error)
	// Remove deletes a document's chunks, catalogue row and file.
	Remove(ctx context.Context, source string) error
	// Status counts stored sources and chunks. It never fails.
	Status(ctx context.Context) chunkstore.Status
	// Clear deletes every stored chunk and catalogue row. Uploaded files are kept.
	Clear(ctx context.Context) error
	// Stats summarises the index.
	Stats(ctx context.Context) (*indexer.CoverageStats, error)
}

type libraryService struct {
	ingester Ingester
	root     *library.Root
	store    chunkstore.Collection
	chunks   storage.ChunkStore
	docs     storage.DocumentStore
	defaults indexer.Options
}

// NewLibraryService creates a LibraryService. defaults holds the configured
// embedding model and chunking parameters.
func NewLibraryService(
	ingester Ingester,
	root *library.Root,
	store chunkstore.Collection,
	chunks storage.ChunkStore,
	docs storage.DocumentStore,
	defaults indexer.Options,
) LibraryService {
	return &libraryService{
		ingester: ingester,
		root:     root,
		store:    store,
		chunks:   chunks,
		docs:     docs,
		defaults: defaults,
	}
}

func (s *libraryService) Upload(ctx context.Context, uploads []indexer.Upload, opts UploadOptions) (indexer.BatchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(uploads) == 0 {
		return indexer.BatchResult{}, &ValidationError{Field: "files", Message: "at least one file is required"}
	}

	ingestOpts, err := s.options(opts)
	if err != nil {
		return indexer.BatchResult{}, err
	}

	pdfs := make([]indexer.Upload, 0, len(uploads))
	var rejected []string
	for _, u := range uploads {
		if !library.IsPDF(u.Name) {
			rejected = append(rejected, fmt.Sprintf("%s: not a PDF", u.Name))
			continue
		}
		pdfs = append(pdfs, u)
	}

	res := indexer.BatchResult{Notes: []string{}, Results: []indexer.Result{}}
	if len(pdfs) > 0 {
		res = s.ingester.IngestBatch(ctx, pdfs, ingestOpts)
	}
	res.Skipped += len(rejected)
	res.Notes = append(rejected, res.Notes...)

	logger.InfoContext(ctx, "upload processed",
		"files", len(uploads),
		"scanned", res.Scanned,
		"added", res.Added,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (s *libraryService) Reindex(ctx context.Context) (indexer.BatchResult, error) {
	res, err := s.ingester.IngestAll(ctx, s.defaults)
	if err != nil {
		return res, WrapError(err, "failed to reindex library")
	}
	return res, nil
}

func (s *libraryService) Documents(ctx context.Context) ([]storage.DocumentRecord, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to list documents")
	}
	return docs, nil
}

func (s *libraryService) Remove(ctx context.Context, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return &ValidationError{Field: "source", Message: "cannot be empty"}
	}

	if _, err := s.docs.Get(ctx, source); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("document %s: %w", source, ErrNotFound)
		}
		return WrapError(err, "failed to look up document")
	}

	if err := s.ingester.Remove(ctx, source); err != nil {
		return WrapError(err, "failed to remove document")
	}
	if s.root != nil {
		if err := s.root.Remove(source); err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to remove uploaded file", "source", source, "error", err)
		}
	}
	return nil
}

func (s *libraryService) Status(ctx context.Context) chunkstore.Status {
	return chunkstore.GetStatus(ctx, s.store)
}

func (s *libraryService) Clear(ctx context.Context) error {
	chunkstore.ClearAll(ctx, s.store)
	if err := s.docs.DeleteAll(ctx); err != nil {
		return WrapError(err, "failed to clear document catalogue")
	}
	return nil
}

func (s *libraryService) Stats(ctx context.Context) (*indexer.CoverageStats, error) {
	stats, err := indexer.ComputeCoverageStats(ctx, s.chunks, s.docs, s.defaults)
	if err != nil {
		return nil, WrapError(err, "failed to compute stats")
	}
	return stats, nil
}

// options applies overrides and checks chunk size and overlap ranges.
func (s *libraryService) options(opts UploadOptions) (indexer.Options, error) {
	out := s.defaults
	if opts.ChunkSize != nil {
		out.ChunkSize = *opts.ChunkSize
	}
	if opts.Overlap != nil {
		out.Overlap = *opts.Overlap
	}
	if m := strings.TrimSpace(opts.EmbedModel); m != "" {
		out.EmbedModel = m
	}

	if out.ChunkSize < config.MinChunkSize || out.ChunkSize > config.MaxChunkSize {
		return indexer.Options{}, &ValidationError{
			Field:   "chunk_size",
			Message: fmt.Sprintf("must be between %d and %d", config.MinChunkSize, config.MaxChunkSize),
		}
	}
	if out.Overlap < config.MinOverlap || out.Overlap > config.MaxOverlap {
		return indexer.Options{}, &ValidationError{
			Field:   "overlap",
			Message: fmt.Sprintf("must be between %d and %d", config.MinOverlap, config.MaxOverlap),
		}
	}
	if out.Overlap >= out.ChunkSize {
		return indexer.Options{}, &ValidationError{Field: "overlap", Message: "must be smaller than chunk_size"}
	}
	return out, nil
}
