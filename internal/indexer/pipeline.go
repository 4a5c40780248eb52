package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdfrag/internal/chunkstore"
	"pdfrag/internal/contextutil"
	"pdfrag/internal/library"
	"pdfrag/internal/llm"
	"pdfrag/internal/metrics"
	"pdfrag/internal/storage"
)

// Pipeline ingests PDF files into the chunk store.
type Pipeline struct {
	root      *library.Root
	extractor PageExtractor
	embedder  llm.Embedder
	store     chunkstore.Collection
	docs      storage.DocumentStore
	chunker   *RecursiveChunker
	metrics   *metrics.Metrics
}

// NewPipeline creates a new ingestion pipeline. docs may be nil.
func NewPipeline(
	root *library.Root,
	extractor PageExtractor,
	embedder llm.Embedder,
	store chunkstore.Collection,
	docs storage.DocumentStore,
) *Pipeline {
	return &Pipeline{
		root:      root,
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		docs:      docs,
		chunker:   NewRecursiveChunker(),
	}
}

// WithMetrics attaches metrics to the pipeline.
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Root returns the ingestion root.
func (p *Pipeline) Root() *library.Root {
	return p.root
}

// Ingest replaces everything stored for the file at path with freshly embedded chunks.
// It never returns an error: failures are reported in Result.Note.
func (p *Pipeline) Ingest(ctx context.Context, path string, opts Options) Result {
	start := time.Now()
	source := p.root.SourceKey(path)
	ctx = contextutil.WithAttrs(ctx, "source", source)
	logger := contextutil.LoggerFromContext(ctx)

	res, err := p.ingest(ctx, path, source, opts)
	if err != nil {
		logger.ErrorContext(ctx, "ingest failed", "error", err)
		res = Result{
			Source:   source,
			FileHash: res.FileHash,
			Note:     fmt.Sprintf("%s: ingest failed: %v", filepath.Base(path), err),
		}
	}

	p.record(ctx, res)

	outcome := metrics.OutcomeOK
	if res.Note != "" {
		outcome = metrics.OutcomeNote
	}
	p.metrics.RecordIngest(outcome, res.ChunksAdded, time.Since(start))

	logger.InfoContext(ctx, "ingested document",
		"pages", res.PagesScanned,
		"chunks", res.ChunksAdded,
		"note", res.Note,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (p *Pipeline) ingest(ctx context.Context, path, source string, opts Options) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	res := Result{Source: source}

	// Best-effort: a file that fails below must not keep its previous chunks.
	if err := p.store.DeleteWhere(ctx, chunkstore.Where{Source: source}); err != nil {
		logger.WarnContext(ctx, "failed to delete previous chunks", "error", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("failed to read file: %w", err)
	}
	res.FileHash = HashBytes(data)

	rawPages, err := p.extractor.ExtractPages(ctx, data)
	if err != nil {
		return res, fmt.Errorf("failed to extract text: %w", err)
	}

	type page struct {
		number int
		text   string
	}
	pages := make([]page, 0, len(rawPages))
	for _, rp := range rawPages {
		text := Normalize(rp.Text)
		if text == "" {
			continue
		}
		pages = append(pages, page{number: rp.Number, text: text})
	}
	if len(pages) == 0 {
		res.Note = fmt.Sprintf("%s: no extractable text (scanned PDF? OCR required)", source)
		return res, nil
	}

	var entries []chunkstore.Entry
	for _, pg := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		for i, text := range p.chunker.Chunk(pg.text, opts.ChunkSize, opts.Overlap) {
			emb, err := p.embedder.Embed(ctx, text, opts.EmbedModel)
			if err != nil {
				return res, fmt.Errorf("failed to embed page %d chunk %d: %w", pg.number, i+1, err)
			}
			key := ChunkKey{FileHash: res.FileHash, Page: pg.number, Index: i + 1}
			entries = append(entries, chunkstore.Entry{
				ID:   key.ID(),
				Text: text,
				Meta: chunkstore.Metadata{
					Source:   source,
					Page:     pg.number,
					Chunk:    i + 1,
					FileHash: res.FileHash,
				},
				Embedding: emb,
			})
		}
	}

	res.PagesScanned = len(pages)
	if len(entries) == 0 {
		res.Note = fmt.Sprintf("%s: no chunks produced", source)
		return res, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := p.store.Delete(ctx, ids); err != nil {
		logger.WarnContext(ctx, "failed to delete staged ids", "error", err)
	}
	if err := p.store.Upsert(ctx, entries); err != nil {
		return res, fmt.Errorf("failed to store chunks: %w", err)
	}

	res.ChunksAdded = len(entries)
	return res, nil
}

// record writes the document catalogue row. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, res Result) {
	if p.docs == nil {
		return
	}
	err := p.docs.Upsert(ctx, &storage.DocumentRecord{
		Source:   res.Source,
		FileHash: res.FileHash,
		Pages:    res.PagesScanned,
		Chunks:   res.ChunksAdded,
		Note:     res.Note,
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to record document", "source", res.Source, "error", err)
	}
}

// IngestBatch saves each upload under the ingestion root and ingests it.
// A failed write or a note counts as skipped; the batch always continues.
func (p *Pipeline) IngestBatch(ctx context.Context, uploads []Upload, opts Options) BatchResult {
	logger := contextutil.LoggerFromContext(ctx)
	batch := BatchResult{Notes: []string{}, Results: []Result{}}

	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			batch.skip(fmt.Sprintf("%s: %v", u.Name, err))
			continue
		}

		path, err := p.root.Save(u.Name, u.Data)
		if err != nil {
			logger.WarnContext(ctx, "failed to save upload", "name", u.Name, "error", err)
			batch.skip(fmt.Sprintf("%s: failed to save upload: %v", u.Name, err))
			continue
		}

		batch.add(p.Ingest(ctx, path, opts))
	}

	logger.InfoContext(ctx, "batch ingest completed",
		"files", len(uploads),
		"pages", batch.Pages,
		"chunks", batch.Added,
		"skipped", batch.Skipped,
	)
	return batch
}

// IngestAll scans the ingestion root and ingests every PDF found.
func (p *Pipeline) IngestAll(ctx context.Context, opts Options) (BatchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	batch := BatchResult{Notes: []string{}, Results: []Result{}}

	files, err := p.root.Scan(ctx)
	if err != nil {
		return batch, fmt.Errorf("failed to scan ingestion root: %w", err)
	}

	logger.InfoContext(ctx, "starting ingestion", "total_files", len(files))

	for _, f := range files {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return batch, ctx.Err()
		default:
		}

		batch.add(p.Ingest(ctx, f.AbsPath, opts))
	}

	logger.InfoContext(ctx, "ingestion completed",
		"total_files", len(files),
		"chunks", batch.Added,
		"skipped", batch.Skipped,
	)
	return batch, nil
}

// Remove deletes the chunks and catalogue row for a source.
func (p *Pipeline) Remove(ctx context.Context, source string) error {
	if err := p.store.DeleteWhere(ctx, chunkstore.Where{Source: source}); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", source, err)
	}
	if p.docs != nil {
		if err := p.docs.Delete(ctx, source); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", source, err)
		}
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "removed document", "source", source)
	return nil
}
