package indexer

import (
	"context"

	"pdfrag/internal/pdftext"
)

// PageExtractor returns the text of every page of a PDF.
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte) ([]pdftext.Page, error)
}

// Options controls chunking and embedding for one ingest.
type Options struct {
	EmbedModel string
	ChunkSize  int
	Overlap    int
}

// Result reports the outcome of ingesting one file.
// A non-empty Note means the file was skipped or failed.
type Result struct {
	Source       string `json:"source"`
	FileHash     string `json:"file_hash,omitempty"`
	PagesScanned int    `json:"pages_scanned"`
	ChunksAdded  int    `json:"chunks_added"`
	Note         string `json:"note,omitempty"`
}

// Upload is a file received for ingestion.
type Upload struct {
	Name string
	Data []byte
}

// BatchResult aggregates a batch of ingests. Scanned counts files handed to
// the single-document ingest; Pages counts the pages that yielded text.
type BatchResult struct {
	Scanned int      `json:"scanned"`
	Pages   int      `json:"pages"`
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Notes   []string `json:"notes"`
	Results []Result `json:"results"`
}

func (b *BatchResult) add(r Result) {
	b.Results = append(b.Results, r)
	b.Scanned++
	b.Pages += r.PagesScanned
	b.Added += r.ChunksAdded
	if r.Note != "" {
		b.Skipped++
		b.Notes = append(b.Notes, r.Note)
	}
}

func (b *BatchResult) skip(note string) {
	b.Skipped++
	b.Notes = append(b.Notes, note)
}
