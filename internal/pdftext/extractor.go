// Package pdftext extracts per-page plain text from PDF documents.
package pdftext

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"pdfrag/internal/contextutil"
)

// Page is the raw text of one 1-indexed PDF page.
type Page struct {
	Number int
	Text   string
}

// Extractor reads text layers from PDF bytes. It performs no OCR, so scanned
// pages come back with empty text.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages returns every page of the document in order.
// A page whose text cannot be decoded is returned with empty text.
func (e *Extractor) ExtractPages(ctx context.Context, data []byte) (pages []Page, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	total := reader.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.WarnContext(ctx, "failed to extract page text", "page", i, "error", err)
			text = ""
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	logger.DebugContext(ctx, "extracted pdf pages", "pages", total)
	return pages, nil
}
