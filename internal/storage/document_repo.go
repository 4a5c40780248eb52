package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks pdfrag/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// DocumentStore defines the interface for document catalogue operations.
type DocumentStore interface {
	// Get gets a document by source key.
	// Returns nil and ErrNotFound if not found.
	Get(ctx context.Context, source string) (*DocumentRecord, error)
	// Upsert inserts a new document or updates an existing one.
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// List returns all documents ordered by source.
	List(ctx context.Context) ([]DocumentRecord, error)
	// Delete removes a document row. Missing rows are not an error.
	Delete(ctx context.Context, source string) error
	// DeleteAll removes every document row.
	DeleteAll(ctx context.Context) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Get gets a document by source key.
// Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) Get(ctx context.Context, source string) (*DocumentRecord, error) {
	var doc DocumentRecord
	var ingestedAt string

	err := r.db.QueryRowContext(ctx,
		"SELECT source, file_hash, pages, chunks, note, ingested_at FROM documents WHERE source = ?",
		source,
	).Scan(&doc.Source, &doc.FileHash, &doc.Pages, &doc.Chunks, &doc.Note, &ingestedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.IngestedAt, err = parseTimestamp(ingestedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Upsert inserts a new document or updates an existing one, stamping ingested_at.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (source, file_hash, pages, chunks, note, ingested_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (source) DO UPDATE SET
		 file_hash = excluded.file_hash, pages = excluded.pages, chunks = excluded.chunks,
		 note = excluded.note, ingested_at = CURRENT_TIMESTAMP`,
		doc.Source, doc.FileHash, doc.Pages, doc.Chunks, doc.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// List returns all documents ordered by source.
func (r *DocumentRepo) List(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT source, file_hash, pages, chunks, note, ingested_at FROM documents ORDER BY source",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := []DocumentRecord{}
	for rows.Next() {
		var doc DocumentRecord
		var ingestedAt string
		if err := rows.Scan(&doc.Source, &doc.FileHash, &doc.Pages, &doc.Chunks, &doc.Note, &ingestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if doc.IngestedAt, err = parseTimestamp(ingestedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return docs, nil
}

// Delete removes a document row. Missing rows are not an error.
func (r *DocumentRepo) Delete(ctx context.Context, source string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// DeleteAll removes every document row.
func (r *DocumentRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// parseTimestamp accepts both SQLite's CURRENT_TIMESTAMP format and the RFC3339
// form the driver produces when it has already decoded a DATETIME column.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
