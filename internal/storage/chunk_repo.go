package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks pdfrag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// UpsertBatch inserts or replaces chunks in a single transaction.
	UpsertBatch(ctx context.Context, chunks []ChunkRecord) error
	// DeleteByIDs deletes the given chunk IDs. Unknown IDs are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error
	// DeleteBySource deletes all chunks for a source.
	DeleteBySource(ctx context.Context, source string) error
	// ListIDs returns chunk IDs for a source, or all IDs when source is empty.
	ListIDs(ctx context.Context, source string) ([]string, error)
	// List returns chunks for a source, or all chunks when source is empty.
	List(ctx context.Context, source string) ([]ChunkRecord, error)
	// GetByIDs returns the chunks found for ids, keyed by ID.
	GetByIDs(ctx context.Context, ids []string) (map[string]ChunkRecord, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// Counts returns the number of distinct sources and chunks.
	Counts(ctx context.Context) (CatalogueCounts, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

const chunkColumns = "id, source, page, chunk_index, file_hash, text"

// UpsertBatch inserts or replaces chunks in a single transaction.
func (r *ChunkRepo) UpsertBatch(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 source = excluded.source, page = excluded.page, chunk_index = excluded.chunk_index,
		 file_hash = excluded.file_hash, text = excluded.text`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.Page, c.ChunkIndex, c.FileHash, c.Text); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk upsert: %w", err)
	}
	return nil
}

// DeleteByIDs deletes the given chunk IDs. Unknown IDs are ignored.
func (r *ChunkRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := "DELETE FROM chunks WHERE id IN (" + placeholders(len(ids)) + ")"
	if _, err := r.db.ExecContext(ctx, query, stringArgs(ids)...); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// DeleteBySource deletes all chunks for a source.
// Used when re-ingesting a file to remove old chunks before inserting new ones.
func (r *ChunkRepo) DeleteBySource(ctx context.Context, source string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by source: %w", err)
	}
	return nil
}

// ListIDs returns chunk IDs for a source, or all IDs when source is empty.
// Returns an empty slice if no chunks exist (not an error).
func (r *ChunkRepo) ListIDs(ctx context.Context, source string) ([]string, error) {
	query := "SELECT id FROM chunks"
	var args []any
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY source, page, chunk_index"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// List returns chunks for a source, or all chunks when source is empty.
func (r *ChunkRepo) List(ctx context.Context, source string) ([]ChunkRecord, error) {
	query := "SELECT " + chunkColumns + " FROM chunks"
	var args []any
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY source, page, chunk_index"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanChunks(rows)
}

// GetByIDs returns the chunks found for ids, keyed by ID. Missing IDs are absent from the map.
func (r *ChunkRepo) GetByIDs(ctx context.Context, ids []string) (map[string]ChunkRecord, error) {
	out := make(map[string]ChunkRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := "SELECT " + chunkColumns + " FROM chunks WHERE id IN (" + placeholders(len(ids)) + ")"
	rows, err := r.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks by id: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		out[c.ID] = c
	}
	return out, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var c ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id = ?",
		id,
	).Scan(&c.ID, &c.Source, &c.Page, &c.ChunkIndex, &c.FileHash, &c.Text)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	return &c, nil
}

// Counts returns the number of distinct sources and chunks.
func (r *ChunkRepo) Counts(ctx context.Context) (CatalogueCounts, error) {
	var c CatalogueCounts
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT source), COUNT(*) FROM chunks",
	).Scan(&c.Sources, &c.Chunks)
	if err != nil {
		return CatalogueCounts{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	return c, nil
}

func scanChunks(rows *sql.Rows) ([]ChunkRecord, error) {
	chunks := []ChunkRecord{}
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.ID, &c.Source, &c.Page, &c.ChunkIndex, &c.FileHash, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
