package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks cerebro/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"fmt"
)

// ChunkStore defines the catalog operations on chunks.
type ChunkStore interface {
	// InsertBatch inserts chunks. IDs must be set before calling.
	InsertBatch(ctx context.Context, chunks []*ChunkRecord) error
	// DeleteBySource deletes all chunks owned by the given note path.
	DeleteBySource(ctx context.Context, source string) error
	// ListIDsBySource returns chunk IDs for a note, ordered by chunk_index.
	ListIDsBySource(ctx context.Context, source string) ([]string, error)
	// ListBySource returns chunks for a note, ordered by chunk_index.
	ListBySource(ctx context.Context, source string) ([]*ChunkRecord, error)
	// ListAll returns every chunk in the catalog.
	ListAll(ctx context.Context) ([]*ChunkRecord, error)
	// GetByID returns a chunk by id. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// Count returns the number of chunks.
	Count(ctx context.Context) (int, error)
}

// ChunkRepo implements ChunkStore on SQLite.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch inserts chunks in a single transaction.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []*ChunkRecord) error {
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

	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (id, source, chunk_index, text, links) VALUES (?, ?, ?, ?, ?)",
			chunk.ID, chunk.Source, chunk.ChunkIndex, chunk.Text, chunk.Links,
		); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

// DeleteBySource deletes all chunks owned by the given note path.
// Used before re-inserting a modified note so no stale chunks survive.
func (r *ChunkRepo) DeleteBySource(ctx context.Context, source string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to delete chunks by source: %w", err)
	}
	return nil
}

// ListIDsBySource returns chunk IDs for a note, ordered by chunk_index.
// Returns an empty slice when the note has no chunks.
func (r *ChunkRepo) ListIDsBySource(ctx context.Context, source string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE source = ? ORDER BY chunk_index", source)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
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

// ListBySource returns chunks for a note, ordered by chunk_index.
func (r *ChunkRepo) ListBySource(ctx context.Context, source string) ([]*ChunkRecord, error) {
	return r.list(ctx,
		"SELECT id, source, chunk_index, text, links FROM chunks WHERE source = ? ORDER BY chunk_index", source)
}

// ListAll returns every chunk in the catalog, ordered by source then index.
func (r *ChunkRepo) ListAll(ctx context.Context) ([]*ChunkRecord, error) {
	return r.list(ctx,
		"SELECT id, source, chunk_index, text, links FROM chunks ORDER BY source, chunk_index")
}

func (r *ChunkRepo) list(ctx context.Context, query string, args ...any) ([]*ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []*ChunkRecord
	for rows.Next() {
		var chunk ChunkRecord
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.ChunkIndex, &chunk.Text, &chunk.Links); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return chunks, nil
}

// GetByID returns a chunk by id. Returns ErrNotFound if absent.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, source, chunk_index, text, links FROM chunks WHERE id = ?", id,
	).Scan(&chunk.ID, &chunk.Source, &chunk.ChunkIndex, &chunk.Text, &chunk.Links)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &chunk, nil
}

// Count returns the number of chunks.
func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
