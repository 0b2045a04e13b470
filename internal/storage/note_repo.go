package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_store.go -package=mocks cerebro/internal/storage NoteStore

import (
	"context"
	"database/sql"
	"fmt"
)

// NoteStore defines the catalog operations on notes.
type NoteStore interface {
	// Upsert inserts or replaces a note record keyed by path.
	Upsert(ctx context.Context, note *NoteRecord) error
	// Delete removes a note by path. Deleting a missing note is not an error.
	Delete(ctx context.Context, path string) error
	// GetByPath returns a note by path. Returns ErrNotFound if absent.
	GetByPath(ctx context.Context, path string) (*NoteRecord, error)
	// ListAll returns every note in the catalog, ordered by path.
	ListAll(ctx context.Context) ([]*NoteRecord, error)
	// Count returns the number of notes.
	Count(ctx context.Context) (int, error)
}

// NoteRepo implements NoteStore on SQLite.
type NoteRepo struct {
	db *sql.DB
}

// NewNoteRepo creates a new NoteRepo.
func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

// Upsert inserts or replaces a note record keyed by path.
func (r *NoteRepo) Upsert(ctx context.Context, note *NoteRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (path, title, folder, size, mtime_ns, links) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			folder = excluded.folder,
			size = excluded.size,
			mtime_ns = excluded.mtime_ns,
			links = excluded.links,
			updated_at = CURRENT_TIMESTAMP`,
		note.Path, note.Title, note.Folder, note.Size, note.ModTimeNS, note.Links,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}
	return nil
}

// Delete removes a note by path.
func (r *NoteRepo) Delete(ctx context.Context, path string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM notes WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// GetByPath returns a note by path. Returns ErrNotFound if absent.
func (r *NoteRepo) GetByPath(ctx context.Context, path string) (*NoteRecord, error) {
	var note NoteRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT path, title, folder, size, mtime_ns, links FROM notes WHERE path = ?", path,
	).Scan(&note.Path, &note.Title, &note.Folder, &note.Size, &note.ModTimeNS, &note.Links)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &note, nil
}

// ListAll returns every note in the catalog, ordered by path.
func (r *NoteRepo) ListAll(ctx context.Context) ([]*NoteRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT path, title, folder, size, mtime_ns, links FROM notes ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var notes []*NoteRecord
	for rows.Next() {
		var note NoteRecord
		if err := rows.Scan(&note.Path, &note.Title, &note.Folder, &note.Size, &note.ModTimeNS, &note.Links); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return notes, nil
}

// Count returns the number of notes.
func (r *NoteRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}
