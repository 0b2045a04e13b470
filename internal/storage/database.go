// Package storage owns the SQLite catalog: the derived copy of every indexed
// note and chunk. The catalog backs lexical ranking, graph-expansion catalog
// scans, and index statistics; the vector side lives in vectorstore.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Foreign keys are disabled by default in SQLite.
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the catalog tables. Idempotent.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			path TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			folder TEXT NOT NULL,
			size INTEGER NOT NULL,
			mtime_ns INTEGER NOT NULL,
			links TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			links TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (source) REFERENCES notes(path) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// ReplaceAll swaps the entire catalog content in one transaction: used by a
// full rebuild so the catalog flips to the new state only after the vector
// collection swap succeeded.
func ReplaceAll(ctx context.Context, db *sql.DB, notes []*NoteRecord, chunks []*ChunkRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notes"); err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}

	for _, note := range notes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO notes (path, title, folder, size, mtime_ns, links) VALUES (?, ?, ?, ?, ?, ?)",
			note.Path, note.Title, note.Folder, note.Size, note.ModTimeNS, note.Links,
		); err != nil {
			return fmt.Errorf("failed to insert note %s: %w", note.Path, err)
		}
	}
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (id, source, chunk_index, text, links) VALUES (?, ?, ?, ?, ?)",
			chunk.ID, chunk.Source, chunk.ChunkIndex, chunk.Text, chunk.Links,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild transaction: %w", err)
	}
	return nil
}
