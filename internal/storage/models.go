package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// NoteRecord is the catalog's derived copy of one source note.
type NoteRecord struct {
	Path      string // Relative path from vault root (primary key)
	Title     string // Extracted markdown title
	Folder    string // Path components except the file name ("" for root)
	Size      int64  // File size at indexing time
	ModTimeNS int64  // Modification time at indexing time, Unix nanoseconds
	Links     string // Outbound wiki-link targets, comma separated
}

// ChunkRecord is one stored chunk of a note. ID doubles as the vector store
// point id.
type ChunkRecord struct {
	ID         string // UUID (same as the vector point id)
	Source     string // Owning note path (foreign key to notes.path)
	ChunkIndex int    // Position within the note, starts at 0
	Text       string // Chunk text content
	Links      string // Inherited wiki-link targets, comma separated
}
