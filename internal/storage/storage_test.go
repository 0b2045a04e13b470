package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *ChunkRepo {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewChunkRepo(db)
}

func seedNote(t *testing.T, repo *NoteRepo, path string) {
	t.Helper()
	err := repo.Upsert(context.Background(), &NoteRecord{
		Path: path, Title: path, Folder: "", Size: 1, ModTimeNS: 1,
	})
	if err != nil {
		t.Fatalf("Upsert(%s) error = %v", path, err)
	}
}

func TestNoteRepo_UpsertGetDelete(t *testing.T) {
	chunkRepo := newTestDB(t)
	noteRepo := NewNoteRepo(chunkRepo.db)
	ctx := context.Background()

	note := &NoteRecord{
		Path:      "topics/go.md",
		Title:     "Go",
		Folder:    "topics",
		Size:      42,
		ModTimeNS: 123456789,
		Links:     "Concurrency,Testing",
	}
	if err := noteRepo.Upsert(ctx, note); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := noteRepo.GetByPath(ctx, "topics/go.md")
	if err != nil {
		t.Fatalf("GetByPath() error = %v", err)
	}
	if got.Title != "Go" || got.Links != "Concurrency,Testing" || got.Size != 42 {
		t.Errorf("GetByPath() = %+v", got)
	}

	// Upsert replaces in place.
	note.Title = "Go Notes"
	note.Size = 43
	if err := noteRepo.Upsert(ctx, note); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	got, err = noteRepo.GetByPath(ctx, "topics/go.md")
	if err != nil {
		t.Fatalf("GetByPath() error = %v", err)
	}
	if got.Title != "Go Notes" || got.Size != 43 {
		t.Errorf("after upsert GetByPath() = %+v", got)
	}
	if count, _ := noteRepo.Count(ctx); count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	if err := noteRepo.Delete(ctx, "topics/go.md"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := noteRepo.GetByPath(ctx, "topics/go.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByPath() after delete error = %v, want ErrNotFound", err)
	}
	// Deleting again is not an error.
	if err := noteRepo.Delete(ctx, "topics/go.md"); err != nil {
		t.Errorf("Delete() on missing note error = %v", err)
	}
}

func TestChunkRepo_BatchAndDeleteBySource(t *testing.T) {
	chunkRepo := newTestDB(t)
	noteRepo := NewNoteRepo(chunkRepo.db)
	ctx := context.Background()

	seedNote(t, noteRepo, "a.md")
	seedNote(t, noteRepo, "b.md")

	chunks := []*ChunkRecord{
		{ID: "c1", Source: "a.md", ChunkIndex: 0, Text: "first", Links: "x"},
		{ID: "c2", Source: "a.md", ChunkIndex: 1, Text: "second"},
		{ID: "c3", Source: "b.md", ChunkIndex: 0, Text: "other"},
	}
	if err := chunkRepo.InsertBatch(ctx, chunks); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	ids, err := chunkRepo.ListIDsBySource(ctx, "a.md")
	if err != nil {
		t.Fatalf("ListIDsBySource() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Errorf("ListIDsBySource() = %v, want [c1 c2]", ids)
	}

	got, err := chunkRepo.GetByID(ctx, "c3")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Source != "b.md" || got.Text != "other" {
		t.Errorf("GetByID() = %+v", got)
	}

	if err := chunkRepo.DeleteBySource(ctx, "a.md"); err != nil {
		t.Fatalf("DeleteBySource() error = %v", err)
	}
	all, err := chunkRepo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 1 || all[0].ID != "c3" {
		t.Errorf("ListAll() after delete = %v, want only c3", all)
	}
	if count, _ := chunkRepo.Count(ctx); count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestReplaceAll(t *testing.T) {
	chunkRepo := newTestDB(t)
	noteRepo := NewNoteRepo(chunkRepo.db)
	ctx := context.Background()

	seedNote(t, noteRepo, "stale.md")
	if err := chunkRepo.InsertBatch(ctx, []*ChunkRecord{
		{ID: "old", Source: "stale.md", ChunkIndex: 0, Text: "stale"},
	}); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	err := ReplaceAll(ctx, chunkRepo.db,
		[]*NoteRecord{{Path: "fresh.md", Title: "Fresh", Size: 1, ModTimeNS: 1}},
		[]*ChunkRecord{{ID: "new", Source: "fresh.md", ChunkIndex: 0, Text: "fresh"}},
	)
	if err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	notes, err := noteRepo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(notes) != 1 || notes[0].Path != "fresh.md" {
		t.Errorf("notes after ReplaceAll = %v", notes)
	}
	chunks, err := chunkRepo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "new" {
		t.Errorf("chunks after ReplaceAll = %v", chunks)
	}
}
