package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"cerebro/internal/storage"
	"cerebro/internal/vault"
)

type fakeNoteStore struct {
	notes []*storage.NoteRecord
	err   error
}

func (f *fakeNoteStore) Upsert(ctx context.Context, note *storage.NoteRecord) error { return nil }
func (f *fakeNoteStore) Delete(ctx context.Context, path string) error              { return nil }

func (f *fakeNoteStore) GetByPath(ctx context.Context, path string) (*storage.NoteRecord, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeNoteStore) ListAll(ctx context.Context) ([]*storage.NoteRecord, error) {
	return f.notes, f.err
}

func (f *fakeNoteStore) Count(ctx context.Context) (int, error) { return len(f.notes), nil }

func TestNotesHandler_List(t *testing.T) {
	handler := NewNotesHandler(&fakeNoteStore{
		notes: []*storage.NoteRecord{
			{Path: "go.md", Title: "Go", Folder: "", Size: 42, Links: "concurrency,history"},
			{Path: "lang/rust.md", Title: "Rust", Folder: "lang", Size: 17},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp NotesListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Notes) != 2 {
		t.Fatalf("Total = %d, len(Notes) = %d, want 2", resp.Total, len(resp.Notes))
	}
	if resp.Notes[0].LinkCount != 2 {
		t.Errorf("Notes[0].LinkCount = %d, want 2", resp.Notes[0].LinkCount)
	}
	if resp.Notes[1].Folder != "lang" {
		t.Errorf("Notes[1].Folder = %q, want %q", resp.Notes[1].Folder, "lang")
	}
}

func TestNotesHandler_CatalogError(t *testing.T) {
	handler := NewNotesHandler(&fakeNoteStore{err: errors.New("catalog gone")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func newNoteViewRouter(t *testing.T, files map[string]string) http.Handler {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write note: %v", err)
		}
	}

	scanner, err := vault.NewScanner(root)
	if err != nil {
		t.Fatalf("failed to create scanner: %v", err)
	}

	r := chi.NewRouter()
	r.Get("/notes/*", NewNoteViewHandler(scanner).ServeHTTP)
	return r
}

func TestNoteViewHandler_RendersMarkdown(t *testing.T) {
	router := newNoteViewRouter(t, map[string]string{
		"projects/go.md": "# Go\n\nA **compiled** language.",
	})

	req := httptest.NewRequest(http.MethodGet, "/notes/projects/go.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<strong>compiled</strong>") {
		t.Errorf("body missing rendered markdown: %s", body)
	}
	if !strings.Contains(body, "<title>Go</title>") {
		t.Errorf("body missing extracted title: %s", body)
	}
}

func TestNoteViewHandler_NotFound(t *testing.T) {
	router := newNoteViewRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/notes/missing.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestNoteViewHandler_RejectsTraversal(t *testing.T) {
	router := newNoteViewRouter(t, map[string]string{"go.md": "# Go"})

	req := httptest.NewRequest(http.MethodGet, "/notes/..%2Fsecret.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
