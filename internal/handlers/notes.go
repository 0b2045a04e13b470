package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghhtml "github.com/yuin/goldmark/renderer/html"

	"cerebro/internal/contextutil"
	"cerebro/internal/links"
	"cerebro/internal/storage"
	"cerebro/internal/vault"
)

// NotesHandler lists the notes in the catalog.
type NotesHandler struct {
	noteRepo storage.NoteStore
}

// NewNotesHandler creates a new NotesHandler.
func NewNotesHandler(noteRepo storage.NoteStore) *NotesHandler {
	return &NotesHandler{noteRepo: noteRepo}
}

// NoteSummary describes one indexed note.
type NoteSummary struct {
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Folder    string   `json:"folder"`
	Size      int64    `json:"size"`
	LinkCount int      `json:"link_count"`
	Links     []string `json:"links,omitempty"`
}

// NotesListResponse represents the note listing response.
type NotesListResponse struct {
	Notes []NoteSummary `json:"notes"`
	Total int           `json:"total"`
}

// ServeHTTP handles HTTP requests for the note listing.
func (h *NotesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	records, err := h.noteRepo.ListAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list notes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to list notes")
		return
	}

	notes := make([]NoteSummary, len(records))
	for i, rec := range records {
		targets := links.Split(rec.Links)
		notes[i] = NoteSummary{
			Path:      rec.Path,
			Title:     rec.Title,
			Folder:    rec.Folder,
			Size:      rec.Size,
			LinkCount: len(targets),
			Links:     targets,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NotesListResponse{Notes: notes, Total: len(notes)}); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// NoteViewHandler serves markdown notes as rendered HTML pages.
type NoteViewHandler struct {
	scanner  *vault.Scanner
	parser   goldmark.Markdown
	template *template.Template
}

// notePageData holds template data for rendered note pages.
type notePageData struct {
	Title   string
	Path    string
	Content template.HTML
}

// NewNoteViewHandler creates a handler for serving rendered note files.
func NewNoteViewHandler(scanner *vault.Scanner) *NoteViewHandler {
	tmpl := template.Must(template.New("note").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 900px;
      line-height: 1.7;
    }
    pre {
      overflow-x: auto;
      padding: 1rem;
      background: #f6f8fa;
      border-radius: 6px;
    }
    code { font-family: 'SF Mono', Menlo, Consolas, monospace; }
    blockquote {
      margin-left: 0;
      padding-left: 1rem;
      border-left: 3px solid #d0d7de;
      color: #57606a;
    }
  </style>
</head>
<body>
<p><small>{{.Path}}</small></p>
{{.Content}}
</body>
</html>`))

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(ghhtml.WithUnsafe()),
	)

	return &NoteViewHandler{
		scanner:  scanner,
		parser:   md,
		template: tmpl,
	}
}

// ServeHTTP renders one note as an HTML page. The note path is taken from
// the wildcard segment of the route.
func (h *NoteViewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	relPath, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || relPath == "" {
		writeJSONError(w, http.StatusBadRequest, "Invalid note path")
		return
	}
	// Keep lookups inside the vault root.
	if relPath != path.Clean(relPath) || strings.HasPrefix(relPath, "..") || path.IsAbs(relPath) {
		writeJSONError(w, http.StatusBadRequest, "Invalid note path")
		return
	}

	note, err := h.scanner.ReadNote(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSONError(w, http.StatusNotFound, "Note not found")
			return
		}
		logger.ErrorContext(ctx, "failed to read note", "path", relPath, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to read note")
		return
	}

	var rendered bytes.Buffer
	if err := h.parser.Convert([]byte(note.Content), &rendered); err != nil {
		logger.ErrorContext(ctx, "failed to render note", "path", relPath, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to render note")
		return
	}

	data := notePageData{
		Title:   note.Title,
		Path:    note.Path,
		Content: template.HTML(rendered.String()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, data); err != nil {
		logger.ErrorContext(ctx, "failed to execute note template", "error", err)
	}
}
