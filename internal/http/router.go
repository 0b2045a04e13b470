// Package http wires the handlers into a chi router with the service's
// middleware stack.
package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cerebro/internal/handlers"
	"cerebro/internal/indexer"
	"cerebro/internal/llm"
	"cerebro/internal/service"
	"cerebro/internal/storage"
	"cerebro/internal/vault"
	"cerebro/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	AskService       service.AskService
	Pipeline         *indexer.Pipeline
	NoteRepo         storage.NoteStore
	Scanner          *vault.Scanner
	VectorStore      vectorstore.VectorStore
	DB               *sql.DB
	Probe            *llm.Probe
	LLMBaseURL       string
	EmbeddingBaseURL string
	CollectionName   string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(ProcessTime)

	askHandler := handlers.NewAskHandler(deps.AskService)
	healthHandler := handlers.NewHealthHandler(
		deps.VectorStore, deps.DB, deps.Probe,
		deps.LLMBaseURL, deps.EmbeddingBaseURL, deps.CollectionName,
	)
	statsHandler := handlers.NewStatsHandler(deps.Pipeline)
	rebuildHandler := handlers.NewRebuildHandler(deps.Pipeline)
	notesHandler := handlers.NewNotesHandler(deps.NoteRepo)
	noteViewHandler := handlers.NewNoteViewHandler(deps.Scanner)

	r.Method(http.MethodGet, "/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
		r.Method(http.MethodPost, "/rebuild", rebuildHandler)
		r.Method(http.MethodGet, "/notes", notesHandler)
	})

	r.Get("/notes/*", noteViewHandler.ServeHTTP)

	return r
}
