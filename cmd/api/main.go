package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"cerebro/internal/config"
	"cerebro/internal/http"
	"cerebro/internal/indexer"
	"cerebro/internal/llm"
	"cerebro/internal/rag"
	"cerebro/internal/service"
	"cerebro/internal/storage"
	"cerebro/internal/tracker"
	"cerebro/internal/vault"
	"cerebro/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions over a vault of linked markdown notes using
// hybrid retrieval (BM25 + vector search) with link-graph expansion.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Cerebro API
//   description: |
//     Retrieval-augmented question answering over an indexed vault of
//     markdown notes. The index is kept incrementally in sync with the
//     files on disk.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Catalog initialized", "path", cfg.DBPath)

	noteRepo := storage.NewNoteRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	scanner, err := vault.NewScanner(cfg.VaultPath)
	if err != nil {
		log.Fatalf("Failed to open vault: %v", err)
	}
	slog.Info("Vault opened", "path", cfg.VaultPath)

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	probe := llm.NewProbe()

	ctx := context.Background()
	if err := probe.Ping(ctx, cfg.EmbeddingBaseURL); err != nil {
		slog.Warn("Embedding service not reachable yet", "error", err)
	}

	splitter := indexer.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	track := tracker.New(cfg.SnapshotPath, cfg.RebuildThreshold)

	pipeline := indexer.NewPipeline(
		scanner,
		track,
		db,
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		cfg.QdrantVectorSize,
		splitter,
	)

	retriever, err := rag.BuildRetriever(
		chunkRepo,
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		cfg.BM25K,
		cfg.RetrievalK,
		cfg.BM25Weight,
		cfg.SemanticWeight,
	)
	if err != nil {
		log.Fatalf("Failed to build retriever: %v", err)
	}

	var reranker rag.Reranker
	if cfg.RerankEnabled && cfg.RerankBaseURL != "" {
		reranker = llm.NewRerankClient(cfg.RerankBaseURL, cfg.LLMAPIKey, cfg.RerankModelName)
		slog.Info("Reranker enabled", "model", cfg.RerankModelName)
	}

	expander := rag.NewExpander(noteRepo, chunkRepo, scanner, cfg.MaxLinkedDocs)
	engine := rag.NewEngine(retriever, reranker, expander, llmClient, cfg.RerankTopN)
	slog.Info("Retrieval engine initialized",
		"bm25_weight", cfg.BM25Weight, "semantic_weight", cfg.SemanticWeight)

	sessions := service.NewSessionStore()
	askService := service.NewAskService(engine, sessions, pipeline.Ready)

	deps := &http.Deps{
		AskService:       askService,
		Pipeline:         pipeline,
		NoteRepo:         noteRepo,
		Scanner:          scanner,
		VectorStore:      vectorStore,
		DB:               db,
		Probe:            probe,
		LLMBaseURL:       cfg.LLMBaseURL,
		EmbeddingBaseURL: cfg.EmbeddingBaseURL,
		CollectionName:   cfg.QdrantCollection,
	}
	router := http.NewRouter(deps)

	// Build or load the index in the background so the server can report
	// health while a large vault is being embedded.
	go func() {
		indexCtx := context.Background()
		slog.Info("Loading index")
		if err := pipeline.LoadOrCreate(indexCtx, false); err != nil {
			slog.Error("Index load failed, use POST /api/v1/rebuild to retry", "error", err)
			return
		}
		slog.Info("Index ready", "collection", pipeline.Collection())

		if cfg.WatchEnabled {
			slog.Info("Watching vault for changes", "debounce", cfg.WatchDebounce)
			if err := vault.Watch(indexCtx, scanner, cfg.WatchDebounce, pipeline.Sync); err != nil {
				slog.Error("Vault watcher stopped", "error", err)
			}
		}
	}()

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
