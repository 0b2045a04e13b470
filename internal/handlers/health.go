package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"cerebro/internal/contextutil"
	"cerebro/internal/llm"
	"cerebro/internal/vectorstore"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	vectorStore        vectorstore.VectorStore
	db                 *sql.DB
	probe              *llm.Probe
	llmBaseURL         string
	embeddingBaseURL   string
	collectionName     string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. llmBaseURL and
// embeddingBaseURL may be empty to skip the respective probe.
func NewHealthHandler(vectorStore vectorstore.VectorStore, db *sql.DB, probe *llm.Probe, llmBaseURL, embeddingBaseURL, collectionName string) *HealthHandler {
	return &HealthHandler{
		vectorStore:        vectorStore,
		db:                 db,
		probe:              probe,
		llmBaseURL:         llmBaseURL,
		embeddingBaseURL:   embeddingBaseURL,
		collectionName:     collectionName,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// The vector store and the catalog are hard dependencies: if either fails
// the service cannot answer and reports unhealthy with 503. The LLM and
// embedding services only degrade the status since the index itself still
// serves.
//
// swagger:route GET /health healthCheck
//
// # Health check endpoint
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy or degraded
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: System is unhealthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var hard, soft []string

	if h.checkVectorStore(checkCtx, logger) {
		checks["vector_store"] = "ok"
	} else {
		checks["vector_store"] = "error"
		hard = append(hard, "vector_store_unavailable")
	}

	if err := h.db.PingContext(checkCtx); err != nil {
		logger.WarnContext(ctx, "catalog health check failed", "error", err)
		checks["catalog"] = "error"
		hard = append(hard, "catalog_unavailable")
	} else {
		checks["catalog"] = "ok"
	}

	for name, baseURL := range map[string]string{
		"llm":       h.llmBaseURL,
		"embedding": h.embeddingBaseURL,
	} {
		if baseURL == "" || h.probe == nil {
			continue
		}
		if err := h.probe.Ping(checkCtx, baseURL); err != nil {
			logger.WarnContext(ctx, "probe failed", "service", name, "error", err)
			checks[name] = "error"
			soft = append(soft, name+"_unavailable")
		} else {
			checks[name] = "ok"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case len(hard) > 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case len(soft) > 0:
		status = "degraded"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    append(hard, soft...),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}

// checkVectorStore checks that the serving alias resolves to a
// collection. The serving name is an alias, and alias resolution is
// the one check the server answers unambiguously.
func (h *HealthHandler) checkVectorStore(ctx context.Context, logger *slog.Logger) bool {
	target, err := h.vectorStore.ResolveAlias(ctx, h.collectionName)
	if err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		return false
	}
	if target == "" {
		logger.WarnContext(ctx, "serving alias does not resolve", "alias", h.collectionName)
		return false
	}
	return true
}
