package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"cerebro/internal/contextutil"
	"cerebro/internal/indexer"
)

// StatsProvider reports index readiness and statistics.
type StatsProvider interface {
	Ready() bool
	Stats(ctx context.Context) (*indexer.Stats, error)
}

// StatsHandler serves index statistics.
type StatsHandler struct {
	pipeline StatsProvider
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(pipeline StatsProvider) *StatsHandler {
	return &StatsHandler{pipeline: pipeline}
}

// ServeHTTP handles HTTP requests for index statistics.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !h.pipeline.Ready() {
		writeJSONError(w, http.StatusServiceUnavailable, "Index not ready")
		return
	}

	stats, err := h.pipeline.Stats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to collect index stats", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to collect index stats")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeJSONError writes an error response.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
