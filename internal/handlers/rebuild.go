package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cerebro/internal/contextutil"
	"cerebro/internal/indexer"
)

// Rebuilder runs a full index rebuild.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// RebuildHandler triggers a full index rebuild.
type RebuildHandler struct {
	pipeline Rebuilder
}

// NewRebuildHandler creates a new RebuildHandler.
func NewRebuildHandler(pipeline Rebuilder) *RebuildHandler {
	return &RebuildHandler{pipeline: pipeline}
}

// RebuildResponse represents the response from the rebuild endpoint.
type RebuildResponse struct {
	Message     string  `json:"message"`
	ProcessTime float64 `json:"process_time"`
}

// ServeHTTP handles HTTP requests for index rebuilds. The rebuild runs
// synchronously; queries keep serving the previous index until the new one
// is swapped in.
func (h *RebuildHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	start := time.Now()
	if err := h.pipeline.Rebuild(ctx); err != nil {
		logger.ErrorContext(ctx, "rebuild failed", "error", err)
		if errors.Is(err, indexer.ErrNoNotes) {
			writeJSONError(w, http.StatusBadRequest, "No notes found in vault")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "Failed to rebuild index")
		return
	}

	resp := RebuildResponse{
		Message:     "index rebuilt",
		ProcessTime: time.Since(start).Seconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
