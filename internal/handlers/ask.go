package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cerebro/internal/contextutil"
	"cerebro/internal/rag"
	"cerebro/internal/service"
)

// AskHandler handles HTTP requests for retrieval-augmented queries.
type AskHandler struct {
	askService service.AskService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(askService service.AskService) *AskHandler {
	return &AskHandler{askService: askService}
}

// AskRequest represents the HTTP request payload for queries.
//
// swagger:model AskRequest
type AskRequest struct {
	// The question to answer from the indexed notes
	Question string `json:"question"`

	// Optional session identifier for multi-turn conversations.
	// Leave empty to start a new session.
	SessionID string `json:"session_id,omitempty"`
}

// SourceResponse describes one note that contributed to the answer.
//
// swagger:model SourceResponse
type SourceResponse struct {
	// Relative path of the note within the vault
	Source string `json:"source"`

	// Relevance score assigned during retrieval
	Score float64 `json:"score"`

	// How the note entered the context: "retrieved" or "graph_link"
	Provenance string `json:"provenance"`
}

// AskResponse represents the HTTP response payload for queries.
//
// swagger:model AskResponse
type AskResponse struct {
	// The generated answer
	Answer string `json:"answer"`

	// Session identifier to send on follow-up questions
	SessionID string `json:"session_id"`

	// Notes that contributed to the answer, best first
	Sources []SourceResponse `json:"sources"`

	// Raw text of each context block, in source order
	TextBlocks []string `json:"text_blocks"`

	// Wall-clock processing time in seconds
	ProcessTime float64 `json:"process_time"`
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for queries.
//
// swagger:route POST /api/v1/ask askQuestion
//
// # Ask a question
//
// Answers a question from the indexed vault. Pass the session_id from a
// previous response to continue a conversation.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Answer with supporting sources
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Invalid request
//	'404':
//	  description: No indexed documents matched
//	'502':
//	  description: LLM or embedding service unavailable
//	'503':
//	  description: Index not ready
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.askService.Ask(ctx, req.Question, req.SessionID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	sources := make([]SourceResponse, len(result.Sources))
	textBlocks := make([]string, len(result.Sources))
	for i, src := range result.Sources {
		sources[i] = SourceResponse{
			Source:     src.Source,
			Score:      src.Score,
			Provenance: src.Provenance,
		}
		textBlocks[i] = src.Content
	}

	resp := AskResponse{
		Answer:      result.Answer,
		SessionID:   result.SessionID,
		Sources:     sources,
		TextBlocks:  textBlocks,
		ProcessTime: time.Since(start).Seconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleServiceError maps service errors to HTTP status codes.
func (h *AskHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "ask request failed", "error", err)

	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, service.ErrNotReady):
		h.writeError(w, http.StatusServiceUnavailable, "Index not ready")
	case errors.Is(err, rag.ErrNoDocuments):
		h.writeError(w, http.StatusNotFound, "No indexed documents matched the question")
	case errors.Is(err, rag.ErrServiceUnavailable):
		h.writeError(w, http.StatusBadGateway, "External service error")
	case errors.Is(err, service.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, "Invalid input")
	default:
		h.writeError(w, http.StatusInternalServerError, "Failed to process question")
	}
}

// writeError writes an error response.
func (h *AskHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
