package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cerebro/internal/indexer"
)

type fakeRebuilder struct {
	err   error
	calls int
}

func (f *fakeRebuilder) Rebuild(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestRebuildHandler_Success(t *testing.T) {
	rebuilder := &fakeRebuilder{}
	handler := NewRebuildHandler(rebuilder)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if rebuilder.calls != 1 {
		t.Errorf("Rebuild called %d times, want 1", rebuilder.calls)
	}

	var resp RebuildResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "index rebuilt" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestRebuildHandler_EmptyVault(t *testing.T) {
	handler := NewRebuildHandler(&fakeRebuilder{err: indexer.ErrNoNotes})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRebuildHandler_Failure(t *testing.T) {
	handler := NewRebuildHandler(&fakeRebuilder{err: errors.New("qdrant down")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestRebuildHandler_MethodNotAllowed(t *testing.T) {
	rebuilder := &fakeRebuilder{}
	handler := NewRebuildHandler(rebuilder)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rebuild", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if rebuilder.calls != 0 {
		t.Errorf("Rebuild called %d times, want 0", rebuilder.calls)
	}
}
