package rag

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"cerebro/internal/storage"
	"cerebro/internal/vectorstore"
)

type staticRetriever struct {
	candidates []Candidate
	err        error
}

func (s *staticRetriever) Retrieve(ctx context.Context, query string) ([]Candidate, error) {
	return s.candidates, s.err
}

func cand(id, source string) Candidate {
	return Candidate{ID: id, Source: source, Content: "content " + id, Provenance: ProvenanceRetrieved}
}

func TestEnsembleRetriever_AgreementWins(t *testing.T) {
	// "b" appears in both rankings, so fusion should put it first even
	// though neither leg ranks it first.
	lexical := &staticRetriever{candidates: []Candidate{cand("a", "a.md"), cand("b", "b.md")}}
	semantic := &staticRetriever{candidates: []Candidate{cand("c", "c.md"), cand("b", "b.md")}}

	ensemble, err := NewEnsembleRetriever([]Retriever{lexical, semantic}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("NewEnsembleRetriever() error = %v", err)
	}

	results, err := ensemble.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Retrieve() returned %d candidates, want 3", len(results))
	}
	if results[0].ID != "b" {
		t.Errorf("top candidate = %s, want b", results[0].ID)
	}
}

func TestEnsembleRetriever_ZeroWeightDegenerates(t *testing.T) {
	lexical := &staticRetriever{candidates: []Candidate{cand("a", "a.md"), cand("b", "b.md")}}
	semantic := &staticRetriever{candidates: []Candidate{cand("c", "c.md"), cand("d", "d.md")}}

	ensemble, err := NewEnsembleRetriever([]Retriever{lexical, semantic}, []float64{0, 1})
	if err != nil {
		t.Fatalf("NewEnsembleRetriever() error = %v", err)
	}

	results, err := ensemble.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Retrieve() returned %d candidates, want only the semantic leg's 2", len(results))
	}
	if results[0].ID != "c" || results[1].ID != "d" {
		t.Errorf("fused order = [%s %s], want [c d]", results[0].ID, results[1].ID)
	}
}

func TestEnsembleRetriever_DeduplicatesByID(t *testing.T) {
	shared := cand("x", "x.md")
	left := &staticRetriever{candidates: []Candidate{shared}}
	right := &staticRetriever{candidates: []Candidate{shared}}

	ensemble, err := NewEnsembleRetriever([]Retriever{left, right}, []float64{0.4, 0.6})
	if err != nil {
		t.Fatalf("NewEnsembleRetriever() error = %v", err)
	}

	results, err := ensemble.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Retrieve() returned %d candidates, want 1 after dedup", len(results))
	}
}

func TestNewEnsembleRetriever_Mismatch(t *testing.T) {
	if _, err := NewEnsembleRetriever([]Retriever{&staticRetriever{}}, []float64{0.5, 0.5}); err == nil {
		t.Error("NewEnsembleRetriever() expected error for mismatched lengths")
	}
	if _, err := NewEnsembleRetriever(nil, nil); err == nil {
		t.Error("NewEnsembleRetriever() expected error for empty retrievers")
	}
}

func newCatalog(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return db
}

func seedChunks(t *testing.T, db *sql.DB, source, linkCSV string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	if err := storage.NewNoteRepo(db).Upsert(ctx, &storage.NoteRecord{Path: source, Title: source, Links: linkCSV}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	chunks := make([]*storage.ChunkRecord, len(texts))
	for i, text := range texts {
		chunks[i] = &storage.ChunkRecord{
			ID:         source + "-" + string(rune('0'+i)),
			Source:     source,
			ChunkIndex: i,
			Text:       text,
			Links:      linkCSV,
		}
	}
	if err := storage.NewChunkRepo(db).InsertBatch(ctx, chunks); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
}

func TestLexicalRetriever(t *testing.T) {
	db := newCatalog(t)
	seedChunks(t, db, "go.md", "Concurrency", "Goroutines and channels make concurrency simple in Go.")
	seedChunks(t, db, "bread.md", "", "Sourdough starter needs regular feeding.")

	retriever := NewLexicalRetriever(storage.NewChunkRepo(db), 5)
	results, err := retriever.Retrieve(context.Background(), "go concurrency goroutines")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Retrieve() returned no candidates")
	}
	if results[0].Source != "go.md" {
		t.Errorf("top candidate source = %s, want go.md", results[0].Source)
	}
	if results[0].Provenance != ProvenanceRetrieved {
		t.Errorf("provenance = %s, want %s", results[0].Provenance, ProvenanceRetrieved)
	}
	if len(results[0].Links) != 1 || results[0].Links[0] != "Concurrency" {
		t.Errorf("links = %v, want [Concurrency]", results[0].Links)
	}
}

func TestLexicalRetriever_EmptyCatalog(t *testing.T) {
	db := newCatalog(t)

	retriever := NewLexicalRetriever(storage.NewChunkRepo(db), 5)
	results, err := retriever.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Retrieve() = %v, want empty", results)
	}
}

type staticEmbedder struct{}

func (staticEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

type staticVectorSearch struct {
	vectorstore.VectorStore
	results []vectorstore.SearchResult
}

func (s staticVectorSearch) Search(ctx context.Context, collection string, query []float32, k int) ([]vectorstore.SearchResult, error) {
	return s.results, nil
}

func TestSemanticRetriever_BuildsCandidatesFromPayload(t *testing.T) {
	store := staticVectorSearch{results: []vectorstore.SearchResult{
		{
			PointID: "p1",
			Score:   0.87,
			Meta: map[string]any{
				"source":      "go.md",
				"chunk_index": int64(0),
				"links":       "Concurrency,Channels",
				"text":        "Goroutines are cheap.",
			},
		},
	}}

	retriever := NewSemanticRetriever(staticEmbedder{}, store, "notes", 5)
	results, err := retriever.Retrieve(context.Background(), "goroutines")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Retrieve() returned %d candidates, want 1", len(results))
	}
	got := results[0]
	if got.Source != "go.md" || got.Content != "Goroutines are cheap." {
		t.Errorf("candidate = %+v, payload not mapped", got)
	}
	if len(got.Links) != 2 {
		t.Errorf("links = %v, want 2 targets", got.Links)
	}
	if got.Score != float64(float32(0.87)) {
		t.Errorf("score = %f, want 0.87", got.Score)
	}
}

func TestBuildRetriever_WeightSelection(t *testing.T) {
	db := newCatalog(t)
	repo := storage.NewChunkRepo(db)
	store := staticVectorSearch{}

	// Both weights positive: ensemble.
	r, err := BuildRetriever(repo, staticEmbedder{}, store, "notes", 5, 12, 0.4, 0.6)
	if err != nil {
		t.Fatalf("BuildRetriever() error = %v", err)
	}
	if _, ok := r.(*ensembleRetriever); !ok {
		t.Errorf("BuildRetriever(0.4, 0.6) = %T, want ensemble", r)
	}

	// Zero lexical weight: semantic only.
	r, err = BuildRetriever(repo, staticEmbedder{}, store, "notes", 5, 12, 0, 1)
	if err != nil {
		t.Fatalf("BuildRetriever() error = %v", err)
	}
	if _, ok := r.(*semanticRetriever); !ok {
		t.Errorf("BuildRetriever(0, 1) = %T, want semantic", r)
	}

	// Zero semantic weight: lexical only.
	r, err = BuildRetriever(repo, staticEmbedder{}, store, "notes", 5, 12, 1, 0)
	if err != nil {
		t.Fatalf("BuildRetriever() error = %v", err)
	}
	if _, ok := r.(*lexicalRetriever); !ok {
		t.Errorf("BuildRetriever(1, 0) = %T, want lexical", r)
	}
}
