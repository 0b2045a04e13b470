package rag

import (
	"testing"

	"cerebro/internal/storage"
)

func chunk(id, source, text string) *storage.ChunkRecord {
	return &storage.ChunkRecord{ID: id, Source: source, Text: text}
}

func TestBM25Rank_RelevantFirst(t *testing.T) {
	chunks := []*storage.ChunkRecord{
		chunk("1", "cooking.md", "A recipe for sourdough bread with a long fermentation."),
		chunk("2", "go.md", "Goroutines are lightweight threads managed by the Go runtime."),
		chunk("3", "travel.md", "Notes from a trip to the mountains last summer."),
	}

	scored := bm25Rank("goroutines in the go runtime", chunks, 3)
	if len(scored) == 0 {
		t.Fatal("bm25Rank() returned no results")
	}
	if scored[0].chunk.ID != "2" {
		t.Errorf("top result = %s, want chunk 2", scored[0].chunk.ID)
	}
	for _, sc := range scored {
		if sc.score <= 0 {
			t.Errorf("chunk %s has non-positive score %f", sc.chunk.ID, sc.score)
		}
	}
}

func TestBM25Rank_DropsNonMatching(t *testing.T) {
	chunks := []*storage.ChunkRecord{
		chunk("1", "a.md", "completely unrelated text about gardening"),
		chunk("2", "b.md", "kubernetes cluster networking"),
	}

	scored := bm25Rank("kubernetes networking", chunks, 5)
	if len(scored) != 1 {
		t.Fatalf("bm25Rank() returned %d results, want 1", len(scored))
	}
	if scored[0].chunk.ID != "2" {
		t.Errorf("result = %s, want chunk 2", scored[0].chunk.ID)
	}
}

func TestBM25Rank_CapsAtK(t *testing.T) {
	var chunks []*storage.ChunkRecord
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunk(string(rune('a'+i)), "n.md", "shared term database indexing"))
	}

	scored := bm25Rank("database indexing", chunks, 3)
	if len(scored) != 3 {
		t.Errorf("bm25Rank() returned %d results, want 3", len(scored))
	}
}

func TestBM25Rank_StopwordOnlyQuery(t *testing.T) {
	chunks := []*storage.ChunkRecord{chunk("1", "a.md", "some note text")}

	if scored := bm25Rank("the and of", chunks, 5); scored != nil {
		t.Errorf("bm25Rank() = %v, want nil for stopword-only query", scored)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Hello, World!", 2},
		{"", 0},
		{"...", 0},
		{"wiki-link style [[Target]]", 4},
	}
	for _, tt := range tests {
		if got := tokenize(tt.in); len(got) != tt.want {
			t.Errorf("tokenize(%q) = %v, want %d tokens", tt.in, got, tt.want)
		}
	}
}
