package rag

import (
	"context"
	"fmt"
	"sort"

	"cerebro/internal/contextutil"
	"cerebro/internal/links"
	"cerebro/internal/storage"
	"cerebro/internal/vectorstore"
)

// rrfConstant dampens the influence of low ranks in reciprocal rank
// fusion. 60 is the value from the original RRF paper.
const rrfConstant = 60.0

// Retriever produces ranked candidates for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Candidate, error)
}

// Embedder turns a query into a vector.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// lexicalRetriever ranks catalog chunks with BM25.
type lexicalRetriever struct {
	chunkRepo storage.ChunkStore
	k         int
}

// NewLexicalRetriever creates a BM25 retriever over the chunk catalog.
func NewLexicalRetriever(chunkRepo storage.ChunkStore, k int) Retriever {
	return &lexicalRetriever{chunkRepo: chunkRepo, k: k}
}

func (r *lexicalRetriever) Retrieve(ctx context.Context, query string) ([]Candidate, error) {
	chunks, err := r.chunkRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	scored := bm25Rank(query, chunks, r.k)

	candidates := make([]Candidate, 0, len(scored))
	for _, sc := range scored {
		candidates = append(candidates, Candidate{
			ID:         sc.chunk.ID,
			Source:     sc.chunk.Source,
			Content:    sc.chunk.Text,
			Score:      sc.score,
			Provenance: ProvenanceRetrieved,
			Links:      links.Split(sc.chunk.Links),
		})
	}
	return candidates, nil
}

// semanticRetriever ranks chunks by vector similarity.
type semanticRetriever struct {
	embedder   Embedder
	store      vectorstore.VectorStore
	collection string
	k          int
}

// NewSemanticRetriever creates a nearest-neighbor retriever over the
// vector store.
func NewSemanticRetriever(embedder Embedder, store vectorstore.VectorStore, collection string, k int) Retriever {
	return &semanticRetriever{embedder: embedder, store: store, collection: collection, k: k}
}

func (r *semanticRetriever) Retrieve(ctx context.Context, query string) ([]Candidate, error) {
	vectors, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %v", ErrServiceUnavailable, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	results, err := r.store.Search(ctx, r.collection, vectors[0], r.k)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search failed: %v", ErrServiceUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, result := range results {
		source, _ := result.Meta["source"].(string)
		text, _ := result.Meta["text"].(string)
		linkCSV, _ := result.Meta["links"].(string)

		candidates = append(candidates, Candidate{
			ID:         result.PointID,
			Source:     source,
			Content:    text,
			Score:      float64(result.Score),
			Provenance: ProvenanceRetrieved,
			Links:      links.Split(linkCSV),
		})
	}
	return candidates, nil
}

// ensembleRetriever fuses rankings from several retrievers with
// weighted reciprocal rank fusion. A retriever with weight zero is
// skipped entirely, so a single weight-one retriever degenerates to
// that retriever's own ranking.
type ensembleRetriever struct {
	retrievers []Retriever
	weights    []float64
}

// NewEnsembleRetriever fuses the given retrievers. retrievers and
// weights must have the same length.
func NewEnsembleRetriever(retrievers []Retriever, weights []float64) (Retriever, error) {
	if len(retrievers) != len(weights) {
		return nil, fmt.Errorf("got %d retrievers but %d weights", len(retrievers), len(weights))
	}
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("at least one retriever is required")
	}
	return &ensembleRetriever{retrievers: retrievers, weights: weights}, nil
}

func (r *ensembleRetriever) Retrieve(ctx context.Context, query string) ([]Candidate, error) {
	logger := contextutil.LoggerFromContext(ctx)

	type fused struct {
		candidate Candidate
		score     float64
	}
	byKey := make(map[string]*fused)
	order := make([]string, 0)

	for i, retriever := range r.retrievers {
		if r.weights[i] <= 0 {
			continue
		}

		candidates, err := retriever.Retrieve(ctx, query)
		if err != nil {
			return nil, err
		}

		for rank, candidate := range candidates {
			key := candidate.ID
			if key == "" {
				key = candidate.Source + "\x00" + candidate.Content
			}

			contribution := r.weights[i] / (float64(rank+1) + rrfConstant)
			if existing, ok := byKey[key]; ok {
				existing.score += contribution
			} else {
				byKey[key] = &fused{candidate: candidate, score: contribution}
				order = append(order, key)
			}
		}
	}

	results := make([]Candidate, 0, len(byKey))
	for _, key := range order {
		f := byKey[key]
		f.candidate.Score = f.score
		results = append(results, f.candidate)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	logger.DebugContext(ctx, "rank fusion completed", "candidates", len(results))
	return results, nil
}

// BuildRetriever wires the hybrid retriever from its parts. Weights of
// zero disable the corresponding leg; if both are zero the semantic leg
// is used alone.
func BuildRetriever(
	chunkRepo storage.ChunkStore,
	embedder Embedder,
	store vectorstore.VectorStore,
	collection string,
	bm25K, semanticK int,
	bm25Weight, semanticWeight float64,
) (Retriever, error) {
	lexical := NewLexicalRetriever(chunkRepo, bm25K)
	semantic := NewSemanticRetriever(embedder, store, collection, semanticK)

	if bm25Weight <= 0 && semanticWeight <= 0 {
		return semantic, nil
	}
	if bm25Weight <= 0 {
		return semantic, nil
	}
	if semanticWeight <= 0 {
		return lexical, nil
	}
	return NewEnsembleRetriever([]Retriever{lexical, semantic}, []float64{bm25Weight, semanticWeight})
}
