package rag

import (
	"context"
	"fmt"
	"strings"

	"cerebro/internal/contextutil"
	"cerebro/internal/llm"
)

const systemPrompt = "You are a helpful assistant that answers questions based on the provided " +
	"context from the user's notes. Answer the question using only the information from the " +
	"context below. If the context doesn't contain enough information to answer the question, " +
	"say so. Cite the note a statement came from when possible."

// DefaultRerankTopN is how many candidates survive reranking.
const DefaultRerankTopN = 6

// Reranker reorders documents by cross-encoder relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]llm.RerankResult, error)
}

// ChatClient generates answers from a message history.
type ChatClient interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Engine answers questions over the indexed vault: retrieve, rerank,
// expand along links, then generate.
type Engine struct {
	retriever  Retriever
	reranker   Reranker // nil disables reranking
	expander   *Expander
	chat       ChatClient
	rerankTopN int
}

// NewEngine creates a RAG engine. reranker may be nil to skip the
// reranking stage.
func NewEngine(retriever Retriever, reranker Reranker, expander *Expander, chat ChatClient, rerankTopN int) *Engine {
	if rerankTopN <= 0 {
		rerankTopN = DefaultRerankTopN
	}
	return &Engine{
		retriever:  retriever,
		reranker:   reranker,
		expander:   expander,
		chat:       chat,
		rerankTopN: rerankTopN,
	}
}

// Retrieve runs the full retrieval pipeline for a query and returns
// scored candidates, best first. Returns ErrNoDocuments when the index
// is empty or nothing matches.
func (e *Engine) Retrieve(ctx context.Context, query string) ([]Candidate, error) {
	logger := contextutil.LoggerFromContext(ctx)

	candidates, err := e.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoDocuments
	}

	candidates, reranked := e.rerank(ctx, query, candidates)
	if !reranked {
		// Without cross-encoder scores, decay positionally from 1.0 so
		// rank order still carries into expansion.
		positionalScores(candidates)
	}

	if e.expander != nil {
		candidates = e.expander.Expand(ctx, candidates)
	}

	logger.InfoContext(ctx, "retrieval completed", "query_length", len(query), "candidates", len(candidates))
	return candidates, nil
}

// Ask retrieves context for the question and generates an answer,
// threading prior conversation turns through to the LLM.
func (e *Engine) Ask(ctx context.Context, question string, history []llm.Message) (string, []Candidate, error) {
	logger := contextutil.LoggerFromContext(ctx)

	candidates, err := e.Retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: fmt.Sprintf("%s\n\n%s", question, formatContext(candidates)),
	})

	answer, err := e.chat.ChatWithMessages(ctx, messages, llm.ChatParams{Temperature: 0.7})
	if err != nil {
		logger.ErrorContext(ctx, "LLM request failed", "error", err)
		return "", nil, fmt.Errorf("%w: LLM request failed: %v", ErrServiceUnavailable, err)
	}

	logger.InfoContext(ctx, "question answered", "answer_length", len(answer), "candidates", len(candidates))
	return answer, candidates, nil
}

// rerank reorders candidates with the cross-encoder, keeping at most
// rerankTopN. The second return reports whether cross-encoder scores
// were applied; a rerank failure falls back to the fused order.
func (e *Engine) rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, bool) {
	if e.reranker == nil {
		return capCandidates(candidates, e.rerankTopN), false
	}

	logger := contextutil.LoggerFromContext(ctx)

	documents := make([]string, len(candidates))
	for i, candidate := range candidates {
		documents[i] = candidate.Content
	}

	results, err := e.reranker.Rerank(ctx, query, documents, e.rerankTopN)
	if err != nil {
		logger.WarnContext(ctx, "rerank failed, keeping fused order", "error", err)
		return capCandidates(candidates, e.rerankTopN), false
	}

	reranked := make([]Candidate, 0, len(results))
	for _, result := range results {
		candidate := candidates[result.Index]
		candidate.Score = clamp01(result.RelevanceScore)
		reranked = append(reranked, candidate)
	}
	return reranked, true
}

// clamp01 bounds a cross-encoder score so it stays comparable with the
// discounted scores expansion assigns later.
func clamp01(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func capCandidates(candidates []Candidate, n int) []Candidate {
	if len(candidates) > n {
		return candidates[:n]
	}
	return candidates
}

// positionalScores assigns rank-derived scores decaying from 1.0.
func positionalScores(candidates []Candidate) {
	for i := range candidates {
		score := 1.0 - 0.1*float64(i)
		if score < 0.1 {
			score = 0.1
		}
		candidates[i].Score = score
	}
}

// formatContext renders candidates as the context block sent to the LLM.
func formatContext(candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("--- Context from notes ---\n\n")
	for _, candidate := range candidates {
		sb.WriteString(fmt.Sprintf("File: %s\n", candidate.Source))
		sb.WriteString(fmt.Sprintf("Content: %s\n\n", candidate.Content))
	}
	sb.WriteString("--- End Context ---")
	return sb.String()
}
