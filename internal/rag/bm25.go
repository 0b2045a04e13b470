package rag

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"cerebro/internal/storage"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

type scoredChunk struct {
	chunk *storage.ChunkRecord
	score float64
}

// bm25Rank scores chunks against the query with Okapi BM25 and returns
// the top k, best first. Chunks that match no query term are dropped.
func bm25Rank(query string, chunks []*storage.ChunkRecord, k int) []scoredChunk {
	queryTokens := filterStopwords(tokenize(query))
	if len(queryTokens) == 0 || len(chunks) == 0 {
		return nil
	}

	docTokens := make([][]string, len(chunks))
	totalLen := 0
	for i, chunk := range chunks {
		docTokens[i] = tokenize(chunk.Text)
		totalLen += len(docTokens[i])
	}
	avgLen := float64(totalLen) / float64(len(chunks))
	if avgLen == 0 {
		return nil
	}

	// Document frequency per query term.
	df := make(map[string]int, len(queryTokens))
	for _, tokens := range docTokens {
		seen := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			seen[token] = struct{}{}
		}
		for _, term := range queryTokens {
			if _, ok := seen[term]; ok {
				df[term]++
			}
		}
	}

	n := float64(len(chunks))
	idf := make(map[string]float64, len(queryTokens))
	for _, term := range queryTokens {
		d := float64(df[term])
		idf[term] = math.Log(1 + (n-d+0.5)/(d+0.5))
	}

	scored := make([]scoredChunk, 0, len(chunks))
	for i, chunk := range chunks {
		tokens := docTokens[i]
		if len(tokens) == 0 {
			continue
		}

		freq := make(map[string]int, len(tokens))
		for _, token := range tokens {
			freq[token]++
		}

		var score float64
		docLen := float64(len(tokens))
		for _, term := range queryTokens {
			tf := float64(freq[term])
			if tf == 0 {
				continue
			}
			score += idf[term] * (tf * (bm25K1 + 1)) / (tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}

		if score > 0 {
			scored = append(scored, scoredChunk{chunk: chunk, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
