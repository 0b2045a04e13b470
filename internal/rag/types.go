// Package rag implements hybrid retrieval over the note index: lexical
// and semantic candidate generation, rank fusion, optional cross-encoder
// reranking, and link-graph context expansion.
package rag

import "errors"

// Provenance values recorded on candidates.
const (
	// ProvenanceRetrieved marks chunks found by lexical or semantic search.
	ProvenanceRetrieved = "retrieved"
	// ProvenanceGraphLink marks documents pulled in through wiki-links.
	ProvenanceGraphLink = "graph_link"
)

// ErrNoDocuments is returned when the index holds nothing to retrieve.
var ErrNoDocuments = errors.New("no documents in index")

// ErrServiceUnavailable is returned when a collaborator service
// (embedder, vector store, LLM) cannot be reached.
var ErrServiceUnavailable = errors.New("service unavailable")

// Candidate is one piece of context considered for the answer.
type Candidate struct {
	ID         string   // Chunk id, empty for whole-document candidates
	Source     string   // Note path relative to the vault root
	Content    string   // Chunk text, or full note text after expansion
	Score      float64  // Normalized relevance, higher is better
	Provenance string   // ProvenanceRetrieved or ProvenanceGraphLink
	Links      []string // Outbound wiki-link targets of the source note
}
