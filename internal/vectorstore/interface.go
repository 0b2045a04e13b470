package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks cerebro/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// CollectionInfo contains information about a collection.
type CollectionInfo struct {
	VectorSize  int
	PointsCount int
	Status      string
}

// VectorStore defines the interface for vector storage operations.
// Collection arguments accept either a physical collection name or an
// alias; rebuilds create a fresh collection and repoint the alias so
// readers never observe a half-built index.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search.
	Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// DeleteBySource removes every point whose source payload matches path.
	DeleteBySource(ctx context.Context, collection string, path string) error

	// EnsureCollection creates the collection if it does not exist and
	// validates the vector size if it does.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// CreateCollection creates a new collection, failing if it exists.
	CreateCollection(ctx context.Context, collection string, vectorSize int) error

	// DropCollection deletes a collection and its points.
	DropCollection(ctx context.Context, collection string) error

	// CollectionExists reports whether a physical collection exists.
	// Qdrant does not guarantee alias resolution for collection
	// management calls, so check an aliased index with ResolveAlias.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// SwapAlias atomically points alias at collection, replacing any
	// previous target. Queries through the alias see either the old
	// collection or the new one, never a mix.
	SwapAlias(ctx context.Context, alias, collection string) error

	// ResolveAlias returns the physical collection an alias points at,
	// or "" when the alias does not exist.
	ResolveAlias(ctx context.Context, alias string) (string, error)

	// GetCollectionInfo returns collection metadata including point count.
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)
}
