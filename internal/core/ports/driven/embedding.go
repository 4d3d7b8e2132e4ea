package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service; when nil, documents are stored without
// embeddings and text search is disabled.
//
// Generation happens outside the core: services call it before handing
// vectors to the VectorStore.
type EmbeddingService interface {
	// EmbedQuery generates the embedding for a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for document texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
