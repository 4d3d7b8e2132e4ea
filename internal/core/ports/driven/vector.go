package driven

import (
	"context"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// VectorStore holds one 768-d vector per registered embedding row and
// answers cosine distance queries joined with the embedding metadata.
type VectorStore interface {
	// Store writes the vector for an existing embedding row.
	// Returns domain.ErrDimensionMismatch for a wrong-sized vector and
	// domain.ErrNotFound when the embedding row does not exist.
	Store(ctx context.Context, embeddingID string, vector []float32) error

	// BatchStore validates every item and then writes all of them in one
	// transaction. Nothing is written when any item fails.
	BatchStore(ctx context.Context, items []domain.VectorItem) error

	// DeleteByDocument removes the vectors of every embedding of a document
	// and returns how many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// QueryCandidates returns up to q.Limit candidates ordered by ascending
	// cosine distance, with document, chunk filter and chunk page range
	// constraints applied. Quality reranking is left to the caller.
	QueryCandidates(ctx context.Context, q CandidateQuery) ([]domain.VectorCandidate, error)
}

// CandidateQuery is the storage-level part of a vector search.
type CandidateQuery struct {
	Vector      []float32
	Limit       int
	DocumentIDs []string

	// ChunkFilter conditions are rewritten to the store's chunk alias and
	// widened so non-chunk rows pass.
	ChunkFilter *domain.ChunkFilter

	// PageRange is applied in SQL to chunk rows only.
	PageRange *domain.PageRangeFilter
}
