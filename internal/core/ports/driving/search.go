package driving

import (
	"context"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// SearchService provides vector similarity search to external actors.
type SearchService interface {
	// Search returns the nearest embedded artifacts to a query vector,
	// reranked by OCR quality.
	Search(ctx context.Context, query []float32, opts domain.VectorSearchOptions) ([]domain.VectorSearchResult, error)

	// SearchText embeds query and searches with the resulting vector.
	// Returns domain.ErrEmbeddingUnavailable without an embedding service.
	SearchText(ctx context.Context, query string, opts domain.VectorSearchOptions) ([]domain.VectorSearchResult, error)
}
