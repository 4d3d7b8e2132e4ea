package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
	"github.com/custodia-labs/ocrprov/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService provides quality-reranked vector similarity search.
type SearchService struct {
	vectors          driven.VectorStore
	embeddingService driven.EmbeddingService
}

// NewSearchService creates a new search service.
// The embeddingService parameter is optional (can be nil); without it only
// Search with a precomputed vector is available.
func NewSearchService(vectors driven.VectorStore, embeddingService driven.EmbeddingService) *SearchService {
	return &SearchService{
		vectors:          vectors,
		embeddingService: embeddingService,
	}
}

// SearchText embeds query and searches with the resulting vector.
func (s *SearchService) SearchText(
	ctx context.Context, query string, opts domain.VectorSearchOptions,
) ([]domain.VectorSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	logger.Debug("Embedding query: %q", query)
	vector, err := s.embeddingService.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.Search(ctx, vector, opts)
}

// Search returns the nearest embedded artifacts to query.
//
// Candidates are overfetched, filtered by distance and page, then every
// candidate's similarity is scaled by its document's OCR quality before
// the final ordering and truncation.
func (s *SearchService) Search(
	ctx context.Context, query []float32, opts domain.VectorSearchOptions,
) ([]domain.VectorSearchResult, error) {
	logger.Section("Vector Search")

	if err := domain.CheckDimension(query); err != nil {
		return nil, err
	}
	opts, err := normalizeSearchOptions(opts)
	if err != nil {
		return nil, err
	}

	maxDistance := 1 - opts.Threshold
	fetch := opts.Limit * domain.SearchOverfetchFactor
	logger.Debug("Limit: %d, overfetch: %d, max distance: %.4f", opts.Limit, fetch, maxDistance)

	candidates, err := s.vectors.QueryCandidates(ctx, driven.CandidateQuery{
		Vector:      query,
		Limit:       fetch,
		DocumentIDs: opts.DocumentIDs,
		ChunkFilter: opts.ChunkFilter,
		PageRange:   opts.PageRange,
	})
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	logger.Debug("Raw candidates: %d", len(candidates))

	results := make([]domain.VectorSearchResult, 0, len(candidates))
	for _, c := range candidates {
		r := c.Result
		if r.Distance > maxDistance {
			continue
		}
		if opts.PageRange != nil && r.ResultType != domain.ResultTypeChunk {
			if r.PageNumber == nil || !opts.PageRange.Contains(*r.PageNumber) {
				continue
			}
		}
		if r.OriginalText == "" {
			logger.Warn("Dropping search hit %s: no original text", r.EmbeddingID)
			continue
		}

		r.QualityScore = c.QualityScore
		r.QualityMultiplier = domain.QualityMultiplier(c.QualityScore)
		r.SimilarityScore = (1 - r.Distance) * r.QualityMultiplier
		r.OriginalTextLength = len(r.OriginalText)
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	logger.Info("Final results: %d", len(results))
	return results, nil
}

// normalizeSearchOptions applies defaults and rejects out-of-range values.
func normalizeSearchOptions(opts domain.VectorSearchOptions) (domain.VectorSearchOptions, error) {
	switch {
	case opts.Limit == 0:
		opts.Limit = domain.DefaultSearchLimit
	case opts.Limit < 0 || opts.Limit > domain.MaxSearchLimit:
		return opts, fmt.Errorf("%w: limit %d outside 1..%d", domain.ErrInvalidInput, opts.Limit, domain.MaxSearchLimit)
	}
	if math.IsNaN(opts.Threshold) || opts.Threshold < 0 || opts.Threshold > 1 {
		return opts, fmt.Errorf("%w: threshold %v outside 0..1", domain.ErrInvalidInput, opts.Threshold)
	}
	if p := opts.PageRange; p != nil {
		if p.Min < 0 || p.Max < 0 {
			return opts, fmt.Errorf("%w: negative page bound", domain.ErrInvalidInput)
		}
		if p.Min > 0 && p.Max > 0 && p.Min > p.Max {
			return opts, fmt.Errorf("%w: page range %d-%d", domain.ErrInvalidInput, p.Min, p.Max)
		}
	}
	return opts, nil
}
