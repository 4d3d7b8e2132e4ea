package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is a brute-force vector index over a DocumentStore's
// embedding rows. Chunk filters are evaluated through their Match
// predicate; filters made only of SQL are rejected.
type VectorStore struct {
	db *DocumentStore
}

// VectorStore returns the vector view of the store.
func (s *DocumentStore) VectorStore() *VectorStore {
	return &VectorStore{db: s}
}

// Store writes the vector for an existing embedding row.
func (v *VectorStore) Store(_ context.Context, embeddingID string, vector []float32) error {
	if err := domain.CheckDimension(vector); err != nil {
		return err
	}
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	if _, ok := v.db.embeddings[embeddingID]; !ok {
		return fmt.Errorf("%w: embedding %s", domain.ErrNotFound, embeddingID)
	}
	v.db.vectors[embeddingID] = slices.Clone(vector)
	return nil
}

// BatchStore validates every item and then writes all of them.
func (v *VectorStore) BatchStore(_ context.Context, items []domain.VectorItem) error {
	for i, item := range items {
		if err := domain.CheckDimension(item.Vector); err != nil {
			return fmt.Errorf("item %d (%s): %w", i, item.EmbeddingID, err)
		}
	}
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	for _, item := range items {
		if _, ok := v.db.embeddings[item.EmbeddingID]; !ok {
			return fmt.Errorf("%w: embedding %s", domain.ErrNotFound, item.EmbeddingID)
		}
	}
	for _, item := range items {
		v.db.vectors[item.EmbeddingID] = slices.Clone(item.Vector)
	}
	return nil
}

// DeleteByDocument removes the vectors of every embedding of a document.
func (v *VectorStore) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	n := 0
	for embID, emb := range v.db.embeddings {
		if emb.DocumentID != documentID {
			continue
		}
		if _, ok := v.db.vectors[embID]; ok {
			delete(v.db.vectors, embID)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored vectors.
func (v *VectorStore) Count(_ context.Context) (int, error) {
	v.db.mu.RLock()
	defer v.db.mu.RUnlock()
	return len(v.db.vectors), nil
}

// QueryCandidates scans every vector and returns the nearest ones.
func (v *VectorStore) QueryCandidates(_ context.Context, q driven.CandidateQuery) ([]domain.VectorCandidate, error) {
	if err := domain.CheckDimension(q.Vector); err != nil {
		return nil, err
	}
	filtered := !q.ChunkFilter.IsEmpty()
	if filtered && q.ChunkFilter.Match == nil {
		return nil, fmt.Errorf("%w: raw SQL chunk filters require the SQLite store", domain.ErrInvalidInput)
	}

	v.db.mu.RLock()
	defer v.db.mu.RUnlock()

	var out []domain.VectorCandidate
	for embID, vec := range v.db.vectors {
		emb, ok := v.db.embeddings[embID]
		if !ok {
			continue
		}
		if len(q.DocumentIDs) > 0 && !slices.Contains(q.DocumentIDs, emb.DocumentID) {
			continue
		}

		var chunk *domain.Chunk
		if emb.ChunkID != nil {
			if c, ok := v.db.findChunk(*emb.ChunkID); ok {
				chunk = &c
			}
			if q.PageRange != nil && (chunk == nil || chunk.PageNumber == nil || !q.PageRange.Contains(*chunk.PageNumber)) {
				continue
			}
			if filtered && (chunk == nil || !q.ChunkFilter.Match(*chunk)) {
				continue
			}
		}

		dist, err := domain.CosineDistance(q.Vector, vec)
		if err != nil {
			return nil, fmt.Errorf("%w: stored vector %s: %v", domain.ErrIntegrity, embID, err)
		}
		out = append(out, v.candidate(emb, chunk, dist))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Result.Distance != out[j].Result.Distance {
			return out[i].Result.Distance < out[j].Result.Distance
		}
		return out[i].Result.EmbeddingID < out[j].Result.EmbeddingID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// candidate builds a search result. Caller must hold the lock.
func (v *VectorStore) candidate(emb domain.Embedding, chunk *domain.Chunk, dist float64) domain.VectorCandidate {
	r := domain.VectorSearchResult{
		EmbeddingID:        emb.ID,
		ResultType:         emb.ResultType(),
		Distance:           dist,
		OriginalText:       emb.OriginalText,
		OriginalTextLength: len(emb.OriginalText),
		DocumentID:         emb.DocumentID,
		SourceFilePath:     emb.SourceFilePath,
		SourceFileName:     emb.SourceFileName,
		SourceFileHash:     emb.SourceFileHash,
		ChunkID:            emb.ChunkID,
		ImageID:            emb.ImageID,
		ExtractionID:       emb.ExtractionID,
		PageNumber:         emb.PageNumber,
		PageRange:          emb.PageRange,
		ModelName:          emb.ModelName,
		ProvenanceID:       emb.ProvenanceID,
		ContentHash:        emb.ContentHash,
	}
	if chunk != nil {
		index, start, end := chunk.Index, chunk.StartOffset, chunk.EndOffset
		r.ChunkIndex = &index
		r.CharacterStart = &start
		r.CharacterEnd = &end
		r.HeadingContext = chunk.HeadingContext
		r.SectionPath = chunk.SectionPath
		r.ContentTypes = chunk.ContentTypes
		if r.PageNumber == nil {
			r.PageNumber = chunk.PageNumber
		}
	}

	c := domain.VectorCandidate{Result: r}
	if results := v.db.ocrResults[emb.DocumentID]; len(results) > 0 {
		c.QualityScore = results[len(results)-1].QualityScore
	}
	return c
}
