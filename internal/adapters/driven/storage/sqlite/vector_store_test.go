package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

func axis(i int) []float32 {
	v := make([]float32, domain.EmbeddingDimension)
	v[i] = 1
	return v
}

func blend(a, b float32) []float32 {
	v := make([]float32, domain.EmbeddingDimension)
	v[0], v[1] = a, b
	return v
}

// seedVectors stores:
//
//	e1: doc-1 chunk c1 (page 1, paragraph), axis 0
//	e2: doc-1 chunk c2 (page 3, table, atomic), 0.6/0.8 blend (distance 0.4)
//	e3: doc-1 image on page 2, axis 1 (distance 1.0)
//	e4: doc-2 extraction without a page, axis 0
func seedVectors(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", testTime)
	createTestDocument(t, store, "doc-2", testTime)

	quality := 4.0
	require.NoError(t, docs.SaveOCRResult(ctx, &domain.OCRResult{
		ID: "ocr-doc-1", DocumentID: "doc-1", ExtractedText: "x", QualityScore: &quality,
		ContentHash: "sha256:x", CreatedAt: testTime,
	}))

	c1 := testChunk("doc-1", "c1", 0, 1, domain.BlockParagraph)
	c2 := testChunk("doc-1", "c2", 1, 3, domain.BlockTable)
	c2.IsAtomic = true
	c2.SectionPath = "Report > Costs"
	require.NoError(t, docs.ReplaceChunks(ctx, "doc-1", []domain.Chunk{c1, c2}))
	require.NoError(t, docs.SaveImage(ctx, &domain.Image{ID: "img", DocumentID: "doc-1", PageNumber: intRef(2), CreatedAt: testTime}))
	require.NoError(t, docs.SaveExtraction(ctx, &domain.Extraction{ID: "ext", DocumentID: "doc-2", Content: "{}", CreatedAt: testTime}))

	image := domain.Embedding{ID: "e3", DocumentID: "doc-1", ImageID: strPtr("img"), OriginalText: "chart", PageNumber: intRef(2), CreatedAt: testTime}
	extraction := domain.Embedding{ID: "e4", DocumentID: "doc-2", ExtractionID: strPtr("ext"), OriginalText: "{}", CreatedAt: testTime}
	require.NoError(t, docs.SaveEmbeddings(ctx, []domain.Embedding{
		chunkEmbedding("doc-1", "e1", "c1"), chunkEmbedding("doc-1", "e2", "c2"), image, extraction,
	}))

	require.NoError(t, store.VectorStore().BatchStore(ctx, []domain.VectorItem{
		{EmbeddingID: "e1", Vector: axis(0)},
		{EmbeddingID: "e2", Vector: blend(0.6, 0.8)},
		{EmbeddingID: "e3", Vector: axis(1)},
		{EmbeddingID: "e4", Vector: axis(0)},
	}))
}

func candidateIDs(cs []domain.VectorCandidate) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.Result.EmbeddingID
	}
	return ids
}

func TestVectorStore_Store_Errors(t *testing.T) {
	store := setupTestStore(t)
	vectors := store.VectorStore()
	ctx := context.Background()

	err := vectors.Store(ctx, "e1", make([]float32, 767))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = vectors.Store(ctx, "missing", axis(0))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVectorStore_BatchStore_AllOrNothing(t *testing.T) {
	store := setupTestStore(t)
	seedVectors(t, store)
	vectors := store.VectorStore()
	ctx := context.Background()
	_, err := vectors.DeleteByDocument(ctx, "doc-2")
	require.NoError(t, err)

	err = vectors.BatchStore(ctx, []domain.VectorItem{
		{EmbeddingID: "e4", Vector: axis(2)},
		{EmbeddingID: "missing", Vector: axis(2)},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestVectorStore_QueryCandidates_Ordering(t *testing.T) {
	store := setupTestStore(t)
	seedVectors(t, store)

	got, err := store.VectorStore().QueryCandidates(context.Background(), driven.CandidateQuery{
		Vector: axis(0), Limit: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e4", "e2", "e3"}, candidateIDs(got))
	assert.InDelta(t, 0.0, got[0].Result.Distance, 1e-6)
	assert.InDelta(t, 0.4, got[2].Result.Distance, 1e-6)
	assert.InDelta(t, 1.0, got[3].Result.Distance, 1e-6)

	first := got[0]
	assert.Equal(t, domain.ResultTypeChunk, first.Result.ResultType)
	assert.Equal(t, "text of c1", first.Result.OriginalText)
	assert.Equal(t, len("text of c1"), first.Result.OriginalTextLength)
	require.NotNil(t, first.Result.ChunkIndex)
	assert.Equal(t, 0, *first.Result.ChunkIndex)
	require.NotNil(t, first.Result.PageNumber)
	assert.Equal(t, 1, *first.Result.PageNumber)
	assert.Equal(t, domain.ContentTypes{domain.BlockParagraph}, first.Result.ContentTypes)
	require.NotNil(t, first.QualityScore)
	assert.Equal(t, 4.0, *first.QualityScore)

	extraction := got[1]
	assert.Equal(t, domain.ResultTypeExtraction, extraction.Result.ResultType)
	assert.Nil(t, extraction.QualityScore)
	assert.Nil(t, extraction.Result.ChunkIndex)

	assert.Equal(t, domain.ResultTypeVLM, got[3].Result.ResultType)
}

func TestVectorStore_QueryCandidates_Filters(t *testing.T) {
	store := setupTestStore(t)
	seedVectors(t, store)
	vectors := store.VectorStore()
	ctx := context.Background()

	tests := []struct {
		name string
		q    driven.CandidateQuery
		want []string
	}{
		{
			name: "document filter",
			q:    driven.CandidateQuery{DocumentIDs: []string{"doc-2"}},
			want: []string{"e4"},
		},
		{
			name: "page range applies to chunks only",
			q:    driven.CandidateQuery{PageRange: &domain.PageRangeFilter{Min: 2, Max: 5}},
			want: []string{"e4", "e2", "e3"},
		},
		{
			name: "chunk filter widened for non-chunk rows",
			q: driven.CandidateQuery{ChunkFilter: &domain.ChunkFilter{
				Conditions: []string{"c.is_atomic = 1"},
			}},
			want: []string{"e4", "e2", "e3"},
		},
		{
			name: "chunk filter alias rewritten",
			q: driven.CandidateQuery{ChunkFilter: &domain.ChunkFilter{
				Alias:      "chunk",
				Conditions: []string{"chunk.content_types LIKE ?", "chunk.section_path LIKE ?"},
				Params:     []any{`%"paragraph"%`, "Report%"},
			}},
			want: []string{"e1", "e4", "e3"},
		},
		{
			name: "limit",
			q:    driven.CandidateQuery{Limit: 2},
			want: []string{"e1", "e4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.q.Vector = axis(0)
			got, err := vectors.QueryCandidates(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, candidateIDs(got))
		})
	}
}

func TestVectorStore_QueryCandidates_Invalid(t *testing.T) {
	store := setupTestStore(t)
	vectors := store.VectorStore()
	ctx := context.Background()

	_, err := vectors.QueryCandidates(ctx, driven.CandidateQuery{Vector: axis(0)[:10]})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = vectors.QueryCandidates(ctx, driven.CandidateQuery{
		Vector:      axis(0),
		ChunkFilter: &domain.ChunkFilter{Conditions: []string{"c.heading_context = ?"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorStore_DeleteByDocument(t *testing.T) {
	store := setupTestStore(t)
	seedVectors(t, store)
	vectors := store.VectorStore()
	ctx := context.Background()

	n, err := vectors.DeleteByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Embedding rows stay; only vectors are removed.
	embeddings, err := store.DocumentStore().ListEmbeddings(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, embeddings, 3)
}

func TestRewriteChunkFilter(t *testing.T) {
	conds, err := rewriteChunkFilter(&domain.ChunkFilter{
		Alias:      "ch",
		Conditions: []string{"ch.heading_context = ? AND ch.page_number > 1", "xch.other = 1"},
		Params:     []any{"Costs"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"c.heading_context = ? AND c.page_number > 1", "xch.other = 1"}, conds)
}
