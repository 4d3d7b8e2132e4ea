package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func seedDocument(t *testing.T, store *DocumentStore, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{
		ID:        id,
		FilePath:  "/docs/" + id + ".pdf",
		FileName:  id + ".pdf",
		FileHash:  "sha256:" + id,
		CreatedAt: time.Now(),
	}))
}

func TestNewDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.documents)
	assert.NotNil(t, store.vectors)
}

func TestDocumentStore_SaveAndGetDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	seedDocument(t, store, "doc-1")

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1.pdf", doc.FileName)

	byHash, err := store.GetDocumentByHash(ctx, "sha256:doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", byHash.ID)

	_, err = store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetDocumentByHash(ctx, "sha256:missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments_NewestFirst(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "old", CreatedAt: base}))
	require.NoError(t, store.SaveDocument(ctx, &domain.Document{ID: "new", CreatedAt: base.Add(time.Hour)}))

	docs, err := store.ListDocuments(ctx)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new", docs[0].ID)
	assert.Equal(t, "old", docs[1].ID)
}

func TestDocumentStore_OCRResults(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	seedDocument(t, store, "doc-1")

	_, err := store.GetLatestOCRResult(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SaveOCRResult(ctx, &domain.OCRResult{ID: "ocr-1", DocumentID: "doc-1"}))
	require.NoError(t, store.SaveOCRResult(ctx, &domain.OCRResult{ID: "ocr-2", DocumentID: "doc-1"}))

	latest, err := store.GetLatestOCRResult(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "ocr-2", latest.ID)

	err = store.SaveOCRResult(ctx, &domain.OCRResult{ID: "ocr-3", DocumentID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ReplaceChunks(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	seedDocument(t, store, "doc-1")

	require.NoError(t, store.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
		{ID: "c2", DocumentID: "doc-1", Index: 1, Text: "second"},
		{ID: "c1", DocumentID: "doc-1", Index: 0, Text: "first"},
	}))
	require.NoError(t, store.SaveEmbeddings(ctx, []domain.Embedding{
		{ID: "e1", DocumentID: "doc-1", ChunkID: strPtr("c1"), OriginalText: "first"},
	}))
	require.NoError(t, store.VectorStore().Store(ctx, "e1", make([]float32, domain.EmbeddingDimension)))

	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1", chunks[0].ID)

	// Replacing drops the old chunks' embeddings and vectors.
	require.NoError(t, store.ReplaceChunks(ctx, "doc-1", []domain.Chunk{
		{ID: "c3", DocumentID: "doc-1", Index: 0, Text: "only"},
	}))
	embs, err := store.ListEmbeddings(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, embs)
	count, err := store.VectorStore().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.GetChunk(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	c3, err := store.GetChunk(ctx, "c3")
	require.NoError(t, err)
	assert.Equal(t, "only", c3.Text)
}

func TestDocumentStore_ReplaceChunks_WrongDocument(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	seedDocument(t, store, "doc-1")

	err := store.ReplaceChunks(ctx, "doc-1", []domain.Chunk{{ID: "c1", DocumentID: "doc-2"}})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_SaveEmbeddings_Validation(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	seedDocument(t, store, "doc-1")

	tests := []struct {
		name string
		emb  domain.Embedding
		want error
	}{
		{"no link", domain.Embedding{ID: "e", DocumentID: "doc-1", OriginalText: "x"}, domain.ErrInvalidInput},
		{"two links", domain.Embedding{ID: "e", DocumentID: "doc-1", ChunkID: strPtr("c"), ImageID: strPtr("i"), OriginalText: "x"}, domain.ErrInvalidInput},
		{"no text", domain.Embedding{ID: "e", DocumentID: "doc-1", ChunkID: strPtr("c")}, domain.ErrInvalidInput},
		{"unknown document", domain.Embedding{ID: "e", DocumentID: "nope", ChunkID: strPtr("c"), OriginalText: "x"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.SaveEmbeddings(ctx, []domain.Embedding{tt.emb}), tt.want)
		})
	}
}

func TestDocumentStore_DeleteDocument_Cascades(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	seedDocument(t, store, "doc-1")
	seedDocument(t, store, "doc-2")

	require.NoError(t, store.SaveOCRResult(ctx, &domain.OCRResult{ID: "ocr-1", DocumentID: "doc-1"}))
	require.NoError(t, store.ReplaceChunks(ctx, "doc-1", []domain.Chunk{{ID: "c1", DocumentID: "doc-1"}}))
	require.NoError(t, store.SaveImage(ctx, &domain.Image{ID: "img-1", DocumentID: "doc-1"}))
	require.NoError(t, store.SaveExtraction(ctx, &domain.Extraction{ID: "ext-1", DocumentID: "doc-1"}))
	require.NoError(t, store.SaveEmbeddings(ctx, []domain.Embedding{
		{ID: "e1", DocumentID: "doc-1", ChunkID: strPtr("c1"), OriginalText: "a"},
		{ID: "e2", DocumentID: "doc-1", ImageID: strPtr("img-1"), OriginalText: "b"},
	}))
	vectors := store.VectorStore()
	require.NoError(t, vectors.BatchStore(ctx, []domain.VectorItem{
		{EmbeddingID: "e1", Vector: make([]float32, domain.EmbeddingDimension)},
		{EmbeddingID: "e2", Vector: make([]float32, domain.EmbeddingDimension)},
	}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	_, err := store.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := store.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.images)
	assert.Empty(t, store.extractions)

	_, err = store.GetDocument(ctx, "doc-2")
	assert.NoError(t, err)

	assert.ErrorIs(t, store.DeleteDocument(ctx, "doc-1"), domain.ErrNotFound)
}
