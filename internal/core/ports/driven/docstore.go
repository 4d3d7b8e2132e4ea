package driven

import (
	"context"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// DocumentStore persists documents and everything derived from them.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByHash retrieves a document by its source file hash.
	GetDocumentByHash(ctx context.Context, fileHash string) (*domain.Document, error)

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and, by cascade, its OCR results,
	// chunks, embeddings and vectors.
	DeleteDocument(ctx context.Context, id string) error

	// SaveOCRResult stores an OCR result.
	SaveOCRResult(ctx context.Context, ocr *domain.OCRResult) error

	// GetLatestOCRResult returns the most recent OCR result of a document.
	GetLatestOCRResult(ctx context.Context, documentID string) (*domain.OCRResult, error)

	// ReplaceChunks deletes a document's chunks (and their embeddings) and
	// stores chunks in their place, in one transaction.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// SaveImage stores an image record with its VLM description.
	SaveImage(ctx context.Context, img *domain.Image) error

	// SaveExtraction stores structured content extracted from a document.
	SaveExtraction(ctx context.Context, ext *domain.Extraction) error

	// SaveEmbeddings registers embedding rows. Vectors are stored separately
	// through the VectorStore.
	SaveEmbeddings(ctx context.Context, embeddings []domain.Embedding) error

	// ListEmbeddings returns the embedding rows of a document.
	ListEmbeddings(ctx context.Context, documentID string) ([]domain.Embedding, error)
}
