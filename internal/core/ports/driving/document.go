package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// DocumentService manages ingested documents.
type DocumentService interface {
	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetContent returns the OCR text of the document.
	GetContent(ctx context.Context, documentID string) (string, error)

	// GetChunks returns the document's chunks in order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetDetails returns metadata for display.
	GetDetails(ctx context.Context, documentID string) (*DocumentDetails, error)

	// Delete removes a document, everything derived from it and its
	// provenance.
	Delete(ctx context.Context, documentID string) error

	// Open opens the source file in the default application.
	Open(ctx context.Context, documentID string) error
}

// DocumentDetails provides a standardised view of document metadata.
type DocumentDetails struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	FilePath     string                `json:"file_path"`
	FileHash     string                `json:"file_hash"`
	Status       domain.DocumentStatus `json:"status"`
	PageCount    int                   `json:"page_count"`
	ChunkCount   int                   `json:"chunk_count"`
	Embeddings   int                   `json:"embeddings"`
	QualityScore *float64              `json:"quality_score,omitempty"`
	ProvenanceID string                `json:"provenance_id"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}
