package driving

import (
	"context"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// IngestService turns OCR output into provenance-certified chunks and
// embeddings.
type IngestService interface {
	// Ingest stores a new document with its OCR result, chunks and, when an
	// embedding service is configured, embeddings.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)

	// Rechunk replaces a document's chunks. A nil override reuses the
	// configuration recorded on the previous chunks.
	Rechunk(ctx context.Context, documentID string, override *domain.ChunkingConfig) (*IngestResult, error)

	// AttachImage stores a VLM description of an image of the document and
	// embeds it.
	AttachImage(ctx context.Context, req AttachRequest) (*AttachResult, error)

	// AttachExtraction stores structured content extracted from the
	// document and embeds it.
	AttachExtraction(ctx context.Context, req AttachRequest) (*AttachResult, error)
}

// IngestRequest is one OCR output file to ingest.
type IngestRequest struct {
	// FilePath of the source document the OCR text belongs to.
	FilePath string

	// Content is the OCR markdown.
	Content []byte

	// MIMEType of Content; markdown when empty.
	MIMEType string

	// FileHash and FileSize describe the original file when known.
	FileHash string
	FileSize int64

	// QualityScore is the OCR parse quality (0-5), if known.
	QualityScore *float64

	// Chunking overrides the configured chunking for this document.
	Chunking *domain.ChunkingConfig

	// SkipEmbedding stores chunks without embedding them.
	SkipEmbedding bool
}

// IngestResult summarises an ingest or rechunk.
type IngestResult struct {
	Document   *domain.Document  `json:"document"`
	OCRResult  *domain.OCRResult `json:"ocr_result"`
	Chunks     []domain.Chunk    `json:"chunks"`
	Embeddings int               `json:"embeddings"`

	// Duplicate is set when a document with the same file hash already
	// existed and nothing was written.
	Duplicate bool `json:"duplicate"`
}

// AttachRequest describes an image description or extraction.
type AttachRequest struct {
	DocumentID string
	PageNumber *int

	// Text is the VLM description or the extracted content.
	Text string

	// Processor names the external tool that produced Text.
	Processor        string
	ProcessorVersion string
}

// AttachResult identifies what AttachImage or AttachExtraction stored.
type AttachResult struct {
	ID           string `json:"id"`
	EmbeddingID  string `json:"embedding_id,omitempty"`
	ProvenanceID string `json:"provenance_id"`
}
