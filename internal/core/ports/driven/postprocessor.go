package driven

import (
	"context"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// PostProcessor turns an OCR result into chunks.
type PostProcessor interface {
	// Name returns the processor name for logging and provenance.
	Name() string

	// Process chunks the OCR result of doc. The returned chunks carry
	// offsets, page and section metadata but no identity or provenance.
	Process(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult) ([]domain.Chunk, error)
}

// Chunker is a PostProcessor whose configuration can be recorded and
// replayed for reproducible re-chunking.
type Chunker interface {
	PostProcessor

	// Version identifies the chunking algorithm for provenance records.
	Version() string

	// Config returns the processor's effective configuration.
	Config() domain.ChunkingConfig

	// ProcessWithConfig chunks using cfg instead of the processor defaults.
	ProcessWithConfig(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult, cfg domain.ChunkingConfig) ([]domain.Chunk, error)
}

// ChunkerFactory rebuilds a chunker from the processor name and params
// recorded on chunk provenance.
type ChunkerFactory interface {
	Build(name string, params domain.ProcessingParams) (Chunker, error)
}
