// Package chunker splits OCR markdown into retrieval-sized chunks that
// respect block boundaries, heading hierarchy and page location.
package chunker

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

const (
	// ProcessorName is recorded on chunk provenance.
	ProcessorName = "hybrid_chunker"

	// ProcessorVersion changes whenever chunk boundaries could change.
	ProcessorVersion = "1.1.0"

	// HeadingOnlyMinContent is how much non-heading content, in bytes,
	// stays glued to the headings that introduce it.
	HeadingOnlyMinContent = 100
)

// Processor is the hybrid section-aware chunker.
// It implements the Chunker interface.
type Processor struct {
	cfg domain.ChunkingConfig
}

// Option configures the chunker processor.
type Option func(*domain.ChunkingConfig)

// WithChunkSize sets the target chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *domain.ChunkingConfig) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithOverlapPercent sets the overlap as a percentage of the chunk size.
func WithOverlapPercent(percent int) Option {
	return func(c *domain.ChunkingConfig) {
		if percent >= 0 {
			c.OverlapPercent = percent
		}
	}
}

// WithMaxChunkSize sets the hard upper bound on chunk length.
func WithMaxChunkSize(size int) Option {
	return func(c *domain.ChunkingConfig) {
		if size > 0 {
			c.MaxChunkSize = size
		}
	}
}

// WithHeadingNormalization enables heading level normalisation for label
// patterns seen at least minCount times.
func WithHeadingNormalization(enabled bool, minCount int) Option {
	return func(c *domain.ChunkingConfig) {
		c.HeadingNormalization.Enabled = enabled
		if minCount > 0 {
			c.HeadingNormalization.MinPatternCount = minCount
		}
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg domain.ChunkingConfig) Option {
	return func(c *domain.ChunkingConfig) {
		*c = cfg
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	cfg := domain.DefaultChunkingConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Processor{cfg: cfg.Normalized()}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return ProcessorName
}

// Version returns the algorithm version.
func (p *Processor) Version() string {
	return ProcessorVersion
}

// Config returns the effective configuration.
func (p *Processor) Config() domain.ChunkingConfig {
	return p.cfg
}

// Chunk splits text using the processor configuration. When pages is
// empty, page ranges are derived from markers in text.
func (p *Processor) Chunk(text string, pages []domain.PageOffset) []domain.Chunk {
	return chunkText(text, pages, p.cfg)
}

// ChunkWithOverride splits text using override in place of the processor
// configuration when it is non-nil.
func (p *Processor) ChunkWithOverride(text string, pages []domain.PageOffset, override *domain.ChunkingConfig) []domain.Chunk {
	return chunkText(text, pages, p.cfg.Resolve(override))
}

// Process chunks the OCR result of doc.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult) ([]domain.Chunk, error) {
	return p.ProcessWithConfig(ctx, doc, ocr, p.cfg)
}

// ProcessWithConfig chunks the OCR result of doc using cfg.
func (p *Processor) ProcessWithConfig(ctx context.Context, doc *domain.Document, ocr *domain.OCRResult, cfg domain.ChunkingConfig) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil || ocr == nil {
		return nil, fmt.Errorf("%w: document and OCR result are required", domain.ErrInvalidInput)
	}

	chunks := chunkText(ocr.ExtractedText, ocr.PageOffsets, cfg.Normalized())
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
		chunks[i].OCRResultID = ocr.ID
	}
	return chunks, nil
}
