package domain

import (
	"sort"
	"time"
)

// ContentTypes is the sorted set of block kinds a chunk contains.
type ContentTypes []BlockKind

// NewContentTypes builds a sorted, de-duplicated set.
func NewContentTypes(kinds ...BlockKind) ContentTypes {
	seen := make(map[BlockKind]bool, len(kinds))
	out := make(ContentTypes, 0, len(kinds))
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether the set contains kind.
func (c ContentTypes) Has(kind BlockKind) bool {
	for _, k := range c {
		if k == kind {
			return true
		}
	}
	return false
}

// Chunk is a retrieval-sized slice of OCR text with its location in the
// document outline and page layout.
type Chunk struct {
	// ID is the unique identifier for the chunk (set on persistence).
	ID string `json:"id"`

	// DocumentID links to the parent Document.
	DocumentID string `json:"document_id"`

	// OCRResultID links to the OCR result the text was cut from.
	OCRResultID string `json:"ocr_result_id"`

	// ProvenanceID links to the CHUNK provenance record.
	ProvenanceID string `json:"provenance_id"`

	// Index is the ordinal position within the document.
	Index int `json:"index"`

	// Text equals source[StartOffset:EndOffset].
	Text string `json:"text"`

	// TextHash is the content hash of Text.
	TextHash string `json:"text_hash"`

	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// PageNumber is the page holding StartOffset, nil without page markers.
	PageNumber *int `json:"page_number,omitempty"`

	// PageRange is "first-last" when the chunk crosses pages, else empty.
	PageRange string `json:"page_range"`

	// HeadingContext is the deepest heading in effect for the chunk.
	HeadingContext string `json:"heading_context"`

	// HeadingLevel is the level of HeadingContext, 0 if none.
	HeadingLevel int `json:"heading_level"`

	// SectionPath is the " > "-joined heading chain.
	SectionPath string `json:"section_path"`

	ContentTypes ContentTypes `json:"content_types,omitempty"`

	// IsAtomic is true when the chunk is exactly one unmodified table or code block.
	IsAtomic bool `json:"is_atomic"`

	// OverlapWithPrevious is the number of leading bytes shared with the previous chunk.
	OverlapWithPrevious int `json:"overlap_with_previous"`

	// OverlapWithNext is the number of trailing bytes shared with the next chunk.
	OverlapWithNext int `json:"overlap_with_next"`

	CreatedAt time.Time `json:"created_at"`
}

// Len returns the chunk length in bytes.
func (c Chunk) Len() int {
	return c.EndOffset - c.StartOffset
}

// Chunking defaults.
const (
	DefaultChunkSize       = 2000
	DefaultOverlapPercent  = 10
	DefaultMaxChunkSize    = 8000
	DefaultMinPatternCount = 3
	MaxOverlapPercent      = 50
)

// HeadingNormalization configures heading level correction.
type HeadingNormalization struct {
	Enabled bool `json:"enabled"`

	// MinPatternCount is how often a heading label pattern must recur
	// before its levels are normalised.
	MinPatternCount int `json:"min_pattern_count,omitempty"`
}

// ChunkingConfig controls the hybrid chunker. It is recorded in chunk
// provenance params so a document can be re-chunked identically.
type ChunkingConfig struct {
	ChunkSize            int                  `json:"chunk_size"`
	OverlapPercent       int                  `json:"overlap_percent"`
	MaxChunkSize         int                  `json:"max_chunk_size"`
	HeadingNormalization HeadingNormalization `json:"heading_normalization"`
}

// DefaultChunkingConfig returns the default chunker configuration.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:      DefaultChunkSize,
		OverlapPercent: DefaultOverlapPercent,
		MaxChunkSize:   DefaultMaxChunkSize,
		HeadingNormalization: HeadingNormalization{
			MinPatternCount: DefaultMinPatternCount,
		},
	}
}

// Normalized returns a copy with out-of-range values replaced by defaults
// and MaxChunkSize raised to at least ChunkSize.
func (c ChunkingConfig) Normalized() ChunkingConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.OverlapPercent < 0 {
		c.OverlapPercent = 0
	}
	if c.OverlapPercent > MaxOverlapPercent {
		c.OverlapPercent = MaxOverlapPercent
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
	if c.MaxChunkSize < c.ChunkSize {
		c.MaxChunkSize = c.ChunkSize
	}
	if c.HeadingNormalization.MinPatternCount <= 0 {
		c.HeadingNormalization.MinPatternCount = DefaultMinPatternCount
	}
	return c
}

// OverlapSize is the number of bytes carried into the next chunk.
func (c ChunkingConfig) OverlapSize() int {
	return c.ChunkSize * c.OverlapPercent / 100
}

// Resolve returns override (normalised) when it is set, otherwise c.
// A recorded config is applied whole so that zero overlap survives.
func (c ChunkingConfig) Resolve(override *ChunkingConfig) ChunkingConfig {
	if override == nil {
		return c
	}
	return override.Normalized()
}

// Chunking param keys recorded on chunk provenance.
const (
	ParamChunkSize            = "chunk_size"
	ParamOverlapPercent       = "overlap_percent"
	ParamMaxChunkSize         = "max_chunk_size"
	ParamHeadingNormalization = "heading_normalization"
	ParamMinPatternCount      = "min_pattern_count"
)

// Params flattens the configuration into provenance params.
func (c ChunkingConfig) Params() ProcessingParams {
	return ProcessingParams{
		ParamChunkSize:            c.ChunkSize,
		ParamOverlapPercent:       c.OverlapPercent,
		ParamMaxChunkSize:         c.MaxChunkSize,
		ParamHeadingNormalization: c.HeadingNormalization.Enabled,
		ParamMinPatternCount:      c.HeadingNormalization.MinPatternCount,
	}
}
