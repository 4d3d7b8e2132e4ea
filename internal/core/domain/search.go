package domain

// ResultType identifies what an embedding was computed from.
type ResultType string

// Result types.
const (
	ResultTypeChunk      ResultType = "chunk"
	ResultTypeVLM        ResultType = "vlm"
	ResultTypeExtraction ResultType = "extraction"
)

// IsValid returns true if the result type is recognised.
func (t ResultType) IsValid() bool {
	switch t {
	case ResultTypeChunk, ResultTypeVLM, ResultTypeExtraction:
		return true
	default:
		return false
	}
}

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100

	// SearchOverfetchFactor is how many candidates are fetched per
	// requested result before filtering and reranking.
	SearchOverfetchFactor = 3
)

// DefaultChunkAlias is the chunk table alias filter fragments are written against.
const DefaultChunkAlias = "c"

// ChunkFilter is a set of SQL boolean conditions over chunk columns plus
// their bound parameters, written against Alias.
type ChunkFilter struct {
	// Alias is the chunk table alias used in Conditions (default "c").
	Alias string

	Conditions []string
	Params     []any

	// Match evaluates the same conditions against a chunk in memory.
	// It is nil for filters written as raw SQL.
	Match func(Chunk) bool
}

// IsEmpty reports whether the filter has no conditions.
func (f *ChunkFilter) IsEmpty() bool {
	return f == nil || len(f.Conditions) == 0
}

// PageRangeFilter bounds results to pages [Min, Max]; zero means unbounded.
type PageRangeFilter struct {
	Min int
	Max int
}

// Contains reports whether page lies within the bounds.
func (p PageRangeFilter) Contains(page int) bool {
	if p.Min > 0 && page < p.Min {
		return false
	}
	if p.Max > 0 && page > p.Max {
		return false
	}
	return true
}

// VectorSearchOptions configures a similarity search.
type VectorSearchOptions struct {
	// Limit is the maximum number of results (default 10, max 100).
	Limit int

	// Threshold is the minimum similarity in [0, 1].
	Threshold float64

	// DocumentIDs restricts results to these documents.
	DocumentIDs []string

	// ChunkFilter restricts chunk-derived results.
	ChunkFilter *ChunkFilter

	// PageRange restricts results by page.
	PageRange *PageRangeFilter
}

// VectorCandidate is one raw row from the similarity query.
type VectorCandidate struct {
	Result VectorSearchResult

	// QualityScore is the document's OCR quality, nil if unknown.
	QualityScore *float64
}

// VectorSearchResult is a flat, self-contained search hit. OriginalText is
// always populated.
type VectorSearchResult struct {
	EmbeddingID string     `json:"embedding_id"`
	ResultType  ResultType `json:"result_type"`

	SimilarityScore   float64  `json:"similarity_score"`
	Distance          float64  `json:"distance"`
	QualityScore      *float64 `json:"quality_score,omitempty"`
	QualityMultiplier float64  `json:"quality_multiplier"`

	OriginalText       string `json:"original_text"`
	OriginalTextLength int    `json:"original_text_length"`

	DocumentID     string `json:"document_id"`
	SourceFilePath string `json:"source_file_path"`
	SourceFileName string `json:"source_file_name"`
	SourceFileHash string `json:"source_file_hash"`

	ChunkID      *string `json:"chunk_id,omitempty"`
	ImageID      *string `json:"image_id,omitempty"`
	ExtractionID *string `json:"extraction_id,omitempty"`

	PageNumber     *int         `json:"page_number,omitempty"`
	PageRange      string       `json:"page_range,omitempty"`
	ChunkIndex     *int         `json:"chunk_index,omitempty"`
	CharacterStart *int         `json:"character_start,omitempty"`
	CharacterEnd   *int         `json:"character_end,omitempty"`
	HeadingContext string       `json:"heading_context,omitempty"`
	SectionPath    string       `json:"section_path,omitempty"`
	ContentTypes   ContentTypes `json:"content_types,omitempty"`

	ModelName    string `json:"model_name"`
	ProvenanceID string `json:"provenance_id"`
	ContentHash  string `json:"content_hash"`
}
