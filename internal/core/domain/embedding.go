package domain

import (
	"math"
	"time"
)

// EmbeddingDimension is the fixed vector length of every embedding.
const EmbeddingDimension = 768

// Embedding registers a vector for exactly one source artifact. The
// original text and source file identity are denormalised onto the row so
// search hits are self-contained.
type Embedding struct {
	ID         string
	DocumentID string

	// Exactly one of ChunkID, ImageID, ExtractionID is set.
	ChunkID      *string
	ImageID      *string
	ExtractionID *string

	OriginalText   string
	SourceFilePath string
	SourceFileName string
	SourceFileHash string

	PageNumber *int
	PageRange  string

	ModelName    string
	ModelVersion string

	ProvenanceID string
	ContentHash  string

	CreatedAt time.Time
}

// ResultType derives the search result type from the set link.
// It returns "" when the link invariant is broken.
func (e *Embedding) ResultType() ResultType {
	set := 0
	var rt ResultType
	if e.ChunkID != nil {
		set++
		rt = ResultTypeChunk
	}
	if e.ImageID != nil {
		set++
		rt = ResultTypeVLM
	}
	if e.ExtractionID != nil {
		set++
		rt = ResultTypeExtraction
	}
	if set != 1 {
		return ""
	}
	return rt
}

// VectorItem pairs an embedding id with its vector for batch storage.
type VectorItem struct {
	EmbeddingID string
	Vector      []float32
}

// CosineDistance returns 1 - cos(a, b), in [0, 2]. A zero vector is at
// distance 1 from everything.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Got: len(b), Want: len(a)}
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos, nil
}
