package domain

import "time"

// DocumentStatus tracks where a document is in the ingest pipeline.
type DocumentStatus string

// Document statuses.
const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusComplete   DocumentStatus = "complete"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents a source file registered for processing.
// It is the root of every provenance chain.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`

	// FilePath is the original location of the source file.
	FilePath string `json:"file_path"`

	// FileName is the base name of FilePath.
	FileName string `json:"file_name"`

	// FileHash is the content hash of the source bytes.
	FileHash string `json:"file_hash"`

	// FileSize is the source size in bytes.
	FileSize int64 `json:"file_size"`

	// FileType is the lower-case extension without the dot.
	FileType string `json:"file_type"`

	// Title is the human-readable title.
	Title string `json:"title"`

	// Status is the pipeline state.
	Status DocumentStatus `json:"status"`

	// PageCount is the number of pages reported by OCR (0 if unknown).
	PageCount int `json:"page_count"`

	// ProvenanceID links to the DOCUMENT provenance record.
	ProvenanceID string `json:"provenance_id"`

	// CreatedAt is when the document was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// OCRResult is the markdown text produced for a document by the external
// OCR provider.
type OCRResult struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	ProvenanceID string `json:"provenance_id"`

	// ExtractedText is the markdown, including any page markers.
	ExtractedText string `json:"extracted_text"`

	// PageCount is the number of pages covered.
	PageCount int `json:"page_count"`

	// PageOffsets are the page ranges inside ExtractedText.
	PageOffsets []PageOffset `json:"page_offsets,omitempty"`

	// QualityScore is the provider's 0-5 quality estimate, nil if not computed.
	QualityScore *float64 `json:"quality_score,omitempty"`

	// ContentHash is the hash of ExtractedText.
	ContentHash string `json:"content_hash"`

	CreatedAt time.Time `json:"created_at"`
}

// Image is an image extracted from a document, optionally described by a
// vision-language model.
type Image struct {
	ID             string
	DocumentID     string
	PageNumber     *int
	VLMDescription string
	ProvenanceID   string
	CreatedAt      time.Time
}

// Extraction is structured data extracted from a document.
type Extraction struct {
	ID           string
	DocumentID   string
	PageNumber   *int
	Content      string
	ProvenanceID string
	CreatedAt    time.Time
}
