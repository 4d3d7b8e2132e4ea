package driven

import (
	"context"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// Normaliser transforms OCR output into a document and its OCR result.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Normalise builds the document and OCR result for one input file.
	Normalise(ctx context.Context, input *NormaliseInput) (*NormaliseResult, error)
}

// NormaliseInput is one OCR output file.
type NormaliseInput struct {
	// FilePath is the path of the source file the OCR text was produced from.
	FilePath string

	// MIMEType of Content.
	MIMEType string

	// Content is the OCR markdown.
	Content []byte

	// FileHash is the hash of the original source file. When empty the
	// hash of Content is used.
	FileHash string

	// FileSize of the original source file in bytes.
	FileSize int64

	// QualityScore is the OCR provider's parse quality (0-5), if known.
	QualityScore *float64
}

// NormaliseResult contains the output of normalisation.
// Identity fields (IDs, provenance) are assigned by the caller.
type NormaliseResult struct {
	Document  domain.Document
	OCRResult domain.OCRResult
}
