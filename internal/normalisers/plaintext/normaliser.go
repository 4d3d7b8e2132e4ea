package plaintext

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/markdown"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text OCR output. Page markers are still
// recognised; headings are not used for the title.
type Normaliser struct {
	now func() time.Time
}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{now: time.Now}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/plain"}
}

// Normalise builds the document and OCR result for one text file.
func (n *Normaliser) Normalise(ctx context.Context, input *driven.NormaliseInput) (*driven.NormaliseResult, error) {
	if input == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q := input.QualityScore; q != nil && (*q < domain.MinQualityScore || *q > domain.MaxQualityScore) {
		return nil, fmt.Errorf("%w: quality score %v", domain.ErrInvalidInput, *q)
	}

	text := strings.ToValidUTF8(string(input.Content), "\uFFFD")
	pages := markdown.ExtractPageOffsets(text)
	pageCount := 0
	if len(pages) > 0 {
		pageCount = pages[len(pages)-1].Page
	}
	now := n.now().UTC()

	size := input.FileSize
	if size == 0 {
		size = int64(len(input.Content))
	}

	doc := domain.Document{
		FilePath:  input.FilePath,
		FileName:  filepath.Base(input.FilePath),
		FileHash:  input.FileHash,
		FileSize:  size,
		FileType:  strings.ToLower(strings.TrimPrefix(filepath.Ext(input.FilePath), ".")),
		Title:     extractTitle(input.FilePath),
		Status:    domain.DocumentStatusPending,
		PageCount: pageCount,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return &driven.NormaliseResult{
		Document: doc,
		OCRResult: domain.OCRResult{
			ExtractedText: text,
			PageCount:     pageCount,
			PageOffsets:   pages,
			QualityScore:  input.QualityScore,
			CreatedAt:     now,
		},
	}, nil
}

// extractTitle extracts a human-readable title from a file path.
func extractTitle(path string) string {
	filename := filepath.Base(path)

	ext := filepath.Ext(filename)
	if ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}

	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")

	return filename
}
