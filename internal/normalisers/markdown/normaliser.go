package markdown

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	mdparse "github.com/custodia-labs/ocrprov/internal/markdown"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles OCR markdown.
type Normaliser struct {
	now func() time.Time
}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{now: time.Now}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Normalise builds the document and OCR result for one markdown file.
// The text is kept verbatim so chunk offsets index into it; only invalid
// UTF-8 is replaced.
func (n *Normaliser) Normalise(ctx context.Context, input *driven.NormaliseInput) (*driven.NormaliseResult, error) {
	if input == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkQuality(input.QualityScore); err != nil {
		return nil, err
	}

	text := strings.ToValidUTF8(string(input.Content), "\uFFFD")
	pages := mdparse.ExtractPageOffsets(text)
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
		FileType:  fileType(input.FilePath),
		Title:     extractMarkdownTitle(text, input.FilePath),
		Status:    domain.DocumentStatusPending,
		PageCount: pageCount(pages),
		CreatedAt: now,
		UpdatedAt: now,
	}
	ocr := domain.OCRResult{
		ExtractedText: text,
		PageCount:     doc.PageCount,
		PageOffsets:   pages,
		QualityScore:  input.QualityScore,
		CreatedAt:     now,
	}

	return &driven.NormaliseResult{
		Document:  doc,
		OCRResult: ocr,
	}, nil
}

// extractMarkdownTitle returns the first H1 heading or falls back to the filename.
func extractMarkdownTitle(content, path string) string {
	for _, b := range mdparse.ParseBlocks(content, nil) {
		if b.Kind == domain.BlockHeading && b.HeadingLevel == 1 && b.HeadingText != "" {
			return b.HeadingText
		}
	}

	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	if ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

func pageCount(pages []domain.PageOffset) int {
	if len(pages) == 0 {
		return 0
	}
	return pages[len(pages)-1].Page
}

func fileType(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func checkQuality(q *float64) error {
	if q == nil {
		return nil
	}
	if *q < domain.MinQualityScore || *q > domain.MaxQualityScore {
		return fmt.Errorf("%w: quality score %v outside %v..%v",
			domain.ErrInvalidInput, *q, domain.MinQualityScore, domain.MaxQualityScore)
	}
	return nil
}
