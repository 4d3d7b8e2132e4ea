package services

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
	"github.com/custodia-labs/ocrprov/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages ingested documents.
type DocumentService struct {
	docStore    driven.DocumentStore
	vectorStore driven.VectorStore
	provenance  driving.ProvenanceService
	open        func(string) error
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docStore driven.DocumentStore,
	vectorStore driven.VectorStore,
	provenance driving.ProvenanceService,
) *DocumentService {
	return &DocumentService{
		docStore:    docStore,
		vectorStore: vectorStore,
		provenance:  provenance,
		open:        openURL,
	}
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetContent returns the latest OCR text of the document.
func (s *DocumentService) GetContent(ctx context.Context, documentID string) (string, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return "", err
	}
	ocr, err := s.docStore.GetLatestOCRResult(ctx, documentID)
	if err != nil {
		return "", err
	}
	return ocr.ExtractedText, nil
}

// GetChunks returns the document's chunks in order.
func (s *DocumentService) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.docStore.GetChunks(ctx, documentID)
}

// GetDetails returns metadata for display.
func (s *DocumentService) GetDetails(ctx context.Context, documentID string) (*driving.DocumentDetails, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	embeddings, err := s.docStore.ListEmbeddings(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var quality *float64
	ocr, err := s.docStore.GetLatestOCRResult(ctx, documentID)
	switch {
	case err == nil:
		quality = ocr.QualityScore
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	return &driving.DocumentDetails{
		ID:           doc.ID,
		Title:        doc.Title,
		FilePath:     doc.FilePath,
		FileHash:     doc.FileHash,
		Status:       doc.Status,
		PageCount:    doc.PageCount,
		ChunkCount:   len(chunks),
		Embeddings:   len(embeddings),
		QualityScore: quality,
		ProvenanceID: doc.ProvenanceID,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

// Delete removes vectors, then rows, then the provenance chain.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	n, err := s.vectorStore.DeleteByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	records := 0
	if doc.ProvenanceID != "" {
		if records, err = s.provenance.DeleteByRoot(ctx, doc.ProvenanceID); err != nil {
			return fmt.Errorf("delete provenance: %w", err)
		}
	}
	logger.Info("Deleted document %s: %d vectors, %d provenance records", documentID, n, records)
	return nil
}

// Open opens the source file in the default application.
func (s *DocumentService) Open(ctx context.Context, documentID string) error {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.FilePath == "" {
		return fmt.Errorf("%w: document %s has no file path", domain.ErrInvalidInput, documentID)
	}
	return s.open(doc.FilePath)
}

// openURL opens a URL/path using the system default handler.
func openURL(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
