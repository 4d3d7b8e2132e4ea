package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// It also owns the vectors served by its VectorStore view so that
// deleting a document cascades the same way the SQLite schema does.
type DocumentStore struct {
	mu          sync.RWMutex
	documents   map[string]domain.Document
	ocrResults  map[string][]domain.OCRResult
	chunks      map[string][]domain.Chunk
	images      map[string]domain.Image
	extractions map[string]domain.Extraction
	embeddings  map[string]domain.Embedding
	vectors     map[string][]float32
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents:   make(map[string]domain.Document),
		ocrResults:  make(map[string][]domain.OCRResult),
		chunks:      make(map[string][]domain.Chunk),
		images:      make(map[string]domain.Image),
		extractions: make(map[string]domain.Extraction),
		embeddings:  make(map[string]domain.Embedding),
		vectors:     make(map[string][]float32),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return &doc, nil
}

// GetDocumentByHash retrieves a document by its source file hash.
func (s *DocumentStore) GetDocumentByHash(_ context.Context, fileHash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.documents {
		if doc.FileHash == fileHash {
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("%w: document with hash %s", domain.ErrNotFound, fileHash)
}

// ListDocuments returns all documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		result = append(result, doc)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// DeleteDocument removes a document and everything derived from it.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	delete(s.documents, id)
	delete(s.ocrResults, id)
	delete(s.chunks, id)
	for imgID, img := range s.images {
		if img.DocumentID == id {
			delete(s.images, imgID)
		}
	}
	for extID, ext := range s.extractions {
		if ext.DocumentID == id {
			delete(s.extractions, extID)
		}
	}
	s.deleteEmbeddings(func(e domain.Embedding) bool { return e.DocumentID == id })
	return nil
}

// deleteEmbeddings removes matching embeddings and their vectors.
// Caller must hold the lock.
func (s *DocumentStore) deleteEmbeddings(match func(domain.Embedding) bool) int {
	n := 0
	for embID, emb := range s.embeddings {
		if match(emb) {
			delete(s.embeddings, embID)
			if _, ok := s.vectors[embID]; ok {
				delete(s.vectors, embID)
				n++
			}
		}
	}
	return n
}

// SaveOCRResult stores an OCR result.
func (s *DocumentStore) SaveOCRResult(_ context.Context, ocr *domain.OCRResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[ocr.DocumentID]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, ocr.DocumentID)
	}
	s.ocrResults[ocr.DocumentID] = append(s.ocrResults[ocr.DocumentID], *ocr)
	return nil
}

// GetLatestOCRResult returns the most recent OCR result of a document.
func (s *DocumentStore) GetLatestOCRResult(_ context.Context, documentID string) (*domain.OCRResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.ocrResults[documentID]
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: OCR result for document %s", domain.ErrNotFound, documentID)
	}
	latest := results[len(results)-1]
	return &latest, nil
}

// ReplaceChunks swaps a document's chunks, dropping the embeddings of the
// old ones.
func (s *DocumentStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[documentID]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	}
	for _, c := range chunks {
		if c.DocumentID != documentID {
			return fmt.Errorf("%w: chunk %s belongs to document %s", domain.ErrInvalidInput, c.ID, c.DocumentID)
		}
	}
	s.deleteEmbeddings(func(e domain.Embedding) bool { return e.DocumentID == documentID && e.ChunkID != nil })
	s.chunks[documentID] = slices.Clone(chunks)
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := slices.Clone(s.chunks[documentID])
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.findChunk(id); ok {
		return &c, nil
	}
	return nil, fmt.Errorf("%w: chunk %s", domain.ErrNotFound, id)
}

func (s *DocumentStore) findChunk(id string) (domain.Chunk, bool) {
	for _, chunks := range s.chunks {
		for _, c := range chunks {
			if c.ID == id {
				return c, true
			}
		}
	}
	return domain.Chunk{}, false
}

// SaveImage stores an image record.
func (s *DocumentStore) SaveImage(_ context.Context, img *domain.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[img.DocumentID]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, img.DocumentID)
	}
	s.images[img.ID] = *img
	return nil
}

// SaveExtraction stores an extraction record.
func (s *DocumentStore) SaveExtraction(_ context.Context, ext *domain.Extraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[ext.DocumentID]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, ext.DocumentID)
	}
	s.extractions[ext.ID] = *ext
	return nil
}

// SaveEmbeddings registers embedding rows.
func (s *DocumentStore) SaveEmbeddings(_ context.Context, embeddings []domain.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range embeddings {
		e := &embeddings[i]
		if e.ResultType() == "" {
			return fmt.Errorf("%w: embedding %s must link exactly one chunk, image or extraction", domain.ErrInvalidInput, e.ID)
		}
		if e.OriginalText == "" {
			return fmt.Errorf("%w: embedding %s has no original text", domain.ErrInvalidInput, e.ID)
		}
		if _, ok := s.documents[e.DocumentID]; !ok {
			return fmt.Errorf("%w: document %s", domain.ErrNotFound, e.DocumentID)
		}
	}
	for _, e := range embeddings {
		s.embeddings[e.ID] = e
	}
	return nil
}

// ListEmbeddings returns the embedding rows of a document.
func (s *DocumentStore) ListEmbeddings(_ context.Context, documentID string) ([]domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Embedding
	for _, e := range s.embeddings {
		if e.DocumentID == documentID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
