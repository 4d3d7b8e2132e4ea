package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
	"github.com/custodia-labs/ocrprov/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Processor names recorded on provenance for steps the ingest pipeline
// performs itself.
const (
	ProcessorFileImport = "file_import"
	ProcessorOCRImport  = "ocr_import"
	ProcessorEmbedding  = "embedding"
	ProcessorImage      = "image_import"

	// IngestVersion is recorded as the processor version of those steps.
	IngestVersion = "1.0.0"

	// DefaultEmbedBatchSize is how many texts go to the embedding service per call.
	DefaultEmbedBatchSize = 32
)

// IngestService turns OCR output into provenance-certified chunks and
// embeddings.
type IngestService struct {
	docStore         driven.DocumentStore
	vectorStore      driven.VectorStore
	provenance       driving.ProvenanceService
	normalisers      driven.NormaliserRegistry
	chunker          driven.Chunker
	embeddingService driven.EmbeddingService
	chunkers         driven.ChunkerFactory
	batchSize        int
	now              func() time.Time
}

// NewIngestService creates a new ingest service.
// The embeddingService parameter is optional (can be nil); documents are
// then stored with chunks but without embeddings.
func NewIngestService(
	docStore driven.DocumentStore,
	vectorStore driven.VectorStore,
	provenance driving.ProvenanceService,
	normalisers driven.NormaliserRegistry,
	chunker driven.Chunker,
	embeddingService driven.EmbeddingService,
) *IngestService {
	return &IngestService{
		docStore:         docStore,
		vectorStore:      vectorStore,
		provenance:       provenance,
		normalisers:      normalisers,
		chunker:          chunker,
		embeddingService: embeddingService,
		batchSize:        DefaultEmbedBatchSize,
		now:              time.Now,
	}
}

// SetChunkerFactory enables Rechunk to replay the exact chunker recorded
// on a document's chunk provenance.
func (s *IngestService) SetChunkerFactory(f driven.ChunkerFactory) {
	s.chunkers = f
}

// SetEmbedBatchSize sets the number of texts per embedding call.
func (s *IngestService) SetEmbedBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// Ingest stores a new document with its OCR result, chunks and embeddings.
// A document whose file hash is already known is returned untouched with
// Duplicate set.
func (s *IngestService) Ingest(ctx context.Context, req driving.IngestRequest) (*driving.IngestResult, error) {
	logger.Section("Ingest")
	defer logger.Timed("ingest " + req.FilePath)()

	if strings.TrimSpace(req.FilePath) == "" {
		return nil, fmt.Errorf("%w: file path is required", domain.ErrInvalidInput)
	}
	fileHash := req.FileHash
	if fileHash == "" {
		fileHash = HashBytes(req.Content)
	} else if !IsContentHash(fileHash) {
		return nil, fmt.Errorf("%w: malformed file hash %q", domain.ErrInvalidInput, fileHash)
	}

	existing, err := s.docStore.GetDocumentByHash(ctx, fileHash)
	switch {
	case err == nil:
		logger.Info("Skipping %s: already ingested as %s", req.FilePath, existing.ID)
		return &driving.IngestResult{Document: existing, Duplicate: true}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "text/markdown"
	}
	norm, err := s.normalisers.Normalise(ctx, &driven.NormaliseInput{
		FilePath:     req.FilePath,
		MIMEType:     mimeType,
		Content:      req.Content,
		FileHash:     fileHash,
		FileSize:     req.FileSize,
		QualityScore: req.QualityScore,
	})
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", req.FilePath, err)
	}

	doc := norm.Document
	doc.ID = uuid.New().String()
	doc.FileHash = fileHash
	doc.Status = domain.DocumentStatusProcessing

	ocr := norm.OCRResult
	ocr.ID = uuid.New().String()
	ocr.DocumentID = doc.ID
	ocr.ContentHash = HashText(ocr.ExtractedText)

	cfg := s.chunker.Config().Resolve(req.Chunking)
	chunks, err := s.chunker.ProcessWithConfig(ctx, &doc, &ocr, cfg)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", req.FilePath, err)
	}
	logger.Debug("Chunked %s into %d chunks", req.FilePath, len(chunks))

	docRec, err := s.provenance.Record(ctx, driving.RecordInput{
		Kind:             domain.ProvenanceDocument,
		ContentHash:      fileHash,
		SourcePath:       req.FilePath,
		Processor:        ProcessorFileImport,
		ProcessorVersion: IngestVersion,
		Params: domain.ProcessingParams{
			"file_name": doc.FileName,
			"file_size": doc.FileSize,
			"mime_type": mimeType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("record document provenance: %w", err)
	}
	doc.ProvenanceID = docRec.ID

	// Everything below is undone if a later step fails.
	result, err := s.persist(ctx, &doc, &ocr, chunks, cfg, !req.SkipEmbedding)
	if err != nil {
		s.rollback(ctx, &doc)
		return nil, err
	}

	logger.Info("Ingested %s: %d chunks, %d embeddings", req.FilePath, len(result.Chunks), result.Embeddings)
	return result, nil
}

// persist records OCR and chunk provenance and writes every row.
func (s *IngestService) persist(
	ctx context.Context, doc *domain.Document, ocr *domain.OCRResult,
	chunks []domain.Chunk, cfg domain.ChunkingConfig, embed bool,
) (*driving.IngestResult, error) {
	params := domain.ProcessingParams{"page_count": ocr.PageCount}
	if ocr.QualityScore != nil {
		params["quality_score"] = *ocr.QualityScore
	}
	ocrRec, err := s.provenance.Record(ctx, driving.RecordInput{
		Kind:             domain.ProvenanceOCRResult,
		ParentID:         doc.ProvenanceID,
		ContentHash:      ocr.ContentHash,
		Processor:        ProcessorOCRImport,
		ProcessorVersion: IngestVersion,
		Params:           params,
	})
	if err != nil {
		return nil, fmt.Errorf("record OCR provenance: %w", err)
	}
	ocr.ProvenanceID = ocrRec.ID

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.docStore.SaveOCRResult(ctx, ocr); err != nil {
		return nil, fmt.Errorf("save OCR result: %w", err)
	}

	return s.storeChunks(ctx, doc, ocr, chunks, s.chunker, cfg, embed)
}

// storeChunks records chunk provenance, replaces the document's chunks,
// embeds them and marks the document complete.
func (s *IngestService) storeChunks(
	ctx context.Context, doc *domain.Document, ocr *domain.OCRResult,
	chunks []domain.Chunk, chunker driven.Chunker, cfg domain.ChunkingConfig, embed bool,
) (*driving.IngestResult, error) {
	now := s.now().UTC()
	inputs := make([]driving.RecordInput, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		c.ID = uuid.New().String()
		c.DocumentID = doc.ID
		c.OCRResultID = ocr.ID
		c.TextHash = HashText(c.Text)
		c.CreatedAt = now

		params := cfg.Params()
		maps.Copy(params, domain.ProcessingParams{
			"chunk_index":  c.Index,
			"start_offset": c.StartOffset,
			"end_offset":   c.EndOffset,
		})
		inputs[i] = driving.RecordInput{
			Kind:             domain.ProvenanceChunk,
			ParentID:         ocr.ProvenanceID,
			ContentHash:      c.TextHash,
			Processor:        chunker.Name(),
			ProcessorVersion: chunker.Version(),
			Params:           params,
		}
	}

	recs, err := s.provenance.RecordBatch(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("record chunk provenance: %w", err)
	}
	for i, rec := range recs {
		chunks[i].ProvenanceID = rec.ID
	}

	if err := s.docStore.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	embedded := 0
	if embed && s.embeddingService != nil && len(chunks) > 0 {
		items := make([]embedItem, len(chunks))
		for i, c := range chunks {
			chunkID := c.ID
			items[i] = embedItem{
				parentProvenance: c.ProvenanceID,
				embedding: domain.Embedding{
					DocumentID:   doc.ID,
					ChunkID:      &chunkID,
					OriginalText: c.Text,
					PageNumber:   c.PageNumber,
					PageRange:    c.PageRange,
				},
			}
		}
		if embedded, err = s.embed(ctx, doc, items); err != nil {
			return nil, err
		}
	}

	doc.Status = domain.DocumentStatusComplete
	doc.UpdatedAt = now
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	return &driving.IngestResult{
		Document:   doc,
		OCRResult:  ocr,
		Chunks:     chunks,
		Embeddings: embedded,
	}, nil
}

// rollback removes a partially ingested document and its provenance.
func (s *IngestService) rollback(ctx context.Context, doc *domain.Document) {
	if _, err := s.vectorStore.DeleteByDocument(ctx, doc.ID); err != nil {
		logger.Warn("Rollback of %s: delete vectors: %v", doc.ID, err)
	}
	if err := s.docStore.DeleteDocument(ctx, doc.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Rollback of %s: delete document: %v", doc.ID, err)
	}
	if _, err := s.provenance.DeleteByRoot(ctx, doc.ProvenanceID); err != nil {
		logger.Warn("Rollback of %s: delete provenance: %v", doc.ID, err)
	}
}

// Rechunk replaces a document's chunks and their embeddings. Old chunk
// provenance stays in the log; the new chunks get new records.
func (s *IngestService) Rechunk(
	ctx context.Context, documentID string, override *domain.ChunkingConfig,
) (*driving.IngestResult, error) {
	defer logger.Timed("rechunk " + documentID)()

	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	ocr, err := s.docStore.GetLatestOCRResult(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunker, cfg := s.chunker, s.chunker.Config()
	if override != nil {
		cfg = cfg.Resolve(override)
	} else if recorded, err := s.recordedChunker(ctx, documentID); err != nil {
		return nil, err
	} else if recorded != nil {
		chunker, cfg = recorded, recorded.Config()
	}

	chunks, err := chunker.ProcessWithConfig(ctx, doc, ocr, cfg)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", documentID, err)
	}

	doc.Status = domain.DocumentStatusProcessing
	result, err := s.storeChunks(ctx, doc, ocr, chunks, chunker, cfg, true)
	if err != nil {
		doc.Status = domain.DocumentStatusFailed
		if saveErr := s.docStore.SaveDocument(ctx, doc); saveErr != nil {
			logger.Warn("Mark %s failed: %v", documentID, saveErr)
		}
		return nil, err
	}
	logger.Info("Rechunked %s: %d chunks, %d embeddings", documentID, len(result.Chunks), result.Embeddings)
	return result, nil
}

// recordedChunker rebuilds the chunker named on the document's current
// chunk provenance. It returns nil when nothing was recorded.
func (s *IngestService) recordedChunker(ctx context.Context, documentID string) (driven.Chunker, error) {
	if s.chunkers == nil {
		return nil, nil
	}
	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || chunks[0].ProvenanceID == "" {
		return nil, nil
	}
	rec, err := s.provenance.Get(ctx, chunks[0].ProvenanceID)
	if err != nil {
		return nil, fmt.Errorf("load chunk provenance: %w", err)
	}
	chunker, err := s.chunkers.Build(rec.Processor, rec.ProcessingParams)
	if err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", rec.Processor, err)
	}
	logger.Debug("Replaying %s %s from %s", rec.Processor, rec.ProcessorVersion, rec.ID)
	return chunker, nil
}

// AttachImage stores a VLM description of a document image and embeds it.
// Provenance: OCR_RESULT -> IMAGE -> VLM_DESCRIPTION -> EMBEDDING.
func (s *IngestService) AttachImage(ctx context.Context, req driving.AttachRequest) (*driving.AttachResult, error) {
	doc, ocr, err := s.attachTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	img := domain.Image{
		ID:             uuid.New().String(),
		DocumentID:     doc.ID,
		PageNumber:     req.PageNumber,
		VLMDescription: req.Text,
		CreatedAt:      s.now().UTC(),
	}
	imageHash, err := HashJSON(map[string]any{"document_id": doc.ID, "image_id": img.ID, "page_number": img.PageNumber})
	if err != nil {
		return nil, err
	}

	imageRecID := uuid.New().String()
	recs, err := s.provenance.RecordBatch(ctx, []driving.RecordInput{
		{
			ID:               imageRecID,
			Kind:             domain.ProvenanceImage,
			ParentID:         ocr.ProvenanceID,
			ContentHash:      imageHash,
			Processor:        ProcessorImage,
			ProcessorVersion: IngestVersion,
		},
		{
			Kind:             domain.ProvenanceVLMDescription,
			ParentID:         imageRecID,
			Content:          []byte(req.Text),
			Processor:        req.Processor,
			ProcessorVersion: req.ProcessorVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("record image provenance: %w", err)
	}
	img.ProvenanceID = recs[0].ID

	if err := s.docStore.SaveImage(ctx, &img); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	imageID := img.ID
	result := &driving.AttachResult{ID: img.ID, ProvenanceID: img.ProvenanceID}
	result.EmbeddingID, err = s.embedOne(ctx, doc, embedItem{
		parentProvenance: recs[1].ID,
		embedding: domain.Embedding{
			DocumentID:   doc.ID,
			ImageID:      &imageID,
			OriginalText: req.Text,
			PageNumber:   req.PageNumber,
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AttachExtraction stores structured content extracted from a document
// and embeds it. Provenance: OCR_RESULT -> EXTRACTION -> EMBEDDING.
func (s *IngestService) AttachExtraction(ctx context.Context, req driving.AttachRequest) (*driving.AttachResult, error) {
	doc, ocr, err := s.attachTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	rec, err := s.provenance.Record(ctx, driving.RecordInput{
		Kind:             domain.ProvenanceExtraction,
		ParentID:         ocr.ProvenanceID,
		Content:          []byte(req.Text),
		Processor:        req.Processor,
		ProcessorVersion: req.ProcessorVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("record extraction provenance: %w", err)
	}

	ext := domain.Extraction{
		ID:           uuid.New().String(),
		DocumentID:   doc.ID,
		PageNumber:   req.PageNumber,
		Content:      req.Text,
		ProvenanceID: rec.ID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.docStore.SaveExtraction(ctx, &ext); err != nil {
		return nil, fmt.Errorf("save extraction: %w", err)
	}

	extID := ext.ID
	result := &driving.AttachResult{ID: ext.ID, ProvenanceID: rec.ID}
	result.EmbeddingID, err = s.embedOne(ctx, doc, embedItem{
		parentProvenance: rec.ID,
		embedding: domain.Embedding{
			DocumentID:   doc.ID,
			ExtractionID: &extID,
			OriginalText: req.Text,
			PageNumber:   req.PageNumber,
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *IngestService) attachTarget(
	ctx context.Context, req driving.AttachRequest,
) (*domain.Document, *domain.OCRResult, error) {
	if req.DocumentID == "" {
		return nil, nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if req.Processor == "" {
		return nil, nil, fmt.Errorf("%w: processor is required", domain.ErrInvalidInput)
	}
	if req.PageNumber != nil && *req.PageNumber < 1 {
		return nil, nil, fmt.Errorf("%w: page number %d", domain.ErrInvalidInput, *req.PageNumber)
	}
	doc, err := s.docStore.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	ocr, err := s.docStore.GetLatestOCRResult(ctx, req.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	return doc, ocr, nil
}

// embedItem is one text to embed. The embedding's identity, provenance
// and source file fields are filled in by embed.
type embedItem struct {
	parentProvenance string
	embedding        domain.Embedding
}

func (s *IngestService) embedOne(ctx context.Context, doc *domain.Document, item embedItem) (string, error) {
	if s.embeddingService == nil {
		return "", nil
	}
	items := []embedItem{item}
	if _, err := s.embed(ctx, doc, items); err != nil {
		return "", err
	}
	return items[0].embedding.ID, nil
}

// embed generates vectors in batches, records EMBEDDING provenance,
// registers the embedding rows and stores the vectors.
func (s *IngestService) embed(ctx context.Context, doc *domain.Document, items []embedItem) (int, error) {
	defer logger.Timed(fmt.Sprintf("embed %d texts", len(items)))()

	vectors := make([][]float32, 0, len(items))
	for start := 0; start < len(items); start += s.batchSize {
		end := min(start+s.batchSize, len(items))
		texts := make([]string, 0, end-start)
		for _, it := range items[start:end] {
			texts = append(texts, it.embedding.OriginalText)
		}
		batch, err := s.embeddingService.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return 0, fmt.Errorf("embed batch %d-%d: got %d vectors for %d texts", start, end, len(batch), len(texts))
		}
		for _, v := range batch {
			if err := domain.CheckDimension(v); err != nil {
				return 0, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
		}
		vectors = append(vectors, batch...)
	}

	model := s.embeddingService.ModelName()
	now := s.now().UTC()
	inputs := make([]driving.RecordInput, len(items))
	for i := range items {
		e := &items[i].embedding
		e.ID = uuid.New().String()
		e.SourceFilePath = doc.FilePath
		e.SourceFileName = doc.FileName
		e.SourceFileHash = doc.FileHash
		e.ModelName = model
		e.ContentHash = HashVector(vectors[i])
		e.CreatedAt = now
		inputs[i] = driving.RecordInput{
			Kind:             domain.ProvenanceEmbedding,
			ParentID:         items[i].parentProvenance,
			ContentHash:      e.ContentHash,
			Processor:        ProcessorEmbedding,
			ProcessorVersion: model,
			Params: domain.ProcessingParams{
				"model":      model,
				"dimensions": len(vectors[i]),
			},
		}
	}

	recs, err := s.provenance.RecordBatch(ctx, inputs)
	if err != nil {
		return 0, fmt.Errorf("record embedding provenance: %w", err)
	}
	embeddings := make([]domain.Embedding, len(items))
	vecItems := make([]domain.VectorItem, len(items))
	for i := range items {
		items[i].embedding.ProvenanceID = recs[i].ID
		embeddings[i] = items[i].embedding
		vecItems[i] = domain.VectorItem{EmbeddingID: embeddings[i].ID, Vector: vectors[i]}
	}

	if err := s.docStore.SaveEmbeddings(ctx, embeddings); err != nil {
		return 0, fmt.Errorf("save embeddings: %w", err)
	}
	if err := s.vectorStore.BatchStore(ctx, vecItems); err != nil {
		return 0, fmt.Errorf("store vectors: %w", err)
	}
	return len(items), nil
}
