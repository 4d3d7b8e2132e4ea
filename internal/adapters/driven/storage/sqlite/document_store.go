package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, file_path, file_name, file_hash, file_size, file_type, title,
	status, page_count, provenance_id, created_at, updated_at`

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			file_name = excluded.file_name,
			file_hash = excluded.file_hash,
			file_size = excluded.file_size,
			file_type = excluded.file_type,
			title = excluded.title,
			status = excluded.status,
			page_count = excluded.page_count,
			provenance_id = excluded.provenance_id,
			updated_at = excluded.updated_at
	`, doc.ID, doc.FilePath, doc.FileName, doc.FileHash, doc.FileSize, doc.FileType, doc.Title,
		string(doc.Status), doc.PageCount, doc.ProvenanceID, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return doc, err
}

// GetDocumentByHash retrieves the oldest document with the given file hash.
func (s *documentStore) GetDocumentByHash(ctx context.Context, fileHash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE file_hash = ?
		ORDER BY created_at, id
		LIMIT 1
	`, fileHash)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document with hash %s", domain.ErrNotFound, fileHash)
	}
	return doc, err
}

// ListDocuments returns all documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document; the schema cascades to OCR results,
// chunks, images, extractions, embeddings and vectors.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return nil
}

// SaveOCRResult stores an OCR result.
func (s *documentStore) SaveOCRResult(ctx context.Context, ocr *domain.OCRResult) error {
	offsets, err := marshalJSON(ocr.PageOffsets)
	if err != nil {
		return err
	}
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDocument(ctx, tx, ocr.DocumentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ocr_results (id, document_id, provenance_id, extracted_text, page_count,
				page_offsets, quality_score, content_hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ocr.ID, ocr.DocumentID, ocr.ProvenanceID, ocr.ExtractedText, ocr.PageCount,
			offsets, nullFloat(ocr.QualityScore), ocr.ContentHash, ocr.CreatedAt)
		if err != nil {
			return fmt.Errorf("saving OCR result: %w", err)
		}
		return nil
	})
}

// GetLatestOCRResult returns the most recent OCR result of a document.
func (s *documentStore) GetLatestOCRResult(ctx context.Context, documentID string) (*domain.OCRResult, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, provenance_id, extracted_text, page_count, page_offsets,
			quality_score, content_hash, created_at
		FROM ocr_results
		WHERE document_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, documentID)

	var ocr domain.OCRResult
	var offsets string
	var quality sql.NullFloat64
	err := row.Scan(&ocr.ID, &ocr.DocumentID, &ocr.ProvenanceID, &ocr.ExtractedText, &ocr.PageCount,
		&offsets, &quality, &ocr.ContentHash, &ocr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: OCR result for document %s", domain.ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning OCR result: %w", err)
	}
	ocr.QualityScore = floatPtr(quality)
	if err := unmarshalJSON("page_offsets", offsets, &ocr.PageOffsets); err != nil {
		return nil, err
	}
	return &ocr, nil
}

const chunkColumns = `id, document_id, ocr_result_id, provenance_id, chunk_index, text, text_hash,
	start_offset, end_offset, page_number, page_range, heading_context, heading_level,
	section_path, content_types, is_atomic, overlap_previous, overlap_next, created_at`

// ReplaceChunks deletes a document's chunks (cascading to their embeddings
// and vectors) and inserts chunks in one transaction.
func (s *documentStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	for _, c := range chunks {
		if c.DocumentID != documentID {
			return fmt.Errorf("%w: chunk %s belongs to document %s", domain.ErrInvalidInput, c.ID, c.DocumentID)
		}
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDocument(ctx, tx, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (`+chunkColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			types, err := marshalJSON(contentTypesOrEmpty(c.ContentTypes))
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.OCRResultID, c.ProvenanceID, c.Index,
				c.Text, c.TextHash, c.StartOffset, c.EndOffset, nullInt(c.PageNumber), c.PageRange,
				c.HeadingContext, c.HeadingLevel, c.SectionPath, types, c.IsAtomic,
				c.OverlapWithPrevious, c.OverlapWithNext, c.CreatedAt); err != nil {
				return fmt.Errorf("saving chunk %d: %w", c.Index, err)
			}
		}
		return nil
	})
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks
		WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %s", domain.ErrNotFound, id)
	}
	return chunk, err
}

// SaveImage stores an image record.
func (s *documentStore) SaveImage(ctx context.Context, img *domain.Image) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDocument(ctx, tx, img.DocumentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO images (id, document_id, page_number, vlm_description, provenance_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, img.ID, img.DocumentID, nullInt(img.PageNumber), img.VLMDescription, img.ProvenanceID, img.CreatedAt)
		if err != nil {
			return fmt.Errorf("saving image: %w", err)
		}
		return nil
	})
}

// SaveExtraction stores an extraction record.
func (s *documentStore) SaveExtraction(ctx context.Context, ext *domain.Extraction) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDocument(ctx, tx, ext.DocumentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO extractions (id, document_id, page_number, content, provenance_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, ext.ID, ext.DocumentID, nullInt(ext.PageNumber), ext.Content, ext.ProvenanceID, ext.CreatedAt)
		if err != nil {
			return fmt.Errorf("saving extraction: %w", err)
		}
		return nil
	})
}

const embeddingColumns = `id, document_id, chunk_id, image_id, extraction_id, original_text,
	source_file_path, source_file_name, source_file_hash, page_number, page_range,
	model_name, model_version, provenance_id, content_hash, created_at`

// SaveEmbeddings validates every row and then registers all of them in
// one transaction.
func (s *documentStore) SaveEmbeddings(ctx context.Context, embeddings []domain.Embedding) error {
	for i := range embeddings {
		e := &embeddings[i]
		if e.ResultType() == "" {
			return fmt.Errorf("%w: embedding %s must link exactly one chunk, image or extraction", domain.ErrInvalidInput, e.ID)
		}
		if e.OriginalText == "" {
			return fmt.Errorf("%w: embedding %s has no original text", domain.ErrInvalidInput, e.ID)
		}
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		checked := make(map[string]bool)
		for _, e := range embeddings {
			if checked[e.DocumentID] {
				continue
			}
			if err := requireDocument(ctx, tx, e.DocumentID); err != nil {
				return err
			}
			checked[e.DocumentID] = true
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO embeddings (`+embeddingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, e := range embeddings {
			if _, err := stmt.ExecContext(ctx, e.ID, e.DocumentID, nullString(e.ChunkID), nullString(e.ImageID),
				nullString(e.ExtractionID), e.OriginalText, e.SourceFilePath, e.SourceFileName,
				e.SourceFileHash, nullInt(e.PageNumber), e.PageRange, e.ModelName, e.ModelVersion,
				e.ProvenanceID, e.ContentHash, e.CreatedAt); err != nil {
				return fmt.Errorf("saving embedding %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// ListEmbeddings returns the embedding rows of a document.
func (s *documentStore) ListEmbeddings(ctx context.Context, documentID string) ([]domain.Embedding, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+embeddingColumns+` FROM embeddings
		WHERE document_id = ?
		ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var out []domain.Embedding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.Embedding
		var chunkID, imageID, extractionID sql.NullString
		var page sql.NullInt64
		if err := rows.Scan(&e.ID, &e.DocumentID, &chunkID, &imageID, &extractionID, &e.OriginalText,
			&e.SourceFilePath, &e.SourceFileName, &e.SourceFileHash, &page, &e.PageRange,
			&e.ModelName, &e.ModelVersion, &e.ProvenanceID, &e.ContentHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		e.ChunkID = stringPtr(chunkID)
		e.ImageID = stringPtr(imageID)
		e.ExtractionID = stringPtr(extractionID)
		e.PageNumber = intPtr(page)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return out, nil
}

// scanDocument scans a document row. sql.ErrNoRows is returned unwrapped.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(&doc.ID, &doc.FilePath, &doc.FileName, &doc.FileHash, &doc.FileSize, &doc.FileType,
		&doc.Title, &status, &doc.PageCount, &doc.ProvenanceID, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

// scanChunk scans a chunk row. sql.ErrNoRows is returned unwrapped.
func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var c domain.Chunk
	var page sql.NullInt64
	var types string
	err := row.Scan(&c.ID, &c.DocumentID, &c.OCRResultID, &c.ProvenanceID, &c.Index, &c.Text, &c.TextHash,
		&c.StartOffset, &c.EndOffset, &page, &c.PageRange, &c.HeadingContext, &c.HeadingLevel,
		&c.SectionPath, &types, &c.IsAtomic, &c.OverlapWithPrevious, &c.OverlapWithNext, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	c.PageNumber = intPtr(page)
	if err := unmarshalJSON("content_types", types, &c.ContentTypes); err != nil {
		return nil, err
	}
	return &c, nil
}

// contentTypesOrEmpty keeps "[]" rather than "null" in the column so
// LIKE filters see a well-formed array.
func contentTypesOrEmpty(ct domain.ContentTypes) domain.ContentTypes {
	if ct == nil {
		return domain.ContentTypes{}
	}
	return ct
}
