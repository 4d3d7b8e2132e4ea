package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

// chunkAlias is the chunk table alias in the candidate query.
const chunkAlias = "c"

// vectorStore implements driven.VectorStore on the vec_embeddings table.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// Store writes the vector for an existing embedding row.
func (s *vectorStore) Store(ctx context.Context, embeddingID string, vector []float32) error {
	return s.BatchStore(ctx, []domain.VectorItem{{EmbeddingID: embeddingID, Vector: vector}})
}

// BatchStore validates every item and then writes all of them in one transaction.
func (s *vectorStore) BatchStore(ctx context.Context, items []domain.VectorItem) error {
	for i, item := range items {
		if err := domain.CheckDimension(item.Vector); err != nil {
			return fmt.Errorf("item %d (%s): %w", i, item.EmbeddingID, err)
		}
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			found, err := exists(ctx, tx, "embeddings", item.EmbeddingID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: embedding %s", domain.ErrNotFound, item.EmbeddingID)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO vec_embeddings (embedding_id, vector) VALUES (?, ?)
			ON CONFLICT(embedding_id) DO UPDATE SET vector = excluded.vector
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, item.EmbeddingID, float32SliceToBytes(item.Vector)); err != nil {
				return fmt.Errorf("storing vector %s: %w", item.EmbeddingID, err)
			}
		}
		return nil
	})
}

// DeleteByDocument removes the vectors of every embedding of a document.
func (s *vectorStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	var n int64
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM vec_embeddings
			WHERE embedding_id IN (SELECT id FROM embeddings WHERE document_id = ?)
		`, documentID)
		if err != nil {
			return fmt.Errorf("deleting vectors: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

// Count returns the number of stored vectors.
func (s *vectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// QueryCandidates runs the cosine distance query joined with embedding,
// chunk and latest OCR quality data.
func (s *vectorStore) QueryCandidates(ctx context.Context, q driven.CandidateQuery) ([]domain.VectorCandidate, error) {
	if err := domain.CheckDimension(q.Vector); err != nil {
		return nil, err
	}

	query, args, err := buildCandidateQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var out []domain.VectorCandidate //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}
	return out, nil
}

// buildCandidateQuery assembles the SQL and its arguments. Chunk filter
// conditions are rewritten onto chunkAlias and widened so rows without a
// chunk link pass; the page range only constrains chunk rows.
func buildCandidateQuery(q driven.CandidateQuery) (string, []any, error) {
	var b strings.Builder
	args := []any{float32SliceToBytes(q.Vector)}

	b.WriteString(`
		SELECT e.id, e.document_id, e.chunk_id, e.image_id, e.extraction_id, e.original_text,
			e.source_file_path, e.source_file_name, e.source_file_hash, e.page_number, e.page_range,
			e.model_name, e.provenance_id, e.content_hash,
			c.chunk_index, c.start_offset, c.end_offset, c.heading_context, c.section_path,
			c.content_types, c.page_number,
			(SELECT o.quality_score FROM ocr_results o
				WHERE o.document_id = e.document_id
				ORDER BY o.created_at DESC, o.rowid DESC LIMIT 1) AS quality_score,
			vec_distance_cosine(v.vector, ?) AS distance
		FROM vec_embeddings v
		JOIN embeddings e ON e.id = v.embedding_id
		LEFT JOIN chunks c ON c.id = e.chunk_id
		WHERE 1 = 1`)

	if len(q.DocumentIDs) > 0 {
		b.WriteString("\n\t\tAND e.document_id IN (")
		for i, id := range q.DocumentIDs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, id)
		}
		b.WriteString(")")
	}

	if !q.ChunkFilter.IsEmpty() {
		conds, err := rewriteChunkFilter(q.ChunkFilter)
		if err != nil {
			return "", nil, err
		}
		for _, cond := range conds {
			b.WriteString("\n\t\tAND ((" + cond + ") OR e.chunk_id IS NULL)")
		}
		args = append(args, q.ChunkFilter.Params...)
	}

	if q.PageRange != nil && (q.PageRange.Min > 0 || q.PageRange.Max > 0) {
		var bounds []string
		if q.PageRange.Min > 0 {
			bounds = append(bounds, chunkAlias+".page_number >= ?")
			args = append(args, q.PageRange.Min)
		}
		if q.PageRange.Max > 0 {
			bounds = append(bounds, chunkAlias+".page_number <= ?")
			args = append(args, q.PageRange.Max)
		}
		b.WriteString("\n\t\tAND (e.chunk_id IS NULL OR (" + strings.Join(bounds, " AND ") + "))")
	}

	b.WriteString("\n\t\tORDER BY distance ASC, e.id ASC")
	if q.Limit > 0 {
		b.WriteString("\n\t\tLIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

// rewriteChunkFilter substitutes the filter's alias with chunkAlias and
// checks that placeholders and params agree.
func rewriteChunkFilter(f *domain.ChunkFilter) ([]string, error) {
	alias := f.Alias
	if alias == "" {
		alias = domain.DefaultChunkAlias
	}

	placeholders := 0
	for _, cond := range f.Conditions {
		if strings.TrimSpace(cond) == "" {
			return nil, fmt.Errorf("%w: empty chunk filter condition", domain.ErrInvalidInput)
		}
		placeholders += strings.Count(cond, "?")
	}
	if placeholders != len(f.Params) {
		return nil, fmt.Errorf("%w: chunk filter has %d placeholders and %d params",
			domain.ErrInvalidInput, placeholders, len(f.Params))
	}

	if alias == chunkAlias {
		return f.Conditions, nil
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(alias) + `\.`)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk filter alias %q", domain.ErrInvalidInput, alias)
	}
	out := make([]string, len(f.Conditions))
	for i, cond := range f.Conditions {
		out[i] = re.ReplaceAllString(cond, chunkAlias+".")
	}
	return out, nil
}

func scanCandidate(rows *sql.Rows) (*domain.VectorCandidate, error) {
	var r domain.VectorSearchResult
	var chunkID, imageID, extractionID sql.NullString
	var embPage, chunkPage, chunkIndex, start, end sql.NullInt64
	var heading, section, types sql.NullString
	var quality sql.NullFloat64

	if err := rows.Scan(&r.EmbeddingID, &r.DocumentID, &chunkID, &imageID, &extractionID, &r.OriginalText,
		&r.SourceFilePath, &r.SourceFileName, &r.SourceFileHash, &embPage, &r.PageRange,
		&r.ModelName, &r.ProvenanceID, &r.ContentHash,
		&chunkIndex, &start, &end, &heading, &section, &types, &chunkPage,
		&quality, &r.Distance); err != nil {
		return nil, fmt.Errorf("scanning candidate: %w", err)
	}

	r.ChunkID = stringPtr(chunkID)
	r.ImageID = stringPtr(imageID)
	r.ExtractionID = stringPtr(extractionID)
	emb := domain.Embedding{ChunkID: r.ChunkID, ImageID: r.ImageID, ExtractionID: r.ExtractionID}
	r.ResultType = emb.ResultType()
	if r.ResultType == "" {
		return nil, fmt.Errorf("%w: embedding %s does not link exactly one artifact", domain.ErrIntegrity, r.EmbeddingID)
	}
	r.OriginalTextLength = len(r.OriginalText)

	r.PageNumber = intPtr(embPage)
	if chunkIndex.Valid {
		r.ChunkIndex = intPtr(chunkIndex)
		r.CharacterStart = intPtr(start)
		r.CharacterEnd = intPtr(end)
		r.HeadingContext = heading.String
		r.SectionPath = section.String
		if err := unmarshalJSON("content_types", types.String, &r.ContentTypes); err != nil {
			return nil, err
		}
		if r.PageNumber == nil {
			r.PageNumber = intPtr(chunkPage)
		}
	}

	return &domain.VectorCandidate{Result: r, QualityScore: floatPtr(quality)}, nil
}
