package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

// provenanceStore implements driven.ProvenanceStore over an append-only table.
type provenanceStore struct {
	store *Store
}

var _ driven.ProvenanceStore = (*provenanceStore)(nil)

const provenanceColumns = `id, kind, content_hash, input_hash, parent_id, root_document_id,
	chain_depth, chain_path, source_path, processor, processor_version, processing_params, created_at`

// Append persists one record.
func (s *provenanceStore) Append(ctx context.Context, rec *domain.ProvenanceRecord) error {
	return s.AppendBatch(ctx, []*domain.ProvenanceRecord{rec})
}

// AppendBatch checks and inserts records in order inside one transaction.
func (s *provenanceStore) AppendBatch(ctx context.Context, recs []*domain.ProvenanceRecord) error {
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		pending := make(map[string]*domain.ProvenanceRecord, len(recs))
		for _, rec := range recs {
			if _, dup := pending[rec.ID]; dup {
				return fmt.Errorf("%w: provenance record %s", domain.ErrAlreadyExists, rec.ID)
			}
			if err := checkRecord(ctx, tx, rec, pending); err != nil {
				return err
			}
			if err := insertRecord(ctx, tx, rec); err != nil {
				return err
			}
			pending[rec.ID] = rec
		}
		return nil
	})
}

func checkRecord(ctx context.Context, tx *sql.Tx, rec *domain.ProvenanceRecord, pending map[string]*domain.ProvenanceRecord) error {
	found, err := exists(ctx, tx, "provenance", rec.ID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: provenance record %s", domain.ErrAlreadyExists, rec.ID)
	}

	var parent *domain.ProvenanceRecord
	if rec.ParentID != nil {
		if p, ok := pending[*rec.ParentID]; ok {
			parent = p
		} else {
			p, err := getRecord(ctx, tx, *rec.ParentID)
			switch {
			case err == nil:
				parent = p
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
		}
	}
	return rec.CheckLink(parent)
}

func insertRecord(ctx context.Context, q queryer, rec *domain.ProvenanceRecord) error {
	path, err := marshalJSON(rec.ChainPath)
	if err != nil {
		return err
	}
	params := rec.ProcessingParams
	if params == nil {
		params = domain.ProcessingParams{}
	}
	paramsJSON, err := marshalJSON(params)
	if err != nil {
		return fmt.Errorf("processing params of %s: %w", rec.ID, err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO provenance (`+provenanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Kind), rec.ContentHash, rec.InputHash, nullString(rec.ParentID),
		rec.RootDocumentID, rec.ChainDepth, path, rec.SourcePath, rec.Processor,
		rec.ProcessorVersion, paramsJSON, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting provenance record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns one record.
func (s *provenanceStore) Get(ctx context.Context, id string) (*domain.ProvenanceRecord, error) {
	return getRecord(ctx, s.store.db, id)
}

func getRecord(ctx context.Context, q queryer, id string) (*domain.ProvenanceRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+provenanceColumns+` FROM provenance WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: provenance record %s", domain.ErrNotFound, id)
	}
	return rec, err
}

// ListByRoot returns every record of a root ordered by depth, then insertion.
func (s *provenanceStore) ListByRoot(ctx context.Context, rootID string) ([]*domain.ProvenanceRecord, error) {
	return s.list(ctx, `
		SELECT `+provenanceColumns+` FROM provenance
		WHERE root_document_id = ?
		ORDER BY chain_depth, rowid
	`, rootID)
}

// ListChildren returns the direct children of a record in insertion order.
func (s *provenanceStore) ListChildren(ctx context.Context, parentID string) ([]*domain.ProvenanceRecord, error) {
	return s.list(ctx, `
		SELECT `+provenanceColumns+` FROM provenance
		WHERE parent_id = ?
		ORDER BY rowid
	`, parentID)
}

// DeleteByRoot removes every record of a root.
func (s *provenanceStore) DeleteByRoot(ctx context.Context, rootID string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM provenance WHERE root_document_id = ?", rootID)
	if err != nil {
		return 0, fmt.Errorf("deleting provenance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting provenance: %w", err)
	}
	return int(n), nil
}

func (s *provenanceStore) list(ctx context.Context, query string, arg string) ([]*domain.ProvenanceRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProvenanceRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provenance: %w", err)
	}
	return out, nil
}

// scanRecord scans a provenance row. sql.ErrNoRows is returned unwrapped.
func scanRecord(row rowScanner) (*domain.ProvenanceRecord, error) {
	var rec domain.ProvenanceRecord
	var kind, path, params string
	var parent sql.NullString
	err := row.Scan(&rec.ID, &kind, &rec.ContentHash, &rec.InputHash, &parent, &rec.RootDocumentID,
		&rec.ChainDepth, &path, &rec.SourcePath, &rec.Processor, &rec.ProcessorVersion, &params, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning provenance: %w", err)
	}

	rec.Kind = domain.ProvenanceKind(kind)
	if !rec.Kind.IsValid() {
		return nil, fmt.Errorf("%w: provenance record %s has kind %q", domain.ErrIntegrity, rec.ID, kind)
	}
	rec.ParentID = stringPtr(parent)
	if err := unmarshalJSON("chain_path", path, &rec.ChainPath); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("processing_params", params, &rec.ProcessingParams); err != nil {
		return nil, err
	}
	return &rec, nil
}
