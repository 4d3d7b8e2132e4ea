package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
	"github.com/custodia-labs/ocrprov/internal/logger"
)

// Ensure ProvenanceService implements the interface.
var _ driving.ProvenanceService = (*ProvenanceService)(nil)

// ProvenanceService records and walks hash-linked provenance chains.
type ProvenanceService struct {
	store driven.ProvenanceStore
	now   func() time.Time
}

// NewProvenanceService creates a new provenance service.
func NewProvenanceService(store driven.ProvenanceStore) *ProvenanceService {
	return &ProvenanceService{
		store: store,
		now:   time.Now,
	}
}

// HashContent hashes record content. Valid UTF-8 is hashed in canonical
// text form; anything else is hashed as raw bytes.
func HashContent(content []byte) string {
	if utf8.Valid(content) {
		return HashText(string(content))
	}
	return HashBytes(content)
}

// HashRecordContent hashes content the way records of kind are hashed.
// Documents are hashed as raw file bytes, everything derived from them
// with HashContent.
func HashRecordContent(kind domain.ProvenanceKind, content []byte) string {
	if kind == domain.ProvenanceDocument {
		return HashBytes(content)
	}
	return HashContent(content)
}

// Record appends one record derived from its parent.
func (s *ProvenanceService) Record(ctx context.Context, in driving.RecordInput) (*domain.ProvenanceRecord, error) {
	parent, err := s.parent(ctx, in.ParentID, nil)
	if err != nil {
		return nil, err
	}
	rec, err := s.build(in, parent)
	if err != nil {
		return nil, err
	}
	if err := s.store.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append %s provenance: %w", rec.Kind, err)
	}
	logger.Debug("provenance: %s %s depth=%d root=%s", rec.Kind, rec.ID, rec.ChainDepth, rec.RootDocumentID)
	return rec, nil
}

// RecordBatch validates every input and then appends all records at once.
func (s *ProvenanceService) RecordBatch(ctx context.Context, ins []driving.RecordInput) ([]*domain.ProvenanceRecord, error) {
	if len(ins) == 0 {
		return nil, nil
	}

	pending := make(map[string]*domain.ProvenanceRecord, len(ins))
	recs := make([]*domain.ProvenanceRecord, 0, len(ins))
	for i, in := range ins {
		parent, err := s.parent(ctx, in.ParentID, pending)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		rec, err := s.build(in, parent)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		if _, dup := pending[rec.ID]; dup {
			return nil, fmt.Errorf("batch item %d: %w: duplicate id %s", i, domain.ErrInvalidInput, rec.ID)
		}
		pending[rec.ID] = rec
		recs = append(recs, rec)
	}

	if err := s.store.AppendBatch(ctx, recs); err != nil {
		return nil, fmt.Errorf("append provenance batch: %w", err)
	}
	logger.Debug("provenance: appended %d records", len(recs))
	return recs, nil
}

func (s *ProvenanceService) parent(
	ctx context.Context, id string, pending map[string]*domain.ProvenanceRecord,
) (*domain.ProvenanceRecord, error) {
	if id == "" {
		return nil, nil
	}
	if rec, ok := pending[id]; ok {
		return rec, nil
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: parent provenance record %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load parent %s: %w", id, err)
	}
	return rec, nil
}

// build derives depth, root, input hash and chain path from the parent.
func (s *ProvenanceService) build(in driving.RecordInput, parent *domain.ProvenanceRecord) (*domain.ProvenanceRecord, error) {
	if !in.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown provenance kind %q", domain.ErrInvalidInput, in.Kind)
	}
	if in.Processor == "" {
		return nil, fmt.Errorf("%w: processor is required", domain.ErrInvalidInput)
	}

	contentHash := in.ContentHash
	switch {
	case contentHash == "":
		contentHash = HashRecordContent(in.Kind, in.Content)
	case !IsContentHash(contentHash):
		return nil, fmt.Errorf("%w: malformed content hash %q", domain.ErrInvalidInput, contentHash)
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}

	rec := &domain.ProvenanceRecord{
		ID:               id,
		Kind:             in.Kind,
		ContentHash:      contentHash,
		RootDocumentID:   id,
		ChainPath:        []domain.ProvenanceKind{in.Kind},
		SourcePath:       in.SourcePath,
		Processor:        in.Processor,
		ProcessorVersion: in.ProcessorVersion,
		ProcessingParams: copyParams(in.Params),
		CreatedAt:        s.now().UTC(),
	}

	if parent != nil {
		parentID := parent.ID
		rec.ParentID = &parentID
		rec.ChainDepth = parent.ChainDepth + 1
		rec.RootDocumentID = parent.RootDocumentID
		rec.InputHash = parent.ContentHash
		rec.ChainPath = append(slices.Clone(parent.ChainPath), in.Kind)
		if rec.SourcePath == "" {
			rec.SourcePath = parent.SourcePath
		}
	}

	if in.ChainDepth != nil && *in.ChainDepth != rec.ChainDepth {
		return nil, fmt.Errorf("%w: requested depth %d, parent implies %d",
			domain.ErrIntegrity, *in.ChainDepth, rec.ChainDepth)
	}
	if err := rec.CheckLink(parent); err != nil {
		return nil, err
	}
	return rec, nil
}

func copyParams(p domain.ProcessingParams) domain.ProcessingParams {
	if p == nil {
		return domain.ProcessingParams{}
	}
	out := make(domain.ProcessingParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Get returns one record.
func (s *ProvenanceService) Get(ctx context.Context, id string) (*domain.ProvenanceRecord, error) {
	return s.store.Get(ctx, id)
}

// Chain walks parent pointers from id up to its root and returns the
// records root first.
func (s *ProvenanceService) Chain(ctx context.Context, id string) ([]*domain.ProvenanceRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []*domain.ProvenanceRecord{rec}
	seen := map[string]bool{rec.ID: true}
	for rec.ParentID != nil {
		parentID := *rec.ParentID
		if seen[parentID] {
			return nil, fmt.Errorf("%w: cycle at provenance record %s", domain.ErrIntegrity, parentID)
		}
		parent, err := s.store.Get(ctx, parentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: record %s names missing parent %s", domain.ErrIntegrity, rec.ID, parentID)
			}
			return nil, err
		}
		seen[parentID] = true
		chain = append(chain, parent)
		rec = parent
	}

	slices.Reverse(chain)
	return chain, nil
}

// ChainByRoot returns every record sharing rootID, ordered by depth.
func (s *ProvenanceService) ChainByRoot(ctx context.Context, rootID string) ([]*domain.ProvenanceRecord, error) {
	recs, err := s.store.ListByRoot(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: provenance root %s", domain.ErrNotFound, rootID)
	}
	return recs, nil
}

// Children returns the direct children of a record.
func (s *ProvenanceService) Children(ctx context.Context, id string) ([]*domain.ProvenanceRecord, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListChildren(ctx, id)
}

// DeleteByRoot removes every record of a chain.
func (s *ProvenanceService) DeleteByRoot(ctx context.Context, rootID string) (int, error) {
	n, err := s.store.DeleteByRoot(ctx, rootID)
	if err != nil {
		return 0, fmt.Errorf("delete provenance root %s: %w", rootID, err)
	}
	logger.Debug("provenance: deleted %d records under %s", n, rootID)
	return n, nil
}

// Verify recomputes the hash of content and compares it with the record.
func (s *ProvenanceService) Verify(ctx context.Context, id string, content []byte) (*driving.VerifyResult, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	actual := HashRecordContent(rec.Kind, content)
	return &driving.VerifyResult{
		RecordID:     rec.ID,
		Valid:        actual == rec.ContentHash,
		ExpectedHash: rec.ContentHash,
		ActualHash:   actual,
	}, nil
}

// VerifyChain checks depth, root, parent links, input hashes and chain
// paths along the chain ending at id.
func (s *ProvenanceService) VerifyChain(ctx context.Context, id string) (*driving.ChainReport, error) {
	chain, err := s.Chain(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrIntegrity) {
			return &driving.ChainReport{RecordID: id, Problems: []string{err.Error()}}, nil
		}
		return nil, err
	}

	report := &driving.ChainReport{RecordID: id, Depth: len(chain) - 1}
	root := chain[0]
	if !root.Kind.IsRoot() {
		report.Problems = append(report.Problems, fmt.Sprintf("root %s is %s, not %s", root.ID, root.Kind, domain.ProvenanceDocument))
	}

	var parent *domain.ProvenanceRecord
	for i, rec := range chain {
		if err := rec.CheckLink(parent); err != nil {
			report.Problems = append(report.Problems, err.Error())
		}
		if rec.ChainDepth != i {
			report.Problems = append(report.Problems, fmt.Sprintf("record %s has depth %d at position %d", rec.ID, rec.ChainDepth, i))
		}
		if rec.RootDocumentID != root.ID {
			report.Problems = append(report.Problems, fmt.Sprintf("record %s names root %s, chain root is %s", rec.ID, rec.RootDocumentID, root.ID))
		}
		if !IsContentHash(rec.ContentHash) {
			report.Problems = append(report.Problems, fmt.Sprintf("record %s has malformed content hash", rec.ID))
		}
		if parent != nil && rec.InputHash != parent.ContentHash {
			report.Problems = append(report.Problems, fmt.Sprintf("record %s input hash does not match parent %s", rec.ID, parent.ID))
		}
		if !slices.Equal(rec.ChainPath, chainKinds(chain[:i+1])) {
			report.Problems = append(report.Problems, fmt.Sprintf("record %s chain path %v does not match its ancestry", rec.ID, rec.ChainPath))
		}
		parent = rec
	}

	report.Valid = len(report.Problems) == 0
	return report, nil
}

func chainKinds(chain []*domain.ProvenanceRecord) []domain.ProvenanceKind {
	kinds := make([]domain.ProvenanceKind, len(chain))
	for i, rec := range chain {
		kinds[i] = rec.Kind
	}
	return kinds
}
