package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
)

// Ensure ProvenanceStore implements the interface.
var _ driven.ProvenanceStore = (*ProvenanceStore)(nil)

// ProvenanceStore is an in-memory append-only provenance log. Records live
// in one arena slice; id, root and parent indexes hold arena positions.
// Deleted records leave a nil slot behind.
type ProvenanceStore struct {
	mu       sync.RWMutex
	arena    []*domain.ProvenanceRecord
	byID     map[string]int
	byRoot   map[string][]int
	byParent map[string][]int
}

// NewProvenanceStore creates a new in-memory provenance store.
func NewProvenanceStore() *ProvenanceStore {
	return &ProvenanceStore{
		byID:     make(map[string]int),
		byRoot:   make(map[string][]int),
		byParent: make(map[string][]int),
	}
}

// Append persists one record.
func (s *ProvenanceStore) Append(_ context.Context, rec *domain.ProvenanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(rec, nil); err != nil {
		return err
	}
	s.insert(rec)
	return nil
}

// AppendBatch persists records in order, all or nothing.
func (s *ProvenanceStore) AppendBatch(_ context.Context, recs []*domain.ProvenanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[string]*domain.ProvenanceRecord, len(recs))
	for _, rec := range recs {
		if _, dup := pending[rec.ID]; dup {
			return fmt.Errorf("%w: provenance record %s", domain.ErrAlreadyExists, rec.ID)
		}
		if err := s.check(rec, pending); err != nil {
			return err
		}
		pending[rec.ID] = rec
	}
	for _, rec := range recs {
		s.insert(rec)
	}
	return nil
}

// check validates rec against the stored log plus pending records.
// Caller must hold the lock.
func (s *ProvenanceStore) check(rec *domain.ProvenanceRecord, pending map[string]*domain.ProvenanceRecord) error {
	if _, exists := s.byID[rec.ID]; exists {
		return fmt.Errorf("%w: provenance record %s", domain.ErrAlreadyExists, rec.ID)
	}

	var parent *domain.ProvenanceRecord
	if rec.ParentID != nil {
		if p, ok := pending[*rec.ParentID]; ok {
			parent = p
		} else if idx, ok := s.byID[*rec.ParentID]; ok {
			parent = s.arena[idx]
		}
	}
	return rec.CheckLink(parent)
}

// insert stores a copy of rec. Caller must hold the lock.
func (s *ProvenanceStore) insert(rec *domain.ProvenanceRecord) {
	cp := cloneRecord(rec)
	idx := len(s.arena)
	s.arena = append(s.arena, cp)
	s.byID[cp.ID] = idx
	s.byRoot[cp.RootDocumentID] = append(s.byRoot[cp.RootDocumentID], idx)
	if cp.ParentID != nil {
		s.byParent[*cp.ParentID] = append(s.byParent[*cp.ParentID], idx)
	}
}

// Get returns one record.
func (s *ProvenanceStore) Get(_ context.Context, id string) (*domain.ProvenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: provenance record %s", domain.ErrNotFound, id)
	}
	return cloneRecord(s.arena[idx]), nil
}

// ListByRoot returns every record of a root ordered by depth, then by
// creation order.
func (s *ProvenanceStore) ListByRoot(_ context.Context, rootID string) ([]*domain.ProvenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.collect(s.byRoot[rootID])
	slices.SortStableFunc(out, func(a, b *domain.ProvenanceRecord) int {
		return a.ChainDepth - b.ChainDepth
	})
	return out, nil
}

// ListChildren returns the direct children of a record in creation order.
func (s *ProvenanceStore) ListChildren(_ context.Context, parentID string) ([]*domain.ProvenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byParent[parentID]), nil
}

// DeleteByRoot removes every record of a root.
func (s *ProvenanceStore) DeleteByRoot(_ context.Context, rootID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, idx := range s.byRoot[rootID] {
		rec := s.arena[idx]
		if rec == nil {
			continue
		}
		delete(s.byID, rec.ID)
		delete(s.byParent, rec.ID)
		s.arena[idx] = nil
		n++
	}
	delete(s.byRoot, rootID)
	return n, nil
}

// Len returns the number of live records.
func (s *ProvenanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *ProvenanceStore) collect(idxs []int) []*domain.ProvenanceRecord {
	out := make([]*domain.ProvenanceRecord, 0, len(idxs))
	for _, idx := range idxs {
		if rec := s.arena[idx]; rec != nil {
			out = append(out, cloneRecord(rec))
		}
	}
	return out
}

func cloneRecord(rec *domain.ProvenanceRecord) *domain.ProvenanceRecord {
	cp := *rec
	if rec.ParentID != nil {
		parent := *rec.ParentID
		cp.ParentID = &parent
	}
	cp.ChainPath = slices.Clone(rec.ChainPath)
	if rec.ProcessingParams != nil {
		cp.ProcessingParams = make(domain.ProcessingParams, len(rec.ProcessingParams))
		for k, v := range rec.ProcessingParams {
			cp.ProcessingParams[k] = v
		}
	}
	return &cp
}
