package driven

import (
	"context"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// ProvenanceStore is the append-only provenance log.
// Implementations re-check the chain invariants on every write and return
// domain.ErrNotFound for a missing parent and domain.ErrIntegrity for a
// depth or root inconsistent with it.
type ProvenanceStore interface {
	// Append persists one record.
	Append(ctx context.Context, rec *domain.ProvenanceRecord) error

	// AppendBatch persists records in order, all or nothing. A record may
	// name an earlier record of the same batch as its parent.
	AppendBatch(ctx context.Context, recs []*domain.ProvenanceRecord) error

	// Get returns one record.
	Get(ctx context.Context, id string) (*domain.ProvenanceRecord, error)

	// ListByRoot returns every record of a root, ordered by chain depth
	// then creation time.
	ListByRoot(ctx context.Context, rootID string) ([]*domain.ProvenanceRecord, error)

	// ListChildren returns the direct children of a record.
	ListChildren(ctx context.Context, parentID string) ([]*domain.ProvenanceRecord, error)

	// DeleteByRoot removes every record of a root. It is only used when the
	// root document itself is deleted.
	DeleteByRoot(ctx context.Context, rootID string) (int, error)
}
