package driving

import (
	"context"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// ProvenanceService records and queries the provenance log.
type ProvenanceService interface {
	// Record appends one record derived from its parent.
	Record(ctx context.Context, in RecordInput) (*domain.ProvenanceRecord, error)

	// RecordBatch validates every input and then appends all of them in one
	// transaction. An input may name an earlier input of the batch as parent.
	RecordBatch(ctx context.Context, ins []RecordInput) ([]*domain.ProvenanceRecord, error)

	// Get returns one record.
	Get(ctx context.Context, id string) (*domain.ProvenanceRecord, error)

	// Chain returns the records from the root down to id.
	Chain(ctx context.Context, id string) ([]*domain.ProvenanceRecord, error)

	// ChainByRoot returns every record of a root ordered by depth.
	ChainByRoot(ctx context.Context, rootID string) ([]*domain.ProvenanceRecord, error)

	// Children returns the direct children of a record.
	Children(ctx context.Context, id string) ([]*domain.ProvenanceRecord, error)

	// Verify recomputes the hash of content and compares it with the record.
	Verify(ctx context.Context, id string, content []byte) (*VerifyResult, error)

	// VerifyChain checks the structural invariants of the chain ending at id.
	VerifyChain(ctx context.Context, id string) (*ChainReport, error)

	// DeleteByRoot removes a whole chain. Only document deletion calls it.
	DeleteByRoot(ctx context.Context, rootID string) (int, error)
}

// RecordInput describes a provenance record to create.
type RecordInput struct {
	// ID is optional; a UUID is generated when empty.
	ID   string
	Kind domain.ProvenanceKind

	// ParentID is required for every kind except DOCUMENT.
	ParentID string

	// Content is hashed into the record's content hash unless ContentHash
	// is already known.
	Content     []byte
	ContentHash string

	SourcePath       string
	Processor        string
	ProcessorVersion string
	Params           domain.ProcessingParams

	// ChainDepth, when set, must agree with the parent.
	ChainDepth *int
}

// VerifyResult is the outcome of a content verification.
type VerifyResult struct {
	RecordID     string `json:"record_id"`
	Valid        bool   `json:"valid"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash"`
}

// ChainReport is the outcome of a structural chain check.
type ChainReport struct {
	RecordID string   `json:"record_id"`
	Depth    int      `json:"depth"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}
