package domain

import (
	"fmt"
	"time"
)

// ProvenanceKind identifies the kind of artifact a provenance record certifies.
type ProvenanceKind string

// Provenance kinds.
const (
	ProvenanceDocument       ProvenanceKind = "DOCUMENT"
	ProvenanceOCRResult      ProvenanceKind = "OCR_RESULT"
	ProvenanceChunk          ProvenanceKind = "CHUNK"
	ProvenanceImage          ProvenanceKind = "IMAGE"
	ProvenanceVLMDescription ProvenanceKind = "VLM_DESCRIPTION"
	ProvenanceEmbedding      ProvenanceKind = "EMBEDDING"
	ProvenanceExtraction     ProvenanceKind = "EXTRACTION"
	ProvenanceFormFill       ProvenanceKind = "FORM_FILL"
)

// IsValid returns true if the provenance kind is recognised.
func (k ProvenanceKind) IsValid() bool {
	switch k {
	case ProvenanceDocument, ProvenanceOCRResult, ProvenanceChunk, ProvenanceImage,
		ProvenanceVLMDescription, ProvenanceEmbedding, ProvenanceExtraction, ProvenanceFormFill:
		return true
	default:
		return false
	}
}

// IsRoot reports whether records of this kind start a chain.
func (k ProvenanceKind) IsRoot() bool {
	return k == ProvenanceDocument
}

// String returns the string representation.
func (k ProvenanceKind) String() string {
	return string(k)
}

// ProcessingParams holds the parameters a processor ran with.
// Values must be JSON-serialisable; they are encoded only at the storage edge.
type ProcessingParams map[string]any

// ProvenanceRecord is one immutable, hash-linked processing step.
//
// Invariants: ChainDepth == 0 iff ParentID is nil; a child's depth is its
// parent's plus one; every record shares its depth-0 ancestor's
// RootDocumentID.
type ProvenanceRecord struct {
	ID   string         `json:"id"`
	Kind ProvenanceKind `json:"kind"`

	// ContentHash is "sha256:<hex>" over the artifact's canonical content.
	ContentHash string `json:"content_hash"`

	// InputHash is the parent's ContentHash, empty at depth 0.
	InputHash string `json:"input_hash"`

	ParentID       *string `json:"parent_id,omitempty"`
	RootDocumentID string  `json:"root_document_id"`
	ChainDepth     int     `json:"chain_depth"`

	// ChainPath lists the kinds from the root down to this record.
	ChainPath []ProvenanceKind `json:"chain_path,omitempty"`

	// SourcePath is the originating file path, when known.
	SourcePath string `json:"source_path"`

	Processor        string           `json:"processor"`
	ProcessorVersion string           `json:"processor_version"`
	ProcessingParams ProcessingParams `json:"processing_params,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsRoot reports whether the record starts a chain.
func (r *ProvenanceRecord) IsRoot() bool {
	return r.ParentID == nil
}

// Parent returns the parent id or "" for roots.
func (r *ProvenanceRecord) Parent() string {
	if r.ParentID == nil {
		return ""
	}
	return *r.ParentID
}

// CheckLink verifies the chain invariants between r and its parent.
// parent must be nil exactly when r has no parent.
func (r *ProvenanceRecord) CheckLink(parent *ProvenanceRecord) error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: unknown provenance kind %q", ErrInvalidInput, r.Kind)
	}
	if (r.ParentID == nil) != r.Kind.IsRoot() {
		return fmt.Errorf("%w: %s records must have a parent exactly when they are not %s",
			ErrInvalidInput, r.Kind, ProvenanceDocument)
	}
	if r.ParentID == nil {
		if parent != nil {
			return fmt.Errorf("%w: record %s has no parent id but a parent was given", ErrIntegrity, r.ID)
		}
		if r.ChainDepth != 0 {
			return fmt.Errorf("%w: root record %s has depth %d", ErrIntegrity, r.ID, r.ChainDepth)
		}
		if r.RootDocumentID != r.ID {
			return fmt.Errorf("%w: root record %s names root %s", ErrIntegrity, r.ID, r.RootDocumentID)
		}
		return nil
	}

	if parent == nil || parent.ID != *r.ParentID {
		return fmt.Errorf("%w: parent %s of record %s", ErrNotFound, *r.ParentID, r.ID)
	}
	if r.ChainDepth != parent.ChainDepth+1 {
		return fmt.Errorf("%w: record %s has depth %d, parent %s has depth %d",
			ErrIntegrity, r.ID, r.ChainDepth, parent.ID, parent.ChainDepth)
	}
	if r.RootDocumentID != parent.RootDocumentID {
		return fmt.Errorf("%w: record %s names root %s, parent root is %s",
			ErrIntegrity, r.ID, r.RootDocumentID, parent.RootDocumentID)
	}
	return nil
}
