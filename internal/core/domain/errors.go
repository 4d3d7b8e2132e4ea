package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	// Validation failures are rejected before any write.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	// It wraps ErrInvalidInput.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrInvalidInput)

	// ErrIntegrity indicates stored data violates a provenance or
	// serialisation invariant (depth, root, hash, corrupt JSON).
	ErrIntegrity = errors.New("integrity violation")

	// ErrExtensionUnavailable indicates the vector distance function
	// is not available on the storage connection.
	ErrExtensionUnavailable = errors.New("vector extension unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector search by text and embedding during ingest are disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// DimensionError reports a vector whose length differs from EmbeddingDimension.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrDimensionMismatch, e.Got, e.Want)
}

// Unwrap lets errors.Is match ErrDimensionMismatch and ErrInvalidInput.
func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// CheckDimension returns a *DimensionError if v is not EmbeddingDimension long.
func CheckDimension(v []float32) error {
	if len(v) != EmbeddingDimension {
		return &DimensionError{Got: len(v), Want: EmbeddingDimension}
	}
	return nil
}
