// Package domain defines the core business entities for ocrprov.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document, OCRResult: a source file and the markdown OCR produced for it
//   - Block, SectionNode, PageOffset: transient parse results
//   - Chunk: a retrieval-sized, section-aware slice of OCR text
//   - ProvenanceRecord: one hash-linked processing step
//   - Embedding, VectorSearchResult: vector storage and self-contained hits
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
