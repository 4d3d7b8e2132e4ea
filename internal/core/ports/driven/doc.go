// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ProvenanceStore: append-only provenance log
//   - DocumentStore: documents, OCR results, chunks and embedding rows
//   - VectorStore: 768-d vectors keyed by embedding id, cosine search
//   - Normaliser: OCR markdown into Document and OCRResult
//   - Chunker: OCR text into chunks
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil; the application degrades gracefully:
//
//   - EmbeddingService: without it documents are stored unembedded and
//     text search is unavailable.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
