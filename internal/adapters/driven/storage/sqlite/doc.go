// Package sqlite provides a unified SQLite-based implementation of the
// document, provenance and vector stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Cosine distance is provided by a deterministic scalar
// function, vec_distance_cosine(blob, blob), registered with the driver and
// probed when the store opens.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Deleting a document cascades to its OCR results,
// chunks, images, extractions, embeddings and vectors. Provenance is an
// append-only table removed only per root.
//
// # Data Location
//
// By default, the database is stored at ~/.ocrprov/data/ocrprov.db
//
// # Thread Safety
//
// The store holds a single connection; SQLite runs in WAL mode with a busy
// timeout and foreign keys enabled.
package sqlite
