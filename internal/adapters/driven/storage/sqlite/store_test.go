package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temp directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestDocument saves a document with its root provenance id set.
func createTestDocument(t *testing.T, store *Store, docID string, created time.Time) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:           docID,
		FilePath:     "/scans/" + docID + ".md",
		FileName:     docID + ".md",
		FileHash:     "sha256:" + docID,
		FileSize:     128,
		FileType:     "md",
		Title:        "Document " + docID,
		Status:       domain.DocumentStatusComplete,
		PageCount:    3,
		ProvenanceID: "prov-" + docID,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, store.DocumentStore().SaveDocument(context.Background(), doc))
	return doc
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, DatabaseFileName), store.Path())
	assert.FileExists(t, store.Path())

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	createTestDocument(t, first, "doc-1", testTime)
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	doc, err := second.DocumentStore().GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Document doc-1", doc.Title)

	var applied int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	store := setupTestStore(t)

	var on int
	require.NoError(t, store.db.QueryRow("PRAGMA foreign_keys").Scan(&on))
	assert.Equal(t, 1, on)

	var mode string
	require.NoError(t, store.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestVecDistanceCosine(t *testing.T) {
	store := setupTestStore(t)
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d float64
			err := store.db.QueryRow("SELECT vec_distance_cosine(?, ?)",
				float32SliceToBytes(tt.a), float32SliceToBytes(tt.b)).Scan(&d)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, d, 1e-6)
		})
	}
}

func TestVecDistanceCosine_Errors(t *testing.T) {
	store := setupTestStore(t)

	var d sql.NullFloat64
	err := store.db.QueryRow("SELECT vec_distance_cosine(?, ?)",
		float32SliceToBytes([]float32{1}), float32SliceToBytes([]float32{1, 0})).Scan(&d)
	assert.Error(t, err)

	err = store.db.QueryRow("SELECT vec_distance_cosine('text', ?)",
		float32SliceToBytes([]float32{1})).Scan(&d)
	assert.Error(t, err)
}

func TestFloat32Bytes(t *testing.T) {
	in := []float32{0.5, -1.25, 3}

	out, err := bytesToFloat32Slice(float32SliceToBytes(in))

	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = bytesToFloat32Slice([]byte{1, 2, 3})
	assert.ErrorIs(t, err, domain.ErrIntegrity)
}
