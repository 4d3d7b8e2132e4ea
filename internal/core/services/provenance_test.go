package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driving"
)

func newTestProvenance(t *testing.T) (*ProvenanceService, *memory.ProvenanceStore) {
	t.Helper()
	store := memory.NewProvenanceStore()
	return NewProvenanceService(store), store
}

func recordDocument(t *testing.T, svc *ProvenanceService) *domain.ProvenanceRecord {
	t.Helper()
	rec, err := svc.Record(context.Background(), driving.RecordInput{
		Kind:       domain.ProvenanceDocument,
		Content:    []byte("source bytes"),
		SourcePath: "/scans/report.pdf",
		Processor:  "ingest",
	})
	require.NoError(t, err)
	return rec
}

func TestProvenanceService_Record_Root(t *testing.T) {
	svc, _ := newTestProvenance(t)

	rec := recordDocument(t, svc)

	assert.NotEmpty(t, rec.ID)
	assert.Nil(t, rec.ParentID)
	assert.Equal(t, 0, rec.ChainDepth)
	assert.Equal(t, rec.ID, rec.RootDocumentID)
	assert.Empty(t, rec.InputHash)
	assert.Equal(t, HashBytes([]byte("source bytes")), rec.ContentHash)
	assert.Equal(t, []domain.ProvenanceKind{domain.ProvenanceDocument}, rec.ChainPath)
	assert.NotNil(t, rec.ProcessingParams)
}

func TestProvenanceService_Record_Child(t *testing.T) {
	svc, _ := newTestProvenance(t)
	ctx := context.Background()
	root := recordDocument(t, svc)

	ocr, err := svc.Record(ctx, driving.RecordInput{
		Kind:      domain.ProvenanceOCRResult,
		ParentID:  root.ID,
		Content:   []byte("# Title\n\nBody"),
		Processor: "ocr",
		Params:    domain.ProcessingParams{"mode": "accurate"},
	})
	require.NoError(t, err)

	require.NotNil(t, ocr.ParentID)
	assert.Equal(t, root.ID, *ocr.ParentID)
	assert.Equal(t, 1, ocr.ChainDepth)
	assert.Equal(t, root.ID, ocr.RootDocumentID)
	assert.Equal(t, root.ContentHash, ocr.InputHash)
	assert.Equal(t, "/scans/report.pdf", ocr.SourcePath)
	assert.Equal(t, []domain.ProvenanceKind{domain.ProvenanceDocument, domain.ProvenanceOCRResult}, ocr.ChainPath)
	assert.Equal(t, "accurate", ocr.ProcessingParams["mode"])
}

func TestProvenanceService_Record_Errors(t *testing.T) {
	svc, _ := newTestProvenance(t)
	ctx := context.Background()
	root := recordDocument(t, svc)
	wrongDepth := 3

	tests := []struct {
		name string
		in   driving.RecordInput
		want error
	}{
		{"missing parent", driving.RecordInput{Kind: domain.ProvenanceChunk, ParentID: "nope", Processor: "p"}, domain.ErrNotFound},
		{"unknown kind", driving.RecordInput{Kind: "THUMBNAIL", ParentID: root.ID, Processor: "p"}, domain.ErrInvalidInput},
		{"no processor", driving.RecordInput{Kind: domain.ProvenanceOCRResult, ParentID: root.ID}, domain.ErrInvalidInput},
		{"bad hash", driving.RecordInput{Kind: domain.ProvenanceOCRResult, ParentID: root.ID, Processor: "p", ContentHash: "md5:abc"}, domain.ErrInvalidInput},
		{"chunk without parent", driving.RecordInput{Kind: domain.ProvenanceChunk, Processor: "p"}, domain.ErrInvalidInput},
		{"document with parent", driving.RecordInput{Kind: domain.ProvenanceDocument, ParentID: root.ID, Processor: "p"}, domain.ErrInvalidInput},
		{"depth mismatch", driving.RecordInput{Kind: domain.ProvenanceOCRResult, ParentID: root.ID, Processor: "p", ChainDepth: &wrongDepth}, domain.ErrIntegrity},
		{"duplicate id", driving.RecordInput{ID: root.ID, Kind: domain.ProvenanceDocument, Processor: "p"}, domain.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProvenanceService_RecordBatch(t *testing.T) {
	svc, store := newTestProvenance(t)
	ctx := context.Background()

	recs, err := svc.RecordBatch(ctx, []driving.RecordInput{
		{ID: "doc", Kind: domain.ProvenanceDocument, Content: []byte("d"), Processor: "ingest"},
		{ID: "ocr", Kind: domain.ProvenanceOCRResult, ParentID: "doc", Content: []byte("o"), Processor: "ocr"},
		{ID: "c0", Kind: domain.ProvenanceChunk, ParentID: "ocr", Content: []byte("c"), Processor: "chunker"},
	})

	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 2, recs[2].ChainDepth)
	assert.Equal(t, "doc", recs[2].RootDocumentID)
	assert.Equal(t, 3, store.Len())
}

func TestProvenanceService_RecordBatch_AllOrNothing(t *testing.T) {
	svc, store := newTestProvenance(t)
	ctx := context.Background()

	_, err := svc.RecordBatch(ctx, []driving.RecordInput{
		{ID: "doc", Kind: domain.ProvenanceDocument, Processor: "ingest"},
		{ID: "c0", Kind: domain.ProvenanceChunk, ParentID: "missing", Processor: "chunker"},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.RecordBatch(ctx, []driving.RecordInput{
		{ID: "doc", Kind: domain.ProvenanceDocument, Processor: "ingest"},
		{ID: "doc", Kind: domain.ProvenanceDocument, Processor: "ingest"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Zero(t, store.Len())
}

func TestProvenanceService_Chain(t *testing.T) {
	svc, _ := newTestProvenance(t)
	ctx := context.Background()
	_, err := svc.RecordBatch(ctx, []driving.RecordInput{
		{ID: "doc", Kind: domain.ProvenanceDocument, Processor: "ingest"},
		{ID: "ocr", Kind: domain.ProvenanceOCRResult, ParentID: "doc", Processor: "ocr"},
		{ID: "c0", Kind: domain.ProvenanceChunk, ParentID: "ocr", Processor: "chunker"},
		{ID: "c1", Kind: domain.ProvenanceChunk, ParentID: "ocr", Processor: "chunker"},
		{ID: "e0", Kind: domain.ProvenanceEmbedding, ParentID: "c0", Processor: "embed"},
	})
	require.NoError(t, err)

	chain, err := svc.Chain(ctx, "e0")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc", "ocr", "c0", "e0"}, recordIDs(chain))

	all, err := svc.ChainByRoot(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc", "ocr", "c0", "c1", "e0"}, recordIDs(all))

	children, err := svc.Children(ctx, "ocr")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1"}, recordIDs(children))

	_, err = svc.Chain(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.ChainByRoot(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Children(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProvenanceService_Verify(t *testing.T) {
	svc, _ := newTestProvenance(t)
	ctx := context.Background()
	root := recordDocument(t, svc)

	ok, err := svc.Verify(ctx, root.ID, []byte("source bytes"))
	require.NoError(t, err)
	assert.True(t, ok.Valid)

	// CRLF canonicalises to LF, so the same text verifies.
	rec, err := svc.Record(ctx, driving.RecordInput{
		Kind: domain.ProvenanceOCRResult, ParentID: root.ID, Content: []byte("a\nb"), Processor: "ocr",
	})
	require.NoError(t, err)
	crlf, err := svc.Verify(ctx, rec.ID, []byte("a\r\nb"))
	require.NoError(t, err)
	assert.True(t, crlf.Valid)

	bad, err := svc.Verify(ctx, root.ID, []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, bad.Valid)
	assert.Equal(t, root.ContentHash, bad.ExpectedHash)
	assert.NotEqual(t, bad.ExpectedHash, bad.ActualHash)
}

func TestProvenanceService_Verify_DocumentUsesRawBytes(t *testing.T) {
	svc, _ := newTestProvenance(t)
	ctx := context.Background()
	raw := []byte("# Title\r\n\r\nBody.\r\n")

	rec, err := svc.Record(ctx, driving.RecordInput{
		Kind: domain.ProvenanceDocument, Content: raw, Processor: "ingest",
	})
	require.NoError(t, err)
	assert.Equal(t, HashBytes(raw), rec.ContentHash)

	same, err := svc.Verify(ctx, rec.ID, raw)
	require.NoError(t, err)
	assert.True(t, same.Valid)

	// A document edited to LF line endings is different bytes.
	lf, err := svc.Verify(ctx, rec.ID, []byte("# Title\n\nBody.\n"))
	require.NoError(t, err)
	assert.False(t, lf.Valid)
}

func TestProvenanceService_VerifyChain(t *testing.T) {
	svc, _ := newTestProvenance(t)
	ctx := context.Background()
	root := recordDocument(t, svc)
	ocr, err := svc.Record(ctx, driving.RecordInput{Kind: domain.ProvenanceOCRResult, ParentID: root.ID, Processor: "ocr"})
	require.NoError(t, err)

	report, err := svc.VerifyChain(ctx, ocr.ID)

	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, 1, report.Depth)
	assert.Empty(t, report.Problems)
}

func TestProvenanceService_VerifyChain_DetectsTampering(t *testing.T) {
	store := &rawProvenanceStore{ProvenanceStore: memory.NewProvenanceStore(), extra: map[string]*domain.ProvenanceRecord{}}
	svc := NewProvenanceService(store)
	ctx := context.Background()
	root := recordDocument(t, svc)

	// A record written behind the service's back with a forged input hash.
	parentID := root.ID
	store.extra["forged"] = &domain.ProvenanceRecord{
		ID:             "forged",
		Kind:           domain.ProvenanceOCRResult,
		ContentHash:    HashText("x"),
		InputHash:      HashText("not the parent"),
		ParentID:       &parentID,
		RootDocumentID: root.ID,
		ChainDepth:     1,
		ChainPath:      []domain.ProvenanceKind{domain.ProvenanceOCRResult},
		Processor:      "ocr",
	}

	report, err := svc.VerifyChain(ctx, "forged")

	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Len(t, report.Problems, 2)

	// A dangling parent becomes a report, not an error.
	missing := "gone"
	store.extra["orphan"] = &domain.ProvenanceRecord{
		ID: "orphan", Kind: domain.ProvenanceChunk, ParentID: &missing, ChainDepth: 2, Processor: "chunker",
	}
	report, err = svc.VerifyChain(ctx, "orphan")
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0], "missing parent")
}

// rawProvenanceStore serves extra records without any validation.
type rawProvenanceStore struct {
	*memory.ProvenanceStore
	extra map[string]*domain.ProvenanceRecord
}

func (s *rawProvenanceStore) Get(ctx context.Context, id string) (*domain.ProvenanceRecord, error) {
	if rec, ok := s.extra[id]; ok {
		return rec, nil
	}
	return s.ProvenanceStore.Get(ctx, id)
}

func recordIDs(recs []*domain.ProvenanceRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}
