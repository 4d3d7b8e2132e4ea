package postprocessors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/ports/driven"
	"github.com/custodia-labs/ocrprov/internal/postprocessors/chunker"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.Empty(t, r.builders)
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	var got domain.ProcessingParams
	r.Register("test", func(params domain.ProcessingParams) (driven.Chunker, error) {
		got = params
		return chunker.New(), nil
	})

	assert.True(t, r.Has("test"))
	assert.False(t, r.Has("other"))

	proc, err := r.Build("test", domain.ProcessingParams{"k": "v"})
	require.NoError(t, err)
	assert.NotNil(t, proc)
	assert.Equal(t, "v", got["k"])
}

func TestRegistry_Build_Unknown(t *testing.T) {
	_, err := NewRegistry().Build("missing", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("b", nil)
	r.Register("a", nil)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegisterDefaults(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{chunker.ProcessorName}, r.Names())
}

func TestChunkingConfigFromParams_RoundTrip(t *testing.T) {
	cfg := domain.ChunkingConfig{
		ChunkSize:      500,
		OverlapPercent: 0,
		MaxChunkSize:   900,
		HeadingNormalization: domain.HeadingNormalization{
			Enabled:         true,
			MinPatternCount: 4,
		},
	}

	back, err := ChunkingConfigFromParams(cfg.Params())

	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestChunkingConfigFromParams_JSONNumbers(t *testing.T) {
	params := domain.ProcessingParams{
		domain.ParamChunkSize:            float64(1200),
		domain.ParamOverlapPercent:       float64(15),
		domain.ParamMaxChunkSize:         float64(4000),
		domain.ParamHeadingNormalization: false,
		domain.ParamMinPatternCount:      float64(3),
		"chunk_index":             float64(7),
	}

	cfg, err := ChunkingConfigFromParams(params)

	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.ChunkSize)
	assert.Equal(t, 15, cfg.OverlapPercent)
	assert.Equal(t, 4000, cfg.MaxChunkSize)
}

func TestChunkingConfigFromParams_Invalid(t *testing.T) {
	base := domain.DefaultChunkingConfig().Params()

	tests := []struct {
		name   string
		mutate func(domain.ProcessingParams)
	}{
		{"missing size", func(p domain.ProcessingParams) { delete(p, domain.ParamChunkSize) }},
		{"fractional size", func(p domain.ProcessingParams) { p[domain.ParamChunkSize] = 10.5 }},
		{"string overlap", func(p domain.ProcessingParams) { p[domain.ParamOverlapPercent] = "10" }},
		{"missing flag", func(p domain.ProcessingParams) { delete(p, domain.ParamHeadingNormalization) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := domain.ProcessingParams{}
			for k, v := range base {
				params[k] = v
			}
			tt.mutate(params)
			_, err := ChunkingConfigFromParams(params)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestBuildChunker_ReplaysConfig(t *testing.T) {
	cfg := domain.ChunkingConfig{ChunkSize: 300, OverlapPercent: 0, MaxChunkSize: 600,
		HeadingNormalization: domain.HeadingNormalization{MinPatternCount: 3}}

	proc, err := NewDefaultRegistry().Build(chunker.ProcessorName, cfg.Params())
	require.NoError(t, err)
	assert.Equal(t, cfg, proc.Config())

	doc := &domain.Document{ID: "doc-1"}
	ocr := &domain.OCRResult{ID: "ocr-1", ExtractedText: "# T\n\nbody"}
	chunks, err := proc.Process(context.Background(), doc, ocr)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
}
