package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

func TestChunkFilterSpec_Empty(t *testing.T) {
	f, err := ChunkFilterSpec{}.Build()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestChunkFilterSpec_Build(t *testing.T) {
	spec := ChunkFilterSpec{
		ContentTypes:  []domain.BlockKind{domain.BlockTable, domain.BlockCode},
		SectionPrefix: "Results > 100%_done",
		Heading:       "Revenue",
		AtomicOnly:    true,
	}

	f, err := spec.Build()

	require.NoError(t, err)
	assert.Equal(t, "c", f.Alias)
	assert.Equal(t, []string{
		"(c.content_types LIKE ? OR c.content_types LIKE ?)",
		`c.section_path LIKE ? ESCAPE '\'`,
		"c.heading_context = ?",
		"c.is_atomic = 1",
	}, f.Conditions)
	assert.Equal(t, []any{`%"table"%`, `%"code"%`, `Results > 100\%\_done%`, "Revenue"}, f.Params)
}

func TestChunkFilterSpec_InvalidContentType(t *testing.T) {
	_, err := ChunkFilterSpec{ContentTypes: []domain.BlockKind{"figure"}}.Build()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChunkFilterSpec_Match(t *testing.T) {
	table := domain.Chunk{
		ContentTypes:   domain.NewContentTypes(domain.BlockTable),
		SectionPath:    "Results > Revenue",
		HeadingContext: "Revenue",
		IsAtomic:       true,
	}
	prose := domain.Chunk{
		ContentTypes:   domain.NewContentTypes(domain.BlockParagraph),
		SectionPath:    "Intro",
		HeadingContext: "Intro",
	}

	tests := []struct {
		name  string
		spec  ChunkFilterSpec
		table bool
		prose bool
	}{
		{"content type", ChunkFilterSpec{ContentTypes: []domain.BlockKind{domain.BlockCode, domain.BlockTable}}, true, false},
		{"section prefix", ChunkFilterSpec{SectionPrefix: "Results"}, true, false},
		{"heading", ChunkFilterSpec{Heading: "Intro"}, false, true},
		{"atomic only", ChunkFilterSpec{AtomicOnly: true}, true, false},
		{"all constraints", ChunkFilterSpec{ContentTypes: []domain.BlockKind{domain.BlockTable}, Heading: "Intro"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.spec.Build()
			require.NoError(t, err)
			require.NotNil(t, f.Match)
			assert.Equal(t, tt.table, f.Match(table))
			assert.Equal(t, tt.prose, f.Match(prose))
		})
	}
}
