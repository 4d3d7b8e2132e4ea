package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

func kinds(blocks []domain.Block) []domain.BlockKind {
	out := make([]domain.BlockKind, len(blocks))
	for i, b := range blocks {
		out[i] = b.Kind
	}
	return out
}

func assertOffsetsExact(t *testing.T, text string, blocks []domain.Block) {
	t.Helper()
	prevEnd := 0
	for i, b := range blocks {
		require.LessOrEqual(t, prevEnd, b.StartOffset, "block %d starts before previous end", i)
		require.Less(t, b.StartOffset, b.EndOffset, "block %d is empty", i)
		require.LessOrEqual(t, b.EndOffset, len(text))
		assert.Equal(t, text[b.StartOffset:b.EndOffset], b.Text, "block %d text", i)
		prevEnd = b.EndOffset
	}
}

func TestParseBlocks_Kinds(t *testing.T) {
	text := "# Title\n\nIntro paragraph.\n\n## Details\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n- one\n- two\n\n```go\nx := 1\n\ny := 2\n```\n"

	blocks := ParseBlocks(text, nil)

	assert.Equal(t, []domain.BlockKind{
		domain.BlockHeading,
		domain.BlockParagraph,
		domain.BlockHeading,
		domain.BlockTable,
		domain.BlockList,
		domain.BlockCode,
	}, kinds(blocks))
	assertOffsetsExact(t, text, blocks)

	assert.Equal(t, 1, blocks[0].HeadingLevel)
	assert.Equal(t, "Title", blocks[0].HeadingText)
	assert.Equal(t, 2, blocks[2].HeadingLevel)
	assert.Equal(t, "Details", blocks[2].HeadingText)

	code := blocks[5]
	assert.True(t, strings.HasPrefix(code.Text, "```go"))
	assert.True(t, strings.HasSuffix(code.Text, "```"))
	assert.Contains(t, code.Text, "y := 2")
}

func TestParseBlocks_Empty(t *testing.T) {
	assert.Empty(t, ParseBlocks("", nil))
	assert.Empty(t, ParseBlocks("\n\n\n", nil))
}

func TestParseBlocks_Headings(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		kind  domain.BlockKind
		level int
		text  string
	}{
		{"h1", "# Intro", domain.BlockHeading, 1, "Intro"},
		{"h6", "###### Deep", domain.BlockHeading, 6, "Deep"},
		{"closing hashes", "## Scope ##", domain.BlockHeading, 2, "Scope"},
		{"no space", "#NoSpace", domain.BlockParagraph, 0, ""},
		{"seven hashes", "####### seven", domain.BlockParagraph, 0, ""},
		{"hashes only", "# #", domain.BlockParagraph, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := ParseBlocks(tt.line, nil)
			require.Len(t, blocks, 1)
			assert.Equal(t, tt.kind, blocks[0].Kind)
			assert.Equal(t, tt.level, blocks[0].HeadingLevel)
			assert.Equal(t, tt.text, blocks[0].HeadingText)
		})
	}
}

func TestParseBlocks_HeadingSplitsGroup(t *testing.T) {
	text := "Intro line\n# Head\nBody line"

	blocks := ParseBlocks(text, nil)

	assert.Equal(t, []domain.BlockKind{
		domain.BlockParagraph,
		domain.BlockHeading,
		domain.BlockParagraph,
	}, kinds(blocks))
	assertOffsetsExact(t, text, blocks)
	assert.Equal(t, "Body line", blocks[2].Text)
}

func TestParseBlocks_UnterminatedFence(t *testing.T) {
	text := "before\n\n```\ncode\n\n# not a heading\nmore"

	blocks := ParseBlocks(text, nil)

	require.Len(t, blocks, 2)
	assert.Equal(t, domain.BlockCode, blocks[1].Kind)
	assert.Equal(t, len(text), blocks[1].EndOffset)
	assert.Contains(t, blocks[1].Text, "# not a heading")
}

func TestParseBlocks_WhitespaceLine(t *testing.T) {
	text := "para\n   \nnext"

	blocks := ParseBlocks(text, nil)

	assert.Equal(t, []domain.BlockKind{
		domain.BlockParagraph,
		domain.BlockEmpty,
		domain.BlockParagraph,
	}, kinds(blocks))
	assertOffsetsExact(t, text, blocks)
}

func TestParseBlocks_ListMarkers(t *testing.T) {
	for _, text := range []string{"- a\n- b", "* a", "+ a", "1. first\n2. second"} {
		blocks := ParseBlocks(text, nil)
		require.Len(t, blocks, 1, text)
		assert.Equal(t, domain.BlockList, blocks[0].Kind, text)
	}

	// Emphasis, rules and parenthesised numbers are not list items.
	for _, text := range []string{"**bold** text", "---", "3) third", "1) one\n2) two", "1.one"} {
		blocks := ParseBlocks(text, nil)
		require.Len(t, blocks, 1, text)
		assert.Equal(t, domain.BlockParagraph, blocks[0].Kind, text)
	}
}

func TestParseBlocks_TableAfterCaption(t *testing.T) {
	text := "Table 1: Totals\n| k | v |\n| :-- | --: |\n| a | 1 |"

	blocks := ParseBlocks(text, nil)

	require.Len(t, blocks, 1)
	assert.Equal(t, domain.BlockTable, blocks[0].Kind)
}

func TestParseBlocks_PipesWithoutSeparator(t *testing.T) {
	blocks := ParseBlocks("a | b\nc | d", nil)

	require.Len(t, blocks, 1)
	assert.Equal(t, domain.BlockParagraph, blocks[0].Kind)
}

func TestParseBlocks_PageMarkers(t *testing.T) {
	text := "<!-- Page 1 -->\nAlpha\n\n<!-- page 2 -->\nBeta\n{2}----------\nGamma"

	pages := ExtractPageOffsets(text)
	blocks := ParseBlocks(text, pages)

	assert.Equal(t, []domain.BlockKind{
		domain.BlockPageMarker,
		domain.BlockParagraph,
		domain.BlockPageMarker,
		domain.BlockParagraph,
		domain.BlockPageMarker,
		domain.BlockParagraph,
	}, kinds(blocks))
	assertOffsetsExact(t, text, blocks)

	wantPages := []int{1, 1, 2, 2, 3, 3}
	for i, b := range blocks {
		require.NotNil(t, b.PageNumber, "block %d", i)
		assert.Equal(t, wantPages[i], *b.PageNumber, "block %d", i)
	}
}

func TestParseBlocks_NoPagesLeavesPageNil(t *testing.T) {
	blocks := ParseBlocks("just text", nil)

	require.Len(t, blocks, 1)
	assert.Nil(t, blocks[0].PageNumber)
}

func TestParseBlocks_CRLF(t *testing.T) {
	text := "# Title\r\n\r\nBody\r\n"

	blocks := ParseBlocks(text, nil)

	require.Len(t, blocks, 3)
	assert.Equal(t, domain.BlockHeading, blocks[0].Kind)
	assert.Equal(t, "Title", blocks[0].HeadingText)
	assert.Equal(t, domain.BlockEmpty, blocks[1].Kind)
	assert.Equal(t, domain.BlockParagraph, blocks[2].Kind)
	assertOffsetsExact(t, text, blocks)
}
