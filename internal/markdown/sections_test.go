package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionBuilder_Push(t *testing.T) {
	b := NewSectionBuilder()
	assert.Nil(t, b.Current())

	assert.Equal(t, "Intro", b.Push(1, "Intro").Path)
	assert.Equal(t, "Intro > Scope", b.Push(2, "Scope").Path)
	assert.Equal(t, "Intro > Scope > Detail", b.Push(3, "Detail").Path)

	// A sibling closes deeper levels.
	node := b.Push(2, "Terms")
	assert.Equal(t, "Intro > Terms", node.Path)
	assert.Equal(t, 2, node.Level)
	assert.Equal(t, "Terms", node.Text)

	// A new H1 resets everything.
	assert.Equal(t, "Annex", b.Push(1, "Annex").Path)
	assert.Equal(t, "Annex", b.Current().Path)

	b.Reset()
	assert.Nil(t, b.Current())
}

func TestSectionBuilder_SkippedLevels(t *testing.T) {
	b := NewSectionBuilder()
	b.Push(1, "A")

	assert.Equal(t, "A > C", b.Push(3, "C").Path)
	assert.Equal(t, "A > B", b.Push(2, "B").Path)
}

func TestSectionBuilder_ClampsLevel(t *testing.T) {
	b := NewSectionBuilder()

	assert.Equal(t, 6, b.Push(9, "deep").Level)
	assert.Equal(t, 1, b.Push(0, "top").Level)
}

func TestBuildSections(t *testing.T) {
	text := "preamble\n\n# A\n\ntext a\n\n### C\n\ntext c\n\n## B\n\ntext b\n\n# D\n\ntext d"
	blocks := ParseBlocks(text, nil)

	sections := BuildSections(blocks)

	require.Len(t, sections, len(blocks))
	paths := make([]string, len(sections))
	for i, s := range sections {
		if s != nil {
			paths[i] = s.Path
		}
	}
	assert.Equal(t, []string{
		"", // preamble
		"A", "A",
		"A > C", "A > C",
		"A > B", "A > B",
		"D", "D",
	}, paths)
	assert.Nil(t, sections[0])
}
