package markdown

import (
	"strings"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// SectionBuilder tracks the open heading at each level while walking a
// document top to bottom.
type SectionBuilder struct {
	titles  [domain.MaxHeadingLevel + 1]string
	open    [domain.MaxHeadingLevel + 1]bool
	current *domain.SectionNode
}

// NewSectionBuilder returns an empty builder.
func NewSectionBuilder() *SectionBuilder {
	return &SectionBuilder{}
}

// Push opens a heading at level, closing every deeper level. A level-1
// heading resets the whole stack. Levels outside 1..6 are clamped.
// Skipped levels are simply absent from the path.
func (b *SectionBuilder) Push(level int, text string) *domain.SectionNode {
	if level < 1 {
		level = 1
	}
	if level > domain.MaxHeadingLevel {
		level = domain.MaxHeadingLevel
	}
	if level == 1 {
		b.Reset()
	}
	for l := level + 1; l <= domain.MaxHeadingLevel; l++ {
		b.titles[l] = ""
		b.open[l] = false
	}
	b.titles[level] = text
	b.open[level] = true

	parts := make([]string, 0, level)
	for l := 1; l <= level; l++ {
		if b.open[l] {
			parts = append(parts, b.titles[l])
		}
	}

	b.current = &domain.SectionNode{
		Level: level,
		Text:  text,
		Path:  strings.Join(parts, domain.SectionPathSeparator),
	}
	return b.current
}

// Current returns the innermost open section, or nil before any heading.
func (b *SectionBuilder) Current() *domain.SectionNode {
	return b.current
}

// Reset closes every level.
func (b *SectionBuilder) Reset() {
	b.titles = [domain.MaxHeadingLevel + 1]string{}
	b.open = [domain.MaxHeadingLevel + 1]bool{}
	b.current = nil
}

// BuildSections assigns every block the section it belongs to. A heading
// block belongs to the section it opens; blocks before the first heading
// get nil. Consecutive blocks share the same node.
func BuildSections(blocks []domain.Block) []*domain.SectionNode {
	sections := make([]*domain.SectionNode, len(blocks))
	b := NewSectionBuilder()
	for i, block := range blocks {
		if block.Kind == domain.BlockHeading {
			b.Push(block.HeadingLevel, block.HeadingText)
		}
		sections[i] = b.Current()
	}
	return sections
}
