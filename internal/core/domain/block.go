package domain

// BlockKind classifies a parsed markdown block.
type BlockKind string

// Block kinds produced by the block parser.
const (
	BlockHeading    BlockKind = "heading"
	BlockParagraph  BlockKind = "paragraph"
	BlockTable      BlockKind = "table"
	BlockCode       BlockKind = "code"
	BlockList       BlockKind = "list"
	BlockPageMarker BlockKind = "page_marker"
	BlockEmpty      BlockKind = "empty"
)

// IsValid returns true if the block kind is recognised.
func (k BlockKind) IsValid() bool {
	switch k {
	case BlockHeading, BlockParagraph, BlockTable, BlockCode,
		BlockList, BlockPageMarker, BlockEmpty:
		return true
	default:
		return false
	}
}

// IsAtomic reports whether blocks of this kind must not be split across
// chunk boundaries.
func (k BlockKind) IsAtomic() bool {
	return k == BlockTable || k == BlockCode
}

// IsContent reports whether blocks of this kind carry chunkable text.
func (k BlockKind) IsContent() bool {
	switch k {
	case BlockPageMarker, BlockEmpty:
		return false
	default:
		return true
	}
}

// String returns the string representation.
func (k BlockKind) String() string {
	return string(k)
}

// MaxHeadingLevel is the deepest markdown heading level.
const MaxHeadingLevel = 6

// Block is a typed, offset-tagged span of source text.
// Text always equals source[StartOffset:EndOffset].
type Block struct {
	Kind        BlockKind
	Text        string
	StartOffset int
	EndOffset   int

	// HeadingLevel is 1..6 for headings, 0 otherwise.
	HeadingLevel int

	// HeadingText is the heading without its leading #s.
	HeadingText string

	// PageNumber is the 1-based page the block starts on, nil if unknown.
	PageNumber *int
}

// Len returns the block length in bytes.
func (b Block) Len() int {
	return b.EndOffset - b.StartOffset
}

// SectionNode is a block's position in the heading outline.
type SectionNode struct {
	Level int
	Text  string

	// Path is the " > "-joined chain of open headings from level 1 to Level.
	Path string
}

// SectionPathSeparator joins heading texts in a section path.
const SectionPathSeparator = " > "

// PageOffset is the half-open byte range [CharStart, CharEnd) of one page.
type PageOffset struct {
	Page      int `json:"page"`
	CharStart int `json:"char_start"`
	CharEnd   int `json:"char_end"`
}

// Contains reports whether offset falls inside the range.
func (p PageOffset) Contains(offset int) bool {
	return offset >= p.CharStart && offset < p.CharEnd
}
