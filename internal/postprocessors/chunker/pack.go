package chunker

import (
	"strconv"
	"unicode/utf8"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/markdown"
)

// draft is a chunk before metadata is attached.
type draft struct {
	// span is the final extent, including overlap borrowed from the
	// previous draft.
	span
	own span

	// atomic is set for a whole table or code block on its own.
	atomic bool
	// forced is set for a line-split fragment of an atomic block that
	// exceeded the maximum chunk size.
	forced bool

	overlapPrev int
	overlapNext int
}

// standalone drafts never receive or donate overlap.
func (d *draft) standalone() bool {
	return d.atomic || d.forced
}

func chunkText(text string, pages []domain.PageOffset, cfg domain.ChunkingConfig) []domain.Chunk {
	if text == "" {
		return nil
	}
	if len(pages) == 0 {
		pages = markdown.ExtractPageOffsets(text)
	}

	blocks := markdown.ParseBlocks(text, pages)
	if cfg.HeadingNormalization.Enabled {
		blocks = markdown.NormalizeHeadingLevels(blocks, cfg.HeadingNormalization.MinPatternCount)
	}
	sections := markdown.BuildSections(blocks)

	p := &packer{text: text, cfg: cfg}
	p.packSeq(topNodes(blocks))
	if len(p.drafts) == 0 {
		return nil
	}
	applyOverlap(text, p.drafts, cfg)

	return toChunks(text, p.drafts, blocks, sections, markdown.NewPageTracker(pages))
}

// topNodes turns content blocks into the packer's top-level nodes.
// A run of headings, together with the blocks after it until
// HeadingOnlyMinContent bytes of body are reached, is glued to the start
// of the next node. Headings that end the document are glued to the end
// of the last node.
func topNodes(blocks []domain.Block) []node {
	last := -1
	for i, b := range blocks {
		if b.Kind.IsContent() {
			last = i
		}
	}
	if last < 0 {
		return nil
	}

	var nodes []node
	lead, body := -1, 0
	for i, b := range blocks {
		if !b.Kind.IsContent() {
			continue
		}
		if b.Kind == domain.BlockHeading {
			if lead < 0 {
				lead, body = b.StartOffset, 0
			}
			continue
		}
		if lead >= 0 && body+b.Len() < HeadingOnlyMinContent && i != last {
			body += b.Len()
			continue
		}

		n := blockNode(b)
		if lead >= 0 {
			n.from = lead
			n.need = HeadingOnlyMinContent - body
			lead = -1
		}
		nodes = append(nodes, n)
	}

	if lead >= 0 {
		end := blocks[last].EndOffset
		if len(nodes) > 0 {
			nodes[len(nodes)-1].to = end
		} else {
			nodes = append(nodes, plainNode(span{lead, end}))
		}
	}
	return nodes
}

// packer turns nodes into drafts. A node whose extent fits the chunk size
// is packed greedily with the fitting nodes next to it. A node that does
// not fit is replaced by its children, which are packed among themselves
// and never share a draft with the node's siblings. Node boundaries do not
// depend on the chunk size, so a smaller chunk size never yields fewer
// drafts.
type packer struct {
	text   string
	cfg    domain.ChunkingConfig
	drafts []*draft
}

func (p *packer) add(s span, atomic, forced bool) {
	p.drafts = append(p.drafts, &draft{span: s, own: s, atomic: atomic, forced: forced})
}

func (p *packer) packSeq(nodes []node) {
	run := 0
	for i, n := range nodes {
		if n.size() <= p.cfg.ChunkSize {
			continue
		}
		p.fill(nodes[run:i])
		p.split(n)
		run = i + 1
	}
	p.fill(nodes[run:])
}

// fill packs nodes that each fit the chunk size, starting a new draft
// whenever the next node would take the draft past it.
func (p *packer) fill(nodes []node) {
	var buf []node
	flush := func() {
		if len(buf) == 0 {
			return
		}
		first, last := buf[0], buf[len(buf)-1]
		p.add(span{first.from, last.to}, len(buf) == 1 && first.whole(), false)
		buf = buf[:0]
	}

	for _, n := range nodes {
		if len(buf) > 0 && n.to-buf[0].from > p.cfg.ChunkSize {
			flush()
		}
		buf = append(buf, n)
	}
	flush()
}

// split handles a node larger than the chunk size. Atomic blocks stay
// whole up to the maximum chunk size and are cut at line boundaries past
// it. A glued leaf stays whole up to the maximum chunk size.
func (p *packer) split(n node) {
	switch {
	case n.atomic && n.size() <= p.cfg.MaxChunkSize:
		p.add(n.extent(), n.whole(), false)

	case n.atomic:
		for _, s := range splitByLines(p.text, n.from, n.to, p.cfg.MaxChunkSize) {
			p.add(s, false, true)
		}

	default:
		if kids := n.children(p.text); len(kids) > 0 {
			p.packSeq(kids)
			return
		}
		if n.size() <= p.cfg.MaxChunkSize || !n.glued() {
			p.add(n.extent(), false, false)
			return
		}
		p.split(plainNode(n.extent()))
	}
}

// applyOverlap extends each draft backwards into its predecessor. The
// overlap is capped at half the predecessor's own length and by the
// maximum chunk size, and starts on a rune boundary.
func applyOverlap(text string, drafts []*draft, cfg domain.ChunkingConfig) {
	size := cfg.OverlapSize()
	if size <= 0 {
		return
	}

	for i := 1; i < len(drafts); i++ {
		prev, cur := drafts[i-1], drafts[i]
		if prev.standalone() || cur.standalone() {
			continue
		}

		n := size
		if half := (prev.own.end - prev.own.start) / 2; n > half {
			n = half
		}
		if room := cfg.MaxChunkSize - (cur.own.end - prev.own.end); n > room {
			n = room
		}
		if n <= 0 {
			continue
		}

		start := prev.own.end - n
		for start < prev.own.end && !utf8.RuneStart(text[start]) {
			start++
		}
		n = prev.own.end - start
		if n <= 0 {
			continue
		}

		cur.start = start
		cur.overlapPrev = n
		prev.overlapNext = n
	}
}

func toChunks(text string, drafts []*draft, blocks []domain.Block, sections []*domain.SectionNode, tracker *markdown.PageTracker) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(drafts))
	first := 0
	for i, d := range drafts {
		for first < len(blocks) && blocks[first].EndOffset <= d.own.start {
			first++
		}

		// Metadata follows the draft's own content, not the overlap it borrowed.
		var kinds []domain.BlockKind
		var section *domain.SectionNode
		for j := first; j < len(blocks) && blocks[j].StartOffset < d.own.end; j++ {
			if !blocks[j].Kind.IsContent() {
				continue
			}
			kinds = append(kinds, blocks[j].Kind)
			if section == nil && sections[j] != nil {
				section = sections[j]
			}
		}

		c := domain.Chunk{
			Index:               i,
			Text:                text[d.start:d.end],
			StartOffset:         d.start,
			EndOffset:           d.end,
			ContentTypes:        domain.NewContentTypes(kinds...),
			IsAtomic:            d.atomic,
			OverlapWithPrevious: d.overlapPrev,
			OverlapWithNext:     d.overlapNext,
		}

		if lo, hi, ok := tracker.PageSpan(d.own.start, d.own.end); ok {
			page := lo
			c.PageNumber = &page
			if hi != lo {
				c.PageRange = strconv.Itoa(lo) + "-" + strconv.Itoa(hi)
			}
		}

		if section != nil {
			c.HeadingContext = section.Text
			c.HeadingLevel = section.Level
			c.SectionPath = section.Path
		}

		chunks = append(chunks, c)
	}
	return chunks
}
