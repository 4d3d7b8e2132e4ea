package chunker

import (
	"unicode/utf8"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// level is the granularity a node's children are cut at.
type level int

const (
	levelLines level = iota
	levelSentences
	levelWords
	levelRunes
	levelLeaf
)

// node is a unit of text the packer keeps whole or replaces by its
// children. The span holds the node's own content; from and to extend it
// over headings glued before or after it.
type node struct {
	span
	from int
	to   int

	// need is how many bytes of content, counted from start, stay with
	// the text glued before the node.
	need   int
	level  level
	atomic bool
}

func blockNode(b domain.Block) node {
	n := plainNode(span{b.StartOffset, b.EndOffset})
	n.atomic = b.Kind.IsAtomic()
	return n
}

func plainNode(s span) node {
	return node{span: s, from: s.start, to: s.end}
}

func (n node) extent() span { return span{n.from, n.to} }

func (n node) size() int { return n.to - n.from }

func (n node) glued() bool { return n.from < n.start || n.to > n.end }

// whole reports whether n is an atomic block with nothing glued to it.
func (n node) whole() bool { return n.atomic && !n.glued() }

// children cuts n at the first level that yields more than one part.
// Leading glue moves to the part where the needed content ends, taking
// the parts before it along; trailing glue moves to the last part.
// A leaf has no children.
func (n node) children(text string) []node {
	for lv := n.level; lv < levelLeaf; lv++ {
		parts := cut(text, n.span, lv)
		if len(parts) < 2 {
			continue
		}

		first := 0
		if n.from < n.start {
			first = len(parts) - 1
			for i, p := range parts {
				if p.end-n.start >= n.need {
					first = i
					break
				}
			}
		}

		kids := make([]node, 0, len(parts)-first)
		for _, p := range parts[first:] {
			kid := plainNode(p)
			kid.level = lv + 1
			kids = append(kids, kid)
		}
		if n.from < n.start {
			kids[0].from = n.from
			kids[0].need = n.need - (parts[first].start - n.start)
		}
		kids[len(kids)-1].to = n.to
		return kids
	}
	return nil
}

func cut(text string, s span, lv level) []span {
	switch lv {
	case levelLines:
		return cutLines(text, s)
	case levelSentences:
		return cutSentences(text, s)
	case levelWords:
		return cutWords(text, s)
	case levelRunes:
		return cutRunes(text, s)
	default:
		return nil
	}
}

func cutLines(text string, s span) []span {
	var out []span
	for pos := s.start; pos < s.end; {
		end, next := s.end, s.end
		for i := pos; i < s.end; i++ {
			if text[i] == '\n' {
				end, next = i, i+1
				break
			}
		}
		out = append(out, span{skipSpace(text, pos, end), end})
		pos = next
	}
	return trimSpans(text, out)
}

// cutSentences breaks after a sentence end followed by a space.
func cutSentences(text string, s span) []span {
	var out []span
	pos := s.start
	for i := s.start; i+1 < s.end; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' || text[i+1] == '\t' {
				out = append(out, span{pos, i + 1})
				pos = skipSpace(text, i+1, s.end)
				i = pos - 1
			}
		}
	}
	if pos < s.end {
		out = append(out, span{pos, s.end})
	}
	return trimSpans(text, out)
}

func cutWords(text string, s span) []span {
	var out []span
	for pos := skipSpace(text, s.start, s.end); pos < s.end; {
		end := pos
		for end < s.end && !isSpaceByte(text[end]) {
			end++
		}
		out = append(out, span{pos, end})
		pos = skipSpace(text, end, s.end)
	}
	return out
}

func cutRunes(text string, s span) []span {
	out := make([]span, 0, s.end-s.start)
	for pos := s.start; pos < s.end; {
		_, size := utf8.DecodeRuneInString(text[pos:s.end])
		out = append(out, span{pos, pos + size})
		pos += size
	}
	return out
}
