package chunker

import (
	"strings"
	"unicode/utf8"
)

// span is a half-open byte range of the source text.
type span struct {
	start int
	end   int
}

var sentenceEnds = []string{". ", "! ", "? "}

// splitSpan cuts [start, end) into spans of at most limit bytes, preferring
// line breaks, then sentence ends, then whitespace, and falling back to a
// cut on a rune boundary. Whitespace between spans is dropped.
func splitSpan(text string, start, end, limit int) []span {
	var out []span
	for start < end {
		if end-start <= limit {
			out = append(out, span{start, end})
			break
		}
		pieceEnd, next := findCut(text, start, start+limit, end)
		out = append(out, span{start, pieceEnd})
		start = skipSpace(text, next, end)
	}
	return trimSpans(text, out)
}

// findCut picks the end of a piece starting at lo that must not pass hi.
// It returns the piece end and where the next piece begins.
func findCut(text string, lo, hi, end int) (pieceEnd, next int) {
	window := text[lo:hi]
	minPos := (hi - lo) / 4
	if minPos < 1 {
		minPos = 1
	}

	if idx := strings.LastIndexByte(window, '\n'); idx >= minPos {
		return lo + idx, lo + idx + 1
	}

	best := -1
	for _, sep := range sentenceEnds {
		if idx := strings.LastIndex(window, sep); idx > best {
			best = idx
		}
	}
	if best >= minPos {
		return lo + best + 1, lo + best + 2
	}

	if idx := strings.LastIndexAny(window, " \t"); idx >= minPos {
		return lo + idx, lo + idx + 1
	}

	cut := hi
	for cut > lo && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == lo {
		cut = lo + 1
		for cut < end && !utf8.RuneStart(text[cut]) {
			cut++
		}
	}
	return cut, cut
}

// splitByLines cuts [start, end) at line boundaries into spans of at most
// limit bytes. Lines longer than limit are split with splitSpan.
func splitByLines(text string, start, end, limit int) []span {
	var out []span
	pieceStart, pieceEnd := -1, -1

	flush := func() {
		if pieceStart >= 0 && pieceEnd > pieceStart {
			out = append(out, span{pieceStart, pieceEnd})
		}
		pieceStart, pieceEnd = -1, -1
	}

	for lineStart := start; lineStart < end; {
		lineEnd := end
		next := end
		if idx := strings.IndexByte(text[lineStart:end], '\n'); idx >= 0 {
			lineEnd = lineStart + idx
			next = lineEnd + 1
		}

		switch {
		case lineEnd-lineStart > limit:
			flush()
			out = append(out, splitSpan(text, lineStart, lineEnd, limit)...)
		case strings.TrimSpace(text[lineStart:lineEnd]) == "":
			// Blank lines never start or end a piece.
		default:
			if pieceStart >= 0 && lineEnd-pieceStart > limit {
				flush()
			}
			if pieceStart < 0 {
				pieceStart = lineStart
			}
			pieceEnd = lineEnd
		}
		lineStart = next
	}
	flush()
	return out
}

func skipSpace(text string, pos, end int) int {
	for pos < end {
		switch text[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// trimSpans drops trailing whitespace from each span and removes spans
// that end up empty.
func trimSpans(text string, spans []span) []span {
	out := spans[:0]
	for _, s := range spans {
		for s.end > s.start && isSpaceByte(text[s.end-1]) {
			s.end--
		}
		if s.end > s.start {
			out = append(out, s)
		}
	}
	return out
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
