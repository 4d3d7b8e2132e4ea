package markdown

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

var (
	headingPattern   = regexp.MustCompile(`^(#{1,6})[ \t]+(.*\S)$`)
	closingHashes    = regexp.MustCompile(`[ \t]+#+$`)
	htmlPageMarker   = regexp.MustCompile(`(?i)^<!--\s*page\s+(\d+)\s*-->$`)
	dashPageMarker   = regexp.MustCompile(`^\{(\d+)\}-{10,}$`)
	listItemPattern  = regexp.MustCompile(`^(?:[-*+]|\d+\.)[ \t]+\S`)
	tableSeparatorRe = regexp.MustCompile(`^\|?[ \t]*:?-+:?[ \t]*(?:\|[ \t]*:?-+:?[ \t]*)*\|?$`)
)

const codeFence = "```"

// ParseBlocks splits text into typed blocks. Heading and page marker
// lines always form their own blocks; other lines are grouped at blank
// lines. A code fence absorbs everything up to its closing fence, across
// blank lines, or to the end of input when it never closes.
//
// Non-marker blocks take their page number from pages; page marker blocks
// carry the page they announce.
func ParseBlocks(text string, pages []domain.PageOffset) []domain.Block {
	if text == "" {
		return nil
	}

	tracker := NewPageTracker(pages)
	lines := splitLines(text)
	blocks := make([]domain.Block, 0, len(lines)/2+1)

	emit := func(b domain.Block) {
		b.Text = text[b.StartOffset:b.EndOffset]
		if b.PageNumber == nil {
			if page, ok := tracker.PageForOffset(b.StartOffset); ok {
				b.PageNumber = &page
			}
		}
		blocks = append(blocks, b)
	}

	for i := 0; i < len(lines); {
		ln := lines[i]
		trimmed := ln.trimmed()

		switch {
		case trimmed == "":
			if ln.end > ln.start {
				emit(domain.Block{Kind: domain.BlockEmpty, StartOffset: ln.start, EndOffset: ln.end})
			}
			i++

		case isFence(trimmed):
			end, next := scanFence(lines, i)
			emit(domain.Block{Kind: domain.BlockCode, StartOffset: ln.start, EndOffset: end})
			i = next

		default:
			if level, heading, ok := parseHeading(trimmed); ok {
				emit(domain.Block{
					Kind:         domain.BlockHeading,
					StartOffset:  ln.start,
					EndOffset:    ln.end,
					HeadingLevel: level,
					HeadingText:  heading,
				})
				i++
				continue
			}
			if page, ok := parsePageMarker(trimmed); ok {
				emit(domain.Block{
					Kind:        domain.BlockPageMarker,
					StartOffset: ln.start,
					EndOffset:   ln.end,
					PageNumber:  &page,
				})
				i++
				continue
			}

			j := i + 1
			for j < len(lines) && !breaksGroup(lines[j].trimmed()) {
				j++
			}
			group := lines[i:j]
			emit(domain.Block{
				Kind:        classifyGroup(group),
				StartOffset: group[0].start,
				EndOffset:   group[len(group)-1].end,
			})
			i = j
		}
	}

	return blocks
}

// scanFence finds the end of the code block opened at lines[open]. It
// returns the end offset and the index of the next unconsumed line.
func scanFence(lines []line, open int) (end, next int) {
	for j := open + 1; j < len(lines); j++ {
		if isFence(lines[j].trimmed()) {
			return lines[j].end, j + 1
		}
	}

	// Unterminated: absorb to the last non-blank line of input.
	last := open
	for j := len(lines) - 1; j > open; j-- {
		if !lines[j].blank() {
			last = j
			break
		}
	}
	return lines[last].end, len(lines)
}

// breaksGroup reports whether a line ends the current paragraph-like group.
func breaksGroup(trimmed string) bool {
	if trimmed == "" || isFence(trimmed) {
		return true
	}
	if _, _, ok := parseHeading(trimmed); ok {
		return true
	}
	_, ok := parsePageMarker(trimmed)
	return ok
}

func classifyGroup(group []line) domain.BlockKind {
	for k := 0; k+1 < len(group); k++ {
		if isPipeRow(group[k].trimmed()) && isTableSeparator(group[k+1].trimmed()) {
			return domain.BlockTable
		}
	}
	if listItemPattern.MatchString(group[0].trimmed()) {
		return domain.BlockList
	}
	return domain.BlockParagraph
}

func isFence(trimmed string) bool {
	return strings.HasPrefix(trimmed, codeFence)
}

func isPipeRow(trimmed string) bool {
	return strings.Contains(trimmed, "|") && !isTableSeparator(trimmed)
}

func isTableSeparator(trimmed string) bool {
	return strings.Contains(trimmed, "|") && tableSeparatorRe.MatchString(trimmed)
}

// parseHeading recognises "# text" through "###### text". A missing space
// ("#text") or empty text is not a heading.
func parseHeading(trimmed string) (level int, text string, ok bool) {
	m := headingPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, "", false
	}
	text = strings.TrimSpace(closingHashes.ReplaceAllString(m[2], ""))
	if text == "" || strings.Trim(text, "#") == "" {
		return 0, "", false
	}
	return len(m[1]), text, true
}

// parsePageMarker recognises "<!-- Page N -->" (1-based) and "{N}" followed
// by at least ten dashes (0-based). It returns the 1-based page.
func parsePageMarker(trimmed string) (int, bool) {
	if m := htmlPageMarker.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return 0, false
		}
		return n, true
	}
	if m := dashPageMarker.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 {
			return 0, false
		}
		return n + 1, true
	}
	return 0, false
}
