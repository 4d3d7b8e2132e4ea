package markdown

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

var (
	numberedLabel = regexp.MustCompile(`^(?:([a-z]+)\s+)?(\d+(?:\.\d+)*)(?:[.):]|\s|$)`)
	romanLabel    = regexp.MustCompile(`^(?:([a-z]+)\s+)?([ivxlcdm]+)([.):]|\s|$)`)
	letterLabel   = regexp.MustCompile(`^(?:([a-z]+)\s+)?([a-z])([.):]|\s|$)`)
	digitRun      = regexp.MustCompile(`\d+`)
)

// HeadingPattern reduces a heading to the shape of its label, e.g.
// "Article 3" -> "article N", "4.2 Scope" -> "N.N", "IV. Terms" -> "R".
// Headings without a recognisable label return "".
//
// Roman numerals and single letters only count as labels when preceded
// by a word or followed by one of ".):", so "A Brief History" is not a
// lettered heading.
func HeadingPattern(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return ""
	}

	if m := numberedLabel.FindStringSubmatch(t); m != nil {
		return joinLabel(m[1], digitRun.ReplaceAllString(m[2], "N"))
	}
	if m := romanLabel.FindStringSubmatch(t); m != nil && (m[1] != "" || isLabelDelimiter(m[3])) {
		return joinLabel(m[1], "R")
	}
	if m := letterLabel.FindStringSubmatch(t); m != nil && (m[1] != "" || isLabelDelimiter(m[3])) {
		return joinLabel(m[1], "A")
	}
	return ""
}

func isLabelDelimiter(s string) bool {
	return s == "." || s == ")" || s == ":"
}

func joinLabel(word, shape string) string {
	if word == "" {
		return shape
	}
	return word + " " + shape
}

// NormalizeHeadingLevels returns a copy of blocks in which headings that
// share a label pattern are given the same level. Only patterns seen at
// least minCount times are normalised; their level becomes the most
// common one, ties going to the shallower level. Heading text and offsets
// are unchanged.
func NormalizeHeadingLevels(blocks []domain.Block, minCount int) []domain.Block {
	out := make([]domain.Block, len(blocks))
	copy(out, blocks)
	if minCount < 1 {
		minCount = domain.DefaultMinPatternCount
	}

	type tally struct {
		total  int
		levels [domain.MaxHeadingLevel + 1]int
	}
	tallies := make(map[string]*tally)
	patterns := make([]string, len(out))

	for i, b := range out {
		if b.Kind != domain.BlockHeading {
			continue
		}
		p := HeadingPattern(b.HeadingText)
		if p == "" {
			continue
		}
		patterns[i] = p
		t, ok := tallies[p]
		if !ok {
			t = &tally{}
			tallies[p] = t
		}
		t.total++
		if b.HeadingLevel >= 1 && b.HeadingLevel <= domain.MaxHeadingLevel {
			t.levels[b.HeadingLevel]++
		}
	}

	target := make(map[string]int, len(tallies))
	for p, t := range tallies {
		if t.total < minCount {
			continue
		}
		best := 0
		for l := 1; l <= domain.MaxHeadingLevel; l++ {
			if t.levels[l] > t.levels[best] {
				best = l
			}
		}
		if best > 0 {
			target[p] = best
		}
	}

	for i := range out {
		if lvl, ok := target[patterns[i]]; ok && patterns[i] != "" {
			out[i].HeadingLevel = lvl
		}
	}
	return out
}
