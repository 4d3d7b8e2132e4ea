package markdown

import "strings"

// line is one source line without its terminating newline.
type line struct {
	start int
	end   int
	text  string
}

func (l line) trimmed() string {
	return strings.TrimSpace(l.text)
}

func (l line) blank() bool {
	return l.trimmed() == ""
}

// splitLines returns the lines of text with their byte offsets.
// A trailing newline does not produce an extra empty line.
func splitLines(text string) []line {
	lines := make([]line, 0, strings.Count(text, "\n")+1)
	start := 0
	for start < len(text) {
		idx := strings.IndexByte(text[start:], '\n')
		if idx < 0 {
			lines = append(lines, line{start: start, end: len(text), text: text[start:]})
			break
		}
		end := start + idx
		lines = append(lines, line{start: start, end: end, text: text[start:end]})
		start = end + 1
	}
	return lines
}
