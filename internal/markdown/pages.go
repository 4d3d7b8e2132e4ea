package markdown

import (
	"sort"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

// MarkerDedupWindow is the distance in bytes within which two markers
// announcing the same page are treated as one.
const MarkerDedupWindow = 100

// PageMarker is a page marker line found in OCR text.
type PageMarker struct {
	Offset int
	Page   int
}

// FindPageMarkers returns every page marker line in text in source order.
func FindPageMarkers(text string) []PageMarker {
	var markers []PageMarker
	for _, ln := range splitLines(text) {
		if page, ok := parsePageMarker(ln.trimmed()); ok {
			markers = append(markers, PageMarker{Offset: ln.start, Page: page})
		}
	}
	return markers
}

// ExtractPageOffsets derives page ranges from the markers embedded in text.
// The first range starts at 0 so leading content belongs to the first
// announced page; each range ends where the next marker begins.
//
// Markers repeating a page within MarkerDedupWindow bytes are collapsed,
// and markers whose page does not increase are dropped so the returned
// ranges are ascending by both page and offset.
func ExtractPageOffsets(text string) []domain.PageOffset {
	markers := FindPageMarkers(text)
	if len(markers) == 0 {
		return nil
	}
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Offset < markers[j].Offset })

	kept := make([]PageMarker, 0, len(markers))
	for _, m := range markers {
		if n := len(kept); n > 0 {
			last := kept[n-1]
			if m.Page == last.Page && m.Offset-last.Offset <= MarkerDedupWindow {
				continue
			}
			if m.Page <= last.Page {
				continue
			}
		}
		kept = append(kept, m)
	}

	offsets := make([]domain.PageOffset, len(kept))
	for i, m := range kept {
		start := m.Offset
		if i == 0 {
			start = 0
		}
		end := len(text)
		if i+1 < len(kept) {
			end = kept[i+1].Offset
		}
		offsets[i] = domain.PageOffset{Page: m.Page, CharStart: start, CharEnd: end}
	}
	return offsets
}

// PageTracker maps byte offsets to pages using binary search.
type PageTracker struct {
	ranges []domain.PageOffset
}

// NewPageTracker builds a tracker over a copy of offsets sorted by start.
func NewPageTracker(offsets []domain.PageOffset) *PageTracker {
	ranges := make([]domain.PageOffset, len(offsets))
	copy(ranges, offsets)
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].CharStart < ranges[j].CharStart })
	return &PageTracker{ranges: ranges}
}

// Len returns the number of page ranges.
func (t *PageTracker) Len() int {
	return len(t.ranges)
}

// Ranges returns the sorted page ranges.
func (t *PageTracker) Ranges() []domain.PageOffset {
	return t.ranges
}

// PageForOffset returns the page containing offset. Offsets before the
// first range resolve to the first page, offsets past the last range to
// the last page, and offsets in a gap to the preceding range. ok is false
// only when the tracker has no ranges.
func (t *PageTracker) PageForOffset(offset int) (page int, ok bool) {
	if len(t.ranges) == 0 {
		return 0, false
	}
	// First range starting after offset.
	idx := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].CharStart > offset })
	if idx == 0 {
		return t.ranges[0].Page, true
	}
	return t.ranges[idx-1].Page, true
}

// PageSpan returns the pages of the first and last byte of [start, end).
func (t *PageTracker) PageSpan(start, end int) (first, last int, ok bool) {
	first, ok = t.PageForOffset(start)
	if !ok {
		return 0, 0, false
	}
	if end <= start {
		return first, first, true
	}
	last, _ = t.PageForOffset(end - 1)
	return first, last, true
}
