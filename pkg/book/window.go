package book

import "strings"

// DefaultWindowRadius is the number of sentences included on each side of the
// current playback position when building a context window.
const DefaultWindowRadius = 3

// Window extracts a bounded text window around the given chapter offset: up
// to radius sentences before and after the segment containing the offset.
// The window never reaches past what has already been narrated in other
// chapters; it is bounded to this transcript only.
//
// Returns an empty string when the transcript has no segments. An offset past
// the last segment anchors the window at the final sentence.
func (t *Transcript) Window(offset float64, radius int) string {
	if t == nil || len(t.Segments) == 0 {
		return ""
	}
	if radius < 0 {
		radius = 0
	}

	anchor := len(t.Segments) - 1
	for i, seg := range t.Segments {
		if seg.Contains(offset) || offset < seg.Start {
			anchor = i
			break
		}
	}

	lo := anchor - radius
	if lo < 0 {
		lo = 0
	}
	hi := anchor + radius + 1
	if hi > len(t.Segments) {
		hi = len(t.Segments)
	}

	parts := make([]string, 0, hi-lo)
	for _, seg := range t.Segments[lo:hi] {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
