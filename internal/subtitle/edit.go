package subtitle

import (
	"fmt"
	"unicode/utf8"
)

// Split divides the segment at segIndex into two, at charOffset runes into
// its text (or the midpoint if charOffset is nil). The split time is
// allocated proportionally to each half's text length, then the document
// is renormalized.
func (d *Document) Split(segIndex int, charOffset *int) error {
	if segIndex < 0 || segIndex >= len(d.Segments) {
		return fmt.Errorf("split: segment index %d out of range", segIndex)
	}
	seg := d.Segments[segIndex]
	runes := []rune(seg.Text)

	offset := len(runes) / 2
	if charOffset != nil {
		offset = *charOffset
	}
	if offset <= 0 || offset >= len(runes) {
		return fmt.Errorf("split: char offset %d out of range for segment %d", offset, segIndex)
	}

	firstText := string(runes[:offset])
	secondText := string(runes[offset:])

	totalLen := utf8.RuneCountInString(seg.Text)
	duration := seg.EndMs - seg.StartMs
	splitMs := seg.StartMs + duration*int64(offset)/int64(totalLen)

	first := Segment{StartMs: seg.StartMs, EndMs: splitMs, Text: firstText, Speaker: seg.Speaker}
	second := Segment{StartMs: splitMs, EndMs: seg.EndMs, Text: secondText, Speaker: seg.Speaker}

	out := make([]Segment, 0, len(d.Segments)+1)
	out = append(out, d.Segments[:segIndex]...)
	out = append(out, first, second)
	out = append(out, d.Segments[segIndex+1:]...)
	d.Segments = out

	d.Normalize()
	return nil
}

// MergeWithNext joins segIndex with the following segment, concatenating
// text with a single space and spanning the combined time range.
func (d *Document) MergeWithNext(segIndex int) error {
	if segIndex < 0 || segIndex+1 >= len(d.Segments) {
		return fmt.Errorf("merge: segment index %d has no next segment", segIndex)
	}
	a := d.Segments[segIndex]
	b := d.Segments[segIndex+1]

	merged := Segment{
		StartMs: a.StartMs,
		EndMs:   b.EndMs,
		Text:    a.Text + " " + b.Text,
		Speaker: a.Speaker,
	}

	out := make([]Segment, 0, len(d.Segments)-1)
	out = append(out, d.Segments[:segIndex]...)
	out = append(out, merged)
	out = append(out, d.Segments[segIndex+2:]...)
	d.Segments = out

	d.Normalize()
	return nil
}

// Shift moves segIndex by deltaMs (positive delays, negative advances),
// then renormalizes to resolve any overlap the shift introduced.
func (d *Document) Shift(segIndex int, deltaMs int64) error {
	if segIndex < 0 || segIndex >= len(d.Segments) {
		return fmt.Errorf("shift: segment index %d out of range", segIndex)
	}
	d.Segments[segIndex].StartMs += deltaMs
	d.Segments[segIndex].EndMs += deltaMs
	if d.Segments[segIndex].StartMs < 0 {
		d.Segments[segIndex].EndMs -= d.Segments[segIndex].StartMs
		d.Segments[segIndex].StartMs = 0
	}
	d.Normalize()
	return nil
}
