// Package subtitle implements the typed segment document model shared
// across ASR, translation, diarization, QC, and dub rendering: a pure
// normalization function, segment editing operations, and deterministic
// SRT/VTT/JSON import and export.
package subtitle

import "strings"

// SchemaVersion identifies the canonical JSON document shape.
const SchemaVersion = 1

// Kind distinguishes a source-language document from a translated one.
type Kind string

const (
	KindSource     Kind = "source"
	KindTranslated Kind = "translated"
)

// MinSegmentDurationMs is the minimum allowed segment length; Normalize
// pads any shorter segment out to this length (spec §3).
const MinSegmentDurationMs = 200

// Segment is one subtitle line with timing and optional speaker attribution.
type Segment struct {
	Index   int    `json:"index"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

// Document is the canonical on-disk subtitle document.
type Document struct {
	SchemaVersion int       `json:"schema_version"`
	Kind          Kind      `json:"kind"`
	Lang          string    `json:"lang"`
	Segments      []Segment `json:"segments"`
}

// NewDocument returns an empty document ready for Normalize.
func NewDocument(kind Kind, lang string) *Document {
	return &Document{SchemaVersion: SchemaVersion, Kind: kind, Lang: lang}
}

// Normalize brings the document into the invariant-satisfying canonical
// form (spec §3):
//   - segments sorted by start_ms then end_ms
//   - index equals position
//   - start_ms <= end_ms, and end_ms - start_ms >= MinSegmentDurationMs,
//     padding the end time if a segment is too short
//   - segments[i].start_ms >= segments[i-1].end_ms (no overlap), achieved
//     by pushing a segment's start forward to its predecessor's end and
//     padding its end to keep the minimum duration
//   - text is trimmed with \r removed
func (d *Document) Normalize() {
	segs := make([]Segment, len(d.Segments))
	copy(segs, d.Segments)

	for i := range segs {
		segs[i].Text = cleanText(segs[i].Text)
		if segs[i].EndMs < segs[i].StartMs {
			segs[i].EndMs = segs[i].StartMs
		}
	}

	sortSegments(segs)

	var prevEnd int64 = -1
	for i := range segs {
		if prevEnd >= 0 && segs[i].StartMs < prevEnd {
			segs[i].StartMs = prevEnd
		}
		if segs[i].EndMs < segs[i].StartMs {
			segs[i].EndMs = segs[i].StartMs
		}
		if segs[i].EndMs-segs[i].StartMs < MinSegmentDurationMs {
			segs[i].EndMs = segs[i].StartMs + MinSegmentDurationMs
		}
		segs[i].Index = i
		prevEnd = segs[i].EndMs
	}

	d.Segments = segs
}

func sortSegments(segs []Segment) {
	// insertion sort: segment counts per document are small (minutes of
	// dialogue, not millions of rows) and this keeps the comparator a
	// single obvious place to read, matching Normalize's own style.
	for i := 1; i < len(segs); i++ {
		j := i
		for j > 0 && less(segs[j], segs[j-1]) {
			segs[j], segs[j-1] = segs[j-1], segs[j]
			j--
		}
	}
}

func less(a, b Segment) bool {
	if a.StartMs != b.StartMs {
		return a.StartMs < b.StartMs
	}
	return a.EndMs < b.EndMs
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}
