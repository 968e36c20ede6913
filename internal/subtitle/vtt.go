package subtitle

import (
	"fmt"
	"strings"
)

// formatVTTTime renders milliseconds as WebVTT's HH:MM:SS.mmm.
func formatVTTTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	secs := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}

// EncodeVTT renders a normalized document as WebVTT text.
func EncodeVTT(d *Document) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range d.Segments {
		fmt.Fprintf(&b, "%s --> %s\n", formatVTTTime(seg.StartMs), formatVTTTime(seg.EndMs))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// DecodeVTT parses WebVTT text into a document, then normalizes it. VTT
// uses '.' as the millisecond separator where SRT uses ',' — the shared
// parseSRTTime regex accepts either, so decoding reuses the SRT block
// parser after stripping the WEBVTT header and cue identifiers.
func DecodeVTT(data string, kind Kind, lang string) (*Document, error) {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	if idx := strings.Index(data, "\n\n"); strings.HasPrefix(data, "WEBVTT") && idx >= 0 {
		data = data[idx+2:]
	}
	return DecodeSRT(data, kind, lang)
}
