package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// formatSRTTime renders milliseconds as SRT's HH:MM:SS,mmm.
func formatSRTTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	secs := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

var srtTimeRe = regexp.MustCompile(`(\d+):(\d{2}):(\d{2})[,.](\d{3})`)

func parseSRTTime(s string) (int64, error) {
	m := srtTimeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("malformed timestamp %q", s)
	}
	hours, _ := strconv.ParseInt(m[1], 10, 64)
	minutes, _ := strconv.ParseInt(m[2], 10, 64)
	secs, _ := strconv.ParseInt(m[3], 10, 64)
	millis, _ := strconv.ParseInt(m[4], 10, 64)
	return hours*3600000 + minutes*60000 + secs*1000 + millis, nil
}

// EncodeSRT renders a normalized document as SubRip text.
func EncodeSRT(d *Document) string {
	var b strings.Builder
	for _, seg := range d.Segments {
		fmt.Fprintf(&b, "%d\n", seg.Index+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatSRTTime(seg.StartMs), formatSRTTime(seg.EndMs))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// DecodeSRT parses SubRip text into a document, then normalizes it.
func DecodeSRT(data string, kind Kind, lang string) (*Document, error) {
	d := NewDocument(kind, lang)

	blocks := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			continue
		}

		timeLineIdx := 0
		if !strings.Contains(lines[0], "-->") {
			timeLineIdx = 1
		}
		if timeLineIdx >= len(lines) || !strings.Contains(lines[timeLineIdx], "-->") {
			return nil, fmt.Errorf("decode srt: block missing time range: %q", block)
		}

		parts := strings.SplitN(lines[timeLineIdx], "-->", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("decode srt: malformed time range: %q", lines[timeLineIdx])
		}
		startMs, err := parseSRTTime(parts[0])
		if err != nil {
			return nil, fmt.Errorf("decode srt: %w", err)
		}
		endMs, err := parseSRTTime(parts[1])
		if err != nil {
			return nil, fmt.Errorf("decode srt: %w", err)
		}

		text := strings.Join(lines[timeLineIdx+1:], "\n")
		d.Segments = append(d.Segments, Segment{StartMs: startMs, EndMs: endMs, Text: text})
	}

	d.Normalize()
	return d, nil
}
