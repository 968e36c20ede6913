package subtitle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSortsAndFixesOverlap(t *testing.T) {
	d := NewDocument(KindSource, "en")
	d.Segments = []Segment{
		{StartMs: 2000, EndMs: 2500, Text: "second"},
		{StartMs: 0, EndMs: 2200, Text: "first\r"},
	}
	d.Normalize()

	require.Len(t, d.Segments, 2)
	require.Equal(t, "first", d.Segments[0].Text)
	require.Equal(t, 0, d.Segments[0].Index)
	require.Equal(t, 1, d.Segments[1].Index)
	require.GreaterOrEqual(t, d.Segments[1].StartMs, d.Segments[0].EndMs)
}

func TestNormalizePadsShortSegments(t *testing.T) {
	d := NewDocument(KindSource, "en")
	d.Segments = []Segment{{StartMs: 0, EndMs: 50, Text: "hi"}}
	d.Normalize()

	require.Equal(t, int64(MinSegmentDurationMs), d.Segments[0].EndMs-d.Segments[0].StartMs)
}

func TestSplitAllocatesTimeProportionally(t *testing.T) {
	d := NewDocument(KindSource, "en")
	d.Segments = []Segment{{StartMs: 0, EndMs: 1000, Text: "abcdefghij"}}
	d.Normalize()

	offset := 5
	require.NoError(t, d.Split(0, &offset))

	require.Len(t, d.Segments, 2)
	require.Equal(t, "abcde", d.Segments[0].Text)
	require.Equal(t, "fghij", d.Segments[1].Text)
	require.Equal(t, int64(0), d.Segments[0].StartMs)
	require.Equal(t, d.Segments[0].EndMs, d.Segments[1].StartMs)
	require.Equal(t, int64(1000), d.Segments[1].EndMs)
}

func TestMergeWithNextJoinsTextAndSpan(t *testing.T) {
	d := NewDocument(KindSource, "en")
	d.Segments = []Segment{
		{StartMs: 0, EndMs: 500, Text: "hello"},
		{StartMs: 500, EndMs: 1000, Text: "world"},
	}
	d.Normalize()

	require.NoError(t, d.MergeWithNext(0))
	require.Len(t, d.Segments, 1)
	require.Equal(t, "hello world", d.Segments[0].Text)
	require.Equal(t, int64(0), d.Segments[0].StartMs)
	require.Equal(t, int64(1000), d.Segments[0].EndMs)
}

func TestShiftResolvesOverlap(t *testing.T) {
	d := NewDocument(KindSource, "en")
	d.Segments = []Segment{
		{StartMs: 0, EndMs: 500, Text: "a"},
		{StartMs: 500, EndMs: 1000, Text: "b"},
	}
	d.Normalize()

	require.NoError(t, d.Shift(1, -600))
	require.GreaterOrEqual(t, d.Segments[1].StartMs, d.Segments[0].EndMs)
}

func TestSRTRoundTrip(t *testing.T) {
	d := NewDocument(KindSource, "en")
	d.Segments = []Segment{
		{StartMs: 0, EndMs: 1500, Text: "Hello there"},
		{StartMs: 1500, EndMs: 3200, Text: "General Kenobi"},
	}
	d.Normalize()

	encoded := EncodeSRT(d)
	require.Contains(t, encoded, "00:00:00,000 --> 00:00:01,500")

	decoded, err := DecodeSRT(encoded, KindSource, "en")
	require.NoError(t, err)
	require.Len(t, decoded.Segments, 2)
	require.Equal(t, "Hello there", decoded.Segments[0].Text)
	require.Equal(t, d.Segments[1].StartMs, decoded.Segments[1].StartMs)
}

func TestVTTRoundTrip(t *testing.T) {
	d := NewDocument(KindSource, "en")
	d.Segments = []Segment{{StartMs: 0, EndMs: 1000, Text: "Hi"}}
	d.Normalize()

	encoded := EncodeVTT(d)
	require.True(t, len(encoded) > 0)
	require.Contains(t, encoded, "WEBVTT")
	require.Contains(t, encoded, "00:00:00.000 --> 00:00:01.000")

	decoded, err := DecodeVTT(encoded, KindSource, "en")
	require.NoError(t, err)
	require.Len(t, decoded.Segments, 1)
	require.Equal(t, "Hi", decoded.Segments[0].Text)
}

func TestJSONRoundTrip(t *testing.T) {
	d := NewDocument(KindTranslated, "fr")
	d.Segments = []Segment{{StartMs: 0, EndMs: 1000, Text: "Bonjour", Speaker: "SPEAKER_00"}}
	d.Normalize()

	data, err := EncodeJSON(d)
	require.NoError(t, err)

	decoded, err := DecodeJSON(data)
	require.NoError(t, err)
	require.Equal(t, KindTranslated, decoded.Kind)
	require.Equal(t, "fr", decoded.Lang)
	require.Equal(t, "SPEAKER_00", decoded.Segments[0].Speaker)
}
