package steps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpeakerForWindowPicksMaxOverlap(t *testing.T) {
	turns := []diarizeTurnOut{
		{StartMs: 0, EndMs: 1000, SpeakerKey: "spk_0"},
		{StartMs: 900, EndMs: 3000, SpeakerKey: "spk_1"},
	}
	// [800,2000) overlaps spk_0 by 200ms and spk_1 by 1100ms.
	require.Equal(t, "spk_1", speakerForWindow(turns, 800, 2000))
}

func TestSpeakerForWindowReturnsEmptyWhenNoOverlap(t *testing.T) {
	turns := []diarizeTurnOut{
		{StartMs: 0, EndMs: 1000, SpeakerKey: "spk_0"},
	}
	require.Equal(t, "", speakerForWindow(turns, 2000, 3000))
}

func TestSpeakerForWindowHandlesEmptyTurns(t *testing.T) {
	require.Equal(t, "", speakerForWindow(nil, 0, 1000))
}

func TestSpeakerForWindowBreaksTiesByFirstMaxSeen(t *testing.T) {
	turns := []diarizeTurnOut{
		{StartMs: 0, EndMs: 500, SpeakerKey: "spk_0"},
		{StartMs: 500, EndMs: 1000, SpeakerKey: "spk_1"},
	}
	require.Equal(t, "spk_0", speakerForWindow(turns, 0, 1000))
}

func TestMaxInt64AndMinInt64(t *testing.T) {
	require.Equal(t, int64(5), maxInt64(5, 3))
	require.Equal(t, int64(5), maxInt64(3, 5))
	require.Equal(t, int64(3), minInt64(5, 3))
	require.Equal(t, int64(3), minInt64(3, 5))
}
