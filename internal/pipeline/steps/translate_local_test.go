package steps

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyGlossaryReplacesLongestKeyFirst(t *testing.T) {
	glossary := map[string]string{
		"New York":      "Nueva York",
		"New York City": "Ciudad de Nueva York",
	}
	got := applyGlossary("I live in New York City.", glossary)
	require.Equal(t, "I live in Ciudad de Nueva York.", got)
}

func TestApplyGlossaryIsDeterministicAcrossMapIterationOrder(t *testing.T) {
	glossary := map[string]string{
		"foo":     "F",
		"foobar":  "FB",
		"foobarz": "FBZ",
	}
	for i := 0; i < 20; i++ {
		got := applyGlossary("foobarz and foobar and foo", glossary)
		require.Equal(t, "FBZ and FB and F", got)
	}
}

func TestApplyGlossaryNoOpOnEmptyGlossary(t *testing.T) {
	require.Equal(t, "unchanged text", applyGlossary("unchanged text", map[string]string{}))
}

func TestApplyGlossarySkipsEmptyKey(t *testing.T) {
	glossary := map[string]string{"": "should not apply"}
	require.Equal(t, "hello", applyGlossary("hello", glossary))
}

func TestWrapLinesRespectsWidth(t *testing.T) {
	lines := wrapLines("the quick brown fox jumps over the lazy dog", 16)
	for _, l := range lines {
		require.LessOrEqual(t, len(l), 16)
	}
	require.Equal(t, "the quick brown fox jumps over the lazy dog", strings.Join(lines, " "))
}

func TestWrapLinesEmptyTextReturnsNil(t *testing.T) {
	require.Nil(t, wrapLines("", lineWrapWidth))
	require.Nil(t, wrapLines("   ", lineWrapWidth))
}

func TestQCWarningFlagsExcessiveLineCount(t *testing.T) {
	longText := strings.Repeat("word ", 40)
	w := qcWarning(0, longText, 10000)
	require.Contains(t, w, "exceeds")
	require.Contains(t, w, "lines")
}

func TestQCWarningFlagsExcessiveCPS(t *testing.T) {
	// 26 chars rendered in 1 second is well above maxCPSWarn (17.0) but
	// still fits in maxLinesWarn lines.
	w := qcWarning(2, "short text under the limit", 1000)
	require.Contains(t, w, "chars/sec")
}

func TestQCWarningEmptyWhenWithinThresholds(t *testing.T) {
	w := qcWarning(0, "hello there", 5000)
	require.Empty(t, w)
}

func TestQCWarningIgnoresCPSCheckWhenDurationUnknown(t *testing.T) {
	w := qcWarning(0, "hello there", 0)
	require.Empty(t, w)
}
