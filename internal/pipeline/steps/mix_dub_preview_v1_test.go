package steps

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeTimeFitPadsWhenRenderedShorterThanWindow(t *testing.T) {
	ratio, action := computeTimeFit(700, 1000, 0.85, 1.25)
	require.InDelta(t, 0.7, ratio, 0.001)
	require.Equal(t, "pad_silence", action)
}

func TestComputeTimeFitStretchesWhenRenderedLongerThanWindow(t *testing.T) {
	ratio, action := computeTimeFit(1500, 1000, 0.85, 1.25)
	require.InDelta(t, 1.5, ratio, 0.001)
	require.Equal(t, "time_stretch", action)
}

func TestComputeTimeFitPassesThroughWithinFactorRange(t *testing.T) {
	ratio, action := computeTimeFit(1000, 1000, 0.85, 1.25)
	require.InDelta(t, 1.0, ratio, 0.001)
	require.Equal(t, "pass_through", action)
}

func TestComputeTimeFitPassesThroughOnUnknownWindow(t *testing.T) {
	ratio, action := computeTimeFit(1000, 0, 0.85, 1.25)
	require.Equal(t, 1.0, ratio)
	require.Equal(t, "pass_through", action)
}

func threeVoiceDecisions() []timeFitDecision {
	return []timeFitDecision{
		{Index: 0, StartMs: 0, WindowMs: 1000, RenderedMs: 1000, Ratio: 1.0, Action: "pass_through"},
		{Index: 1, StartMs: 1200, WindowMs: 1000, RenderedMs: 700, Ratio: 0.7, Action: "pad_silence"},
		{Index: 2, StartMs: 2500, WindowMs: 1000, RenderedMs: 1500, Ratio: 1.5, Action: "time_stretch"},
	}
}

func TestBuildMixFiltergraphReferencesEveryVoiceInputAndBackground(t *testing.T) {
	graph := buildMixFiltergraph(threeVoiceDecisions())
	for i := 0; i < 3; i++ {
		require.Contains(t, graph, "["+strconv.Itoa(i)+":a]")
	}
	require.Contains(t, graph, "amix=inputs=3")
	require.Contains(t, graph, "sidechaincompress")
	require.Contains(t, graph, "loudnorm")
}

func TestBuildMixFiltergraphUsesBackgroundAsLastInput(t *testing.T) {
	decisions := threeVoiceDecisions()[:2]
	graph := buildMixFiltergraph(decisions)
	require.True(t, strings.Contains(graph, "[2:a]"), "background stem should be input index 2 when there are 2 voice stems")
}

func TestBuildMixFiltergraphPositionsEverySegmentAtItsStartOffset(t *testing.T) {
	graph := buildMixFiltergraph(threeVoiceDecisions())
	require.Contains(t, graph, "adelay=0:all=1")
	require.Contains(t, graph, "adelay=1200:all=1")
	require.Contains(t, graph, "adelay=2500:all=1")
}

func TestBuildMixFiltergraphPadsShortSegmentsAndStretchesLongOnes(t *testing.T) {
	graph := buildMixFiltergraph(threeVoiceDecisions())
	require.Contains(t, graph, "apad=pad_dur=0.300")
	require.Contains(t, graph, "atempo=1.5000")
	// the pass-through segment gets neither an apad nor an atempo filter
	require.NotContains(t, graph, "[0:a]apad")
	require.NotContains(t, graph, "[0:a]atempo")
}

func TestAtempoChainSplitsOutOfRangeFactors(t *testing.T) {
	for _, f := range atempoChain(4.0) {
		require.GreaterOrEqual(t, f, 0.5)
		require.LessOrEqual(t, f, 2.0)
	}
	for _, f := range atempoChain(0.2) {
		require.GreaterOrEqual(t, f, 0.5)
		require.LessOrEqual(t, f, 2.0)
	}
	require.Equal(t, []float64{1.5}, atempoChain(1.5))
}
