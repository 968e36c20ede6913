package steps

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/artifacts"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

func testExecContext(t *testing.T) *runner.ExecContext {
	t.Helper()
	tree, err := artifacts.NewTree(t.TempDir())
	require.NoError(t, err)
	return &runner.ExecContext{Tree: tree}
}

func TestLoadMixDecisionsReportsUnavailableWhenNoMixHasRun(t *testing.T) {
	ec := testExecContext(t)
	decisions, ok, err := loadMixDecisions(ec, "item-1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, decisions)
}

func TestLoadMixDecisionsIndexesBysegmentIndex(t *testing.T) {
	ec := testExecContext(t)
	dubDir, err := ec.Tree.ItemSubsystemDir("item-1", "dub_preview")
	require.NoError(t, err)

	report := mixReportFile{
		Variant: "neural_v1",
		Decisions: []timeFitDecision{
			{Index: 0, StartMs: 0, WindowMs: 1000, RenderedMs: 1000, Ratio: 1.0, Action: "pass_through"},
			{Index: 1, StartMs: 1000, WindowMs: 1000, RenderedMs: 1500, Ratio: 1.5, Action: "time_stretch"},
		},
	}
	require.NoError(t, writeJSONArtifact(filepath.Join(dubDir, "mix_report.json"), report))

	decisions, ok, err := loadMixDecisions(ec, "item-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, decisions, 2)
	require.Equal(t, "time_stretch", decisions[1].Action)
}

func TestLoadMixDecisionsExposesTimingVsDubDrift(t *testing.T) {
	ec := testExecContext(t)
	dubDir, err := ec.Tree.ItemSubsystemDir("item-1", "dub_preview")
	require.NoError(t, err)
	report := mixReportFile{
		Decisions: []timeFitDecision{
			{Index: 0, StartMs: 0, WindowMs: 1000, RenderedMs: 1000, Ratio: 1.0, Action: "pass_through"},
			{Index: 1, StartMs: 1000, WindowMs: 1000, RenderedMs: 1500, Ratio: 1.5, Action: "time_stretch"},
		},
	}
	require.NoError(t, writeJSONArtifact(filepath.Join(dubDir, "mix_report.json"), report))

	decisions, ok, err := loadMixDecisions(ec, "item-1")
	require.NoError(t, err)
	require.True(t, ok)

	// segment 1's subtitle window is 1000ms but the dub rendered 1500ms —
	// a 500ms drift that was corrected by time_stretch, not pass_through.
	d := decisions[1]
	drift := d.RenderedMs - 1000
	require.Equal(t, int64(500), drift)
	require.False(t, d.Action == "pass_through")
}
