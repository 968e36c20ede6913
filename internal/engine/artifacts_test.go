package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/artifacts"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

func TestItemOutputsReportsOnlyArtifactsThatExist(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	item := &models.LibraryItem{ID: "item-1", SourceType: models.SourceTypeLocal, Title: "clip", MediaPath: "/media/clip.mp4", CreatedAtMs: 1}
	require.NoError(t, e.store.CreateItem(ctx, item))

	outputs, err := e.ItemOutputs(ctx, item.ID)
	require.NoError(t, err)
	require.Nil(t, outputs.QCReportPath)
	require.Nil(t, outputs.DubPreviewMuxPath)

	qcDir, err := e.tree.ItemSubsystemDir(item.ID, "qc")
	require.NoError(t, err)
	require.NoError(t, artifacts.WriteAtomic(filepath.Join(qcDir, "report.json"), []byte(`{}`), 0o644))

	outputs, err = e.ItemOutputs(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, outputs.QCReportPath)
}

func TestItemArtifactsListV1ListsFilesSortedByPath(t *testing.T) {
	e := newTestEngine(t)
	itemID := "item-1"

	asrDir, err := e.tree.ItemSubsystemDir(itemID, "asr")
	require.NoError(t, err)
	require.NoError(t, artifacts.WriteAtomic(filepath.Join(asrDir, "source.json"), []byte(`{}`), 0o644))

	qcDir, err := e.tree.ItemSubsystemDir(itemID, "qc")
	require.NoError(t, err)
	require.NoError(t, artifacts.WriteAtomic(filepath.Join(qcDir, "report.json"), []byte(`{}`), 0o644))

	files, err := e.ItemArtifactsListV1(itemID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "asr/source.json", files[0].RelPath)
	require.Equal(t, "qc/report.json", files[1].RelPath)
}

func TestItemArtifactsListV1ExcludesZeroByteFiles(t *testing.T) {
	e := newTestEngine(t)
	itemID := "item-1"

	ttsDir, err := e.tree.ItemSubsystemDir(itemID, "tts_preview/neural_v1")
	require.NoError(t, err)
	require.NoError(t, artifacts.WriteAtomic(filepath.Join(ttsDir, "manifest.json"), []byte(`{}`), 0o644))
	// a crash-interrupted partial write leaves a zero-byte file behind
	require.NoError(t, artifacts.WriteAtomic(filepath.Join(ttsDir, "segments", "seg_0000.wav"), nil, 0o644))

	files, err := e.ItemArtifactsListV1(itemID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "tts_preview/neural_v1/manifest.json", files[0].RelPath)
}

func TestSpeakersUpsertIsIdempotentByKey(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	name := "Narrator"
	_, err := e.SpeakersUpsert(ctx, "item-1", "spk0", &name, nil, nil)
	require.NoError(t, err)

	renamed := "Host"
	_, err = e.SpeakersUpsert(ctx, "item-1", "spk0", &renamed, nil, nil)
	require.NoError(t, err)

	speakers, err := e.SpeakersList(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, speakers, 1)
	require.Equal(t, "Host", *speakers[0].DisplayName)
}

func TestDiagnosticsInfoReportsCurrentSettings(t *testing.T) {
	e := newTestEngine(t)
	e.JobsRuntimeSettingsSet(6)

	info := e.DiagnosticsInfo()
	require.Equal(t, 6, info.MaxConcurrency)
	require.False(t, info.QueuePaused)
}

func TestToolsStatusReportsEveryKnownTool(t *testing.T) {
	e := newTestEngine(t)
	statuses := e.ToolsStatus()
	require.Len(t, statuses, len(toolNames))
}
