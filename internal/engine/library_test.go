package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

func TestLibraryImportLocalEnqueuesJob(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.LibraryImportLocal(ctx, "/media/clip.mp4")
	require.NoError(t, err)
	require.Equal(t, "import_local", job.JobType)
	require.Equal(t, models.JobStatusQueued, job.Status)
}

func TestLibraryImportLocalRejectsEmptyPath(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.LibraryImportLocal(context.Background(), "")
	require.Error(t, err)
}

func TestLibraryListAndGet(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	item := &models.LibraryItem{ID: "item-1", SourceType: models.SourceTypeLocal, Title: "clip", MediaPath: "/media/clip.mp4", CreatedAtMs: 1}
	require.NoError(t, e.store.CreateItem(ctx, item))

	items, err := e.LibraryList(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	got, err := e.LibraryGet(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "clip", got.Title)
}

func TestLibraryItemDeleteCascadesOwnedRowsAndBlanksJobs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	item := &models.LibraryItem{ID: "item-1", SourceType: models.SourceTypeLocal, Title: "clip", MediaPath: "/media/clip.mp4", CreatedAtMs: 1}
	require.NoError(t, e.store.CreateItem(ctx, item))

	require.NoError(t, e.store.CreateTrack(ctx, &models.SubtitleTrack{
		ID: "track-1", ItemID: item.ID, Kind: models.TrackKindSource, Lang: "en",
		Format: models.CanonicalSubtitleFormat, Path: "source.json", CreatedBy: "asr_local", Version: 1, CreatedAtMs: 1,
	}))
	require.NoError(t, e.store.UpsertSpeaker(ctx, &models.ItemSpeaker{ItemID: item.ID, SpeakerKey: "spk_0"}))
	require.NoError(t, e.store.RecordProvenance(ctx, &models.IngestProvenance{ItemID: item.ID, Provider: "youtube", SourceURL: "https://example.com", CreatedAtMs: 1}))

	doneJob := &models.Job{ID: "job-done", ItemID: &item.ID, JobType: "asr_local", Status: models.JobStatusSucceeded, ParamsJSON: "{}", CreatedAtMs: 1}
	require.NoError(t, e.store.CreateJob(ctx, doneJob))

	require.NoError(t, e.LibraryItemDelete(ctx, item.ID))

	_, err := e.LibraryGet(ctx, item.ID)
	require.Error(t, err)

	tracks, err := e.store.ListTracksForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Empty(t, tracks)

	speakers, err := e.store.ListSpeakers(ctx, item.ID)
	require.NoError(t, err)
	require.Empty(t, speakers)

	prov, err := e.store.ListProvenance(ctx, item.ID)
	require.NoError(t, err)
	require.Empty(t, prov)

	gotJob, err := e.store.GetJob(ctx, doneJob.ID)
	require.NoError(t, err)
	require.Nil(t, gotJob.ItemID)
}

func TestLibraryItemDeleteRefusesWhileJobActive(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	item := &models.LibraryItem{ID: "item-1", SourceType: models.SourceTypeLocal, Title: "clip", MediaPath: "/media/clip.mp4", CreatedAtMs: 1}
	require.NoError(t, e.store.CreateItem(ctx, item))
	running := &models.Job{ID: "job-running", ItemID: &item.ID, JobType: "asr_local", Status: models.JobStatusRunning, ParamsJSON: "{}", CreatedAtMs: 1}
	require.NoError(t, e.store.CreateJob(ctx, running))

	err := e.LibraryItemDelete(ctx, item.ID)
	require.Error(t, err)

	_, getErr := e.LibraryGet(ctx, item.ID)
	require.NoError(t, getErr)
}
