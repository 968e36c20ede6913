package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/pipeline/steps"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

func TestJobsEnqueueAndListOrdersByCreation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job1, err := e.JobsEnqueueYouTubeYtDlp(ctx, steps.YouTubeYtDlpParams{URL: "https://example.com/a"})
	require.NoError(t, err)
	job2, err := e.JobsEnqueueYouTubeYtDlp(ctx, steps.YouTubeYtDlpParams{URL: "https://example.com/b"})
	require.NoError(t, err)

	jobs, err := e.JobsList(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, job1.ID, jobs[0].ID)
	require.Equal(t, job2.ID, jobs[1].ID)
	require.Equal(t, models.JobStatusQueued, jobs[0].Status)
}

func TestJobsListHonorsLimitAndOffset(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.JobsEnqueueYouTubeYtDlp(ctx, steps.YouTubeYtDlpParams{URL: "https://example.com"})
		require.NoError(t, err)
	}

	page, err := e.JobsList(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)

	all, err := e.JobsList(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, all[1].ID, page[0].ID)
	require.Equal(t, all[2].ID, page[1].ID)
}

func TestJobsEnqueueDownloadImageBatchRejectsOversizedBatch(t *testing.T) {
	e := newTestEngine(t)
	urls := make([]string, 1501)
	for i := range urls {
		urls[i] = "https://example.com/img.png"
	}
	_, err := e.JobsEnqueueDownloadImageBatch(context.Background(), steps.DownloadImageBatchParams{StartURLs: urls})
	require.Error(t, err)
}

func TestJobsCancelQueuedJobTransitionsDirectly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.JobsEnqueueYouTubeYtDlp(ctx, steps.YouTubeYtDlpParams{URL: "https://example.com"})
	require.NoError(t, err)

	require.NoError(t, e.JobsCancel(ctx, job.ID))

	got, err := e.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCanceled, got.Status)
}

func TestJobsCancelTerminalJobFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.JobsEnqueueYouTubeYtDlp(ctx, steps.YouTubeYtDlpParams{URL: "https://example.com"})
	require.NoError(t, err)
	require.NoError(t, e.JobsCancel(ctx, job.ID))

	err = e.JobsCancel(ctx, job.ID)
	require.Error(t, err)
}

func TestJobsFlushCachePreservesActiveJobs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	queued, err := e.JobsEnqueueYouTubeYtDlp(ctx, steps.YouTubeYtDlpParams{URL: "https://example.com/queued"})
	require.NoError(t, err)
	canceled, err := e.JobsEnqueueYouTubeYtDlp(ctx, steps.YouTubeYtDlpParams{URL: "https://example.com/canceled"})
	require.NoError(t, err)
	require.NoError(t, e.JobsCancel(ctx, canceled.ID))

	summary, err := e.JobsFlushCache(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.JobsRemoved)

	_, err = e.store.GetJob(ctx, canceled.ID)
	require.Error(t, err)
	_, err = e.store.GetJob(ctx, queued.ID)
	require.NoError(t, err)
}

func TestJobsRuntimeSettingsSetClamps(t *testing.T) {
	e := newTestEngine(t)

	require.Equal(t, 1, e.JobsRuntimeSettingsSet(0).MaxConcurrency)
	require.Equal(t, 16, e.JobsRuntimeSettingsSet(99).MaxConcurrency)
	require.Equal(t, 16, e.JobsRuntimeSettingsGet().MaxConcurrency)
}

func TestJobsQueueControlSetRoundTrips(t *testing.T) {
	e := newTestEngine(t)

	require.False(t, e.JobsQueueControlGet().Paused)
	require.True(t, e.JobsQueueControlSet(true).Paused)
	require.True(t, e.JobsQueueControlGet().Paused)
}
