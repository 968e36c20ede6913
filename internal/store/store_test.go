package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "app.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenAppliesMigrationsIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.sqlite")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var count int
	require.NoError(t, s2.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &models.Job{
		ID:          "job-1",
		JobType:     "import_local",
		Status:      models.JobStatusQueued,
		ParamsJSON:  `{}`,
		CreatedAtMs: 1000,
		LogsPath:    "derived/jobs/job-1/run.jsonl",
	}
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusQueued, got.Status)
	require.Equal(t, float64(0), got.Progress)

	require.NoError(t, s.TransitionJob(ctx, "job-1", models.JobStatusRunning, 2000))
	got, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusRunning, got.Status)
	require.NotNil(t, got.StartedAtMs)
	require.Equal(t, int64(2000), *got.StartedAtMs)

	require.NoError(t, s.SetJobProgress(ctx, "job-1", 0.5))
	got, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, 0.5, got.Progress)

	require.NoError(t, s.FailJob(ctx, "job-1", "external tool missing: ffmpeg", 3000))
	got, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	require.Contains(t, *got.Error, "external tool missing")

	require.NoError(t, s.RequeueJob(ctx, "job-1"))
	got, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusQueued, got.Status)
	require.Nil(t, got.Error)
	require.Nil(t, got.StartedAtMs)
}

func TestGetJobNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListJobsByStatusOrdersByCreatedThenID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, j := range []*models.Job{
		{ID: "b", JobType: "asr_local", Status: models.JobStatusQueued, ParamsJSON: "{}", CreatedAtMs: 100},
		{ID: "a", JobType: "asr_local", Status: models.JobStatusQueued, ParamsJSON: "{}", CreatedAtMs: 100},
		{ID: "c", JobType: "asr_local", Status: models.JobStatusQueued, ParamsJSON: "{}", CreatedAtMs: 50},
	} {
		require.NoError(t, s.CreateJob(ctx, j))
	}

	jobs, err := s.ListJobsByStatus(ctx, models.JobStatusQueued)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	require.Equal(t, []string{"c", "a", "b"}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})
}

func TestTrackVersioningIsAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item := &models.LibraryItem{ID: "item-1", CreatedAtMs: 1, SourceType: models.SourceTypeLocal, MediaPath: "media/item-1.mp4", Title: "t"}
	require.NoError(t, s.CreateItem(ctx, item))

	v, err := s.NextTrackVersion(ctx, "item-1", models.TrackKindSource, "en")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	require.NoError(t, s.CreateTrack(ctx, &models.SubtitleTrack{
		ID: "track-1", ItemID: "item-1", Kind: models.TrackKindSource, Lang: "en",
		Format: models.CanonicalSubtitleFormat, Path: "derived/items/item-1/subtitle.source.en.v1.json",
		CreatedBy: "asr_local", Version: v, CreatedAtMs: 10,
	}))

	v2, err := s.NextTrackVersion(ctx, "item-1", models.TrackKindSource, "en")
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	require.NoError(t, s.CreateTrack(ctx, &models.SubtitleTrack{
		ID: "track-2", ItemID: "item-1", Kind: models.TrackKindSource, Lang: "en",
		Format: models.CanonicalSubtitleFormat, Path: "derived/items/item-1/subtitle.source.en.v2.json",
		CreatedBy: "user", Version: v2, CreatedAtMs: 20,
	}))

	latest, err := s.LatestTrack(ctx, "item-1", models.TrackKindSource, "en")
	require.NoError(t, err)
	require.Equal(t, "track-2", latest.ID)

	all, err := s.ListTracks(ctx, "item-1", models.TrackKindSource, "en")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSpeakerUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	name := "Narrator"
	require.NoError(t, s.UpsertSpeaker(ctx, &models.ItemSpeaker{ItemID: "item-1", SpeakerKey: "SPEAKER_00", DisplayName: &name}))

	voice := "voice-xyz"
	require.NoError(t, s.UpsertSpeaker(ctx, &models.ItemSpeaker{ItemID: "item-1", SpeakerKey: "SPEAKER_00", DisplayName: &name, TTSVoiceID: &voice}))

	speakers, err := s.ListSpeakers(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, speakers, 1)
	require.Equal(t, "voice-xyz", *speakers[0].TTSVoiceID)
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sub := &models.YouTubeSubscription{
		ID: "sub-1", SourceURL: "https://example.com/channel", Title: "Example Channel",
		RefreshIntervalMinutes: 60, Active: true,
	}
	require.NoError(t, s.CreateSubscription(ctx, sub))

	active, err := s.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, s.MarkSubscriptionQueued(ctx, "sub-1", 500))
	got, err := s.GetSubscription(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastQueuedAtMs)
	require.Equal(t, int64(500), *got.LastQueuedAtMs)

	require.NoError(t, s.SetSubscriptionActive(ctx, "sub-1", false))
	active, err = s.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 0)
}

func TestProvenanceIsAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordProvenance(ctx, &models.IngestProvenance{ItemID: "item-1", Provider: "youtube", SourceURL: "https://youtu.be/x", CreatedAtMs: 1}))
	require.NoError(t, s.RecordProvenance(ctx, &models.IngestProvenance{ItemID: "item-1", Provider: "user_reimport", SourceURL: "https://youtu.be/x", CreatedAtMs: 2}))

	entries, err := s.ListProvenance(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "youtube", entries[0].Provider)
}
