package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/artifacts"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
	"github.com/Nuntissura/voxvulgi/internal/subtitle"
)

// seedTrack inserts a library item plus one source-track version 1 with a
// real on-disk JSON document, returning the track.
func seedTrack(t *testing.T, e *Engine) *models.SubtitleTrack {
	t.Helper()
	ctx := context.Background()

	item := &models.LibraryItem{ID: "item-1", SourceType: models.SourceTypeLocal, Title: "clip", MediaPath: "/media/clip.mp4", CreatedAtMs: 1}
	require.NoError(t, e.store.CreateItem(ctx, item))

	doc := subtitle.NewDocument(subtitle.KindSource, "en")
	doc.Segments = []subtitle.Segment{{StartMs: 0, EndMs: 1000, Text: "hello"}}
	doc.Normalize()
	data, err := subtitle.EncodeJSON(doc)
	require.NoError(t, err)

	dir, err := e.tree.ItemSubsystemDir(item.ID, "subtitles")
	require.NoError(t, err)
	path := filepath.Join(dir, "en.v1.json")
	require.NoError(t, artifacts.WriteAtomic(path, data, 0o644))

	track := &models.SubtitleTrack{
		ID: "track-1", ItemID: item.ID, Kind: models.TrackKindSource, Lang: "en",
		Format: models.CanonicalSubtitleFormat, Path: path, CreatedBy: "asr_local", Version: 1, CreatedAtMs: 1,
	}
	require.NoError(t, e.store.CreateTrack(ctx, track))
	return track
}

func TestSubtitlesLoadTrackDecodesDocument(t *testing.T) {
	e := newTestEngine(t)
	track := seedTrack(t, e)

	doc, err := e.SubtitlesLoadTrack(context.Background(), track.ID)
	require.NoError(t, err)
	require.Equal(t, "en", doc.Lang)
	require.Len(t, doc.Segments, 1)
	require.Equal(t, "hello", doc.Segments[0].Text)
}

func TestSubtitlesSaveNewVersionIncrementsVersionAndKeepsOldFile(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	track := seedTrack(t, e)

	doc, err := e.SubtitlesLoadTrack(ctx, track.ID)
	require.NoError(t, err)
	doc.Segments[0].Text = "edited"

	newTrack, err := e.SubtitlesSaveNewVersion(ctx, track.ID, doc)
	require.NoError(t, err)
	require.Equal(t, 2, newTrack.Version)
	require.NotEqual(t, track.ID, newTrack.ID)
	require.FileExists(t, newTrack.Path)

	// the version-1 document is untouched
	original, err := e.SubtitlesLoadTrack(ctx, track.ID)
	require.NoError(t, err)
	require.Equal(t, "hello", original.Segments[0].Text)

	updated, err := e.SubtitlesLoadTrack(ctx, newTrack.ID)
	require.NoError(t, err)
	require.Equal(t, "edited", updated.Segments[0].Text)
}

func TestSubtitlesListTracksReturnsAllVersions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	track := seedTrack(t, e)

	doc, err := e.SubtitlesLoadTrack(ctx, track.ID)
	require.NoError(t, err)
	_, err = e.SubtitlesSaveNewVersion(ctx, track.ID, doc)
	require.NoError(t, err)

	tracks, err := e.SubtitlesListTracks(ctx, track.ItemID)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
}
