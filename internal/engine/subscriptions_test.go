package engine

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestSubscriptionsQueueRefreshGatesOnInterval(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	sub, err := e.SubscriptionsCreate(ctx, "https://youtube.com/c/example", "Example", "{}", nil, 60)
	require.NoError(t, err)

	// first refresh: never queued before, always due
	n, err := e.SubscriptionsQueueRefresh(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// immediately again: interval has not elapsed, nothing queued
	n, err = e.SubscriptionsQueueRefresh(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// an inactive subscription is never due
	require.NoError(t, e.SubscriptionsSetActive(ctx, sub.ID, false))
	n, err = e.SubscriptionsQueueRefresh(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSubscriptionsImportJSONUpsertsByURL(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	original, err := e.SubscriptionsCreate(ctx, "https://youtube.com/c/example", "Old Title", "{}", nil, 60)
	require.NoError(t, err)

	data, err := json.Marshal([]map[string]any{
		{"source_url": original.SourceURL, "title": "New Title", "folder_map": "{}", "refresh_interval_minutes": 120, "active": true},
		{"source_url": "https://youtube.com/c/new-channel", "title": "New Channel", "folder_map": "{}", "refresh_interval_minutes": 30, "active": true},
	})
	require.NoError(t, err)

	n, err := e.SubscriptionsImportJSON(ctx, data)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	subs, err := e.SubscriptionsList(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	updated, err := e.SubscriptionsGet(ctx, original.ID)
	require.NoError(t, err)
	require.Equal(t, "New Title", updated.Title)
	require.Equal(t, 120, updated.RefreshIntervalMinutes)
}

func TestImport4KVDPQueuesOneJobPerRecognizedFile(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, dir+"/episode1.mp4", "video")
	writeFile(t, dir+"/episode1.jpg", "thumbnail")
	writeFile(t, dir+"/notes.txt", "not media")

	n, err := e.Import4KVDP(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
