package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTreePathBuilders(t *testing.T) {
	root := t.TempDir()
	tree, err := NewTree(root)
	require.NoError(t, err)

	itemDir, err := tree.ItemDir("item-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "derived", "items", "item-1"), itemDir)
	require.DirExists(t, itemDir)

	subsysDir, err := tree.ItemSubsystemDir("item-1", "subtitles")
	require.NoError(t, err)
	require.DirExists(t, subsysDir)

	jobDir, err := tree.JobDir("job-1")
	require.NoError(t, err)
	require.DirExists(t, jobDir)

	scratchDir, err := tree.JobScratchDir("job-1")
	require.NoError(t, err)
	require.DirExists(t, scratchDir)
	require.Equal(t, filepath.Join(jobDir, "scratch"), scratchDir)

	archivePath, err := tree.SubscriptionArchivePath("sub-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "derived", "subscriptions", "sub-1", "archive.txt"), archivePath)
	require.DirExists(t, filepath.Dir(archivePath))
}

func TestWriteAtomicProducesReadableFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "nested", "step_state.json")

	require.NoError(t, WriteAtomic(path, []byte(`{"done":["probe"]}`), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"done":["probe"]}`, string(data))
}

func TestStepStateRoundTrip(t *testing.T) {
	root := t.TempDir()
	tree, err := NewTree(root)
	require.NoError(t, err)

	state, err := LoadStepState(tree, "job-1")
	require.NoError(t, err)
	require.False(t, state.IsDone("probe"))

	require.NoError(t, state.MarkDone(tree, "job-1", "probe"))
	require.True(t, state.IsDone("probe"))

	reloaded, err := LoadStepState(tree, "job-1")
	require.NoError(t, err)
	require.True(t, reloaded.IsDone("probe"))
	require.False(t, reloaded.IsDone("asr"))
}

func TestFlushJobRemovesDirectory(t *testing.T) {
	root := t.TempDir()
	tree, err := NewTree(root)
	require.NoError(t, err)

	jobDir, err := tree.JobDir("job-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "run.jsonl"), []byte("{}"), 0o644))

	require.NoError(t, tree.FlushJob("job-1"))
	require.NoDirExists(t, jobDir)
}

func TestPruneOldArtifactsRemovesStaleDirs(t *testing.T) {
	root := t.TempDir()
	tree, err := NewTree(root)
	require.NoError(t, err)

	staleDir, err := tree.ItemDir("stale-item")
	require.NoError(t, err)
	stalePath := filepath.Join(staleDir, "probe.json")
	require.NoError(t, os.WriteFile(stalePath, []byte("{}"), 0o644))
	old := time.Now().Add(-60 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(stalePath, old, old))
	require.NoError(t, os.Chtimes(staleDir, old, old))

	freshDir, err := tree.ItemDir("fresh-item")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(freshDir, "probe.json"), []byte("{}"), 0o644))

	require.NoError(t, pruneOldArtifacts(tree))

	require.NoDirExists(t, staleDir)
	require.DirExists(t, freshDir)
}
