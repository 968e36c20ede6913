// Package artifacts manages the on-disk derived artifact tree (spec §4.2):
// a deterministic, composable directory structure under derived/items/<id>
// and derived/jobs/<id>, plus the background sweeps that keep it bounded
// (log rotation, age pruning, size-cap eviction).
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"
)

// Tree roots every artifact path at a single app-data directory, so step
// code never hand-assembles paths relative to the working directory.
type Tree struct {
	root string
}

// NewTree returns a Tree rooted at root, creating the top-level derived/
// directories if absent.
func NewTree(root string) (*Tree, error) {
	t := &Tree{root: root}
	for _, dir := range []string{t.ItemsRoot(), t.JobsRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
		}
	}
	return t, nil
}

// Root returns the app-data root directory.
func (t *Tree) Root() string { return t.root }

// ItemsRoot returns derived/items.
func (t *Tree) ItemsRoot() string { return filepath.Join(t.root, "derived", "items") }

// JobsRoot returns derived/jobs.
func (t *Tree) JobsRoot() string { return filepath.Join(t.root, "derived", "jobs") }

// ItemDir returns derived/items/<itemID>, creating it if absent.
func (t *Tree) ItemDir(itemID string) (string, error) {
	dir := filepath.Join(t.ItemsRoot(), itemID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create item dir %s: %w", itemID, err)
	}
	return dir, nil
}

// ItemSubsystemDir returns derived/items/<itemID>/<subsystem> (e.g.
// "stems", "subtitles", "qc"), creating it if absent.
func (t *Tree) ItemSubsystemDir(itemID, subsystem string) (string, error) {
	dir := filepath.Join(t.ItemsRoot(), itemID, subsystem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create item subsystem dir %s/%s: %w", itemID, subsystem, err)
	}
	return dir, nil
}

// JobDir returns derived/jobs/<jobID>, creating it if absent.
func (t *Tree) JobDir(jobID string) (string, error) {
	dir := filepath.Join(t.JobsRoot(), jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir %s: %w", jobID, err)
	}
	return dir, nil
}

// JobScratchDir returns derived/jobs/<jobID>/scratch, the working directory
// a step's subprocess writes intermediate files into before they're
// promoted to derived/items/<itemID>.
func (t *Tree) JobScratchDir(jobID string) (string, error) {
	dir := filepath.Join(t.JobsRoot(), jobID, "scratch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job scratch dir %s: %w", jobID, err)
	}
	return dir, nil
}

// SubscriptionArchivePath returns derived/subscriptions/<subscriptionID>/
// archive.txt, creating the parent directory if absent. yt-dlp owns the
// file's contents (one "<extractor> <id>" line per already-downloaded
// video); this just gives every subscription refresh a stable path to
// pass as its `--download-archive` so repeat refreshes skip videos
// already fetched.
func (t *Tree) SubscriptionArchivePath(subscriptionID string) (string, error) {
	dir := filepath.Join(t.root, "derived", "subscriptions", subscriptionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create subscription archive dir %s: %w", subscriptionID, err)
	}
	return filepath.Join(dir, "archive.txt"), nil
}

// JobLogPath returns the path to a job's run.jsonl log file.
func (t *Tree) JobLogPath(jobID string) string {
	return filepath.Join(t.JobsRoot(), jobID, "run.jsonl")
}

// JobStepStatePath returns the path to a job's step_state.json file.
func (t *Tree) JobStepStatePath(jobID string) string {
	return filepath.Join(t.JobsRoot(), jobID, "step_state.json")
}

// ArtifactFile describes one file under an item's derived artifact tree,
// as surfaced by the Core API's item_artifacts_list_v1 command.
type ArtifactFile struct {
	// RelPath is relative to derived/items/<itemID>, e.g. "asr/source.json".
	RelPath      string
	SizeBytes    int64
	ModifiedAtMs int64
}

// ListItemArtifacts walks an item's derived artifact subtree and returns
// every regular file found, sorted by relative path.
func (t *Tree) ListItemArtifacts(itemID string) ([]ArtifactFile, error) {
	root := filepath.Join(t.ItemsRoot(), itemID)
	var out []ArtifactFile
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		out = append(out, ArtifactFile{
			RelPath:      filepath.ToSlash(rel),
			SizeBytes:    info.Size(),
			ModifiedAtMs: info.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts for item %s: %w", itemID, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

// WriteAtomic writes data to path without ever leaving a torn file behind a
// crash mid-write — used for step_state.json and subtitle sidecar files.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	return nil
}
