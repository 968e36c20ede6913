package artifacts

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ScratchWatcher notifies step code when a subprocess writes or renames a
// file into a job's scratch directory, so output validation doesn't have to
// poll the filesystem (adapted from ManuGH-xg2g's config/playlist watcher,
// repurposed here to watch per-job scratch directories instead).
type ScratchWatcher struct {
	watcher *fsnotify.Watcher
	Events  <-chan fsnotify.Event
	Errors  <-chan error
}

// WatchScratch starts watching a job's scratch directory for file writes.
// Callers must call Close when the step finishes.
func WatchScratch(t *Tree, jobID string) (*ScratchWatcher, error) {
	dir, err := t.JobScratchDir(jobID)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create scratch watcher for job %s: %w", jobID, err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch scratch dir %s: %w", dir, err)
	}
	return &ScratchWatcher{watcher: w, Events: w.Events, Errors: w.Errors}, nil
}

// Close stops the watcher.
func (w *ScratchWatcher) Close() error { return w.watcher.Close() }
