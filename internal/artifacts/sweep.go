package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Nuntissura/voxvulgi/internal/applog"
)

const (
	logRotateSize    = 50 * 1024 * 1024 // 50MB per spec §4.2
	logRotateBackups = 3
	pruneAge         = 30 * 24 * time.Hour
	dirCapBytes      = 1 << 30 // 1GB
	sweepInterval    = 10 * time.Minute
)

// StartSweeper launches a background goroutine that rotates oversized job
// logs, prunes artifacts older than 30 days, and evicts oldest-first once
// the derived/ tree exceeds its 1GB cap. Engine.Start launches it right
// after the runner's dispatcher, on its own goroutine, so it never runs on
// the startup critical path (spec §4.2).
func StartSweeper(ctx context.Context, t *Tree) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			runSweep(t)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func runSweep(t *Tree) {
	log := applog.Base()

	if err := rotateJobLogs(t); err != nil {
		log.Warn().Err(err).Msg("artifacts.sweep.rotate_failed")
	}
	if err := pruneOldArtifacts(t); err != nil {
		log.Warn().Err(err).Msg("artifacts.sweep.prune_failed")
	}
	if err := enforceDirCap(t); err != nil {
		log.Warn().Err(err).Msg("artifacts.sweep.cap_failed")
	}
}

// rotateJobLogs renames run.jsonl to run.jsonl.1, .2, .3 (dropping the
// oldest) whenever a job's current log exceeds logRotateSize, mirroring
// standard logrotate numbering.
func rotateJobLogs(t *Tree) error {
	entries, err := os.ReadDir(t.JobsRoot())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list job dirs: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		logPath := t.JobLogPath(e.Name())
		info, err := os.Stat(logPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", logPath, err)
		}
		if info.Size() < logRotateSize {
			continue
		}
		if err := rotateOne(logPath); err != nil {
			return err
		}
	}
	return nil
}

func rotateOne(logPath string) error {
	oldest := fmt.Sprintf("%s.%d", logPath, logRotateBackups)
	_ = os.Remove(oldest)
	for i := logRotateBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", logPath, i)
		to := fmt.Sprintf("%s.%d", logPath, i+1)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, to); err != nil {
				return fmt.Errorf("rotate %s: %w", from, err)
			}
		}
	}
	return os.Rename(logPath, logPath+".1")
}

// pruneOldArtifacts removes item and job directories whose newest file is
// older than pruneAge.
func pruneOldArtifacts(t *Tree) error {
	cutoff := time.Now().Add(-pruneAge)
	for _, root := range []string{t.ItemsRoot(), t.JobsRoot()} {
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(root, e.Name())
			newest, err := newestModTime(dir)
			if err != nil {
				continue
			}
			if newest.Before(cutoff) {
				_ = os.RemoveAll(dir)
			}
		}
	}
	return nil
}

func newestModTime(dir string) (time.Time, error) {
	var newest time.Time
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, err
}

// dirEntry pairs a path with its total size and its newest file's modtime,
// used to pick eviction order.
type dirEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// enforceDirCap removes whole item/job directories, oldest-first by
// modtime, until the derived/ tree is back under its 1GB cap. Eviction is
// best-effort: a directory that fails to be removed is skipped silently and
// left for the next sweep, never surfaced to the runner.
func enforceDirCap(t *Tree) error {
	var entries []dirEntry
	total := int64(0)

	for _, root := range []string{t.ItemsRoot(), t.JobsRoot()} {
		children, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", root, err)
		}
		for _, c := range children {
			if !c.IsDir() {
				continue
			}
			dir := filepath.Join(root, c.Name())
			size, err := dirSize(dir)
			if err != nil {
				continue
			}
			modTime, _ := newestModTime(dir)
			entries = append(entries, dirEntry{path: dir, size: size, modTime: modTime})
			total += size
		}
	}

	if total <= dirCapBytes {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })

	for _, e := range entries {
		if total <= dirCapBytes {
			break
		}
		if err := os.RemoveAll(e.path); err != nil {
			continue
		}
		total -= e.size
	}
	return nil
}

func dirSize(dir string) (int64, error) {
	var size int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
