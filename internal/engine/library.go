package engine

import (
	"context"
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/pipeline/steps"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// LibraryList returns every imported library item, newest first.
func (e *Engine) LibraryList(ctx context.Context) ([]*models.LibraryItem, error) {
	return e.store.ListItems(ctx)
}

// LibraryGet returns one library item by id.
func (e *Engine) LibraryGet(ctx context.Context, itemID string) (*models.LibraryItem, error) {
	return e.store.GetItem(ctx, itemID)
}

// LibraryImportLocal enqueues an import_local job for a file already
// present on disk. The probe/thumbnail/insert work happens inside the job
// so import failures (missing file, unreadable media) surface through the
// normal job error channel rather than blocking the caller.
func (e *Engine) LibraryImportLocal(ctx context.Context, path string) (*models.Job, error) {
	if path == "" {
		return nil, engerr.Input("library_import_local: path is required")
	}
	title := filepath.Base(path)
	return e.enqueueJob(ctx, "import_local", nil, steps.ImportLocalParams{Path: path, Title: title})
}

// LibraryItemDelete removes a library item: its owned subtitle_tracks,
// item_speakers, and ingest_provenance rows are cascaded away, jobs that
// reference it keep their history with item_id blanked (spec §3
// "Ownership"), and its derived/items/<id> artifact tree is flushed.
// Refuses to delete while a queued/running job still references the item,
// the same disabled-button guard the §5 shared-resource policy leaves to
// callers — deleting out from under an in-flight job would orphan its
// open file handles mid-write.
func (e *Engine) LibraryItemDelete(ctx context.Context, itemID string) error {
	if _, err := e.store.GetItem(ctx, itemID); err != nil {
		return err
	}
	jobs, err := e.store.ListJobsByItem(ctx, itemID)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.Status == models.JobStatusQueued || job.Status == models.JobStatusRunning {
			return engerr.Precondition("library_delete: item %s has an active job %s (status %s)", itemID, job.ID, job.Status)
		}
	}
	if err := e.store.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	return e.tree.FlushItem(itemID)
}
