package artifacts

import (
	"fmt"
	"os"
)

// FlushJob removes a job's derived/jobs/<jobID> directory. Callers must
// only invoke this for jobs in a terminal state (succeeded/failed/
// canceled) — queued or running jobs are never touched by cache flush.
func (t *Tree) FlushJob(jobID string) error {
	dir, err := t.JobDir(jobID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("flush job dir %s: %w", jobID, err)
	}
	return nil
}

// FlushItem removes a library item's entire derived/items/<itemID> tree.
func (t *Tree) FlushItem(itemID string) error {
	dir, err := t.ItemDir(itemID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("flush item dir %s: %w", itemID, err)
	}
	return nil
}
