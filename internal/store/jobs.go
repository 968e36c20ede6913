package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("not found")

// CreateJob inserts a new job row in the queued state. The caller assigns
// ID and CreatedAtMs before calling.
func (s *Store) CreateJob(ctx context.Context, job *models.Job) error {
	const q = `
		INSERT INTO jobs (
			id, item_id, batch_id, job_type, status, progress, error,
			params_json, created_at_ms, started_at_ms, finished_at_ms, logs_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q,
		job.ID, job.ItemID, job.BatchID, job.JobType, job.Status, job.Progress,
		job.Error, job.ParamsJSON, job.CreatedAtMs, job.StartedAtMs, job.FinishedAtMs, job.LogsPath,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func scanJob(row interface {
	Scan(dest ...any) error
}) (*models.Job, error) {
	var j models.Job
	err := row.Scan(
		&j.ID, &j.ItemID, &j.BatchID, &j.JobType, &j.Status, &j.Progress,
		&j.Error, &j.ParamsJSON, &j.CreatedAtMs, &j.StartedAtMs, &j.FinishedAtMs, &j.LogsPath,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

const jobColumns = `
	id, item_id, batch_id, job_type, status, progress, error,
	params_json, created_at_ms, started_at_ms, finished_at_ms, logs_path
`

// GetJob returns one job by id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListJobsByItem returns every job against one library item, oldest first.
func (s *Store) ListJobsByItem(ctx context.Context, itemID string) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE item_id = ? ORDER BY created_at_ms, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for item %s: %w", itemID, err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListJobsByBatch returns every job in a batch, oldest first.
func (s *Store) ListJobsByBatch(ctx context.Context, batchID string) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE batch_id = ? ORDER BY created_at_ms, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for batch %s: %w", batchID, err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListJobsByStatus returns every job in the given status, in FIFO admission
// order (created_at_ms then id — spec §4.4's tie-break rule).
func (s *Store) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at_ms, id`, status)
	if err != nil {
		return nil, fmt.Errorf("list jobs by status %s: %w", status, err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]*models.Job, error) {
	var out []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// TransitionJob moves a job to a new status inside a transaction, stamping
// started_at_ms/finished_at_ms as appropriate. Together with FailJob and
// RequeueJob it is the only way job rows change status (SPEC_FULL.md C4).
func (s *Store) TransitionJob(ctx context.Context, id string, status models.JobStatus, nowMs int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		switch status {
		case models.JobStatusRunning:
			_, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ?, started_at_ms = ? WHERE id = ?`, status, nowMs, id)
			return err
		case models.JobStatusSucceeded, models.JobStatusFailed, models.JobStatusCanceled:
			_, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ?, finished_at_ms = ? WHERE id = ?`, status, nowMs, id)
			return err
		default:
			_, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, status, id)
			return err
		}
	})
}

// SetJobProgress updates a job's fractional progress (0..1), coalesced by
// the caller to roughly twice a second per spec §4.2.
func (s *Store) SetJobProgress(ctx context.Context, id string, progress float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET progress = ? WHERE id = ?`, progress, id)
	if err != nil {
		return fmt.Errorf("set job progress %s: %w", id, err)
	}
	return nil
}

// FailJob marks a job failed with an error message.
func (s *Store) FailJob(ctx context.Context, id, errMsg string, nowMs int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, error = ?, finished_at_ms = ? WHERE id = ?`,
			models.JobStatusFailed, errMsg, nowMs, id,
		)
		return err
	})
}

// RequeueJob resets a failed or canceled job back to queued, clearing its
// error and timing fields, for spec §6's retry command.
func (s *Store) RequeueJob(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, error = NULL, progress = 0, started_at_ms = NULL, finished_at_ms = NULL WHERE id = ?`,
			models.JobStatusQueued, id,
		)
		return err
	})
}

// DeleteJob removes a job row (used by artifact cache flush for terminal jobs).
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}
