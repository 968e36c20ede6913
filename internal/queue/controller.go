// Package queue implements job state-machine transitions and admission
// control (spec §4.4): the paused flag, configurable worker concurrency,
// FIFO job selection, startup recovery of orphaned running jobs, and the
// cancel/retry/cancel-all commands the Core API exposes.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nuntissura/voxvulgi/internal/applog"
	"github.com/Nuntissura/voxvulgi/internal/store"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

const (
	defaultMaxConcurrency = 4
	minMaxConcurrency     = 1
	maxMaxConcurrency     = 16
)

// Controller owns the admission predicate's mutable state: whether the
// queue is paused, and how many jobs may run concurrently. The runner's
// dispatcher goroutine blocks on Wait until state changes or a job
// reaches queued.
type Controller struct {
	store *store.Store

	mu             sync.Mutex
	cond           *sync.Cond
	paused         bool
	maxConcurrency int
	runningCount   int

	cancelFlags   map[string]*cancelFlag
	cancelFlagsMu sync.Mutex
}

type cancelFlag struct {
	mu        sync.Mutex
	requested bool
}

func (f *cancelFlag) Set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = true
}

func (f *cancelFlag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested
}

// New constructs a Controller and performs startup recovery: every row
// left `running` from a prior process (orphaned by definition) is
// re-queued before the first admission cycle runs (spec §4.4, §8).
func New(ctx context.Context, st *store.Store) (*Controller, error) {
	c := &Controller{
		store:          st,
		maxConcurrency: defaultMaxConcurrency,
		cancelFlags:    make(map[string]*cancelFlag),
	}
	c.cond = sync.NewCond(&c.mu)

	if err := c.recoverOrphanedJobs(ctx); err != nil {
		return nil, fmt.Errorf("recover orphaned jobs: %w", err)
	}
	return c, nil
}

func (c *Controller) recoverOrphanedJobs(ctx context.Context) error {
	running, err := c.store.ListJobsByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("list running jobs: %w", err)
	}
	log := applog.Base()
	for _, job := range running {
		if err := c.store.RequeueJob(ctx, job.ID); err != nil {
			return fmt.Errorf("requeue orphaned job %s: %w", job.ID, err)
		}
		log.Info().Str("job_id", job.ID).Msg("queue.recovery.requeued")
	}
	return nil
}

// Paused reports whether admission is currently paused.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetPaused pauses or resumes admission, waking the dispatcher.
func (c *Controller) SetPaused(paused bool) {
	c.mu.Lock()
	c.paused = paused
	c.mu.Unlock()
	c.cond.Broadcast()
}

// MaxConcurrency returns the current worker concurrency limit.
func (c *Controller) MaxConcurrency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxConcurrency
}

// SetMaxConcurrency clamps n to [1,16] and applies it, waking the dispatcher.
func (c *Controller) SetMaxConcurrency(n int) int {
	if n < minMaxConcurrency {
		n = minMaxConcurrency
	}
	if n > maxMaxConcurrency {
		n = maxMaxConcurrency
	}
	c.mu.Lock()
	c.maxConcurrency = n
	c.mu.Unlock()
	c.cond.Broadcast()
	return n
}

// CanAdmit reports whether the dispatcher may start another job right now.
func (c *Controller) CanAdmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.paused && c.runningCount < c.maxConcurrency
}

// MarkRunning increments the in-flight count; call once a job is admitted.
func (c *Controller) MarkRunning() {
	c.mu.Lock()
	c.runningCount++
	c.mu.Unlock()
}

// MarkFinished decrements the in-flight count and wakes the dispatcher so
// it can admit a replacement; call exactly once per MarkRunning.
func (c *Controller) MarkFinished() {
	c.mu.Lock()
	c.runningCount--
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Wait blocks until state changes (pause/concurrency/job-queued) or ctx is
// canceled. The dispatcher calls this when it finds nothing admissible.
func (c *Controller) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// Acquiring the lock here before broadcasting closes the lost-
			// wakeup window: c.mu can only be free once the waiter below
			// has either returned (ctx already canceled) or is inside
			// cond.Wait() (which atomically unlocks on entry), so this
			// broadcast can never fire before the waiter is registered to
			// receive it.
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	c.cond.Wait()
}

// NotifyJobQueued wakes the dispatcher when a new job becomes admissible
// (enqueue, retry, or requeue).
func (c *Controller) NotifyJobQueued() {
	c.cond.Broadcast()
}

// Cancel sets the per-job cancel flag, observable by step code and process
// adapters at their next check point (spec §5 cooperative cancellation).
func (c *Controller) Cancel(jobID string) {
	c.cancelFlagsMu.Lock()
	f, ok := c.cancelFlags[jobID]
	if !ok {
		f = &cancelFlag{}
		c.cancelFlags[jobID] = f
	}
	c.cancelFlagsMu.Unlock()
	f.Set()
}

// IsCanceled reports whether Cancel was called for jobID.
func (c *Controller) IsCanceled(jobID string) bool {
	c.cancelFlagsMu.Lock()
	f, ok := c.cancelFlags[jobID]
	c.cancelFlagsMu.Unlock()
	return ok && f.IsSet()
}

// ClearCancelFlag drops a job's cancel flag once it reaches a terminal
// state, so the map doesn't grow unbounded across the engine's lifetime.
func (c *Controller) ClearCancelFlag(jobID string) {
	c.cancelFlagsMu.Lock()
	delete(c.cancelFlags, jobID)
	c.cancelFlagsMu.Unlock()
}

// CancelAll marks every queued/running job canceled or flags it for
// cooperative cancellation, per spec §6's jobs_cancel_all.
func (c *Controller) CancelAll(ctx context.Context) (int, error) {
	count := 0
	for _, status := range []models.JobStatus{models.JobStatusQueued, models.JobStatusRunning} {
		jobs, err := c.store.ListJobsByStatus(ctx, status)
		if err != nil {
			return count, fmt.Errorf("list %s jobs: %w", status, err)
		}
		for _, job := range jobs {
			if status == models.JobStatusQueued {
				if err := c.store.TransitionJob(ctx, job.ID, models.JobStatusCanceled, nowMs()); err != nil {
					return count, fmt.Errorf("cancel queued job %s: %w", job.ID, err)
				}
			} else {
				c.Cancel(job.ID)
			}
			count++
		}
	}
	return count, nil
}

// Retry re-enqueues a failed or canceled job without touching its
// step_state.json, so already-completed steps are skipped on re-entry.
func (c *Controller) Retry(ctx context.Context, jobID string) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("retry job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusFailed && job.Status != models.JobStatusCanceled {
		return fmt.Errorf("retry job %s: status %s is not retryable", jobID, job.Status)
	}
	if err := c.store.RequeueJob(ctx, jobID); err != nil {
		return fmt.Errorf("retry job %s: %w", jobID, err)
	}
	c.ClearCancelFlag(jobID)
	c.NotifyJobQueued()
	return nil
}

func nowMs() int64 { return time.Now().UnixMilli() }
