package runner

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nuntissura/voxvulgi/internal/applog"
	"github.com/Nuntissura/voxvulgi/internal/artifacts"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/queue"
	"github.com/Nuntissura/voxvulgi/internal/store"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// progressCoalesceInterval bounds how often a job's progress row is
// written, per spec §4.5 ("progress writes are coalesced to at most ~2/s").
const progressCoalesceInterval = 500 * time.Millisecond

// Runner owns the dispatcher goroutine and the fixed worker pool that
// execute admitted jobs' step lists (spec §4.5, §5).
type Runner struct {
	store      *store.Store
	tree       *artifacts.Tree
	controller *queue.Controller
	registry   *Registry

	wg sync.WaitGroup
}

// New constructs a Runner wired to the given store, artifact tree,
// queue controller, and step registry.
func New(st *store.Store, tree *artifacts.Tree, ctl *queue.Controller, reg *Registry) *Runner {
	return &Runner{store: st, tree: tree, controller: ctl, registry: reg}
}

// Start launches the dispatcher goroutine, which admits queued jobs onto a
// fixed worker pool sized by the controller's max_concurrency. Start
// returns immediately; call Wait to block until ctx is canceled and all
// in-flight workers finish.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.dispatch(ctx)
}

// Wait blocks until the dispatcher and all in-flight job workers have
// returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) dispatch(ctx context.Context) {
	defer r.wg.Done()
	log := applog.Base()

	for {
		if ctx.Err() != nil {
			return
		}
		if !r.controller.CanAdmit() {
			r.controller.Wait(ctx)
			continue
		}

		job, err := r.nextAdmissibleJob(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("runner.dispatch.list_failed")
			r.controller.Wait(ctx)
			continue
		}
		if job == nil {
			r.controller.Wait(ctx)
			continue
		}

		r.controller.MarkRunning()
		r.wg.Add(1)
		go r.runJob(ctx, job)
	}
}

// nextAdmissibleJob returns the oldest queued job (FIFO by created_at_ms
// then id, spec §4.4), or nil if none are queued.
func (r *Runner) nextAdmissibleJob(ctx context.Context) (*models.Job, error) {
	jobs, err := r.store.ListJobsByStatus(ctx, models.JobStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

func (r *Runner) runJob(ctx context.Context, job *models.Job) {
	defer r.wg.Done()
	defer r.controller.MarkFinished()
	defer r.controller.ClearCancelFlag(job.ID)

	baseLog := applog.Base()
	nowMs := time.Now().UnixMilli()

	if err := r.store.TransitionJob(ctx, job.ID, models.JobStatusRunning, nowMs); err != nil {
		baseLog.Error().Err(err).Str("job_id", job.ID).Msg("runner.job.transition_running_failed")
		return
	}

	steps := r.registry.StepsFor(job.JobType)
	if steps == nil {
		_ = r.store.FailJob(ctx, job.ID, fmt.Sprintf("no steps registered for job_type %s", job.JobType), time.Now().UnixMilli())
		return
	}

	itemID := ""
	if job.ItemID != nil {
		itemID = *job.ItemID
	}

	if _, err := r.tree.JobDir(job.ID); err != nil {
		_ = r.store.FailJob(ctx, job.ID, fmt.Sprintf("create job dir: %v", err), time.Now().UnixMilli())
		return
	}

	jobLogFile, err := os.OpenFile(r.tree.JobLogPath(job.ID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		_ = r.store.FailJob(ctx, job.ID, fmt.Sprintf("open job log: %v", err), time.Now().UnixMilli())
		return
	}
	defer jobLogFile.Close()

	jobLogger := applog.ForJob(jobLogFile, job.ID, itemID)

	scratchDir, err := r.tree.JobScratchDir(job.ID)
	if err != nil {
		_ = r.store.FailJob(ctx, job.ID, fmt.Sprintf("create scratch dir: %v", err), time.Now().UnixMilli())
		return
	}

	stepState, err := artifacts.LoadStepState(r.tree, job.ID)
	if err != nil {
		_ = r.store.FailJob(ctx, job.ID, fmt.Sprintf("load step state: %v", err), time.Now().UnixMilli())
		return
	}

	runErr := r.runSteps(ctx, job, steps, stepState, jobLogger, scratchDir)

	if runErr != nil {
		if engerr.IsCanceled(runErr) {
			_ = r.store.TransitionJob(ctx, job.ID, models.JobStatusCanceled, time.Now().UnixMilli())
			jobLogger.Info().Str("event", "job.canceled").Msg("job canceled")
			r.deleteJobSecrets(scratchDir)
			return
		}
		_ = r.store.FailJob(ctx, job.ID, runErr.Error(), time.Now().UnixMilli())
		jobLogger.Error().Str("event", "job.failed").Err(runErr).Msg("job failed")
		r.deleteJobSecrets(scratchDir)
		return
	}

	_ = r.store.TransitionJob(ctx, job.ID, models.JobStatusSucceeded, time.Now().UnixMilli())
	_ = r.store.SetJobProgress(ctx, job.ID, 1)
	jobLogger.Info().Str("event", "job.succeeded").Msg("job succeeded")
	r.deleteJobSecrets(scratchDir)
}

// runSteps executes a job_type's step list in order, skipping steps whose
// outputs already validate (resumable re-entry, spec §4.5 step 1), and
// reports coalesced progress as each step's weighted contribution.
func (r *Runner) runSteps(ctx context.Context, job *models.Job, steps []Step, stepState *artifacts.StepState, jobLogger zerolog.Logger, scratchDir string) error {
	totalWeight := 0.0
	for _, s := range steps {
		totalWeight += s.Weight
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	completedWeight := 0.0

	isCanceled := func() bool { return r.controller.IsCanceled(job.ID) }

	// A step that fails with a Transient error is re-run, up to this many
	// attempts in total, before the job fails.
	const maxTransientAttempts = 3

	var lastProgressWrite time.Time
	reportProgress := func(stepWeight, fraction float64) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		overall := (completedWeight + fraction*stepWeight) / totalWeight
		if time.Since(lastProgressWrite) < progressCoalesceInterval && fraction < 1 {
			return
		}
		lastProgressWrite = time.Now()
		_ = r.store.SetJobProgress(ctx, job.ID, overall)
	}

	for _, step := range steps {
		if isCanceled() {
			return engerr.Canceled()
		}

		stepLogger := applog.Step(jobLogger, step.Name)

		ec := &ExecContext{
			Ctx:        ctx,
			Store:      r.store,
			Tree:       r.tree,
			Job:        job,
			Logger:     stepLogger,
			ScratchDir: scratchDir,
			IsCanceled: isCanceled,
			ReportProgress: func(fraction float64) {
				reportProgress(step.Weight, fraction)
			},
		}

		if stepState.IsDone(step.Name) {
			stepLogger.Info().Str("event", "step.skipped.resumable").Msg("step already complete")
			completedWeight += step.Weight
			reportProgress(0, 1)
			continue
		}

		if step.OutputsExist != nil {
			exists, err := step.OutputsExist(ec)
			if err != nil {
				return fmt.Errorf("check outputs for step %s: %w", step.Name, err)
			}
			if exists {
				stepLogger.Info().Str("event", "step.skipped.resumable").Msg("outputs already validate")
				if err := stepState.MarkDone(r.tree, job.ID, step.Name); err != nil {
					return fmt.Errorf("record step state for %s: %w", step.Name, err)
				}
				completedWeight += step.Weight
				reportProgress(0, 1)
				continue
			}
		}

		stepLogger.Info().Str("event", "step.started").Msg("step started")

		err := step.Run(ec)
		for attempt := 1; err != nil && engerr.IsTransient(err) && attempt < maxTransientAttempts && !isCanceled(); attempt++ {
			stepLogger.Warn().Str("event", "step.retry.transient").Err(err).Int("attempt", attempt).Msg("retrying step after transient error")
			err = step.Run(ec)
		}
		if err != nil {
			if engerr.IsCanceled(err) {
				return err
			}
			stepLogger.Error().Str("event", "step.failed").Err(err).Msg("step failed")
			return fmt.Errorf("step %s: %w", step.Name, err)
		}

		if err := stepState.MarkDone(r.tree, job.ID, step.Name); err != nil {
			return fmt.Errorf("record step state for %s: %w", step.Name, err)
		}
		completedWeight += step.Weight
		reportProgress(0, 1)
		stepLogger.Info().Str("event", "step.done").Msg("step done")
	}

	return nil
}

// deleteJobSecrets removes the job's scratch directory, which is where
// secrets (e.g. session cookies) are materialized for a job's duration —
// deleted on every terminal transition per spec §5.
func (r *Runner) deleteJobSecrets(scratchDir string) {
	_ = os.RemoveAll(scratchDir)
}
