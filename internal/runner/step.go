// Package runner implements the concurrency-limited worker pool and
// per-job-type step orchestrator (spec §4.5, C5): it admits queued jobs,
// runs each job's step list in order with resumable skip-on-match,
// coalesced progress reporting, and per-job structured logging.
package runner

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Nuntissura/voxvulgi/internal/artifacts"
	"github.com/Nuntissura/voxvulgi/internal/store"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// ExecContext bundles everything a Step's Run function needs: the store
// and artifact tree to read/write, the job/item identifiers, a logger
// already bound with job_id/item_id/step fields, and a cancellation check
// step code must poll at loop heads (spec §5).
type ExecContext struct {
	Ctx        context.Context
	Store      *store.Store
	Tree       *artifacts.Tree
	Job        *models.Job
	Logger     zerolog.Logger
	ScratchDir string
	IsCanceled func() bool

	// ReportProgress is called by step code with a fraction in [0,1] for
	// the step currently running; values outside are clamped by the
	// runner before it computes overall job progress.
	ReportProgress func(fraction float64)
}

// Step is a pure declaration of one unit of orchestrated work: its name,
// its progress weight, an outputs check used before Run to decide whether
// the step can be skipped on resume (spec §4.5 step 1), and its execution
// function. The outputs check is not repeated after Run.
type Step struct {
	// Name identifies the step within a job_type's step list; persisted in
	// step_state.json.
	Name string

	// Weight is this step's share of the job's overall progress. Weights
	// across one job_type's steps need not sum to 1; the runner
	// normalizes by total weight.
	Weight float64

	// OutputsExist reports whether this step's declared outputs already
	// exist and validate (non-empty file, JSON parses, checksum if
	// declared) — used to skip the step on a resumed job.
	OutputsExist func(ec *ExecContext) (bool, error)

	// Run executes the step. It must poll ec.IsCanceled() at loop heads
	// and return engerr.Canceled() (or a wrapped form of it) promptly when
	// set.
	Run func(ec *ExecContext) error
}

// Registry maps a job_type to its ordered step list.
type Registry struct {
	steps map[string][]Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string][]Step)}
}

// Register installs the step list for a job_type. Intended to be called
// once per job_type at startup wiring time.
func (r *Registry) Register(jobType string, steps []Step) {
	r.steps[jobType] = steps
}

// StepsFor returns the registered step list for a job_type, or nil if
// unregistered.
func (r *Registry) StepsFor(jobType string) []Step {
	return r.steps[jobType]
}
