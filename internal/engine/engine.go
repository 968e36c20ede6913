// Package engine is the single explicit handle over the job engine: the
// store, the derived artifact tree, the admission controller, the runner's
// worker pool, and the registered step catalog. Every command spec.md §6
// names is a method here; internal/api exposes each as an HTTP route over
// a loopback-only listener so an out-of-process UI shell can drive it.
package engine

import (
	"context"
	"fmt"

	"github.com/Nuntissura/voxvulgi/internal/artifacts"
	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/pipeline/steps"
	"github.com/Nuntissura/voxvulgi/internal/queue"
	"github.com/Nuntissura/voxvulgi/internal/runner"
	"github.com/Nuntissura/voxvulgi/internal/store"
)

// Engine bundles every dependency a Core API command needs.
type Engine struct {
	cfg        *config.Config
	store      *store.Store
	tree       *artifacts.Tree
	controller *queue.Controller
	registry   *runner.Registry
	runner     *runner.Runner
}

// New opens the store, roots the artifact tree, recovers orphaned jobs,
// registers the step catalog, and constructs the runner — everything
// short of starting the dispatcher goroutine (see Start).
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tree, err := artifacts.NewTree(cfg.AppDataDir)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create artifact tree: %w", err)
	}

	ctl, err := queue.New(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create queue controller: %w", err)
	}
	ctl.SetMaxConcurrency(cfg.MaxConcurrency)

	reg := runner.NewRegistry()
	steps.Register(reg, cfg)

	run := runner.New(st, tree, ctl, reg)

	return &Engine{
		cfg:        cfg,
		store:      st,
		tree:       tree,
		controller: ctl,
		registry:   reg,
		runner:     run,
	}, nil
}

// Start launches the runner's dispatcher and the artifact sweeper. It
// returns immediately; callers block on Wait for graceful shutdown.
func (e *Engine) Start(ctx context.Context) {
	e.runner.Start(ctx)
	artifacts.StartSweeper(ctx, e.tree)
}

// Wait blocks until the runner's dispatcher and every in-flight worker
// have returned (driven by the ctx passed to Start being canceled).
func (e *Engine) Wait() {
	e.runner.Wait()
}

// Close releases the store's database handle. Call after Wait returns.
func (e *Engine) Close() error {
	return e.store.Close()
}
