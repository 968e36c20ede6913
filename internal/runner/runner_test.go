package runner

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/artifacts"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/queue"
	"github.com/Nuntissura/voxvulgi/internal/store"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

func newTestHarness(t *testing.T) (*store.Store, *artifacts.Tree, *queue.Controller) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "app.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tree, err := artifacts.NewTree(t.TempDir())
	require.NoError(t, err)

	ctl, err := queue.New(context.Background(), st)
	require.NoError(t, err)

	return st, tree, ctl
}

func createQueuedJob(t *testing.T, st *store.Store, jobType string) *models.Job {
	t.Helper()
	job := &models.Job{
		ID:          uuid.NewString(),
		JobType:     jobType,
		Status:      models.JobStatusQueued,
		ParamsJSON:  "{}",
		CreatedAtMs: time.Now().UnixMilli(),
	}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

func waitForTerminal(t *testing.T, st *store.Store, jobID string) *models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := st.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		switch job.Status {
		case models.JobStatusSucceeded, models.JobStatusFailed, models.JobStatusCanceled:
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state in time", jobID)
	return nil
}

func TestRunnerExecutesStepsInOrderAndSucceeds(t *testing.T) {
	st, tree, ctl := newTestHarness(t)

	var mu sync.Mutex
	var order []string

	reg := NewRegistry()
	reg.Register("noop_two_step", []Step{
		{
			Name:   "first",
			Weight: 1,
			Run: func(ec *ExecContext) error {
				mu.Lock()
				order = append(order, "first")
				mu.Unlock()
				ec.ReportProgress(1)
				return nil
			},
		},
		{
			Name:   "second",
			Weight: 1,
			Run: func(ec *ExecContext) error {
				mu.Lock()
				order = append(order, "second")
				mu.Unlock()
				ec.ReportProgress(1)
				return nil
			},
		},
	})

	r := New(st, tree, ctl, reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	job := createQueuedJob(t, st, "noop_two_step")
	ctl.NotifyJobQueued()

	final := waitForTerminal(t, st, job.ID)
	require.Equal(t, models.JobStatusSucceeded, final.Status)
	require.Equal(t, 1.0, final.Progress)

	mu.Lock()
	require.Equal(t, []string{"first", "second"}, order)
	mu.Unlock()
}

func TestRunnerSkipsStepWhenOutputsAlreadyExist(t *testing.T) {
	st, tree, ctl := newTestHarness(t)

	var ran bool

	reg := NewRegistry()
	reg.Register("resumable_one_step", []Step{
		{
			Name:   "already_done",
			Weight: 1,
			OutputsExist: func(ec *ExecContext) (bool, error) {
				return true, nil
			},
			Run: func(ec *ExecContext) error {
				ran = true
				return nil
			},
		},
	})

	r := New(st, tree, ctl, reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	job := createQueuedJob(t, st, "resumable_one_step")
	ctl.NotifyJobQueued()

	final := waitForTerminal(t, st, job.ID)
	require.Equal(t, models.JobStatusSucceeded, final.Status)
	require.False(t, ran, "Run must not be called when OutputsExist reports true")
}

func TestRunnerPropagatesCancellation(t *testing.T) {
	st, tree, ctl := newTestHarness(t)

	started := make(chan struct{})

	reg := NewRegistry()
	reg.Register("cancelable_loop", []Step{
		{
			Name:   "poll_until_canceled",
			Weight: 1,
			Run: func(ec *ExecContext) error {
				close(started)
				for !ec.IsCanceled() {
					time.Sleep(5 * time.Millisecond)
				}
				return engerr.Canceled()
			},
		},
	})

	r := New(st, tree, ctl, reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	job := createQueuedJob(t, st, "cancelable_loop")
	ctl.NotifyJobQueued()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("step never started")
	}
	ctl.Cancel(job.ID)

	final := waitForTerminal(t, st, job.ID)
	require.Equal(t, models.JobStatusCanceled, final.Status)
}

func TestRunnerFailsJobOnUnregisteredJobType(t *testing.T) {
	st, tree, ctl := newTestHarness(t)
	reg := NewRegistry()

	r := New(st, tree, ctl, reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	job := createQueuedJob(t, st, "no_such_job_type")
	ctl.NotifyJobQueued()

	final := waitForTerminal(t, st, job.ID)
	require.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.Error)
}
