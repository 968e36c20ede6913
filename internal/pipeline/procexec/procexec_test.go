package procexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/engerr"
)

func TestRunCapturesStdout(t *testing.T) {
	result, err := Run(context.Background(), nil, t.TempDir(), "echo", "hello")
	require.NoError(t, err)
	require.Contains(t, string(result.Stdout), "hello")
}

func TestRunMissingToolReturnsPrecondition(t *testing.T) {
	_, err := Run(context.Background(), nil, t.TempDir(), "this-binary-does-not-exist-xyz")
	require.Error(t, err)
	require.Contains(t, err.Error(), "external tool missing")
}

func TestRunNonZeroExitReturnsSubprocessError(t *testing.T) {
	_, err := Run(context.Background(), nil, t.TempDir(), "sh", "-c", "echo oops 1>&2; exit 3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "oops")
}

func TestRunCancelViaFlagTerminatesChild(t *testing.T) {
	canceled := false
	go func() {
		time.Sleep(100 * time.Millisecond)
		canceled = true
	}()

	_, err := Run(context.Background(), func() bool { return canceled }, t.TempDir(), "sleep", "30")
	require.True(t, engerr.IsCanceled(err))
}

func TestRunCancelViaContextTerminatesChild(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, nil, t.TempDir(), "sleep", "30")
	require.True(t, engerr.IsCanceled(err))
}
