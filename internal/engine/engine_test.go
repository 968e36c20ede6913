package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nuntissura/voxvulgi/internal/config"
)

// newTestEngine builds a fully wired Engine rooted at a temp app-data dir,
// without starting the dispatcher — enough to exercise every command
// method without a worker ever trying to invoke a missing external tool.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.MaxConcurrency = 2

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNewCreatesArtifactTreeUnderAppDataDir(t *testing.T) {
	e := newTestEngine(t)
	require.DirExists(t, e.tree.ItemsRoot())
	require.DirExists(t, e.tree.JobsRoot())
	require.FileExists(t, filepath.Join(e.cfg.AppDataDir, "db", "app.sqlite"))
}
