package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.AppDataDir)
	require.Equal(t, 4, cfg.MaxConcurrency)
	require.Equal(t, "ffmpeg", cfg.ToolPath("ffmpeg"))
	require.Equal(t, "python3", cfg.ToolPath("python"))
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VOXVULGI_MAX_CONCURRENCY", "9")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.MaxConcurrency)
}

func TestPythonExeOverrideFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "python_exe.txt"), []byte("/usr/local/bin/python3.11\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin/python3.11", cfg.ToolPath("python"))
}

func TestDiagnosticsTraceDirFallsBackWhenNoOverride(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "logs", "traces"), cfg.DiagnosticsTraceDir())
}

func TestDiagnosticsTraceDirHonorsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "diagnostics_trace_dir.txt"), []byte("/tmp/traces\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "/tmp/traces", cfg.DiagnosticsTraceDir())
}

func TestUnknownToolPathFallsBackToName(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "whatever", cfg.ToolPath("whatever"))
}
