package engine

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Nuntissura/voxvulgi/internal/engerr"
)

// DiagnosticsInfo is a point-in-time snapshot of engine health, for a
// host-side "about"/support panel.
type DiagnosticsInfo struct {
	AppDataDir     string `json:"app_data_dir"`
	GoVersion      string `json:"go_version"`
	OS             string `json:"os"`
	Arch           string `json:"arch"`
	MaxConcurrency int    `json:"max_concurrency"`
	QueuePaused    bool   `json:"queue_paused"`
}

// DiagnosticsInfo reports process/runtime metadata and the current queue
// state, for spec §6 diagnostics_info.
func (e *Engine) DiagnosticsInfo() DiagnosticsInfo {
	return DiagnosticsInfo{
		AppDataDir:     e.cfg.AppDataDir,
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		MaxConcurrency: e.controller.MaxConcurrency(),
		QueuePaused:    e.controller.Paused(),
	}
}

// toolNames is the fixed set of external tools the pipeline depends on
// (spec §6's "tools_*_status/install" family), matching config's
// defaultToolPaths keys.
var toolNames = []string{
	"ffmpeg", "ffprobe", "yt-dlp",
	"asr-cli", "translate-cli", "diarize-cli", "separate-cli", "tts-cli",
	"python",
}

// ToolStatus reports whether one external tool is resolvable on PATH (or
// via a configured override) right now.
type ToolStatus struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
}

// ToolsStatus reports resolvability for every known external tool.
func (e *Engine) ToolsStatus() []ToolStatus {
	out := make([]ToolStatus, 0, len(toolNames))
	for _, name := range toolNames {
		path := e.cfg.ToolPath(name)
		_, err := exec.LookPath(path)
		out = append(out, ToolStatus{Name: name, Path: path, Available: err == nil})
	}
	return out
}

// pipInstallableTools are the local Python CLI entry points this engine's
// steps invoke, which tools_*_install can bootstrap via `pip install` — as
// opposed to ffmpeg/ffprobe/yt-dlp, which are system packages a local pip
// install cannot provide.
var pipInstallableTools = map[string]string{
	"asr-cli":       "voxvulgi-asr",
	"translate-cli": "voxvulgi-translate",
	"diarize-cli":   "voxvulgi-diarize",
	"separate-cli":  "voxvulgi-separate",
	"tts-cli":       "voxvulgi-tts",
}

// ToolsInstall bootstraps one of the local Python CLI tools via pip. It is
// a synchronous, user-initiated action — the runner itself never installs
// dependencies silently (spec §9).
func (e *Engine) ToolsInstall(name string) error {
	pkg, ok := pipInstallableTools[name]
	if !ok {
		return engerr.Precondition("tools_install: %s has no bootstrap installer; install it via your system package manager", name)
	}
	python := e.cfg.ToolPath("python")
	cmd := exec.Command(python, "-m", "pip", "install", "--user", pkg)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return engerr.Wrap(engerr.CategorySubprocess, err, "pip install %s", pkg)
	}
	return nil
}

// ModelEntry describes one locally-cached model asset.
type ModelEntry struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// modelsDir returns the app-data directory local pipelines cache
// downloaded model weights under.
func (e *Engine) modelsDir() string {
	return filepath.Join(e.cfg.AppDataDir, "models")
}

// ModelsInventory lists every model asset currently cached on disk, one
// entry per top-level subdirectory of the models cache.
func (e *Engine) ModelsInventory() ([]ModelEntry, error) {
	entries, err := os.ReadDir(e.modelsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, engerr.Wrap(engerr.CategoryInput, err, "read models dir")
	}

	out := make([]ModelEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		size, err := dirSize(filepath.Join(e.modelsDir(), entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, ModelEntry{Name: entry.Name(), SizeBytes: size})
	}
	return out, nil
}

// ModelsInstall is a placeholder bootstrap hook: model weights are large,
// provider-specific downloads outside this spec's scope, so this records
// intent (creating the named model's cache directory) rather than
// fetching anything — a host wires the actual fetch once a model
// provider is chosen.
func (e *Engine) ModelsInstall(name string) error {
	if strings.TrimSpace(name) == "" {
		return engerr.Input("models_install: name is required")
	}
	return os.MkdirAll(filepath.Join(e.modelsDir(), name), 0o755)
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, engerr.Wrap(engerr.CategoryInput, err, "measure model dir %s", root)
	}
	return total, nil
}
