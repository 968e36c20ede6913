// Package config loads engine configuration: .env-backed environment
// variables plus the small set of app-data override files spec.md §6
// names (config/python_exe.txt, config/diagnostics_trace_dir.txt,
// config/glossary.json).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the process-wide settings resolved once at startup.
type Config struct {
	// AppDataDir is the platform-standard per-user directory containing
	// db/, derived/, logs/, cache/, tools/, config/ (spec §6).
	AppDataDir string

	// APIAddr is the loopback address the Core API listens on.
	APIAddr string

	// MaxConcurrency is the initial worker pool size (overridable at
	// runtime via jobs_runtime_settings_set, spec §6).
	MaxConcurrency int

	// CorsAllowedOrigins is a comma-separated list of UI shell origins
	// allowed to call the loopback API (empty = every origin allowed).
	CorsAllowedOrigins string

	// BackendAPIKey, when set, gates every /v1 route behind an
	// X-API-Key/Bearer check. Empty disables the check, since the API
	// already binds loopback-only.
	BackendAPIKey string

	// toolPaths holds resolved external-tool binary names/paths, keyed by
	// logical tool name (ffmpeg, ffprobe, yt-dlp, asr-cli, ...).
	toolPaths map[string]string
}

// Load reads .env (if present) and the app-data override files, returning
// a Config ready for engine construction.
func Load(appDataDir string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppDataDir:         appDataDir,
		APIAddr:            getEnv("VOXVULGI_API_ADDR", "127.0.0.1:0"),
		MaxConcurrency:     getEnvInt("VOXVULGI_MAX_CONCURRENCY", 4),
		CorsAllowedOrigins: getEnv("VOXVULGI_CORS_ALLOWED_ORIGINS", ""),
		BackendAPIKey:      getEnv("VOXVULGI_API_KEY", ""),
		toolPaths:          defaultToolPaths(),
	}

	if err := cfg.applyPythonExeOverride(); err != nil {
		return nil, fmt.Errorf("apply python exe override: %w", err)
	}

	return cfg, nil
}

func defaultToolPaths() map[string]string {
	return map[string]string{
		"ffmpeg":        "ffmpeg",
		"ffprobe":       "ffprobe",
		"yt-dlp":        "yt-dlp",
		"asr-cli":       "voxvulgi-asr",
		"translate-cli": "voxvulgi-translate",
		"diarize-cli":   "voxvulgi-diarize",
		"separate-cli":  "voxvulgi-separate",
		"tts-cli":       "voxvulgi-tts",
		"python":        "python3",
	}
}

// ToolPath returns the binary name or path to invoke for a logical tool
// name, honoring the python_exe.txt override for "python" specifically
// (spec §6: "highest-priority override for toolchain").
func (c *Config) ToolPath(name string) string {
	if path, ok := c.toolPaths[name]; ok {
		return path
	}
	return name
}

// applyPythonExeOverride reads config/python_exe.txt, if present, and
// overrides the "python" tool path with its (trimmed) contents.
func (c *Config) applyPythonExeOverride() error {
	path := filepath.Join(c.ConfigDir(), "python_exe.txt")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if exe := strings.TrimSpace(string(data)); exe != "" {
		c.toolPaths["python"] = exe
	}
	return nil
}

// ConfigDir returns the app-data config/ directory.
func (c *Config) ConfigDir() string { return filepath.Join(c.AppDataDir, "config") }

// DBPath returns the app-data db/app.sqlite path.
func (c *Config) DBPath() string { return filepath.Join(c.AppDataDir, "db", "app.sqlite") }

// DiagnosticsTraceDir returns the configured trace output directory,
// reading config/diagnostics_trace_dir.txt if present, else a default
// under the app-data logs/ directory.
func (c *Config) DiagnosticsTraceDir() string {
	path := filepath.Join(c.ConfigDir(), "diagnostics_trace_dir.txt")
	data, err := os.ReadFile(path)
	if err == nil {
		if dir := strings.TrimSpace(string(data)); dir != "" {
			return dir
		}
	}
	return filepath.Join(c.AppDataDir, "logs", "traces")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
