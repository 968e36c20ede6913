// Command voxvulgid runs the VoxVulgi job engine and its loopback-only
// Core API: a durable, resumable pipeline for importing media, running
// ASR/translation/diarization/dubbing steps, and editing the resulting
// subtitle tracks, all driven over HTTP by an out-of-process UI shell.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Nuntissura/voxvulgi/internal/api"
	"github.com/Nuntissura/voxvulgi/internal/applog"
	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engine"
)

func main() {
	log := applog.Base()

	appDataDir, err := resolveAppDataDir()
	if err != nil {
		log.Fatal().Err(err).Msg("resolve app data dir")
	}

	cfg, err := config.Load(appDataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log.Info().Str("app_data_dir", appDataDir).Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("construct engine")
	}
	eng.Start(ctx)
	log.Info().Int("max_concurrency", cfg.MaxConcurrency).Msg("engine started")

	handler := api.NewHandler(eng)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})
	if cfg.BackendAPIKey != "" {
		log.Info().Msg("API key authentication enabled")
	} else {
		log.Warn().Msg("no API key configured — relying on loopback binding alone")
	}

	listener, err := net.Listen("tcp", cfg.APIAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.APIAddr).Msg("bind API listener")
	}
	server := &http.Server{Handler: router}

	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("Core API listening")
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server forced shutdown")
	}

	eng.Wait()
	if err := eng.Close(); err != nil {
		log.Error().Err(err).Msg("close engine store")
	}
	log.Info().Msg("shutdown complete")
}

// resolveAppDataDir honors VOXVULGI_APP_DATA_DIR, falling back to the
// platform-standard per-user config directory.
func resolveAppDataDir() (string, error) {
	if dir := os.Getenv("VOXVULGI_APP_DATA_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "voxvulgi"), nil
}
