package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
// Passed from main.go so the router can configure CORS and auth from env vars.
type RouterConfig struct {
	// BackendAPIKey is the key that must be provided in X-API-Key or Authorization: Bearer <key>.
	// If empty, auth middleware is skipped (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS: restrict origins when configured, otherwise allow all (dev mode)
	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check — public, no auth required
	r.Get("/health", h.Health)

	// API routes — protected by API key auth
	r.Route("/v1", func(r chi.Router) {
		// Apply auth middleware only to /v1 routes
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		// Library
		r.Get("/library", h.ListLibrary)
		r.Post("/library/import_local", h.ImportLocal)
		r.Get("/library/{id}", h.GetLibraryItem)
		r.Delete("/library/{id}", h.DeleteLibraryItem)
		r.Get("/library/{id}/outputs", h.GetItemOutputs)
		r.Get("/library/{id}/artifacts", h.ListItemArtifacts)
		r.Post("/library/{id}/export_mux_preview", h.ExportMuxPreview)
		r.Get("/library/{id}/subtitle_tracks", h.ListSubtitleTracks)
		r.Get("/library/{id}/speakers", h.ListSpeakers)
		r.Put("/library/{id}/speakers", h.UpsertSpeaker)

		// Subtitle tracks
		r.Get("/subtitle_tracks/{trackId}", h.LoadSubtitleTrack)
		r.Post("/subtitle_tracks/{trackId}/versions", h.SaveSubtitleTrackVersion)
		r.Post("/subtitle_tracks/export_srt", h.ExportSubtitleSRT)
		r.Post("/subtitle_tracks/export_vtt", h.ExportSubtitleVTT)

		// Jobs
		r.Get("/jobs", h.ListJobs)
		r.Post("/jobs/{id}/cancel", h.CancelJob)
		r.Post("/jobs/{id}/retry", h.RetryJob)
		r.Post("/jobs/cancel_all", h.CancelAllJobs)
		r.Post("/jobs/flush_cache", h.FlushJobCache)
		r.Get("/jobs/queue_control", h.GetQueueControl)
		r.Put("/jobs/queue_control", h.SetQueueControl)
		r.Get("/jobs/runtime_settings", h.GetRuntimeSettings)
		r.Put("/jobs/runtime_settings", h.SetRuntimeSettings)

		// Job enqueue — one route per registered job_type
		r.Post("/jobs/enqueue/download_direct_url", h.EnqueueDownloadDirectURL)
		r.Post("/jobs/enqueue/youtube_yt_dlp_v1", h.EnqueueYouTubeYtDlp)
		r.Post("/jobs/enqueue/download_image_batch", h.EnqueueDownloadImageBatch)
		r.Post("/jobs/enqueue/asr_local", h.EnqueueASRLocal)
		r.Post("/jobs/enqueue/translate_local", h.EnqueueTranslateLocal)
		r.Post("/jobs/enqueue/diarize_local_v1", h.EnqueueDiarizeLocalV1)
		r.Post("/jobs/enqueue/separate_audio_spleeter", h.EnqueueSeparateAudioSpleeter)
		r.Post("/jobs/enqueue/separate_audio_demucs_v1", h.EnqueueSeparateAudioDemucsV1)
		r.Post("/jobs/enqueue/clean_vocals_v1", h.EnqueueCleanVocalsV1)
		r.Post("/jobs/enqueue/tts_preview_pyttsx3_v1", h.EnqueueTTSPreviewPyttsx3V1)
		r.Post("/jobs/enqueue/tts_neural_local_v1", h.EnqueueTTSNeuralLocalV1)
		r.Post("/jobs/enqueue/dub_voice_preserving_v1", h.EnqueueDubVoicePreservingV1)
		r.Post("/jobs/enqueue/mix_dub_preview_v1", h.EnqueueMixDubPreviewV1)
		r.Post("/jobs/enqueue/mux_dub_preview_v1", h.EnqueueMuxDubPreviewV1)
		r.Post("/jobs/enqueue/qc_report_v1", h.EnqueueQCReportV1)
		r.Post("/jobs/enqueue/export_pack_v1", h.EnqueueExportPackV1)

		// Subscriptions
		r.Get("/subscriptions", h.ListSubscriptions)
		r.Post("/subscriptions", h.CreateSubscription)
		r.Get("/subscriptions/export", h.ExportSubscriptions)
		r.Post("/subscriptions/import", h.ImportSubscriptions)
		r.Post("/subscriptions/import_4kvdp", h.Import4KVDP)
		r.Post("/subscriptions/queue_refresh", h.QueueRefreshSubscriptions)
		r.Get("/subscriptions/{id}", h.GetSubscription)
		r.Put("/subscriptions/{id}/active", h.SetSubscriptionActive)
		r.Delete("/subscriptions/{id}", h.DeleteSubscription)

		// Diagnostics
		r.Get("/diagnostics/info", h.DiagnosticsInfo)
		r.Get("/diagnostics/tools", h.ToolsStatus)
		r.Post("/diagnostics/tools/{name}/install", h.ToolsInstall)
		r.Get("/diagnostics/models", h.ModelsInventory)
		r.Post("/diagnostics/models/{name}/install", h.ModelsInstall)
	})

	return r
}
