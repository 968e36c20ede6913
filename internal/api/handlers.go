package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/engine"
	"github.com/Nuntissura/voxvulgi/internal/pipeline/steps"
	"github.com/Nuntissura/voxvulgi/internal/subtitle"
)

// Handler bundles the engine handle every route delegates to.
type Handler struct {
	engine *engine.Engine
}

// NewHandler builds a Handler over an already-started engine.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- library ---

// ListLibrary handles GET /v1/library
func (h *Handler) ListLibrary(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.LibraryList(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// GetLibraryItem handles GET /v1/library/{id}
func (h *Handler) GetLibraryItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.engine.LibraryGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// ImportLocal handles POST /v1/library/import_local
func (h *Handler) ImportLocal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := h.engine.LibraryImportLocal(r.Context(), req.Path)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

// DeleteLibraryItem handles DELETE /v1/library/{id}
func (h *Handler) DeleteLibraryItem(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.LibraryItemDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- jobs ---

// ListJobs handles GET /v1/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)
	jobs, err := h.engine.JobsList(r.Context(), limit, offset)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

// CancelJob handles POST /v1/jobs/{id}/cancel
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.JobsCancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

// RetryJob handles POST /v1/jobs/{id}/retry
func (h *Handler) RetryJob(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.JobsRetry(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// CancelAllJobs handles POST /v1/jobs/cancel_all
func (h *Handler) CancelAllJobs(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.JobsCancelAll(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"canceled": n})
}

// FlushJobCache handles POST /v1/jobs/flush_cache
func (h *Handler) FlushJobCache(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.JobsFlushCache(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetQueueControl handles GET /v1/jobs/queue_control
func (h *Handler) GetQueueControl(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.JobsQueueControlGet())
}

// SetQueueControl handles PUT /v1/jobs/queue_control
func (h *Handler) SetQueueControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, h.engine.JobsQueueControlSet(req.Paused))
}

// GetRuntimeSettings handles GET /v1/jobs/runtime_settings
func (h *Handler) GetRuntimeSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.JobsRuntimeSettingsGet())
}

// SetRuntimeSettings handles PUT /v1/jobs/runtime_settings
func (h *Handler) SetRuntimeSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxConcurrency int `json:"max_concurrency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, h.engine.JobsRuntimeSettingsSet(req.MaxConcurrency))
}

// enqueueJSON decodes a params body into dst then calls enqueue, replying
// with the created job. Every jobs_enqueue_<type> route shares this
// decode/call/respond shape and differs only in params type and which
// engine method it calls.
func enqueueJSON(w http.ResponseWriter, r *http.Request, dst any, enqueue func() (any, error)) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	job, err := enqueue()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

func (h *Handler) EnqueueDownloadDirectURL(w http.ResponseWriter, r *http.Request) {
	var p steps.DownloadDirectURLParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueDownloadDirectURL(r.Context(), p) })
}

func (h *Handler) EnqueueYouTubeYtDlp(w http.ResponseWriter, r *http.Request) {
	var p steps.YouTubeYtDlpParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueYouTubeYtDlp(r.Context(), p) })
}

func (h *Handler) EnqueueDownloadImageBatch(w http.ResponseWriter, r *http.Request) {
	var p steps.DownloadImageBatchParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueDownloadImageBatch(r.Context(), p) })
}

func (h *Handler) EnqueueASRLocal(w http.ResponseWriter, r *http.Request) {
	var p steps.ASRLocalParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueASRLocal(r.Context(), p) })
}

func (h *Handler) EnqueueTranslateLocal(w http.ResponseWriter, r *http.Request) {
	var p steps.TranslateLocalParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueTranslateLocal(r.Context(), p) })
}

func (h *Handler) EnqueueDiarizeLocalV1(w http.ResponseWriter, r *http.Request) {
	var p steps.DiarizeLocalV1Params
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueDiarizeLocalV1(r.Context(), p) })
}

func (h *Handler) EnqueueSeparateAudioSpleeter(w http.ResponseWriter, r *http.Request) {
	var p steps.SeparateAudioParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueSeparateAudioSpleeter(r.Context(), p) })
}

func (h *Handler) EnqueueSeparateAudioDemucsV1(w http.ResponseWriter, r *http.Request) {
	var p steps.SeparateAudioParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueSeparateAudioDemucsV1(r.Context(), p) })
}

func (h *Handler) EnqueueCleanVocalsV1(w http.ResponseWriter, r *http.Request) {
	var p steps.CleanVocalsV1Params
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueCleanVocalsV1(r.Context(), p) })
}

func (h *Handler) EnqueueTTSPreviewPyttsx3V1(w http.ResponseWriter, r *http.Request) {
	var p steps.TTSPreviewParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueTTSPreviewPyttsx3V1(r.Context(), p) })
}

func (h *Handler) EnqueueTTSNeuralLocalV1(w http.ResponseWriter, r *http.Request) {
	var p steps.TTSPreviewParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueTTSNeuralLocalV1(r.Context(), p) })
}

func (h *Handler) EnqueueDubVoicePreservingV1(w http.ResponseWriter, r *http.Request) {
	var p steps.TTSPreviewParams
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueDubVoicePreservingV1(r.Context(), p) })
}

func (h *Handler) EnqueueMixDubPreviewV1(w http.ResponseWriter, r *http.Request) {
	var p steps.MixDubPreviewV1Params
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueMixDubPreviewV1(r.Context(), p) })
}

func (h *Handler) EnqueueMuxDubPreviewV1(w http.ResponseWriter, r *http.Request) {
	var p steps.MuxDubPreviewV1Params
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueMuxDubPreviewV1(r.Context(), p) })
}

func (h *Handler) EnqueueQCReportV1(w http.ResponseWriter, r *http.Request) {
	var p steps.QCReportV1Params
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueQCReportV1(r.Context(), p) })
}

func (h *Handler) EnqueueExportPackV1(w http.ResponseWriter, r *http.Request) {
	var p steps.ExportPackV1Params
	enqueueJSON(w, r, &p, func() (any, error) { return h.engine.JobsEnqueueExportPackV1(r.Context(), p) })
}

// --- subtitles ---

// ListSubtitleTracks handles GET /v1/library/{id}/subtitle_tracks
func (h *Handler) ListSubtitleTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.engine.SubtitlesListTracks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

// LoadSubtitleTrack handles GET /v1/subtitle_tracks/{trackId}
func (h *Handler) LoadSubtitleTrack(w http.ResponseWriter, r *http.Request) {
	doc, err := h.engine.SubtitlesLoadTrack(r.Context(), chi.URLParam(r, "trackId"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// SaveSubtitleTrackVersion handles POST /v1/subtitle_tracks/{trackId}/versions
func (h *Handler) SaveSubtitleTrackVersion(w http.ResponseWriter, r *http.Request) {
	var doc subtitle.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	track, err := h.engine.SubtitlesSaveNewVersion(r.Context(), chi.URLParam(r, "trackId"), &doc)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, track)
}

// ExportSubtitleSRT handles POST /v1/subtitle_tracks/export_srt
func (h *Handler) ExportSubtitleSRT(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Document subtitle.Document `json:"document"`
		OutPath  string            `json:"out_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.SubtitlesExportDocSRT(&req.Document, req.OutPath); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "written", "path": req.OutPath})
}

// ExportSubtitleVTT handles POST /v1/subtitle_tracks/export_vtt
func (h *Handler) ExportSubtitleVTT(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Document subtitle.Document `json:"document"`
		OutPath  string            `json:"out_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.SubtitlesExportDocVTT(&req.Document, req.OutPath); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "written", "path": req.OutPath})
}

// --- speakers ---

// ListSpeakers handles GET /v1/library/{id}/speakers
func (h *Handler) ListSpeakers(w http.ResponseWriter, r *http.Request) {
	speakers, err := h.engine.SpeakersList(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, speakers)
}

// UpsertSpeaker handles PUT /v1/library/{id}/speakers
func (h *Handler) UpsertSpeaker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpeakerKey          string  `json:"speaker_key"`
		DisplayName         *string `json:"display_name,omitempty"`
		TTSVoiceID          *string `json:"tts_voice_id,omitempty"`
		TTSVoiceProfilePath *string `json:"tts_voice_profile_path,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sp, err := h.engine.SpeakersUpsert(r.Context(), chi.URLParam(r, "id"), req.SpeakerKey, req.DisplayName, req.TTSVoiceID, req.TTSVoiceProfilePath)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sp)
}

// --- item outputs / artifacts ---

// GetItemOutputs handles GET /v1/library/{id}/outputs
func (h *Handler) GetItemOutputs(w http.ResponseWriter, r *http.Request) {
	outputs, err := h.engine.ItemOutputs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outputs)
}

// ListItemArtifacts handles GET /v1/library/{id}/artifacts
func (h *Handler) ListItemArtifacts(w http.ResponseWriter, r *http.Request) {
	files, err := h.engine.ItemArtifactsListV1(chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, files)
}

// ExportMuxPreview handles POST /v1/library/{id}/export_mux_preview
func (h *Handler) ExportMuxPreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutPath string `json:"out_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.ItemExportMuxPreviewMP4(chi.URLParam(r, "id"), req.OutPath); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "written", "path": req.OutPath})
}

// --- subscriptions ---

// ListSubscriptions handles GET /v1/subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.engine.SubscriptionsList(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

// CreateSubscription handles POST /v1/subscriptions
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceURL              string  `json:"source_url"`
		Title                  string  `json:"title"`
		FolderMap              string  `json:"folder_map"`
		OutputDirOverride      *string `json:"output_dir_override,omitempty"`
		RefreshIntervalMinutes int     `json:"refresh_interval_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub, err := h.engine.SubscriptionsCreate(r.Context(), req.SourceURL, req.Title, req.FolderMap, req.OutputDirOverride, req.RefreshIntervalMinutes)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// GetSubscription handles GET /v1/subscriptions/{id}
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.engine.SubscriptionsGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// SetSubscriptionActive handles PUT /v1/subscriptions/{id}/active
func (h *Handler) SetSubscriptionActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.SubscriptionsSetActive(r.Context(), chi.URLParam(r, "id"), req.Active); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteSubscription handles DELETE /v1/subscriptions/{id}
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.SubscriptionsDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QueueRefreshSubscriptions handles POST /v1/subscriptions/queue_refresh
// An empty "id" query param refreshes every active, due subscription.
func (h *Handler) QueueRefreshSubscriptions(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	n, err := h.engine.SubscriptionsQueueRefresh(r.Context(), id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"queued": n})
}

// ExportSubscriptions handles GET /v1/subscriptions/export
func (h *Handler) ExportSubscriptions(w http.ResponseWriter, r *http.Request) {
	data, err := h.engine.SubscriptionsExportJSON(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImportSubscriptions handles POST /v1/subscriptions/import
func (h *Handler) ImportSubscriptions(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	n, err := h.engine.SubscriptionsImportJSON(r.Context(), data)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// Import4KVDP handles POST /v1/subscriptions/import_4kvdp
func (h *Handler) Import4KVDP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir string `json:"dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	n, err := h.engine.Import4KVDP(r.Context(), req.Dir)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"queued": n})
}

// --- diagnostics ---

// DiagnosticsInfo handles GET /v1/diagnostics/info
func (h *Handler) DiagnosticsInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.DiagnosticsInfo())
}

// ToolsStatus handles GET /v1/diagnostics/tools
func (h *Handler) ToolsStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.ToolsStatus())
}

// ToolsInstall handles POST /v1/diagnostics/tools/{name}/install
func (h *Handler) ToolsInstall(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ToolsInstall(chi.URLParam(r, "name")); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "installed"})
}

// ModelsInventory handles GET /v1/diagnostics/models
func (h *Handler) ModelsInventory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.ModelsInventory()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// ModelsInstall handles POST /v1/diagnostics/models/{name}/install
func (h *Handler) ModelsInstall(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ModelsInstall(chi.URLParam(r, "name")); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "installed"})
}

// --- shared helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondEngineError maps an engerr.Category to the matching HTTP status,
// so every route shares one error-to-response translation.
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if engerr.IsCanceled(err) {
		status = http.StatusConflict
	} else if engerr.IsTransient(err) {
		status = http.StatusServiceUnavailable
	} else if ee, ok := err.(*engerr.Error); ok {
		switch ee.Category {
		case engerr.CategoryInput:
			status = http.StatusBadRequest
		case engerr.CategoryPrecondition:
			status = http.StatusConflict
		case engerr.CategorySubprocess:
			status = http.StatusBadGateway
		}
	}
	respondError(w, status, err.Error())
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
