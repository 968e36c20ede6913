package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/pipeline/steps"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// FlushSummary reports how many terminal jobs a jobs_flush_cache call
// removed (rows, logs, artifact folders, scratch, and cache entries).
type FlushSummary struct {
	JobsRemoved int `json:"jobs_removed"`
}

// QueueControl mirrors the paused flag surfaced by
// jobs_queue_control_{get,set}.
type QueueControl struct {
	Paused bool `json:"paused"`
}

// RuntimeSettings mirrors the tunables surfaced by
// jobs_runtime_settings_{get,set}.
type RuntimeSettings struct {
	MaxConcurrency int `json:"max_concurrency"`
}

// enqueueJob builds, persists, and announces a new queued job, marshaling
// params to the job's params_json column. itemID is nil for item-less job
// types (e.g. youtube_yt_dlp_v1 before any item exists yet).
func (e *Engine) enqueueJob(ctx context.Context, jobType string, itemID *string, params any) (*models.Job, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", jobType, err)
	}

	id := uuid.NewString()
	job := &models.Job{
		ID:          id,
		ItemID:      itemID,
		JobType:     jobType,
		Status:      models.JobStatusQueued,
		ParamsJSON:  string(raw),
		CreatedAtMs: time.Now().UnixMilli(),
		LogsPath:    e.tree.JobLogPath(id),
	}
	if err := e.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	e.controller.NotifyJobQueued()
	return job, nil
}

// JobsList returns jobs ordered oldest-first, honoring a limit/offset
// window over the full result set (spec §6 jobs_list(limit,offset)). There
// is no single-status store accessor for "every job" because jobs is the
// one table status-filtered accessors cover completely; list-all unions
// every status and re-sorts by creation order.
func (e *Engine) JobsList(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	var all []*models.Job
	for _, status := range []models.JobStatus{
		models.JobStatusQueued, models.JobStatusRunning,
		models.JobStatusSucceeded, models.JobStatusFailed, models.JobStatusCanceled,
	} {
		jobs, err := e.store.ListJobsByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		all = append(all, jobs...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAtMs != all[j].CreatedAtMs {
			return all[i].CreatedAtMs < all[j].CreatedAtMs
		}
		return all[i].ID < all[j].ID
	})

	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// JobsCancel requests cooperative cancellation of a queued or running job.
func (e *Engine) JobsCancel(ctx context.Context, jobID string) error {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case models.JobStatusQueued:
		return e.store.TransitionJob(ctx, jobID, models.JobStatusCanceled, time.Now().UnixMilli())
	case models.JobStatusRunning:
		e.controller.Cancel(jobID)
		return nil
	default:
		return engerr.Precondition("jobs_cancel: job %s is already in terminal state %s", jobID, job.Status)
	}
}

// JobsRetry re-enqueues a failed or canceled job, preserving step_state.json.
func (e *Engine) JobsRetry(ctx context.Context, jobID string) error {
	return e.controller.Retry(ctx, jobID)
}

// JobsCancelAll cancels every queued/running job and returns how many were
// affected.
func (e *Engine) JobsCancelAll(ctx context.Context) (int, error) {
	return e.controller.CancelAll(ctx)
}

// JobsFlushCache removes every terminal job's row, logs, artifact folder,
// and scratch directory. Active (queued/running) jobs are never touched
// (spec §4.2 "flush-cache semantics").
func (e *Engine) JobsFlushCache(ctx context.Context) (FlushSummary, error) {
	removed := 0
	for _, status := range []models.JobStatus{
		models.JobStatusSucceeded, models.JobStatusFailed, models.JobStatusCanceled,
	} {
		jobs, err := e.store.ListJobsByStatus(ctx, status)
		if err != nil {
			return FlushSummary{}, err
		}
		for _, job := range jobs {
			if err := e.tree.FlushJob(job.ID); err != nil {
				return FlushSummary{JobsRemoved: removed}, err
			}
			if err := e.store.DeleteJob(ctx, job.ID); err != nil {
				return FlushSummary{JobsRemoved: removed}, err
			}
			removed++
		}
	}
	return FlushSummary{JobsRemoved: removed}, nil
}

// JobsQueueControlGet reports whether admission is currently paused.
func (e *Engine) JobsQueueControlGet() QueueControl {
	return QueueControl{Paused: e.controller.Paused()}
}

// JobsQueueControlSet pauses or resumes admission.
func (e *Engine) JobsQueueControlSet(paused bool) QueueControl {
	e.controller.SetPaused(paused)
	return e.JobsQueueControlGet()
}

// JobsRuntimeSettingsGet reports the current worker concurrency limit.
func (e *Engine) JobsRuntimeSettingsGet() RuntimeSettings {
	return RuntimeSettings{MaxConcurrency: e.controller.MaxConcurrency()}
}

// JobsRuntimeSettingsSet applies a new worker concurrency limit, clamped
// to [1,16] (spec §4.4).
func (e *Engine) JobsRuntimeSettingsSet(maxConcurrency int) RuntimeSettings {
	return RuntimeSettings{MaxConcurrency: e.controller.SetMaxConcurrency(maxConcurrency)}
}

// --- jobs_enqueue_<type> wrappers, one per registered job_type. ---

func (e *Engine) JobsEnqueueDownloadDirectURL(ctx context.Context, p steps.DownloadDirectURLParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "download_direct_url", nil, p)
}

func (e *Engine) JobsEnqueueYouTubeYtDlp(ctx context.Context, p steps.YouTubeYtDlpParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "youtube_yt_dlp_v1", nil, p)
}

func (e *Engine) JobsEnqueueDownloadImageBatch(ctx context.Context, p steps.DownloadImageBatchParams) (*models.Job, error) {
	if len(p.StartURLs) > 1500 {
		return nil, engerr.Input("jobs_enqueue_download_image_batch: %d start URLs exceeds the 1500 batch limit", len(p.StartURLs))
	}
	return e.enqueueJob(ctx, "download_image_batch", nil, p)
}

func (e *Engine) JobsEnqueueASRLocal(ctx context.Context, p steps.ASRLocalParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "asr_local", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueTranslateLocal(ctx context.Context, p steps.TranslateLocalParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "translate_local", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueDiarizeLocalV1(ctx context.Context, p steps.DiarizeLocalV1Params) (*models.Job, error) {
	return e.enqueueJob(ctx, "diarize_local_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueSeparateAudioSpleeter(ctx context.Context, p steps.SeparateAudioParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "separate_audio_spleeter", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueSeparateAudioDemucsV1(ctx context.Context, p steps.SeparateAudioParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "separate_audio_demucs_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueCleanVocalsV1(ctx context.Context, p steps.CleanVocalsV1Params) (*models.Job, error) {
	return e.enqueueJob(ctx, "clean_vocals_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueTTSPreviewPyttsx3V1(ctx context.Context, p steps.TTSPreviewParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "tts_preview_pyttsx3_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueTTSNeuralLocalV1(ctx context.Context, p steps.TTSPreviewParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "tts_neural_local_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueDubVoicePreservingV1(ctx context.Context, p steps.TTSPreviewParams) (*models.Job, error) {
	return e.enqueueJob(ctx, "dub_voice_preserving_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueMixDubPreviewV1(ctx context.Context, p steps.MixDubPreviewV1Params) (*models.Job, error) {
	return e.enqueueJob(ctx, "mix_dub_preview_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueMuxDubPreviewV1(ctx context.Context, p steps.MuxDubPreviewV1Params) (*models.Job, error) {
	return e.enqueueJob(ctx, "mux_dub_preview_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueQCReportV1(ctx context.Context, p steps.QCReportV1Params) (*models.Job, error) {
	return e.enqueueJob(ctx, "qc_report_v1", &p.ItemID, p)
}

func (e *Engine) JobsEnqueueExportPackV1(ctx context.Context, p steps.ExportPackV1Params) (*models.Job, error) {
	return e.enqueueJob(ctx, "export_pack_v1", &p.ItemID, p)
}
