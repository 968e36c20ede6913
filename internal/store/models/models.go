// Package models holds the persisted entity types of the VoxVulgi store
// (spec.md §3), mirroring the teacher's one-struct-per-entity layout.
package models

// SourceType identifies how a LibraryItem entered the library.
type SourceType string

const (
	SourceTypeLocal SourceType = "local"
	SourceTypeURL   SourceType = "url"
)

// LibraryItem represents one piece of imported media.
type LibraryItem struct {
	ID            string     `json:"id"`
	CreatedAtMs   int64      `json:"created_at_ms"`
	SourceType    SourceType `json:"source_type"`
	SourceURI     string     `json:"source_uri"`
	Title         string     `json:"title"`
	MediaPath     string     `json:"media_path"`
	DurationMs    *int64     `json:"duration_ms,omitempty"`
	Width         *int       `json:"width,omitempty"`
	Height        *int       `json:"height,omitempty"`
	Container     *string    `json:"container,omitempty"`
	VideoCodec    *string    `json:"video_codec,omitempty"`
	AudioCodec    *string    `json:"audio_codec,omitempty"`
	ThumbnailPath *string    `json:"thumbnail_path,omitempty"`
}

// IngestProvenance is an append-only audit trail row.
type IngestProvenance struct {
	ItemID      string `json:"item_id"`
	Provider    string `json:"provider"`
	SourceURL   string `json:"source_url"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// TrackKind distinguishes source-language from translated subtitle tracks.
type TrackKind string

const (
	TrackKindSource     TrackKind = "source"
	TrackKindTranslated TrackKind = "translated"
)

// CanonicalSubtitleFormat is the only format value persisted for the JSON
// document; SRT/VTT sidecars are generated files, not separately tracked
// (spec §3).
const CanonicalSubtitleFormat = "ytfetch_subtitle_json_v1"

// SubtitleTrack is a versioned, immutable pointer to an on-disk subtitle
// document plus its sidecar files.
type SubtitleTrack struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	Kind        TrackKind `json:"kind"`
	Lang        string    `json:"lang"`
	Format      string    `json:"format"`
	Path        string    `json:"path"`
	CreatedBy   string    `json:"created_by"` // job_type or "user"
	Version     int       `json:"version"`
	CreatedAtMs int64     `json:"created_at_ms"`
}

// JobStatus enumerates the job state machine's states (spec §4.4).
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Job is a persistent unit of work with a typed list of steps.
type Job struct {
	ID           string    `json:"id"`
	ItemID       *string   `json:"item_id,omitempty"`
	BatchID      *string   `json:"batch_id,omitempty"`
	JobType      string    `json:"job_type"`
	Status       JobStatus `json:"status"`
	Progress     float64   `json:"progress"`
	Error        *string   `json:"error,omitempty"`
	ParamsJSON   string    `json:"params_json"`
	CreatedAtMs  int64     `json:"created_at_ms"`
	StartedAtMs  *int64    `json:"started_at_ms,omitempty"`
	FinishedAtMs *int64    `json:"finished_at_ms,omitempty"`
	LogsPath     string    `json:"logs_path"`
}

// ItemSpeaker is a per-item speaker registry row.
type ItemSpeaker struct {
	ItemID              string  `json:"item_id"`
	SpeakerKey          string  `json:"speaker_key"`
	DisplayName         *string `json:"display_name,omitempty"`
	TTSVoiceID          *string `json:"tts_voice_id,omitempty"`
	TTSVoiceProfilePath *string `json:"tts_voice_profile_path,omitempty"`
}

// YouTubeSubscription describes a recurring channel/playlist watch.
type YouTubeSubscription struct {
	ID                     string  `json:"id"`
	SourceURL              string  `json:"source_url"`
	Title                  string  `json:"title"`
	FolderMap              string  `json:"folder_map"`
	OutputDirOverride      *string `json:"output_dir_override,omitempty"`
	RefreshIntervalMinutes int     `json:"refresh_interval_minutes"`
	LastQueuedAtMs         *int64  `json:"last_queued_at_ms,omitempty"`
	Active                 bool    `json:"active"`
}
