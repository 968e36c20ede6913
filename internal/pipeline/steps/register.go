package steps

import (
	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

// Register installs every shipped job_type's step list into reg, resolving
// external-tool binary names through cfg (spec §4.5's job_type table).
func Register(reg *runner.Registry, cfg *config.Config) {
	reg.Register("import_local", ImportLocal(cfg))
	reg.Register("download_direct_url", DownloadDirectURL(cfg))
	reg.Register("youtube_yt_dlp_v1", YouTubeYtDlp(cfg))
	reg.Register("download_image_batch", DownloadImageBatch(cfg))
	reg.Register("asr_local", ASRLocal(cfg))
	reg.Register("translate_local", TranslateLocal(cfg))
	reg.Register("diarize_local_v1", DiarizeLocalV1(cfg))
	reg.Register("separate_audio_spleeter", SeparateAudioSpleeter(cfg))
	reg.Register("separate_audio_demucs_v1", SeparateAudioDemucsV1(cfg))
	reg.Register("clean_vocals_v1", CleanVocalsV1(cfg))
	reg.Register("tts_preview_pyttsx3_v1", TTSPreviewPyttsx3V1(cfg))
	reg.Register("tts_neural_local_v1", TTSNeuralLocalV1(cfg))
	reg.Register("dub_voice_preserving_v1", DubVoicePreservingV1(cfg))
	reg.Register("mix_dub_preview_v1", MixDubPreviewV1(cfg))
	reg.Register("mux_dub_preview_v1", MuxDubPreviewV1(cfg))
	reg.Register("qc_report_v1", QCReportV1(cfg))
	reg.Register("export_pack_v1", ExportPackV1(cfg))
}
