package steps

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/runner"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// TTSPreviewParams is job.params_json for every tts_* job_type.
type TTSPreviewParams struct {
	ItemID     string `json:"item_id"`
	TargetLang string `json:"target_lang"`
}

const maxConcurrentTTSRenders = 4

type ttsManifestEntry struct {
	Index      int    `json:"index"`
	Speaker    string `json:"speaker"`
	File       string `json:"file"`
	DurationMs int64  `json:"duration_ms"`
}

// TTSPreviewPyttsx3V1 returns the per-segment render step list for the
// pyttsx3 offline preview voice (spec §4.5).
func TTSPreviewPyttsx3V1(cfg *config.Config) []runner.Step {
	return ttsRender(cfg, "pyttsx3_v1", "pyttsx3")
}

// TTSNeuralLocalV1 returns the per-segment render step list for the local
// neural TTS model (spec §4.5).
func TTSNeuralLocalV1(cfg *config.Config) []runner.Step {
	return ttsRender(cfg, "neural_v1", "neural")
}

// DubVoicePreservingV1 returns the per-segment render step list for the
// voice-preserving (per-speaker cloned) TTS mode (spec §4.5).
func DubVoicePreservingV1(cfg *config.Config) []runner.Step {
	return ttsRender(cfg, "voice_preserving_v1", "voice_preserving")
}

func ttsRender(cfg *config.Config, variant, mode string) []runner.Step {
	return []runner.Step{
		{
			Name:   "render_segments",
			Weight: 5,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				var p TTSPreviewParams
				if err := unmarshalParams(ec, &p); err != nil {
					return false, err
				}
				dir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "tts_preview/"+variant)
				if err != nil {
					return false, err
				}
				return fileExistsNonEmpty(filepath.Join(dir, "manifest.json"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p TTSPreviewParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				translated, err := ec.Store.LatestTrack(ec.Ctx, p.ItemID, models.TrackKindTranslated, p.TargetLang)
				if err != nil {
					return err
				}
				doc, err := loadTrackDocument(translated)
				if err != nil {
					return err
				}

				speakers, err := ec.Store.ListSpeakers(ec.Ctx, p.ItemID)
				if err != nil {
					return err
				}
				voiceFor := buildSpeakerVoiceIndex(speakers)

				dir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "tts_preview/"+variant)
				if err != nil {
					return err
				}
				segDir := filepath.Join(dir, "segments")

				manifest := make([]ttsManifestEntry, len(doc.Segments))
				g, gctx := errgroup.WithContext(ec.Ctx)
				g.SetLimit(maxConcurrentTTSRenders)

				var rendered int32
				total := len(doc.Segments)
				for i, seg := range doc.Segments {
					i, seg := i, seg
					g.Go(func() error {
						if ec.IsCanceled() || gctx.Err() != nil {
							return engerr.Canceled()
						}
						outFile := filepath.Join(segDir, fmt.Sprintf("seg_%04d.wav", seg.Index))
						voiceID := voiceFor[seg.Speaker]

						args := []string{
							"--mode", mode,
							"--text", seg.Text,
							"--out", outFile,
						}
						if voiceID != "" {
							args = append(args, "--voice-id", voiceID)
						}
						if _, err := run(ec, cfg, "tts-cli", args...); err != nil {
							return err
						}

						durationMs, err := wavDurationMs(ec, cfg, outFile)
						if err != nil {
							return err
						}
						manifest[i] = ttsManifestEntry{
							Index:      seg.Index,
							Speaker:    seg.Speaker,
							File:       outFile,
							DurationMs: durationMs,
						}
						rendered++
						ec.ReportProgress(float64(rendered) / float64(total))
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}

				return writeJSONArtifact(filepath.Join(dir, "manifest.json"), manifest)
			},
		},
	}
}

func buildSpeakerVoiceIndex(speakers []*models.ItemSpeaker) map[string]string {
	idx := make(map[string]string, len(speakers))
	for _, s := range speakers {
		if s.TTSVoiceID != nil {
			idx[s.SpeakerKey] = *s.TTSVoiceID
		}
	}
	return idx
}

// wavDurationMs probes a just-rendered WAV file for its duration, used to
// drive the mix step's per-segment time-fit decision (spec §4.5).
func wavDurationMs(ec *runner.ExecContext, cfg *config.Config, path string) (int64, error) {
	pr, err := probeMedia(ec, cfg, path)
	if err != nil {
		return 0, err
	}
	return pr.DurationMs, nil
}
