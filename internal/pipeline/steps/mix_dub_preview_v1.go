package steps

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/runner"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// MixDubPreviewV1Params is job.params_json for job_type
// "mix_dub_preview_v1".
type MixDubPreviewV1Params struct {
	ItemID            string  `json:"item_id"`
	TargetLang        string  `json:"target_lang"`
	SeparationBackend string  `json:"separation_backend"`
	MinTimeFitFactor  float64 `json:"min_time_fit_factor"`
	MaxTimeFitFactor  float64 `json:"max_time_fit_factor"`
}

// ttsVariantPriority mirrors spec §4.5's "pick best TTS manifest
// (voice_preserving ≻ neural ≻ pyttsx3)" rule.
var ttsVariantPriority = []string{"voice_preserving_v1", "neural_v1", "pyttsx3_v1"}

type timeFitDecision struct {
	Index      int     `json:"index"`
	StartMs    int64   `json:"start_ms"`
	WindowMs   int64   `json:"window_ms"`
	RenderedMs int64   `json:"rendered_ms"`
	Ratio      float64 `json:"ratio"`
	Action     string  `json:"action"`
}

// segWindow is a translated segment's absolute placement on the dub
// timeline, keyed by segment index.
type segWindow struct {
	StartMs  int64
	WindowMs int64
}

// MixDubPreviewV1 returns the pick-manifest -> time-fit -> mix step list
// (spec §4.5).
func MixDubPreviewV1(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "mix",
			Weight: 1,
			Run: func(ec *runner.ExecContext) error {
				var p MixDubPreviewV1Params
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}
				minFactor := p.MinTimeFitFactor
				if minFactor == 0 {
					minFactor = 0.85
				}
				maxFactor := p.MaxTimeFitFactor
				if maxFactor == 0 {
					maxFactor = 1.25
				}
				backend := p.SeparationBackend
				if backend == "" {
					backend = "demucs_v1"
				}

				manifest, variant, err := bestTTSManifest(ec, p.ItemID)
				if err != nil {
					return err
				}
				ec.ReportProgress(0.2)

				translated, err := ec.Store.LatestTrack(ec.Ctx, p.ItemID, models.TrackKindTranslated, p.TargetLang)
				if err != nil {
					return err
				}
				translatedDoc, err := loadTrackDocument(translated)
				if err != nil {
					return err
				}
				windowByIndex := make(map[int]segWindow, len(translatedDoc.Segments))
				for _, seg := range translatedDoc.Segments {
					windowByIndex[seg.Index] = segWindow{StartMs: seg.StartMs, WindowMs: seg.EndMs - seg.StartMs}
				}

				decisions := make([]timeFitDecision, 0, len(manifest))
				for _, m := range manifest {
					w := windowByIndex[m.Index]
					ratio, action := computeTimeFit(m.DurationMs, w.WindowMs, minFactor, maxFactor)
					decisions = append(decisions, timeFitDecision{
						Index:      m.Index,
						StartMs:    w.StartMs,
						WindowMs:   w.WindowMs,
						RenderedMs: m.DurationMs,
						Ratio:      ratio,
						Action:     action,
					})
				}

				bgDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "separation/"+backend)
				if err != nil {
					return err
				}
				dubDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "dub_preview")
				if err != nil {
					return err
				}
				outPath := filepath.Join(dubDir, "mix_dub_preview_v1.wav")

				args := []string{"-y"}
				for _, m := range manifest {
					args = append(args, "-i", m.File)
				}
				args = append(args, "-i", filepath.Join(bgDir, "background.wav"))
				args = append(args, "-filter_complex", buildMixFiltergraph(decisions),
					"-ar", "48000", outPath)

				if _, err := run(ec, cfg, "ffmpeg", args...); err != nil {
					return err
				}
				ec.ReportProgress(0.8)

				if err := writeJSONArtifact(filepath.Join(dubDir, "mix_report.json"), struct {
					Variant   string            `json:"tts_variant"`
					Decisions []timeFitDecision `json:"decisions"`
				}{Variant: variant, Decisions: decisions}); err != nil {
					return err
				}
				ec.ReportProgress(1)
				return nil
			},
		},
	}
}

// bestTTSManifest loads the highest-priority available TTS manifest for an
// item (spec §4.5: voice_preserving ≻ neural ≻ pyttsx3).
func bestTTSManifest(ec *runner.ExecContext, itemID string) ([]ttsManifestEntry, string, error) {
	for _, variant := range ttsVariantPriority {
		dir, err := ec.Tree.ItemSubsystemDir(itemID, "tts_preview/"+variant)
		if err != nil {
			return nil, "", err
		}
		manifestPath := filepath.Join(dir, "manifest.json")
		ok, err := fileExistsNonEmpty(manifestPath)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		raw, err := readJSONFile(manifestPath)
		if err != nil {
			return nil, "", err
		}
		var manifest []ttsManifestEntry
		if err := jsonUnmarshalOrWrap(raw, &manifest); err != nil {
			return nil, "", err
		}
		return manifest, variant, nil
	}
	return nil, "", engerr.Precondition("no tts preview manifest found for item %s", itemID)
}

// computeTimeFit reports the rendered/window duration ratio and the
// corresponding pad/stretch/pass-through decision for one segment (spec
// §4.5's timing-fit rule). A zero or unknown window always passes through.
func computeTimeFit(renderedMs, windowMs int64, minFactor, maxFactor float64) (float64, string) {
	if windowMs <= 0 {
		return 1.0, "pass_through"
	}
	ratio := float64(renderedMs) / float64(windowMs)
	switch {
	case ratio < minFactor:
		return ratio, "pad_silence"
	case ratio > maxFactor:
		return ratio, "time_stretch"
	default:
		return ratio, "pass_through"
	}
}

// buildMixFiltergraph positions each TTS segment at its absolute start_ms
// offset on the dub timeline (adelay) and applies the time-fit action
// computed by computeTimeFit — atempo to shrink an over-long render back
// into its window, apad to fill a short one — before amix'ing the
// positioned voice stems plus the background stem, with a
// sidechaincompress-style duck and an EBU R128 loudness normalization pass
// (spec §4.5: "position on the dub timeline, stretch/pad to fit" then
// "ducking + EBU R128 loudnorm").
func buildMixFiltergraph(decisions []timeFitDecision) string {
	var b strings.Builder
	voiceLabels := make([]string, len(decisions))
	for i, d := range decisions {
		fmt.Fprintf(&b, "[%d:a]", i)
		switch d.Action {
		case "time_stretch":
			for _, factor := range atempoChain(d.Ratio) {
				fmt.Fprintf(&b, "atempo=%.4f,", factor)
			}
		case "pad_silence":
			if padMs := d.WindowMs - d.RenderedMs; padMs > 0 {
				fmt.Fprintf(&b, "apad=pad_dur=%.3f,", float64(padMs)/1000)
			}
		}
		fmt.Fprintf(&b, "adelay=%d:all=1[v%d];", d.StartMs, i)
		voiceLabels[i] = fmt.Sprintf("[v%d]", i)
	}
	voiceCount := len(decisions)
	bgIndex := voiceCount
	fmt.Fprintf(&b, "%samix=inputs=%d[voices];[%d:a][voices]sidechaincompress=threshold=0.05:ratio=8[ducked];[voices][ducked]amix=inputs=2:weights=1 1[mixed];[mixed]loudnorm=I=-16:TP=-1.5:LRA=11[out]",
		strings.Join(voiceLabels, ""), voiceCount, bgIndex)
	return b.String()
}

// atempoChain splits a tempo ratio outside ffmpeg's atempo valid range
// (0.5-2.0) into a chain of per-filter factors that multiply back to
// ratio, since a single atempo instance cannot express a more extreme
// speed change.
func atempoChain(ratio float64) []float64 {
	const lo, hi = 0.5, 2.0
	if ratio >= lo && ratio <= hi {
		return []float64{ratio}
	}
	factors := make([]float64, 0, 2)
	remaining := ratio
	for remaining > hi {
		factors = append(factors, hi)
		remaining /= hi
	}
	for remaining < lo {
		factors = append(factors, lo)
		remaining /= lo
	}
	return append(factors, remaining)
}
