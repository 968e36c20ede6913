package steps

import (
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

// MuxDubPreviewV1Params is job.params_json for job_type
// "mux_dub_preview_v1".
type MuxDubPreviewV1Params struct {
	ItemID        string `json:"item_id"`
	Container     string `json:"container"` // "mp4" or "mkv"
	KeepOriginal  bool   `json:"keep_original_audio"`
	DubLangTag    string `json:"dub_lang_tag"`
	SourceLangTag string `json:"source_lang_tag"`
}

// MuxDubPreviewV1 returns the single mux step that muxes the dub mix onto
// the source video in the requested container (spec §4.5).
func MuxDubPreviewV1(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "mux",
			Weight: 1,
			Run: func(ec *runner.ExecContext) error {
				var p MuxDubPreviewV1Params
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}
				container := p.Container
				if container == "" {
					container = "mp4"
				}

				item, err := ec.Store.GetItem(ec.Ctx, p.ItemID)
				if err != nil {
					return err
				}
				dubDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "dub_preview")
				if err != nil {
					return err
				}
				mixPath := filepath.Join(dubDir, "mix_dub_preview_v1.wav")
				outPath := filepath.Join(dubDir, "mux_dub_preview_v1."+container)

				args := []string{"-y", "-i", item.MediaPath, "-i", mixPath}
				if p.KeepOriginal {
					args = append(args, "-map", "0:v:0", "-map", "0:a:0", "-map", "1:a:0",
						"-metadata:s:a:0", "language="+defaultLangTag(p.SourceLangTag),
						"-metadata:s:a:1", "language="+defaultLangTag(p.DubLangTag))
				} else {
					args = append(args, "-map", "0:v:0", "-map", "1:a:0",
						"-metadata:s:a:0", "language="+defaultLangTag(p.DubLangTag))
				}
				args = append(args, "-c:v", "copy", "-c:a", "aac", outPath)

				_, err = run(ec, cfg, "ffmpeg", args...)
				ec.ReportProgress(1)
				return err
			},
		},
	}
}

func defaultLangTag(tag string) string {
	if tag == "" {
		return "und"
	}
	return tag
}
