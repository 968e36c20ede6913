package steps

import (
	"encoding/json"
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/runner"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
	"github.com/Nuntissura/voxvulgi/internal/subtitle"
)

// ASRLocalParams is job.params_json for job_type "asr_local".
type ASRLocalParams struct {
	ItemID string `json:"item_id"`
	Lang   string `json:"lang"`
}

type asrSegmentOut struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// ASRLocal returns the extract -> run ASR -> write sidecars -> insert track
// step list (spec §4.5).
func ASRLocal(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "extract_wav",
			Weight: 1,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				return fileExistsNonEmpty(filepath.Join(ec.ScratchDir, "audio.wav"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p ASRLocalParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}
				item, err := ec.Store.GetItem(ec.Ctx, p.ItemID)
				if err != nil {
					return err
				}
				return extractWAV16kMono(ec, cfg, item.MediaPath, filepath.Join(ec.ScratchDir, "audio.wav"))
			},
		},
		{
			Name:   "run_asr_and_insert",
			Weight: 4,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				var p ASRLocalParams
				if err := unmarshalParams(ec, &p); err != nil {
					return false, err
				}
				itemDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "asr")
				if err != nil {
					return false, err
				}
				return fileExistsNonEmpty(filepath.Join(itemDir, "source.json"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p ASRLocalParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				outJSON := filepath.Join(ec.ScratchDir, "asr_raw.json")
				if _, err := run(ec, cfg, "asr-cli",
					"--input", filepath.Join(ec.ScratchDir, "audio.wav"),
					"--lang", p.Lang,
					"--output", outJSON); err != nil {
					return err
				}
				ec.ReportProgress(0.6)

				raw, err := readJSONFile(outJSON)
				if err != nil {
					return err
				}
				var segs []asrSegmentOut
				if err := json.Unmarshal(raw, &segs); err != nil {
					return engerr.Wrap(engerr.CategorySubprocess, err, "parse asr-cli output")
				}

				doc := subtitle.NewDocument(subtitle.KindSource, p.Lang)
				for i, s := range segs {
					doc.Segments = append(doc.Segments, subtitle.Segment{
						Index:   i,
						StartMs: s.StartMs,
						EndMs:   s.EndMs,
						Text:    s.Text,
					})
				}
				doc.Normalize()

				itemDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "asr")
				if err != nil {
					return err
				}
				version, err := ec.Store.NextTrackVersion(ec.Ctx, p.ItemID, models.TrackKindSource, p.Lang)
				if err != nil {
					return err
				}

				if err := writeSubtitleArtifacts(itemDir, "source", doc); err != nil {
					return err
				}
				ec.ReportProgress(0.9)

				track := &models.SubtitleTrack{
					ID:          newID(),
					ItemID:      p.ItemID,
					Kind:        models.TrackKindSource,
					Lang:        p.Lang,
					Format:      models.CanonicalSubtitleFormat,
					Path:        filepath.Join(itemDir, "source.json"),
					CreatedBy:   "asr_local",
					Version:     version,
					CreatedAtMs: nowMs(),
				}
				return ec.Store.CreateTrack(ec.Ctx, track)
			},
		},
	}
}

// writeSubtitleArtifacts writes the canonical JSON document plus SRT/VTT
// sidecars for a subtitle track under dir/<baseName>.{json,srt,vtt}.
func writeSubtitleArtifacts(dir, baseName string, doc *subtitle.Document) error {
	data, err := subtitle.EncodeJSON(doc)
	if err != nil {
		return err
	}
	if err := writeAtomicMkdir(filepath.Join(dir, baseName+".json"), data); err != nil {
		return err
	}
	if err := writeAtomicMkdir(filepath.Join(dir, baseName+".srt"), []byte(subtitle.EncodeSRT(doc))); err != nil {
		return err
	}
	return writeAtomicMkdir(filepath.Join(dir, baseName+".vtt"), []byte(subtitle.EncodeVTT(doc)))
}
