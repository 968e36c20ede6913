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

// DiarizeLocalV1Params is job.params_json for job_type "diarize_local_v1".
type DiarizeLocalV1Params struct {
	ItemID     string `json:"item_id"`
	SourceLang string `json:"source_lang"`
}

type diarizeTurnOut struct {
	StartMs    int64  `json:"start_ms"`
	EndMs      int64  `json:"end_ms"`
	SpeakerKey string `json:"speaker_key"`
}

// DiarizeLocalV1 returns the extract -> VAD+embed+cluster -> write
// diarization.json -> insert labeled track step list (spec §4.5).
func DiarizeLocalV1(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "extract_wav",
			Weight: 1,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				return fileExistsNonEmpty(filepath.Join(ec.ScratchDir, "audio.wav"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p DiarizeLocalV1Params
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
			Name:   "diarize_and_insert",
			Weight: 3,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				var p DiarizeLocalV1Params
				if err := unmarshalParams(ec, &p); err != nil {
					return false, err
				}
				itemDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "diarize")
				if err != nil {
					return false, err
				}
				return fileExistsNonEmpty(filepath.Join(itemDir, "diarized.json"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p DiarizeLocalV1Params
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				itemDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "diarize")
				if err != nil {
					return err
				}
				diarizationPath := filepath.Join(itemDir, "diarization.json")

				if _, err := run(ec, cfg, "diarize-cli",
					"--input", filepath.Join(ec.ScratchDir, "audio.wav"),
					"--output", diarizationPath); err != nil {
					return err
				}
				ec.ReportProgress(0.5)

				raw, err := readJSONFile(diarizationPath)
				if err != nil {
					return err
				}
				var turns []diarizeTurnOut
				if err := json.Unmarshal(raw, &turns); err != nil {
					return engerr.Wrap(engerr.CategorySubprocess, err, "parse diarize-cli output")
				}

				sourceTrack, err := ec.Store.LatestTrack(ec.Ctx, p.ItemID, models.TrackKindSource, p.SourceLang)
				if err != nil {
					return err
				}
				sourceDoc, err := loadTrackDocument(sourceTrack)
				if err != nil {
					return err
				}

				doc := subtitle.NewDocument(subtitle.KindSource, p.SourceLang)
				seen := make(map[string]bool)
				for _, seg := range sourceDoc.Segments {
					speaker := speakerForWindow(turns, seg.StartMs, seg.EndMs)
					if speaker != "" && !seen[speaker] {
						seen[speaker] = true
						if err := ec.Store.UpsertSpeaker(ec.Ctx, &models.ItemSpeaker{
							ItemID:     p.ItemID,
							SpeakerKey: speaker,
						}); err != nil {
							return err
						}
					}
					doc.Segments = append(doc.Segments, subtitle.Segment{
						Index:   seg.Index,
						StartMs: seg.StartMs,
						EndMs:   seg.EndMs,
						Text:    seg.Text,
						Speaker: speaker,
					})
				}
				doc.Normalize()
				ec.ReportProgress(0.8)

				if err := writeSubtitleArtifacts(itemDir, "diarized", doc); err != nil {
					return err
				}

				version, err := ec.Store.NextTrackVersion(ec.Ctx, p.ItemID, models.TrackKindSource, p.SourceLang)
				if err != nil {
					return err
				}
				track := &models.SubtitleTrack{
					ID:          newID(),
					ItemID:      p.ItemID,
					Kind:        models.TrackKindSource,
					Lang:        p.SourceLang,
					Format:      models.CanonicalSubtitleFormat,
					Path:        filepath.Join(itemDir, "diarized.json"),
					CreatedBy:   "diarize_local_v1",
					Version:     version,
					CreatedAtMs: nowMs(),
				}
				return ec.Store.CreateTrack(ec.Ctx, track)
			},
		},
	}
}

// speakerForWindow returns the speaker whose diarization turn has the most
// overlap with [startMs,endMs), or "" if none overlap.
func speakerForWindow(turns []diarizeTurnOut, startMs, endMs int64) string {
	best := ""
	bestOverlap := int64(0)
	for _, t := range turns {
		overlapStart := maxInt64(startMs, t.StartMs)
		overlapEnd := minInt64(endMs, t.EndMs)
		if overlapEnd > overlapStart && overlapEnd-overlapStart > bestOverlap {
			bestOverlap = overlapEnd - overlapStart
			best = t.SpeakerKey
		}
	}
	return best
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
