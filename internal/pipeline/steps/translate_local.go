package steps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/runner"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
	"github.com/Nuntissura/voxvulgi/internal/subtitle"
)

// TranslateLocalParams is job.params_json for job_type "translate_local".
type TranslateLocalParams struct {
	ItemID     string `json:"item_id"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// lineWrapWidth and the CPS/line-count QC thresholds match spec §4.5's
// "Glossary application" paragraph.
const (
	lineWrapWidth = 42
	maxLinesWarn  = 2
	maxCPSWarn    = 17.0
)

type translateSegmentOut struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// TranslateLocal returns the extract -> translate -> align -> glossary ->
// QC -> write -> insert step list (spec §4.5).
func TranslateLocal(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "extract_wav",
			Weight: 1,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				return fileExistsNonEmpty(filepath.Join(ec.ScratchDir, "audio.wav"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p TranslateLocalParams
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
			Name:   "translate_align_glossary_qc_insert",
			Weight: 4,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				var p TranslateLocalParams
				if err := unmarshalParams(ec, &p); err != nil {
					return false, err
				}
				itemDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "translate")
				if err != nil {
					return false, err
				}
				return fileExistsNonEmpty(filepath.Join(itemDir, p.TargetLang+".json"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p TranslateLocalParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				sourceTrack, err := ec.Store.LatestTrack(ec.Ctx, p.ItemID, models.TrackKindSource, p.SourceLang)
				if err != nil {
					return err
				}
				sourceDoc, err := loadTrackDocument(sourceTrack)
				if err != nil {
					return err
				}

				outJSON := filepath.Join(ec.ScratchDir, "translate_raw.json")
				if _, err := run(ec, cfg, "translate-cli",
					"--input", filepath.Join(ec.ScratchDir, "audio.wav"),
					"--source-lang", p.SourceLang,
					"--target-lang", p.TargetLang,
					"--output", outJSON); err != nil {
					return err
				}
				ec.ReportProgress(0.4)

				raw, err := readJSONFile(outJSON)
				if err != nil {
					return err
				}
				var translated []translateSegmentOut
				if err := json.Unmarshal(raw, &translated); err != nil {
					return engerr.Wrap(engerr.CategorySubprocess, err, "parse translate-cli output")
				}
				byIndex := make(map[int]string, len(translated))
				for _, t := range translated {
					byIndex[t.Index] = t.Text
				}

				glossary, err := loadGlossary(cfg)
				if err != nil {
					return err
				}

				doc := subtitle.NewDocument(subtitle.KindTranslated, p.TargetLang)
				var warnings []string
				for _, seg := range sourceDoc.Segments {
					text := byIndex[seg.Index]
					text = applyGlossary(text, glossary)
					durationMs := seg.EndMs - seg.StartMs
					if w := qcWarning(seg.Index, text, durationMs); w != "" {
						warnings = append(warnings, w)
					}
					doc.Segments = append(doc.Segments, subtitle.Segment{
						Index:   seg.Index,
						StartMs: seg.StartMs,
						EndMs:   seg.EndMs,
						Text:    text,
						Speaker: seg.Speaker,
					})
				}
				doc.Normalize()
				ec.ReportProgress(0.7)

				itemDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "translate")
				if err != nil {
					return err
				}
				if err := writeSubtitleArtifacts(itemDir, p.TargetLang, doc); err != nil {
					return err
				}
				if len(warnings) > 0 {
					if err := writeJSONArtifact(filepath.Join(itemDir, p.TargetLang+"_qc_warnings.json"), warnings); err != nil {
						return err
					}
				}

				version, err := ec.Store.NextTrackVersion(ec.Ctx, p.ItemID, models.TrackKindTranslated, p.TargetLang)
				if err != nil {
					return err
				}
				track := &models.SubtitleTrack{
					ID:          newID(),
					ItemID:      p.ItemID,
					Kind:        models.TrackKindTranslated,
					Lang:        p.TargetLang,
					Format:      models.CanonicalSubtitleFormat,
					Path:        filepath.Join(itemDir, p.TargetLang+".json"),
					CreatedBy:   "translate_local",
					Version:     version,
					CreatedAtMs: nowMs(),
				}
				return ec.Store.CreateTrack(ec.Ctx, track)
			},
		},
	}
}

// loadTrackDocument reads a SubtitleTrack's canonical JSON document from
// disk.
func loadTrackDocument(t *models.SubtitleTrack) (*subtitle.Document, error) {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return nil, engerr.Wrap(engerr.CategoryInput, err, "read subtitle track %s", t.ID)
	}
	return subtitle.DecodeJSON(data)
}

// loadGlossary reads config/glossary.json, a flat source-phrase ->
// target-phrase map (spec §6).
func loadGlossary(cfg *config.Config) (map[string]string, error) {
	path := filepath.Join(cfg.ConfigDir(), "glossary.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, engerr.Wrap(engerr.CategoryInput, err, "read glossary %s", path)
	}
	var g map[string]string
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, engerr.Input("parse glossary %s: %v", path, err)
	}
	return g, nil
}

// applyGlossary performs a deterministic, longest-key-first string
// replacement pass over text (spec §4.5).
func applyGlossary(text string, glossary map[string]string) string {
	if len(glossary) == 0 {
		return text
	}
	keys := make([]string, 0, len(glossary))
	for k := range glossary {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		if k == "" {
			continue
		}
		text = strings.ReplaceAll(text, k, glossary[k])
	}
	return text
}

// qcWarning reports a non-empty warning string if text exceeds the wrap
// line count or per-second character rate thresholds.
func qcWarning(index int, text string, durationMs int64) string {
	lines := wrapLines(text, lineWrapWidth)
	if len(lines) > maxLinesWarn {
		return fmt.Sprintf("segment %d: exceeds %d lines after wrap (%d)", index, maxLinesWarn, len(lines))
	}
	if durationMs > 0 {
		cps := float64(len([]rune(text))) / (float64(durationMs) / 1000)
		if cps > maxCPSWarn {
			return fmt.Sprintf("segment %d: %.1f chars/sec exceeds %.1f", index, cps, maxCPSWarn)
		}
	}
	return ""
}

func wrapLines(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len(w) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
