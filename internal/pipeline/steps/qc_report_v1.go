package steps

import (
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

// QCReportV1Params is job.params_json for job_type "qc_report_v1".
type QCReportV1Params struct {
	ItemID  string `json:"item_id"`
	TrackID string `json:"track_id"`
}

type qcSegmentMetric struct {
	Index          int     `json:"index"`
	CPS            float64 `json:"cps"`
	Lines          int     `json:"lines"`
	OverlapNext    bool    `json:"overlap_next"`
	Untranslated   bool    `json:"untranslated"`
	TimingDriftMs  *int64  `json:"timing_drift_ms,omitempty"`
	TimingFitMatch bool    `json:"timing_fit_match,omitempty"`
}

type qcReport struct {
	TrackID             string            `json:"track_id"`
	SegmentCount        int               `json:"segment_count"`
	Segments            []qcSegmentMetric `json:"segments"`
	WarningCount        int               `json:"warning_count"`
	UntranslatedCount   int               `json:"untranslated_count"`
	DubMixAvailable     bool              `json:"dub_mix_available"`
	TimingMismatchCount int               `json:"timing_mismatch_count"`
}

// mixReportFile mirrors the struct mix_dub_preview_v1's "mix" step writes
// to dub_preview/mix_report.json.
type mixReportFile struct {
	Variant   string            `json:"tts_variant"`
	Decisions []timeFitDecision `json:"decisions"`
}

// loadMixDecisions reads the dub mix's per-segment time-fit decisions, for
// the timing-vs-dub QC metric. A missing report (mix hasn't run yet) is
// not an error — the metric is simply reported unavailable.
func loadMixDecisions(ec *runner.ExecContext, itemID string) (map[int]timeFitDecision, bool, error) {
	dubDir, err := ec.Tree.ItemSubsystemDir(itemID, "dub_preview")
	if err != nil {
		return nil, false, err
	}
	path := filepath.Join(dubDir, "mix_report.json")
	ok, err := fileExistsNonEmpty(path)
	if err != nil || !ok {
		return nil, false, err
	}
	raw, err := readJSONFile(path)
	if err != nil {
		return nil, false, err
	}
	var report mixReportFile
	if err := jsonUnmarshalOrWrap(raw, &report); err != nil {
		return nil, false, err
	}
	byIndex := make(map[int]timeFitDecision, len(report.Decisions))
	for _, d := range report.Decisions {
		byIndex[d.Index] = d
	}
	return byIndex, true, nil
}

// QCReportV1 returns the single metrics-computation step (spec §4.5:
// "compute CPS, line-length, overlap, untranslated, timing-vs-dub
// metrics").
func QCReportV1(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "compute_metrics",
			Weight: 1,
			Run: func(ec *runner.ExecContext) error {
				var p QCReportV1Params
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				track, err := ec.Store.GetTrack(ec.Ctx, p.TrackID)
				if err != nil {
					return err
				}
				doc, err := loadTrackDocument(track)
				if err != nil {
					return err
				}

				mixDecisions, dubAvailable, err := loadMixDecisions(ec, p.ItemID)
				if err != nil {
					return err
				}

				report := qcReport{TrackID: p.TrackID, SegmentCount: len(doc.Segments), DubMixAvailable: dubAvailable}
				for i, seg := range doc.Segments {
					durationMs := seg.EndMs - seg.StartMs
					cps := 0.0
					if durationMs > 0 {
						cps = float64(len([]rune(seg.Text))) / (float64(durationMs) / 1000)
					}
					lines := len(wrapLines(seg.Text, lineWrapWidth))
					overlap := i+1 < len(doc.Segments) && doc.Segments[i+1].StartMs < seg.EndMs
					untranslated := seg.Text == ""

					metric := qcSegmentMetric{
						Index:        seg.Index,
						CPS:          cps,
						Lines:        lines,
						OverlapNext:  overlap,
						Untranslated: untranslated,
					}
					if d, ok := mixDecisions[seg.Index]; ok {
						drift := d.RenderedMs - durationMs
						metric.TimingDriftMs = &drift
						metric.TimingFitMatch = d.Action == "pass_through"
						if !metric.TimingFitMatch {
							report.TimingMismatchCount++
						}
					}

					if cps > maxCPSWarn || lines > maxLinesWarn || overlap {
						report.WarningCount++
					}
					if untranslated {
						report.UntranslatedCount++
					}

					report.Segments = append(report.Segments, metric)
				}

				qcDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "qc")
				if err != nil {
					return err
				}
				ec.ReportProgress(1)
				return writeJSONArtifact(filepath.Join(qcDir, "report.json"), report)
			},
		},
	}
}
