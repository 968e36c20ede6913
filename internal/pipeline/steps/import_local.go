package steps

import (
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/runner"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// ImportLocalParams is job.params_json for job_type "import_local".
type ImportLocalParams struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// ImportLocal returns the probe -> thumbnail -> insert step list for
// importing a file already present on disk (spec §4.5).
func ImportLocal(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "probe_and_insert",
			Weight: 1,
			Run: func(ec *runner.ExecContext) error {
				var p ImportLocalParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				pr, err := probeMedia(ec, cfg, p.Path)
				if err != nil {
					return err
				}
				ec.ReportProgress(0.5)

				title := p.Title
				if title == "" {
					title = filepath.Base(p.Path)
				}

				item := &models.LibraryItem{
					ID:          newID(),
					CreatedAtMs: nowMs(),
					SourceType:  models.SourceTypeLocal,
					SourceURI:   p.Path,
					Title:       title,
					MediaPath:   p.Path,
					DurationMs:  &pr.DurationMs,
					Container:   &pr.Container,
					VideoCodec:  &pr.VideoCodec,
					AudioCodec:  &pr.AudioCodec,
				}
				if pr.Width > 0 {
					item.Width = &pr.Width
				}
				if pr.Height > 0 {
					item.Height = &pr.Height
				}

				if err := ec.Store.CreateItem(ec.Ctx, item); err != nil {
					return err
				}

				thumbDir, err := ec.Tree.ItemSubsystemDir(item.ID, "thumbnail")
				if err != nil {
					return err
				}
				thumbPath := filepath.Join(thumbDir, "thumbnail.jpg")
				if _, err := run(ec, cfg, "ffmpeg",
					"-y", "-i", p.Path, "-ss", "00:00:01", "-vframes", "1", thumbPath); err == nil {
					_ = ec.Store.SetItemThumbnail(ec.Ctx, item.ID, thumbPath)
				}

				ec.ReportProgress(1)
				return nil
			},
		},
	}
}
