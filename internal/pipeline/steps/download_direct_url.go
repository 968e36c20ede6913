package steps

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/runner"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// DownloadDirectURLParams is job.params_json for job_type
// "download_direct_url".
type DownloadDirectURLParams struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// DownloadDirectURL returns the fetch -> probe -> insert step list for a
// plain http/https media URL (spec §4.5).
func DownloadDirectURL(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "fetch",
			Weight: 2,
			OutputsExist: func(ec *runner.ExecContext) (bool, error) {
				return fileExistsNonEmpty(filepath.Join(ec.ScratchDir, "source.bin"))
			},
			Run: func(ec *runner.ExecContext) error {
				var p DownloadDirectURLParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}
				u, err := url.Parse(p.URL)
				if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
					return engerr.Input("download_direct_url requires an http/https URL, got %q", p.URL)
				}
				return fetchToFile(ec, p.URL, filepath.Join(ec.ScratchDir, "source.bin"))
			},
		},
		{
			Name:   "probe_and_insert",
			Weight: 1,
			Run: func(ec *runner.ExecContext) error {
				var p DownloadDirectURLParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				src := filepath.Join(ec.ScratchDir, "source.bin")
				pr, err := probeMedia(ec, cfg, src)
				if err != nil {
					return err
				}

				item := &models.LibraryItem{
					ID:          newID(),
					CreatedAtMs: nowMs(),
					SourceType:  models.SourceTypeURL,
					SourceURI:   p.URL,
					Title:       titleOrDefault(p.Title, p.URL),
					DurationMs:  &pr.DurationMs,
					Container:   &pr.Container,
					VideoCodec:  &pr.VideoCodec,
					AudioCodec:  &pr.AudioCodec,
				}

				itemDir, err := ec.Tree.ItemDir(item.ID)
				if err != nil {
					return err
				}
				mediaPath := filepath.Join(itemDir, "media"+filepath.Ext(pr.Container))
				if err := os.Rename(src, mediaPath); err != nil {
					return err
				}
				item.MediaPath = mediaPath

				if err := ec.Store.CreateItem(ec.Ctx, item); err != nil {
					return err
				}
				return ec.Store.RecordProvenance(ec.Ctx, &models.IngestProvenance{
					ItemID:      item.ID,
					Provider:    "direct_url",
					SourceURL:   p.URL,
					CreatedAtMs: nowMs(),
				})
			},
		},
	}
}

func titleOrDefault(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

func fetchToFile(ec *runner.ExecContext, srcURL, destPath string) error {
	client := &http.Client{Timeout: 0}
	req, err := http.NewRequestWithContext(ec.Ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return engerr.Input("build request for %s: %v", srcURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return engerr.Transient(err, "fetch %s", srcURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return engerr.Transient(nil, "fetch %s: server error %d", srcURL, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return engerr.Input("fetch %s: unexpected status %d", srcURL, resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return engerr.Transient(err, "write %s", destPath)
	}
	return nil
}
