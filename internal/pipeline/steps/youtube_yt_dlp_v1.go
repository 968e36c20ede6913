package steps

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/runner"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// YouTubeYtDlpParams is job.params_json for job_type "youtube_yt_dlp_v1".
type YouTubeYtDlpParams struct {
	URL string `json:"url"`
	// SubscriptionID, when set, scopes a yt-dlp "download archive" file
	// (spec's YouTubeSubscription data model) to this subscription so a
	// later refresh of the same channel/playlist skips videos already
	// downloaded instead of re-fetching them. Left empty for a one-off,
	// non-subscription URL download, which has no repeat-refresh dedupe
	// concern.
	SubscriptionID string `json:"subscription_id,omitempty"`
}

const maxConcurrentVideoDownloads = 3

type ytDlpFlatEntry struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// YouTubeYtDlp returns the expand -> download-per-video -> probe -> insert
// step list for a channel/playlist/video URL handled via yt-dlp (spec §4.5).
func YouTubeYtDlp(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "expand_and_download",
			Weight: 3,
			Run: func(ec *runner.ExecContext) error {
				var p YouTubeYtDlpParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				entries, err := expandPlaylist(ec, cfg, p.URL)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					return engerr.Input("youtube_yt_dlp_v1: no videos resolved from %q", p.URL)
				}

				var archivePath string
				if p.SubscriptionID != "" {
					archivePath, err = ec.Tree.SubscriptionArchivePath(p.SubscriptionID)
					if err != nil {
						return err
					}
				}

				g, gctx := errgroup.WithContext(ec.Ctx)
				g.SetLimit(maxConcurrentVideoDownloads)

				var done int32
				for i, entry := range entries {
					entry := entry
					idx := i
					g.Go(func() error {
						if ec.IsCanceled() || gctx.Err() != nil {
							return engerr.Canceled()
						}
						outPath := filepath.Join(ec.ScratchDir, fmt.Sprintf("video_%02d.mp4", idx))
						if _, err := run(ec, cfg, "yt-dlp", ytDlpDownloadArgs(outPath, archivePath, entry.URL)...); err != nil {
							return err
						}
						done++
						ec.ReportProgress(float64(done) / float64(len(entries)))
						return nil
					})
				}
				return g.Wait()
			},
		},
		{
			Name:   "probe_and_insert",
			Weight: 1,
			Run: func(ec *runner.ExecContext) error {
				var p YouTubeYtDlpParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				entries, err := expandPlaylist(ec, cfg, p.URL)
				if err != nil {
					return err
				}

				for i, entry := range entries {
					src := filepath.Join(ec.ScratchDir, fmt.Sprintf("video_%02d.mp4", i))
					// a download-archive dedupe skip leaves no file behind
					// for an already-fetched video; nothing new to insert.
					if ok, err := fileExistsNonEmpty(src); err != nil {
						return err
					} else if !ok {
						continue
					}
					pr, err := probeMedia(ec, cfg, src)
					if err != nil {
						return err
					}

					item := &models.LibraryItem{
						ID:          newID(),
						CreatedAtMs: nowMs(),
						SourceType:  models.SourceTypeURL,
						SourceURI:   entry.URL,
						Title:       entry.ID,
						DurationMs:  &pr.DurationMs,
						Container:   &pr.Container,
						VideoCodec:  &pr.VideoCodec,
						AudioCodec:  &pr.AudioCodec,
					}
					itemDir, err := ec.Tree.ItemDir(item.ID)
					if err != nil {
						return err
					}
					mediaPath := filepath.Join(itemDir, "media.mp4")
					if err := moveFile(src, mediaPath); err != nil {
						return err
					}
					item.MediaPath = mediaPath

					if err := ec.Store.CreateItem(ec.Ctx, item); err != nil {
						return err
					}
					if err := ec.Store.RecordProvenance(ec.Ctx, &models.IngestProvenance{
						ItemID:      item.ID,
						Provider:    "youtube_yt_dlp_v1",
						SourceURL:   entry.URL,
						CreatedAtMs: nowMs(),
					}); err != nil {
						return err
					}
					ec.ReportProgress(float64(i+1) / float64(len(entries)))
				}
				return nil
			},
		},
	}
}

// ytDlpDownloadArgs builds the per-video yt-dlp download command line,
// adding --download-archive when archivePath is non-empty so a
// subscription's repeat refresh skips videos it already fetched (spec's
// YouTubeSubscription data model: "a yt-dlp-compatible download archive
// file seeding dedupe").
func ytDlpDownloadArgs(outPath, archivePath, url string) []string {
	args := []string{"-f", "mp4", "-o", outPath}
	if archivePath != "" {
		args = append(args, "--download-archive", archivePath)
	}
	return append(args, url)
}

// expandPlaylist runs yt-dlp in flat-playlist dump mode, returning one
// entry per resolvable video (a single video URL expands to one entry).
func expandPlaylist(ec *runner.ExecContext, cfg *config.Config, playlistURL string) ([]ytDlpFlatEntry, error) {
	res, err := run(ec, cfg, "yt-dlp", "--flat-playlist", "-J", playlistURL)
	if err != nil {
		return nil, err
	}

	var dump struct {
		Entries []ytDlpFlatEntry `json:"entries"`
		ID      string           `json:"id"`
		URL     string           `json:"webpage_url"`
	}
	scanner := bufio.NewScanner(bytes.NewReader(res.Stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), &dump); err != nil {
			return nil, engerr.Wrap(engerr.CategorySubprocess, err, "parse yt-dlp dump")
		}
	}

	if len(dump.Entries) > 0 {
		for i := range dump.Entries {
			if dump.Entries[i].URL == "" {
				dump.Entries[i].URL = "https://www.youtube.com/watch?v=" + dump.Entries[i].ID
			}
		}
		return dump.Entries, nil
	}
	if dump.ID != "" {
		url := dump.URL
		if url == "" {
			url = playlistURL
		}
		return []ytDlpFlatEntry{{ID: dump.ID, URL: url}}, nil
	}
	return nil, nil
}
