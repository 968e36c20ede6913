package steps

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

// DownloadImageBatchParams is job.params_json for job_type
// "download_image_batch".
type DownloadImageBatchParams struct {
	StartURLs []string `json:"start_urls"`
	MaxPages  int      `json:"max_pages"`
}

type imageManifestEntry struct {
	SourcePage string `json:"source_page"`
	ImageURL   string `json:"image_url"`
	FileName   string `json:"file_name"`
}

// DownloadImageBatch returns the crawl -> filter -> fetch -> manifest step
// list for a bounded-depth image scrape (spec §4.5).
func DownloadImageBatch(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "crawl_filter_fetch",
			Weight: 3,
			Run: func(ec *runner.ExecContext) error {
				var p DownloadImageBatchParams
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}
				if len(p.StartURLs) == 0 {
					return engerr.Input("download_image_batch requires at least one start URL")
				}
				maxPages := p.MaxPages
				if maxPages <= 0 {
					maxPages = 20
				}

				visited := make(map[string]bool)
				queue := append([]string{}, p.StartURLs...)
				var manifest []imageManifestEntry

				for len(queue) > 0 && len(visited) < maxPages {
					if ec.IsCanceled() {
						return engerr.Canceled()
					}
					page := queue[0]
					queue = queue[1:]
					if visited[page] || !allowedByRobotsHeuristic(page) {
						continue
					}
					visited[page] = true

					imageURLs, links, err := crawlPage(ec, page)
					if err != nil {
						continue
					}
					for _, imgURL := range imageURLs {
						fileName := fmt.Sprintf("img_%04d%s", len(manifest), filepath.Ext(imgURL))
						dest := filepath.Join(ec.ScratchDir, fileName)
						if err := fetchToFile(ec, imgURL, dest); err != nil {
							continue
						}
						manifest = append(manifest, imageManifestEntry{
							SourcePage: page,
							ImageURL:   imgURL,
							FileName:   fileName,
						})
					}
					for _, l := range links {
						if !visited[l] {
							queue = append(queue, l)
						}
					}
					ec.ReportProgress(float64(len(visited)) / float64(maxPages))
				}

				return writeJSONArtifact(filepath.Join(ec.ScratchDir, "manifest.json"), manifest)
			},
		},
	}
}

// allowedByRobotsHeuristic applies a conservative heuristic rather than a
// full robots.txt fetch+parse: skip obvious disallowed paths.
func allowedByRobotsHeuristic(pageURL string) bool {
	lower := strings.ToLower(pageURL)
	for _, blocked := range []string{"/admin", "/login", "/cgi-bin", "/private"} {
		if strings.Contains(lower, blocked) {
			return false
		}
	}
	return true
}

// crawlPage fetches one HTML page and extracts image URLs and same-host
// links for further crawling.
func crawlPage(ec *runner.ExecContext, pageURL string) (images, links []string, err error) {
	tmp := filepath.Join(ec.ScratchDir, "page.html")
	if err := fetchToFile(ec, pageURL, tmp); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(tmp)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, err
	}

	doc, err := html.Parse(f)
	if err != nil {
		return nil, nil, err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				if src := attr(n, "src"); src != "" {
					if abs := resolveURL(base, src); abs != "" {
						images = append(images, abs)
					}
				}
			case "a":
				if href := attr(n, "href"); href != "" {
					if abs := resolveURL(base, href); abs != "" && sameHost(base, abs) {
						links = append(links, abs)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return images, links, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolveURL(base *url.URL, ref string) string {
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}

func sameHost(base *url.URL, candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return u.Host == base.Host
}
