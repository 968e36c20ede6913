package steps

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/config"
	"github.com/Nuntissura/voxvulgi/internal/runner"
)

// ExportPackV1Params is job.params_json for job_type "export_pack_v1".
type ExportPackV1Params struct {
	ItemID string `json:"item_id"`
}

type provenanceEntry struct {
	ItemID      string `json:"item_id"`
	Provider    string `json:"provider"`
	SourceURL   string `json:"source_url"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// ExportPackV1 returns the collect-artifacts -> provenance.json -> zip
// step list (spec §4.5).
func ExportPackV1(cfg *config.Config) []runner.Step {
	return []runner.Step{
		{
			Name:   "collect_and_zip",
			Weight: 1,
			Run: func(ec *runner.ExecContext) error {
				var p ExportPackV1Params
				if err := unmarshalParams(ec, &p); err != nil {
					return err
				}

				itemDir, err := ec.Tree.ItemDir(p.ItemID)
				if err != nil {
					return err
				}

				provenance, err := ec.Store.ListProvenance(ec.Ctx, p.ItemID)
				if err != nil {
					return err
				}
				entries := make([]provenanceEntry, 0, len(provenance))
				for _, pr := range provenance {
					entries = append(entries, provenanceEntry{
						ItemID:      pr.ItemID,
						Provider:    pr.Provider,
						SourceURL:   pr.SourceURL,
						CreatedAtMs: pr.CreatedAtMs,
					})
				}
				provenancePath := filepath.Join(itemDir, "provenance.json")
				if err := writeJSONArtifact(provenancePath, entries); err != nil {
					return err
				}
				ec.ReportProgress(0.3)

				exportDir, err := ec.Tree.ItemSubsystemDir(p.ItemID, "export")
				if err != nil {
					return err
				}
				zipPath := filepath.Join(exportDir, "export_pack_v1.zip")

				if err := zipDirExcluding(itemDir, zipPath, exportDir); err != nil {
					return err
				}
				ec.ReportProgress(1)
				return nil
			},
		},
	}
}

// zipDirExcluding archives every regular file under srcDir into destPath,
// skipping anything under excludeDir (the export dir itself, to avoid
// zipping the archive into itself on retry).
func zipDirExcluding(srcDir, destPath, excludeDir string) error {
	tmp := destPath + ".tmp-" + newID()
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			if path == excludeDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		hdr.Modified = info.ModTime().UTC()

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, destPath)
}
