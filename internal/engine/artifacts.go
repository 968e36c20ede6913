package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// ItemOutputs summarizes the key derived outputs available for an item,
// for a host to render an "outputs" panel without walking the whole
// artifact tree itself.
type ItemOutputs struct {
	Item              *models.LibraryItem      `json:"item"`
	SourceTracks      []*models.SubtitleTrack  `json:"source_tracks"`
	TranslatedTracks  []*models.SubtitleTrack  `json:"translated_tracks"`
	DubPreviewWavPath *string                  `json:"dub_preview_wav_path,omitempty"`
	DubPreviewMuxPath *string                  `json:"dub_preview_mux_path,omitempty"`
	QCReportPath      *string                  `json:"qc_report_path,omitempty"`
	ExportPackPath    *string                  `json:"export_pack_path,omitempty"`
}

// itemSubsystemPath builds a path under derived/items/<itemID>/<subsystem>
// without creating the directory, for existence-checking read-only
// callers like ItemOutputs.
func (e *Engine) itemSubsystemPath(itemID, subsystem string) string {
	return filepath.Join(e.tree.ItemsRoot(), itemID, subsystem)
}

func existingPath(path string) *string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Size() > 0 {
		return &path
	}
	return nil
}

// ItemOutputs reports the library item plus whichever derived outputs
// have been produced so far (spec §6 item_outputs).
func (e *Engine) ItemOutputs(ctx context.Context, itemID string) (*ItemOutputs, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	tracks, err := e.store.ListTracksForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	out := &ItemOutputs{Item: item}
	for _, t := range tracks {
		switch t.Kind {
		case models.TrackKindSource:
			out.SourceTracks = append(out.SourceTracks, t)
		case models.TrackKindTranslated:
			out.TranslatedTracks = append(out.TranslatedTracks, t)
		}
	}

	dubDir := e.itemSubsystemPath(itemID, "dub_preview")
	out.DubPreviewWavPath = existingPath(filepath.Join(dubDir, "mix_dub_preview_v1.wav"))
	for _, container := range []string{"mp4", "mkv"} {
		if p := existingPath(filepath.Join(dubDir, "mux_dub_preview_v1."+container)); p != nil {
			out.DubPreviewMuxPath = p
			break
		}
	}
	out.QCReportPath = existingPath(filepath.Join(e.itemSubsystemPath(itemID, "qc"), "report.json"))
	out.ExportPackPath = existingPath(filepath.Join(e.itemSubsystemPath(itemID, "export"), "export_pack_v1.zip"))
	return out, nil
}

// ItemArtifactsListV1 lists every non-empty file under an item's derived
// artifact subtree, for a host-side file browser. Zero-byte files are a
// step's in-progress or crash-interrupted partial write and are excluded
// rather than reported as existing outputs, mirroring existingPath above.
func (e *Engine) ItemArtifactsListV1(itemID string) ([]ArtifactFile, error) {
	files, err := e.tree.ListItemArtifacts(itemID)
	if err != nil {
		return nil, err
	}
	out := make([]ArtifactFile, 0, len(files))
	for _, f := range files {
		if f.SizeBytes <= 0 {
			continue
		}
		out = append(out, ArtifactFile(f))
	}
	return out, nil
}

// ArtifactFile mirrors artifacts.ArtifactFile, re-exported under the
// engine package so Core API callers need only import this package.
type ArtifactFile struct {
	RelPath      string `json:"rel_path"`
	SizeBytes    int64  `json:"size_bytes"`
	ModifiedAtMs int64  `json:"modified_at_ms"`
}

// ItemExportMuxPreviewMP4 copies the item's already-rendered mux preview
// to outPath. It does not render the preview itself — callers enqueue
// mux_dub_preview_v1 first and wait for it to succeed.
func (e *Engine) ItemExportMuxPreviewMP4(itemID, outPath string) error {
	src := filepath.Join(e.itemSubsystemPath(itemID, "dub_preview"), "mux_dub_preview_v1.mp4")
	if existingPath(src) == nil {
		return engerr.Precondition("item_export_mux_preview_mp4: no mux preview rendered yet for item %s", itemID)
	}

	in, err := os.Open(src)
	if err != nil {
		return engerr.Wrap(engerr.CategoryInput, err, "open mux preview for item %s", itemID)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return engerr.Wrap(engerr.CategoryInput, err, "create export destination dir")
	}
	out, err := os.Create(outPath)
	if err != nil {
		return engerr.Wrap(engerr.CategoryInput, err, "create export destination %s", outPath)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return engerr.Wrap(engerr.CategoryTransient, err, "copy mux preview to %s", outPath)
	}
	return nil
}
