package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Nuntissura/voxvulgi/internal/artifacts"
	"github.com/Nuntissura/voxvulgi/internal/engerr"
	"github.com/Nuntissura/voxvulgi/internal/store/models"
	"github.com/Nuntissura/voxvulgi/internal/subtitle"
)

// SubtitlesListTracks returns every subtitle track version for an item,
// across every kind/lang combination.
func (e *Engine) SubtitlesListTracks(ctx context.Context, itemID string) ([]*models.SubtitleTrack, error) {
	return e.store.ListTracksForItem(ctx, itemID)
}

// SubtitlesLoadTrack reads a track's canonical JSON document from disk,
// re-normalizing on load per spec §3.
func (e *Engine) SubtitlesLoadTrack(ctx context.Context, trackID string) (*subtitle.Document, error) {
	track, err := e.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(track.Path)
	if err != nil {
		return nil, engerr.Wrap(engerr.CategoryInput, err, "read subtitle track %s", trackID)
	}
	return subtitle.DecodeJSON(data)
}

// SubtitlesSaveNewVersion writes doc as a new immutable version of an
// existing track's lineage: version = max(existing)+1, fresh `*.vN.*`
// sidecar files alongside the track's directory, and a new SubtitleTrack
// row. The prior version's files are never modified (spec §4.3).
func (e *Engine) SubtitlesSaveNewVersion(ctx context.Context, trackID string, doc *subtitle.Document) (*models.SubtitleTrack, error) {
	existing, err := e.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}

	doc.Normalize()

	version, err := e.store.NextTrackVersion(ctx, existing.ItemID, existing.Kind, existing.Lang)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(existing.Path)
	baseName := fmt.Sprintf("%s.v%d", existing.Lang, version)

	jsonData, err := subtitle.EncodeJSON(doc)
	if err != nil {
		return nil, err
	}
	jsonPath := filepath.Join(dir, baseName+".json")
	if err := artifacts.WriteAtomic(jsonPath, jsonData, 0o644); err != nil {
		return nil, err
	}
	if err := artifacts.WriteAtomic(filepath.Join(dir, baseName+".srt"), []byte(subtitle.EncodeSRT(doc)), 0o644); err != nil {
		return nil, err
	}
	if err := artifacts.WriteAtomic(filepath.Join(dir, baseName+".vtt"), []byte(subtitle.EncodeVTT(doc)), 0o644); err != nil {
		return nil, err
	}

	track := &models.SubtitleTrack{
		ID:          uuid.NewString(),
		ItemID:      existing.ItemID,
		Kind:        existing.Kind,
		Lang:        existing.Lang,
		Format:      models.CanonicalSubtitleFormat,
		Path:        jsonPath,
		CreatedBy:   "user",
		Version:     version,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := e.store.CreateTrack(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}

// SubtitlesExportDocSRT renders doc as SubRip text to outPath.
func (e *Engine) SubtitlesExportDocSRT(doc *subtitle.Document, outPath string) error {
	return artifacts.WriteAtomic(outPath, []byte(subtitle.EncodeSRT(doc)), 0o644)
}

// SubtitlesExportDocVTT renders doc as WebVTT text to outPath.
func (e *Engine) SubtitlesExportDocVTT(doc *subtitle.Document, outPath string) error {
	return artifacts.WriteAtomic(outPath, []byte(subtitle.EncodeVTT(doc)), 0o644)
}
