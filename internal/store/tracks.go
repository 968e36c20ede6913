package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

const trackColumns = `
	id, item_id, kind, lang, format, path, created_by, version, created_at_ms
`

func scanTrack(row interface {
	Scan(dest ...any) error
}) (*models.SubtitleTrack, error) {
	var t models.SubtitleTrack
	err := row.Scan(&t.ID, &t.ItemID, &t.Kind, &t.Lang, &t.Format, &t.Path, &t.CreatedBy, &t.Version, &t.CreatedAtMs)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTrack inserts a new immutable subtitle track version. Tracks are
// never updated in place — a new version is created by NextTrackVersion
// plus a fresh insert (spec §3 "versioned, immutable").
func (s *Store) CreateTrack(ctx context.Context, t *models.SubtitleTrack) error {
	const q = `
		INSERT INTO subtitle_tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q, t.ID, t.ItemID, t.Kind, t.Lang, t.Format, t.Path, t.CreatedBy, t.Version, t.CreatedAtMs)
	if err != nil {
		return fmt.Errorf("create track: %w", err)
	}
	return nil
}

// GetTrack returns one subtitle track by id, or ErrNotFound.
func (s *Store) GetTrack(ctx context.Context, id string) (*models.SubtitleTrack, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM subtitle_tracks WHERE id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track %s: %w", id, err)
	}
	return t, nil
}

// ListTracks returns every track version for an item/kind/lang combination,
// oldest version first.
func (s *Store) ListTracks(ctx context.Context, itemID string, kind models.TrackKind, lang string) ([]*models.SubtitleTrack, error) {
	const q = `
		SELECT ` + trackColumns + ` FROM subtitle_tracks
		WHERE item_id = ? AND kind = ? AND lang = ?
		ORDER BY version
	`
	rows, err := s.db.QueryContext(ctx, q, itemID, kind, lang)
	if err != nil {
		return nil, fmt.Errorf("list tracks for item %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []*models.SubtitleTrack
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return out, nil
}

// ListTracksForItem returns every track version for an item across all
// kinds and languages, newest first, for surfacing a subtitle-tracks
// overview without knowing kind/lang up front.
func (s *Store) ListTracksForItem(ctx context.Context, itemID string) ([]*models.SubtitleTrack, error) {
	const q = `
		SELECT ` + trackColumns + ` FROM subtitle_tracks
		WHERE item_id = ?
		ORDER BY kind, lang, version DESC
	`
	rows, err := s.db.QueryContext(ctx, q, itemID)
	if err != nil {
		return nil, fmt.Errorf("list tracks for item %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []*models.SubtitleTrack
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return out, nil
}

// LatestTrack returns the highest-version track for an item/kind/lang, or
// ErrNotFound if none exists yet.
func (s *Store) LatestTrack(ctx context.Context, itemID string, kind models.TrackKind, lang string) (*models.SubtitleTrack, error) {
	const q = `
		SELECT ` + trackColumns + ` FROM subtitle_tracks
		WHERE item_id = ? AND kind = ? AND lang = ?
		ORDER BY version DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, q, itemID, kind, lang)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest track for item %s: %w", itemID, err)
	}
	return t, nil
}

// NextTrackVersion returns the version number the next CreateTrack call for
// this item/kind/lang should use (1 if none exist yet).
func (s *Store) NextTrackVersion(ctx context.Context, itemID string, kind models.TrackKind, lang string) (int, error) {
	const q = `
		SELECT COALESCE(MAX(version), 0) FROM subtitle_tracks
		WHERE item_id = ? AND kind = ? AND lang = ?
	`
	var maxVersion int
	if err := s.db.QueryRowContext(ctx, q, itemID, kind, lang).Scan(&maxVersion); err != nil {
		return 0, fmt.Errorf("compute next track version for item %s: %w", itemID, err)
	}
	return maxVersion + 1, nil
}
