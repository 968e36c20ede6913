package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

const itemColumns = `
	id, created_at_ms, source_type, source_uri, title, media_path,
	duration_ms, width, height, container, video_codec, audio_codec, thumbnail_path
`

func scanItem(row interface {
	Scan(dest ...any) error
}) (*models.LibraryItem, error) {
	var it models.LibraryItem
	err := row.Scan(
		&it.ID, &it.CreatedAtMs, &it.SourceType, &it.SourceURI, &it.Title, &it.MediaPath,
		&it.DurationMs, &it.Width, &it.Height, &it.Container, &it.VideoCodec, &it.AudioCodec, &it.ThumbnailPath,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateItem inserts a newly ingested library item.
func (s *Store) CreateItem(ctx context.Context, item *models.LibraryItem) error {
	const q = `
		INSERT INTO library_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q,
		item.ID, item.CreatedAtMs, item.SourceType, item.SourceURI, item.Title, item.MediaPath,
		item.DurationMs, item.Width, item.Height, item.Container, item.VideoCodec, item.AudioCodec, item.ThumbnailPath,
	)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// GetItem returns one library item by id, or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, id string) (*models.LibraryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM library_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// ListItems returns every library item, newest first.
func (s *Store) ListItems(ctx context.Context) ([]*models.LibraryItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM library_items ORDER BY created_at_ms DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []*models.LibraryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

// UpdateItemProbe fills in media metadata discovered by a probe step
// (duration/width/height/codecs), run after ffprobe inspects the file.
func (s *Store) UpdateItemProbe(ctx context.Context, id string, durationMs *int64, width, height *int, container, videoCodec, audioCodec *string) error {
	const q = `
		UPDATE library_items
		SET duration_ms = ?, width = ?, height = ?, container = ?, video_codec = ?, audio_codec = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, q, durationMs, width, height, container, videoCodec, audioCodec, id)
	if err != nil {
		return fmt.Errorf("update item probe %s: %w", id, err)
	}
	return nil
}

// SetItemThumbnail records the path to a generated thumbnail.
func (s *Store) SetItemThumbnail(ctx context.Context, id, thumbnailPath string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE library_items SET thumbnail_path = ? WHERE id = ?`, thumbnailPath, id)
	if err != nil {
		return fmt.Errorf("set item thumbnail %s: %w", id, err)
	}
	return nil
}

// DeleteItem removes a library item row and cascades its owned rows per
// spec §3's Ownership paragraph: subtitle_tracks, item_speakers, and
// ingest_provenance are deleted outright (the item exclusively owns them),
// while jobs referencing the item keep their history with item_id blanked
// to NULL rather than being deleted themselves. Callers are responsible for
// cascading the on-disk artifact tree via internal/artifacts.Tree.FlushItem.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtitle_tracks WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("cascade subtitle_tracks for item %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_speakers WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("cascade item_speakers for item %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ingest_provenance WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("cascade ingest_provenance for item %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE jobs SET item_id = NULL WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("blank job item_id for item %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM library_items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete item %s: %w", id, err)
		}
		return nil
	})
}
