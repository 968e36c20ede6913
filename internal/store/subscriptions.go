package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

const subscriptionColumns = `
	id, source_url, title, folder_map, output_dir_override,
	refresh_interval_minutes, last_queued_at_ms, active
`

func scanSubscription(row interface {
	Scan(dest ...any) error
}) (*models.YouTubeSubscription, error) {
	var sub models.YouTubeSubscription
	err := row.Scan(
		&sub.ID, &sub.SourceURL, &sub.Title, &sub.FolderMap, &sub.OutputDirOverride,
		&sub.RefreshIntervalMinutes, &sub.LastQueuedAtMs, &sub.Active,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription registers a new recurring channel/playlist watch.
func (s *Store) CreateSubscription(ctx context.Context, sub *models.YouTubeSubscription) error {
	const q = `
		INSERT INTO youtube_subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q,
		sub.ID, sub.SourceURL, sub.Title, sub.FolderMap, sub.OutputDirOverride,
		sub.RefreshIntervalMinutes, sub.LastQueuedAtMs, sub.Active,
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// GetSubscription returns one subscription by id, or ErrNotFound.
func (s *Store) GetSubscription(ctx context.Context, id string) (*models.YouTubeSubscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM youtube_subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return sub, nil
}

// ListActiveSubscriptions returns every subscription due for a refresh
// check, for the background poller to iterate.
func (s *Store) ListActiveSubscriptions(ctx context.Context) ([]*models.YouTubeSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM youtube_subscriptions WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*models.YouTubeSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

// ListSubscriptions returns every subscription, active and inactive, for
// export/inventory purposes.
func (s *Store) ListSubscriptions(ctx context.Context) ([]*models.YouTubeSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM youtube_subscriptions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*models.YouTubeSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

// UpsertSubscriptionByURL inserts a subscription, or updates the existing
// row sharing its source_url, so importing the same export twice is a
// no-op beyond refreshed metadata (spec §8 import/export round-trip).
func (s *Store) UpsertSubscriptionByURL(ctx context.Context, sub *models.YouTubeSubscription) error {
	const q = `
		INSERT INTO youtube_subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			title = excluded.title,
			folder_map = excluded.folder_map,
			output_dir_override = excluded.output_dir_override,
			refresh_interval_minutes = excluded.refresh_interval_minutes,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, q,
		sub.ID, sub.SourceURL, sub.Title, sub.FolderMap, sub.OutputDirOverride,
		sub.RefreshIntervalMinutes, sub.LastQueuedAtMs, sub.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.SourceURL, err)
	}
	return nil
}

// MarkSubscriptionQueued records that the poller just enqueued a download
// job for this subscription, so the next refresh cycle can skip ahead.
func (s *Store) MarkSubscriptionQueued(ctx context.Context, id string, nowMs int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE youtube_subscriptions SET last_queued_at_ms = ? WHERE id = ?`, nowMs, id)
	if err != nil {
		return fmt.Errorf("mark subscription queued %s: %w", id, err)
	}
	return nil
}

// SetSubscriptionActive pauses or resumes a subscription without deleting it.
func (s *Store) SetSubscriptionActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE youtube_subscriptions SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set subscription active %s: %w", id, err)
	}
	return nil
}

// DeleteSubscription removes a subscription row.
func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM youtube_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	return nil
}
