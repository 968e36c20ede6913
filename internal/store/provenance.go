package store

import (
	"context"
	"fmt"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// RecordProvenance appends an ingest provenance row. The table is
// append-only from this package's API — no update or single-row delete
// accessor exists (spec §3 "audit trail") — but DeleteItem cascades the
// whole per-item audit trail away when its owning item is deleted, per §3's
// Ownership paragraph.
func (s *Store) RecordProvenance(ctx context.Context, p *models.IngestProvenance) error {
	const q = `
		INSERT INTO ingest_provenance (item_id, provider, source_url, created_at_ms)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q, p.ItemID, p.Provider, p.SourceURL, p.CreatedAtMs)
	if err != nil {
		return fmt.Errorf("record provenance for item %s: %w", p.ItemID, err)
	}
	return nil
}

// ListProvenance returns every provenance entry for an item, oldest first.
func (s *Store) ListProvenance(ctx context.Context, itemID string) ([]*models.IngestProvenance, error) {
	const q = `
		SELECT item_id, provider, source_url, created_at_ms
		FROM ingest_provenance
		WHERE item_id = ?
		ORDER BY created_at_ms
	`
	rows, err := s.db.QueryContext(ctx, q, itemID)
	if err != nil {
		return nil, fmt.Errorf("list provenance for item %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []*models.IngestProvenance
	for rows.Next() {
		var p models.IngestProvenance
		if err := rows.Scan(&p.ItemID, &p.Provider, &p.SourceURL, &p.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provenance: %w", err)
	}
	return out, nil
}
