package store

import (
	"context"
	"fmt"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// UpsertSpeaker inserts or updates a per-item speaker registry row, keyed
// by (item_id, speaker_key) — diarization assigns the key, the user later
// attaches a display name and/or TTS voice.
func (s *Store) UpsertSpeaker(ctx context.Context, sp *models.ItemSpeaker) error {
	const q = `
		INSERT INTO item_speakers (item_id, speaker_key, display_name, tts_voice_id, tts_voice_profile_path)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (item_id, speaker_key) DO UPDATE SET
			display_name = excluded.display_name,
			tts_voice_id = excluded.tts_voice_id,
			tts_voice_profile_path = excluded.tts_voice_profile_path
	`
	_, err := s.db.ExecContext(ctx, q, sp.ItemID, sp.SpeakerKey, sp.DisplayName, sp.TTSVoiceID, sp.TTSVoiceProfilePath)
	if err != nil {
		return fmt.Errorf("upsert speaker %s/%s: %w", sp.ItemID, sp.SpeakerKey, err)
	}
	return nil
}

// ListSpeakers returns every speaker registered for an item.
func (s *Store) ListSpeakers(ctx context.Context, itemID string) ([]*models.ItemSpeaker, error) {
	const q = `
		SELECT item_id, speaker_key, display_name, tts_voice_id, tts_voice_profile_path
		FROM item_speakers
		WHERE item_id = ?
		ORDER BY speaker_key
	`
	rows, err := s.db.QueryContext(ctx, q, itemID)
	if err != nil {
		return nil, fmt.Errorf("list speakers for item %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []*models.ItemSpeaker
	for rows.Next() {
		var sp models.ItemSpeaker
		if err := rows.Scan(&sp.ItemID, &sp.SpeakerKey, &sp.DisplayName, &sp.TTSVoiceID, &sp.TTSVoiceProfilePath); err != nil {
			return nil, fmt.Errorf("scan speaker: %w", err)
		}
		out = append(out, &sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate speakers: %w", err)
	}
	return out, nil
}
