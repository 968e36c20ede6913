package engine

import (
	"context"

	"github.com/Nuntissura/voxvulgi/internal/store/models"
)

// SpeakersList returns every speaker registered for an item.
func (e *Engine) SpeakersList(ctx context.Context, itemID string) ([]*models.ItemSpeaker, error) {
	return e.store.ListSpeakers(ctx, itemID)
}

// SpeakersUpsert inserts or updates a speaker's display name and/or TTS
// voice assignment, keyed by (item_id, speaker_key).
func (e *Engine) SpeakersUpsert(ctx context.Context, itemID, speakerKey string, displayName, ttsVoiceID, ttsVoiceProfilePath *string) (*models.ItemSpeaker, error) {
	sp := &models.ItemSpeaker{
		ItemID:              itemID,
		SpeakerKey:          speakerKey,
		DisplayName:         displayName,
		TTSVoiceID:          ttsVoiceID,
		TTSVoiceProfilePath: ttsVoiceProfilePath,
	}
	if err := e.store.UpsertSpeaker(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}
