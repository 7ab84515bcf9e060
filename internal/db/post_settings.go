package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/readaloud/internal/models"
)

// GetPostAudioSettings returns the overrides for a post. A post without a row
// gets zero-valued settings (disabled, everything inherited).
func (db *DB) GetPostAudioSettings(ctx context.Context, postID int64) (*models.PostAudioSettings, error) {
	query := `
		SELECT post_id, enabled, service, voice, theme, updated_at
		FROM post_audio_settings
		WHERE post_id = $1
	`

	s := &models.PostAudioSettings{}
	err := db.QueryRowContext(ctx, query, postID).Scan(
		&s.PostID, &s.Enabled, &s.Service, &s.Voice, &s.Theme, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return &models.PostAudioSettings{PostID: postID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post audio settings: %w", err)
	}

	return s, nil
}

// UpsertPostAudioSettings creates or replaces the overrides for a post.
func (db *DB) UpsertPostAudioSettings(ctx context.Context, s *models.PostAudioSettings) error {
	query := `
		INSERT INTO post_audio_settings (post_id, enabled, service, voice, theme)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (post_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			service = EXCLUDED.service,
			voice = EXCLUDED.voice,
			theme = EXCLUDED.theme,
			updated_at = NOW()
		RETURNING updated_at
	`

	err := db.QueryRowContext(
		ctx, query,
		s.PostID, s.Enabled, s.Service, s.Voice, s.Theme,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert post audio settings: %w", err)
	}

	return nil
}
