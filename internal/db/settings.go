package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/readaloud/internal/models"
)

// GetSettings loads the plugin settings, filling unset fields with defaults.
func (db *DB) GetSettings(ctx context.Context) (models.Settings, error) {
	var options models.JSONB
	err := db.QueryRowContext(ctx, `SELECT options FROM audio_settings WHERE id = 1`).Scan(&options)

	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	s, err := models.SettingsFromJSONB(options)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}

	return s.WithDefaults(), nil
}

// SaveSettings replaces the stored settings document.
func (db *DB) SaveSettings(ctx context.Context, s models.Settings) error {
	options, err := s.ToJSONB()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	query := `
		INSERT INTO audio_settings (id, options)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET
			options = EXCLUDED.options,
			updated_at = NOW()
	`
	if _, err := db.ExecContext(ctx, query, options); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

// SeedSettings stores s only when no settings row exists yet, so a restart
// never clobbers values changed through the admin API.
func (db *DB) SeedSettings(ctx context.Context, s models.Settings) (bool, error) {
	options, err := s.ToJSONB()
	if err != nil {
		return false, fmt.Errorf("failed to encode settings: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO audio_settings (id, options) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		options,
	)
	if err != nil {
		return false, fmt.Errorf("failed to seed settings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows == 1, nil
}
