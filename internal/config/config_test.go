package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobarin/readaloud/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/blog?sslmode=disable")
	t.Setenv("PUBLIC_BASE_URL", "https://blog.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "https://blog.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, "uploads/ai-audio", cfg.AudioDir)
	assert.Equal(t, 24*time.Hour, cfg.NonceTTL)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestValidateStorageBackend(t *testing.T) {
	cfg := &Config{DatabaseURL: "x", StorageBackend: "supabase", NonceTTL: time.Hour}
	assert.ErrorContains(t, cfg.Validate(), "SUPABASE_URL")

	cfg.StorageBackend = "s3"
	assert.ErrorContains(t, cfg.Validate(), "STORAGE_BACKEND")

	cfg.StorageBackend = "supabase"
	cfg.SupabaseURL = "https://x.supabase.co"
	cfg.SupabaseServiceKey = "k"
	assert.NoError(t, cfg.Validate())
}

func TestSeedSettingsFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := "always_enable: true\ndefault_service: openai\ndefault_voice: nova\nplayer_text: ${PLAYER_LABEL}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("PLAYER_LABEL", "Hear this post")

	cfg := &Config{SettingsFile: path, GoogleTTSKey: "g-env", OpenAIKey: "o-env"}
	s, err := cfg.SeedSettings()
	require.NoError(t, err)

	assert.True(t, s.AlwaysEnable)
	assert.Equal(t, models.ServiceOpenAI, s.DefaultService)
	assert.Equal(t, "nova", s.DefaultVoice)
	assert.Equal(t, "Hear this post", s.PlayerText)
	assert.Equal(t, "g-env", s.GoogleAPIKey)
	assert.Equal(t, "o-env", s.OpenAIAPIKey)
	assert.Equal(t, 500, s.WordLimit)
	assert.Equal(t, models.ThemeLight, s.DefaultTheme)
}

func TestSeedSettingsMissingFile(t *testing.T) {
	cfg := &Config{SettingsFile: filepath.Join(t.TempDir(), "nope.yaml")}
	_, err := cfg.SeedSettings()
	assert.Error(t, err)
}
