package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/bobarin/readaloud/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable Postgres database, e.g.
// TEST_DATABASE_URL=postgres://postgres@localhost/readaloud_test?sslmode=disable
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	database, err := New(url)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx))
	_, err = database.ExecContext(ctx, `TRUNCATE posts, post_audio_settings, audio_settings RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return database
}

func insertPost(t *testing.T, database *DB, title, content string) int64 {
	t.Helper()
	var id int64
	err := database.QueryRowContext(context.Background(),
		`INSERT INTO posts (title, content) VALUES ($1, $2) RETURNING id`, title, content,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestGetPost(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	id := insertPost(t, database, "Test", "<p>Hello  world</p>")

	post, err := database.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Test", post.Title)
	assert.Equal(t, "<p>Hello  world</p>", post.Content)

	_, err = database.GetPost(ctx, id+1000)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestPostAudioSettings(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	id := insertPost(t, database, "T", "C")

	s, err := database.GetPostAudioSettings(ctx, id)
	require.NoError(t, err)
	assert.False(t, s.Enabled)
	assert.Empty(t, s.Voice)

	s.Enabled = true
	s.Voice = "nova"
	s.Service = "openai"
	require.NoError(t, database.UpsertPostAudioSettings(ctx, s))

	got, err := database.GetPostAudioSettings(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, "nova", got.Voice)
	assert.Equal(t, "openai", got.Service)
}

func TestSettingsSeedAndSave(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	s, err := database.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), s)

	seed := models.DefaultSettings()
	seed.GoogleAPIKey = "g"
	seeded, err := database.SeedSettings(ctx, seed)
	require.NoError(t, err)
	assert.True(t, seeded)

	seed.GoogleAPIKey = "other"
	seeded, err = database.SeedSettings(ctx, seed)
	require.NoError(t, err)
	assert.False(t, seeded)

	s, err = database.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g", s.GoogleAPIKey)

	s.DefaultVoice = "en-US-Wavenet-F"
	require.NoError(t, database.SaveSettings(ctx, s))

	s, err = database.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "en-US-Wavenet-F", s.DefaultVoice)
}
