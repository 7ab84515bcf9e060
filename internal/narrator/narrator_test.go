package narrator

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobarin/readaloud/internal/models"
	"github.com/bobarin/readaloud/internal/services"
	"github.com/bobarin/readaloud/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePosts struct {
	posts     map[int64]*models.Post
	overrides map[int64]*models.PostAudioSettings
}

func (f *fakePosts) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (f *fakePosts) GetPostAudioSettings(ctx context.Context, postID int64) (*models.PostAudioSettings, error) {
	if o, ok := f.overrides[postID]; ok {
		return o, nil
	}
	return &models.PostAudioSettings{PostID: postID}, nil
}

type fakeSettings struct {
	s models.Settings
}

func (f *fakeSettings) GetSettings(ctx context.Context) (models.Settings, error) {
	return f.s, nil
}

type stubSynth struct {
	name  string
	audio []byte
	err   error
	calls atomic.Int32
	delay time.Duration

	mu       sync.Mutex
	lastText string
}

func (s *stubSynth) Name() string { return s.name }

func (s *stubSynth) Synthesize(ctx context.Context, text, voice string) (*services.TTSResponse, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastText = text
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &services.TTSResponse{AudioData: s.audio, Format: "mp3"}, nil
}

type fixture struct {
	svc      *Service
	store    *storage.LocalStore
	synth    *stubSynth
	settings *fakeSettings
	posts    *fakePosts
	gotKey   string
	gotSvc   models.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: storage.NewLocalStore(t.TempDir(), "https://blog.example.com/audio"),
		synth: &stubSynth{name: "stub", audio: []byte("ID3-stub-audio")},
		settings: &fakeSettings{s: func() models.Settings {
			s := models.DefaultSettings()
			s.GoogleAPIKey = "g-key"
			s.OpenAIAPIKey = "o-key"
			return s
		}()},
		posts: &fakePosts{
			posts: map[int64]*models.Post{
				42: {ID: 42, Title: "Test", Content: "<p>Hello  world</p>", Status: models.PostStatusPublish},
				7:  {ID: 7, Title: "", Content: "<p> </p>", Status: models.PostStatusPublish},
				8:  {ID: 8, Title: "Draft", Content: "<p>Not yet</p>", Status: "draft"},
			},
			overrides: map[int64]*models.PostAudioSettings{},
		},
	}
	f.svc = New(f.posts, f.settings, f.store, WithSynthesizerFactory(
		func(service models.Service, apiKey string) (services.Synthesizer, error) {
			if apiKey == "" {
				return nil, services.ErrMissingCredentials
			}
			f.gotKey = apiKey
			f.gotSvc = service
			return f.synth, nil
		},
	))
	return f
}

func TestGenerateThenLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := models.AudioRequest{PostID: 42, Service: models.ServiceGoogle, Voice: "en-US-Wavenet-D"}

	art, err := f.svc.Generate(ctx, req)
	require.NoError(t, err)

	key := storage.Fingerprint("Test. Hello world", "en-US-Wavenet-D")
	assert.Equal(t, key, art.Key)
	assert.Equal(t, "https://blog.example.com/audio/audio_"+key+".mp3", art.URL)
	assert.Equal(t, models.ServiceGoogle, art.Service)
	assert.Equal(t, "g-key", f.gotKey)
	assert.Equal(t, "Test. Hello world", f.synth.lastText)

	data, err := os.ReadFile(art.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-stub-audio"), data)

	found, ok, err := f.svc.Lookup(ctx, req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, art.URL, found.URL)
	assert.Equal(t, int32(1), f.synth.calls.Load())
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := models.AudioRequest{PostID: 42, Service: models.ServiceGoogle, Voice: "en-US-Wavenet-D"}

	first, err := f.svc.Generate(ctx, req)
	require.NoError(t, err)

	f.synth.audio = []byte("different bytes")
	second, err := f.svc.Generate(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, int32(1), f.synth.calls.Load())

	data, err := os.ReadFile(first.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-stub-audio"), data)
}

func TestGenerateCollapsesConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	f.synth.delay = 50 * time.Millisecond
	req := models.AudioRequest{PostID: 42, Service: models.ServiceOpenAI, Voice: "nova"}

	var wg sync.WaitGroup
	urls := make([]string, 8)
	for i := range urls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			art, err := f.svc.Generate(context.Background(), req)
			if assert.NoError(t, err) {
				urls[i] = art.URL
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.synth.calls.Load())
	for _, u := range urls {
		assert.Equal(t, urls[0], u)
	}
}

func TestGenerateSurvivesFirstCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.synth.delay = 200 * time.Millisecond
	req := models.AudioRequest{PostID: 42, Service: models.ServiceGoogle, Voice: "en-US-Wavenet-D"}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	go func() {
		_, err := f.svc.Generate(ctxA, req)
		errA <- err
	}()
	require.Eventually(t, func() bool { return f.synth.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		art *models.AudioArtifact
		err error
	}
	resB := make(chan result, 1)
	go func() {
		art, err := f.svc.Generate(context.Background(), req)
		resB <- result{art, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, int32(1), f.synth.calls.Load())

	data, err := os.ReadFile(b.art.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-stub-audio"), data)
}

func TestCancelledCallerStillStoresAudio(t *testing.T) {
	f := newFixture(t)
	f.synth.delay = 100 * time.Millisecond
	req := models.AudioRequest{PostID: 42, Service: models.ServiceGoogle, Voice: "en-US-Wavenet-D"}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for f.synth.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	_, err := f.svc.Generate(ctx, req)
	require.ErrorIs(t, err, context.Canceled)

	require.Eventually(t, func() bool {
		_, ok, err := f.svc.Lookup(context.Background(), req)
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), f.synth.calls.Load())
}

func TestLookupMiss(t *testing.T) {
	f := newFixture(t)

	_, ok, err := f.svc.Lookup(context.Background(), models.AudioRequest{PostID: 42, Voice: "nova"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(0), f.synth.calls.Load())
}

func TestVoiceChangeProducesNewKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Generate(ctx, models.AudioRequest{PostID: 42, Service: models.ServiceGoogle, Voice: "en-US-Wavenet-D"})
	require.NoError(t, err)
	b, err := f.svc.Generate(ctx, models.AudioRequest{PostID: 42, Service: models.ServiceGoogle, Voice: "en-US-Wavenet-F"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, b.Key)
	assert.Equal(t, int32(2), f.synth.calls.Load())
}

func TestGenerateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, models.AudioRequest{PostID: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Generate(ctx, models.AudioRequest{PostID: 999})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Generate(ctx, models.AudioRequest{PostID: 8})
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.svc.Lookup(ctx, models.AudioRequest{PostID: 8})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Generate(ctx, models.AudioRequest{PostID: 7})
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Generate(ctx, models.AudioRequest{PostID: 42, Service: "polly"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, int32(0), f.synth.calls.Load())
}

func TestGenerateMissingCredentials(t *testing.T) {
	f := newFixture(t)
	f.settings.s.GoogleAPIKey = ""

	_, err := f.svc.Generate(context.Background(), models.AudioRequest{PostID: 42, Service: models.ServiceGoogle})
	require.ErrorIs(t, err, ErrConfiguration)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, models.ServiceGoogle, cfgErr.Service)
	assert.Contains(t, err.Error(), "Settings")
	assert.Equal(t, int32(0), f.synth.calls.Load())
}

func TestGenerateProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.synth.err = &services.ProviderError{Provider: "google", StatusCode: 500, Message: "backend error"}
	req := models.AudioRequest{PostID: 42, Service: models.ServiceGoogle, Voice: "en-US-Wavenet-D"}

	_, err := f.svc.Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrProvider)

	var pe *services.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 500, pe.StatusCode)

	_, ok, err := f.svc.Lookup(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, ok, "failed generation must not leave an artifact")
}

func TestLegacyServiceAlias(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Generate(context.Background(), models.AudioRequest{PostID: 42, Service: "chatgpt", Voice: "alloy"})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceOpenAI, f.gotSvc)
	assert.Equal(t, "o-key", f.gotKey)
}

func TestResolveUsesOverridesThenDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Resolve(ctx, models.AudioRequest{PostID: 42})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceGoogle, r.Service)
	assert.Equal(t, "en-US-Wavenet-D", r.Voice)

	f.posts.overrides[42] = &models.PostAudioSettings{PostID: 42, Service: "openai", Voice: "nova"}
	r, err = f.svc.Resolve(ctx, models.AudioRequest{PostID: 42})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceOpenAI, r.Service)
	assert.Equal(t, "nova", r.Voice)

	// explicit request values win
	r, err = f.svc.Resolve(ctx, models.AudioRequest{PostID: 42, Service: models.ServiceGoogle, Voice: "en-US-Wavenet-F"})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceGoogle, r.Service)
	assert.Equal(t, "en-US-Wavenet-F", r.Voice)
}

func TestResolveAppliesWordLimit(t *testing.T) {
	f := newFixture(t)
	f.settings.s.WordLimit = 2
	f.posts.posts[5] = &models.Post{ID: 5, Title: "T", Content: "one two three four", Status: models.PostStatusPublish}

	r, err := f.svc.Resolve(context.Background(), models.AudioRequest{PostID: 5})
	require.NoError(t, err)
	assert.Equal(t, "T. one two", r.Text)
}

func TestResolveSettings(t *testing.T) {
	global := models.DefaultSettings()

	svc, voice, theme := ResolveSettings(global, nil)
	assert.Equal(t, models.ServiceGoogle, svc)
	assert.Equal(t, "en-US-Wavenet-D", voice)
	assert.Equal(t, models.ThemeLight, theme)

	svc, voice, theme = ResolveSettings(global, &models.PostAudioSettings{Service: "chatgpt", Voice: "echo", Theme: "dark"})
	assert.Equal(t, models.ServiceOpenAI, svc)
	assert.Equal(t, "echo", voice)
	assert.Equal(t, models.ThemeDark, theme)

	_, _, theme = ResolveSettings(global, &models.PostAudioSettings{Theme: "neon"})
	assert.Equal(t, models.ThemeLight, theme)
}
