// Package narrator turns a post into a stored audio artifact: resolve the
// effective service and voice, normalize the content, derive the cache key,
// and synthesize only when no artifact exists for that key.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobarin/readaloud/internal/content"
	"github.com/bobarin/readaloud/internal/logger"
	"github.com/bobarin/readaloud/internal/models"
	"github.com/bobarin/readaloud/internal/services"
	"github.com/bobarin/readaloud/internal/storage"
	"golang.org/x/sync/singleflight"
)

// PostRepository reads posts and their audio overrides from the host CMS.
// GetPost must wrap models.ErrNotFound for unknown IDs.
type PostRepository interface {
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	GetPostAudioSettings(ctx context.Context, postID int64) (*models.PostAudioSettings, error)
}

// SettingsRepository returns the current plugin settings.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (models.Settings, error)
}

// generateTimeout bounds one synthesize-and-store flight.
const generateTimeout = 2 * time.Minute

// SynthesizerFactory builds a provider adapter for a service and credential.
type SynthesizerFactory func(service models.Service, apiKey string) (services.Synthesizer, error)

type Service struct {
	posts      PostRepository
	settings   SettingsRepository
	store      storage.Store
	newSynth   SynthesizerFactory
	transforms []content.Transform

	inflight singleflight.Group
}

type Option func(*Service)

// WithSynthesizerFactory replaces services.NewSynthesizer.
func WithSynthesizerFactory(f SynthesizerFactory) Option {
	return func(s *Service) { s.newSynth = f }
}

// WithTransforms replaces the built-in content transforms.
func WithTransforms(t ...content.Transform) Option {
	return func(s *Service) { s.transforms = t }
}

func New(posts PostRepository, settings SettingsRepository, store storage.Store, opts ...Option) *Service {
	s := &Service{
		posts:      posts,
		settings:   settings,
		store:      store,
		newSynth:   services.NewSynthesizer,
		transforms: []content.Transform{content.ExpandLineBreaks, content.StripURLs},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolved is an AudioRequest after defaults, overrides and normalization.
type Resolved struct {
	Post     *models.Post
	Service  models.Service
	Voice    string
	Text     string
	Key      string
	Settings models.Settings
}

// ResolveSettings returns the effective service, voice and theme for a post:
// per-post override first, then the global default.
func ResolveSettings(global models.Settings, override *models.PostAudioSettings) (models.Service, string, models.Theme) {
	svc := global.DefaultService
	voice := global.DefaultVoice
	theme := global.DefaultTheme

	if override != nil {
		if parsed, err := models.ParseService(override.Service); err == nil {
			svc = parsed
		}
		if override.Voice != "" {
			voice = override.Voice
		}
		if t := models.Theme(override.Theme); t.Valid() {
			theme = t
		}
	}

	return svc, voice, theme
}

// Resolve fills in a request's service and voice, loads and normalizes the
// post content, and computes the cache key. Fields set on req win over
// post overrides and global defaults.
func (s *Service) Resolve(ctx context.Context, req models.AudioRequest) (*Resolved, error) {
	if req.PostID <= 0 {
		return nil, fmt.Errorf("%w: invalid post ID", ErrValidation)
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	post, err := s.posts.GetPost(ctx, req.PostID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("post %d: %w", req.PostID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if !post.Published() {
		return nil, fmt.Errorf("post %d is %q: %w", req.PostID, post.Status, ErrNotFound)
	}

	override, err := s.posts.GetPostAudioSettings(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post audio settings: %w", err)
	}

	svc, voice, _ := ResolveSettings(settings, override)
	if req.Service != "" {
		svc, err = models.ParseService(string(req.Service))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if v := strings.TrimSpace(req.Voice); v != "" {
		voice = v
	}

	raw := req.RawText
	if raw == "" {
		raw = post.Content
	}

	n := &content.Normalizer{Transforms: s.transforms, WordLimit: settings.WordLimit}
	text := n.Normalize(post.Title, raw)
	if text == "" {
		return nil, ErrEmptyContent
	}

	return &Resolved{
		Post:     post,
		Service:  svc,
		Voice:    voice,
		Text:     text,
		Key:      storage.Fingerprint(text, voice),
		Settings: settings,
	}, nil
}

// Lookup reports whether audio for req already exists. It never calls a provider.
func (s *Service) Lookup(ctx context.Context, req models.AudioRequest) (*models.AudioArtifact, bool, error) {
	r, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, false, err
	}
	return s.lookup(ctx, r)
}

func (s *Service) lookup(ctx context.Context, r *Resolved) (*models.AudioArtifact, bool, error) {
	ok, err := s.store.Exists(ctx, r.Key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check audio: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &models.AudioArtifact{
		Key:     r.Key,
		URL:     s.store.URLFor(r.Key),
		Service: r.Service,
		Voice:   r.Voice,
	}, true, nil
}

// Generate returns the artifact for req, synthesizing and storing it on a
// cache miss. Concurrent calls for the same key share one provider call.
func (s *Service) Generate(ctx context.Context, req models.AudioRequest) (*models.AudioArtifact, error) {
	r, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	// The flight is shared by every caller waiting on this key, so it runs
	// detached from the first caller's cancellation with its own deadline.
	ch := s.inflight.DoChan(r.Key, func() (interface{}, error) {
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), generateTimeout)
		defer cancel()
		return s.generate(gctx, r)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Debugf("[Narrator] Shared in-flight generation for post %d (key=%s)", r.Post.ID, r.Key[:12])
		}
		return res.Val.(*models.AudioArtifact), nil
	}
}

func (s *Service) generate(ctx context.Context, r *Resolved) (*models.AudioArtifact, error) {
	if art, ok, err := s.lookup(ctx, r); err != nil {
		return nil, err
	} else if ok {
		logger.Infof("[Narrator] Reusing audio for post %d (key=%s)", r.Post.ID, r.Key[:12])
		return art, nil
	}

	synth, err := s.newSynth(r.Service, r.Settings.APIKeyFor(r.Service))
	if err != nil {
		if errors.Is(err, services.ErrMissingCredentials) {
			return nil, newConfigError(r.Service, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	logger.Infof("[Narrator] Generating audio for post %d (service=%s, voice=%s, words=%d)",
		r.Post.ID, r.Service, r.Voice, len(strings.Fields(r.Text)))

	resp, err := synth.Synthesize(ctx, r.Text, r.Voice)
	if err != nil {
		logger.Errorf("[Narrator] %s synthesis failed for post %d: %v", synth.Name(), r.Post.ID, err)
		return nil, &providerError{err: err}
	}

	art, err := s.store.Put(ctx, r.Key, resp.AudioData)
	if err != nil {
		return nil, fmt.Errorf("failed to store audio: %w", err)
	}
	art.Service = r.Service
	art.Voice = r.Voice

	return art, nil
}
