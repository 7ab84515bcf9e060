package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobarin/readaloud/internal/models"
)

// ---------------------------------------------------------------------------
// Synthesizer is the common interface for text-to-speech providers
// Google and OpenAI both implement this so the narrator can use whichever
// the post resolves to without knowing the underlying provider.
// ---------------------------------------------------------------------------

// Provider requests are single-attempt and bounded by this timeout.
const providerTimeout = 30 * time.Second

// ErrMissingCredentials is returned by NewSynthesizer when no API key is configured.
var ErrMissingCredentials = errors.New("missing API key")

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData []byte
	Format    string // always "mp3" for the current providers
}

// Synthesizer is the interface that any TTS provider must implement.
type Synthesizer interface {
	// Synthesize converts already-normalized text to audio using the named voice.
	Synthesize(ctx context.Context, text, voice string) (*TTSResponse, error)
	// Name identifies the provider in logs and errors.
	Name() string
}

// NewSynthesizer builds the adapter for a service. An empty key yields
// ErrMissingCredentials rather than a request that is certain to fail.
func NewSynthesizer(service models.Service, apiKey string) (Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", service, ErrMissingCredentials)
	}

	switch service {
	case models.ServiceGoogle:
		return NewGoogleTTSService(apiKey), nil
	case models.ServiceOpenAI:
		return NewOpenAITTSService(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
}
