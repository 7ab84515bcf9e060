package services

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bobarin/readaloud/internal/logger"
	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// OpenAI Text-to-Speech Service
// Uses the audio/speech endpoint through go-openai. The response body is
// the MP3 file itself.
// ---------------------------------------------------------------------------

const openAIProviderName = "openai"

type OpenAITTSService struct {
	client *openai.Client
	model  openai.SpeechModel
}

var _ Synthesizer = (*OpenAITTSService)(nil)

// OpenAIOption adjusts the go-openai client configuration.
type OpenAIOption func(*openai.ClientConfig)

// WithOpenAIBaseURL sets a custom base URL, e.g. an httptest server ending in /v1.
func WithOpenAIBaseURL(u string) OpenAIOption {
	return func(c *openai.ClientConfig) {
		c.BaseURL = u
	}
}

func NewOpenAITTSService(apiKey string, opts ...OpenAIOption) *OpenAITTSService {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: providerTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OpenAITTSService{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.TTSModel1,
	}
}

func (s *OpenAITTSService) Name() string {
	return openAIProviderName
}

// Synthesize converts text to MP3 audio with an OpenAI voice (alloy, nova, ...).
func (s *OpenAITTSService) Synthesize(ctx context.Context, text, voice string) (*TTSResponse, error) {
	logger.Infof("[OpenAI TTS] Generating speech (voice=%s, model=%s, textLen=%d)", voice, s.model, len(text))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, newProviderError(openAIProviderName, statusFromOpenAIError(err), "speech request failed", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, newProviderError(openAIProviderName, http.StatusOK, "failed to read audio", err)
	}
	if len(audioData) == 0 {
		return nil, newProviderError(openAIProviderName, http.StatusOK, "empty audio", nil)
	}

	logger.Infof("[OpenAI TTS] Speech generated (%d bytes)", len(audioData))

	return &TTSResponse{
		AudioData: audioData,
		Format:    "mp3",
	}, nil
}

// statusFromOpenAIError digs the HTTP status out of go-openai's error types.
func statusFromOpenAIError(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
