package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bobarin/readaloud/internal/logger"
)

// ---------------------------------------------------------------------------
// Google Cloud Text-to-Speech Service
// REST v1 text:synthesize with an API key. Audio comes back base64-encoded
// inside a JSON envelope.
// ---------------------------------------------------------------------------

const (
	googleTTSBaseURL         = "https://texttospeech.googleapis.com"
	googleTTSDefaultLanguage = "en-US"
	googleProviderName       = "google"
)

// GoogleTTSService handles text-to-speech via Google Cloud TTS.
type GoogleTTSService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// Ensure GoogleTTSService implements Synthesizer at compile time.
var _ Synthesizer = (*GoogleTTSService)(nil)

// GoogleOption configures the Google TTS service.
type GoogleOption func(*GoogleTTSService)

// WithGoogleBaseURL points the service at a different host (tests, proxies).
func WithGoogleBaseURL(u string) GoogleOption {
	return func(s *GoogleTTSService) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithGoogleClient sets a custom HTTP client.
func WithGoogleClient(c *http.Client) GoogleOption {
	return func(s *GoogleTTSService) {
		s.client = c
	}
}

func NewGoogleTTSService(apiKey string, opts ...GoogleOption) *GoogleTTSService {
	s := &GoogleTTSService{
		apiKey:  apiKey,
		baseURL: googleTTSBaseURL,
		client:  &http.Client{Timeout: providerTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GoogleTTSService) Name() string {
	return googleProviderName
}

// ---------------------------------------------------------------------------
// Request / response types
// ---------------------------------------------------------------------------

type googleSynthesizeRequest struct {
	Input       googleInput       `json:"input"`
	Voice       googleVoice       `json:"voice"`
	AudioConfig googleAudioConfig `json:"audioConfig"`
}

type googleInput struct {
	Text string `json:"text"`
}

type googleVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
	SSMLGender   string `json:"ssmlGender"`
}

type googleAudioConfig struct {
	AudioEncoding string `json:"audioEncoding"`
}

type googleSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synthesize converts text to MP3 audio with the named Cloud TTS voice.
func (s *GoogleTTSService) Synthesize(ctx context.Context, text, voice string) (*TTSResponse, error) {
	reqBody := googleSynthesizeRequest{
		Input: googleInput{Text: text},
		Voice: googleVoice{
			LanguageCode: LanguageCode(voice),
			Name:         voice,
			SSMLGender:   InferGender(voice),
		},
		AudioConfig: googleAudioConfig{AudioEncoding: "MP3"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Google TTS request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text:synthesize?key=%s", s.baseURL, url.QueryEscape(s.apiKey))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Infof("[Google TTS] Generating speech (voice=%s, gender=%s, textLen=%d)",
		voice, reqBody.Voice.SSMLGender, len(text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, newProviderError(googleProviderName, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(googleProviderName, resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		var apiErr googleErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, newProviderError(googleProviderName, resp.StatusCode, msg, nil)
	}

	var out googleSynthesizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, newProviderError(googleProviderName, resp.StatusCode, "invalid response body", err)
	}
	if out.AudioContent == "" {
		return nil, newProviderError(googleProviderName, resp.StatusCode, "response has no audio content", nil)
	}

	audioData, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, newProviderError(googleProviderName, resp.StatusCode, "audio content is not valid base64", err)
	}
	if len(audioData) == 0 {
		return nil, newProviderError(googleProviderName, resp.StatusCode, "empty audio", nil)
	}

	logger.Infof("[Google TTS] Speech generated (%d bytes)", len(audioData))

	return &TTSResponse{
		AudioData: audioData,
		Format:    "mp3",
	}, nil
}

// InferGender guesses the SSML gender from a voice name. Names containing
// "-D" or "-A" are MALE; everything else is FEMALE. The male rule is checked
// first, so a name matching both is MALE.
func InferGender(voice string) string {
	if strings.Contains(voice, "-D") || strings.Contains(voice, "-A") {
		return "MALE"
	}
	return "FEMALE"
}

// LanguageCode takes the first two dash-separated segments of a voice name,
// en-US-Wavenet-D -> en-US. Names without a region fall back to en-US.
func LanguageCode(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return googleTTSDefaultLanguage
	}
	return parts[0] + "-" + parts[1]
}
