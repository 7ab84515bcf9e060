package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferGender(t *testing.T) {
	tests := []struct {
		voice string
		want  string
	}{
		{"en-US-Wavenet-D", "MALE"},
		{"en-US-Wavenet-A", "MALE"},
		{"en-US-Wavenet-F", "FEMALE"},
		{"en-US-Wavenet-C", "FEMALE"},
		{"en-US-Neural2-D", "MALE"},
		{"en-US-Neural2-F", "FEMALE"},
		{"en-GB-Custom-D-F", "MALE"}, // male rule wins
		{"", "FEMALE"},
		{"nova", "FEMALE"},
	}

	for _, tt := range tests {
		t.Run(tt.voice, func(t *testing.T) {
			assert.Equal(t, tt.want, InferGender(tt.voice))
		})
	}
}

func TestLanguageCode(t *testing.T) {
	assert.Equal(t, "en-US", LanguageCode("en-US-Wavenet-D"))
	assert.Equal(t, "de-DE", LanguageCode("de-DE-Neural2-B"))
	assert.Equal(t, "en-GB", LanguageCode("en-GB"))
	assert.Equal(t, "en-US", LanguageCode("wavenet"))
	assert.Equal(t, "en-US", LanguageCode(""))
}

func TestGoogleTTSService_Synthesize(t *testing.T) {
	audio := []byte("ID3-fake-mp3")

	var got googleSynthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text:synthesize", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString(audio),
		})
	}))
	defer srv.Close()

	s := NewGoogleTTSService("test-key", WithGoogleBaseURL(srv.URL))
	resp, err := s.Synthesize(context.Background(), "Test. Hello world", "en-US-Wavenet-D")
	require.NoError(t, err)

	assert.Equal(t, audio, resp.AudioData)
	assert.Equal(t, "mp3", resp.Format)
	assert.Equal(t, "Test. Hello world", got.Input.Text)
	assert.Equal(t, "en-US", got.Voice.LanguageCode)
	assert.Equal(t, "en-US-Wavenet-D", got.Voice.Name)
	assert.Equal(t, "MALE", got.Voice.SSMLGender)
	assert.Equal(t, "MP3", got.AudioConfig.AudioEncoding)
}

func TestGoogleTTSService_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "api error",
			status:     http.StatusForbidden,
			body:       `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`,
			wantStatus: http.StatusForbidden,
			wantMsg:    "API key not valid",
		},
		{
			name:       "non-json error",
			status:     http.StatusBadGateway,
			body:       "upstream down",
			wantStatus: http.StatusBadGateway,
			wantMsg:    "upstream down",
		},
		{
			name:       "malformed body",
			status:     http.StatusOK,
			body:       "{not json",
			wantStatus: http.StatusOK,
			wantMsg:    "invalid response body",
		},
		{
			name:       "missing audio",
			status:     http.StatusOK,
			body:       `{}`,
			wantStatus: http.StatusOK,
			wantMsg:    "no audio content",
		},
		{
			name:       "bad base64",
			status:     http.StatusOK,
			body:       `{"audioContent":"***"}`,
			wantStatus: http.StatusOK,
			wantMsg:    "not valid base64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := NewGoogleTTSService("k", WithGoogleBaseURL(srv.URL))
			_, err := s.Synthesize(context.Background(), "text", "en-US-Wavenet-F")

			var pe *ProviderError
			require.True(t, errors.As(err, &pe), "want *ProviderError, got %T", err)
			assert.Equal(t, "google", pe.Provider)
			assert.Equal(t, tt.wantStatus, pe.StatusCode)
			assert.Contains(t, pe.Error(), tt.wantMsg)
		})
	}
}

func TestGoogleTTSService_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewGoogleTTSService("k", WithGoogleBaseURL(url))
	_, err := s.Synthesize(context.Background(), "text", "en-US-Wavenet-D")

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, pe.StatusCode)
	assert.True(t, pe.Retryable())
}
