package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Enums
type Service string

const (
	ServiceGoogle Service = "google"
	ServiceOpenAI Service = "openai"

	// serviceLegacyChatGPT is the value older settings stored for OpenAI.
	serviceLegacyChatGPT = "chatgpt"
)

// ParseService accepts "google", "openai" and the legacy "chatgpt" alias.
func ParseService(s string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ServiceGoogle):
		return ServiceGoogle, nil
	case string(ServiceOpenAI), serviceLegacyChatGPT:
		return ServiceOpenAI, nil
	default:
		return "", fmt.Errorf("unknown service %q", s)
	}
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

// Post is the slice of a host CMS post that narration needs.
type Post struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

// PostStatusPublish marks a post visible to the public.
const PostStatusPublish = "publish"

// Published reports whether the post may be narrated for anonymous readers.
func (p *Post) Published() bool {
	return p.Status == PostStatusPublish
}

// PostAudioSettings holds per-post overrides. Empty strings inherit the global default.
type PostAudioSettings struct {
	PostID    int64     `json:"post_id"`
	Enabled   bool      `json:"enabled"`
	Service   string    `json:"service"`
	Voice     string    `json:"voice"`
	Theme     string    `json:"theme"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settings are the persisted plugin-wide options.
type Settings struct {
	GoogleAPIKey    string  `json:"google_api_key" yaml:"google_api_key"`
	OpenAIAPIKey    string  `json:"openai_api_key" yaml:"openai_api_key"`
	AlwaysEnable    bool    `json:"always_enable" yaml:"always_enable"`
	DefaultService  Service `json:"default_service" yaml:"default_service"`
	DefaultVoice    string  `json:"default_voice" yaml:"default_voice"`
	DefaultTheme    Theme   `json:"default_theme" yaml:"default_theme"`
	PrimaryColor    string  `json:"primary_color" yaml:"primary_color"`
	TextColor       string  `json:"text_color" yaml:"text_color"`
	BackgroundColor string  `json:"background_color" yaml:"background_color"`
	PlayerText      string  `json:"player_text" yaml:"player_text"`
	WordLimit       int     `json:"word_limit" yaml:"word_limit"`
}

// DefaultSettings mirrors the values a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		DefaultService:  ServiceGoogle,
		DefaultVoice:    "en-US-Wavenet-D",
		DefaultTheme:    ThemeLight,
		PrimaryColor:    "#3B82F6",
		TextColor:       "#111827",
		BackgroundColor: "#FFFFFF",
		PlayerText:      "Listen to Article",
		WordLimit:       500,
	}
}

// WithDefaults fills zero-valued fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.DefaultService == "" {
		s.DefaultService = d.DefaultService
	}
	if s.DefaultVoice == "" {
		s.DefaultVoice = d.DefaultVoice
	}
	if !s.DefaultTheme.Valid() {
		s.DefaultTheme = d.DefaultTheme
	}
	if s.PrimaryColor == "" {
		s.PrimaryColor = d.PrimaryColor
	}
	if s.TextColor == "" {
		s.TextColor = d.TextColor
	}
	if s.BackgroundColor == "" {
		s.BackgroundColor = d.BackgroundColor
	}
	if s.PlayerText == "" {
		s.PlayerText = d.PlayerText
	}
	if s.WordLimit == 0 {
		s.WordLimit = d.WordLimit
	}
	return s
}

// APIKeyFor returns the stored credential for a provider.
func (s Settings) APIKeyFor(svc Service) string {
	switch svc {
	case ServiceGoogle:
		return s.GoogleAPIKey
	case ServiceOpenAI:
		return s.OpenAIAPIKey
	}
	return ""
}

// ToJSONB converts settings for the JSONB options column.
func (s Settings) ToJSONB() (JSONB, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var j JSONB
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return j, nil
}

// SettingsFromJSONB is the inverse of ToJSONB.
func SettingsFromJSONB(j JSONB) (Settings, error) {
	var s Settings
	if j == nil {
		return s, nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// AudioRequest is created per playback attempt.
type AudioRequest struct {
	PostID  int64   `json:"post_id"`
	Service Service `json:"ai_service"`
	Voice   string  `json:"voice"`
	RawText string  `json:"-"`
}

// AudioArtifact is a stored synthesized file addressed by its fingerprint.
type AudioArtifact struct {
	Key         string    `json:"key"`
	FilePath    string    `json:"file_path"`
	URL         string    `json:"url"`
	Service     Service   `json:"service,omitempty"`
	Voice       string    `json:"voice,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Voice is one selectable voice for a service.
type Voice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Voices lists the voices offered per service.
var Voices = map[Service][]Voice{
	ServiceGoogle: {
		{ID: "en-US-Wavenet-D", Label: "Male Voice 1 (Wavenet-D)"},
		{ID: "en-US-Wavenet-F", Label: "Female Voice 1 (Wavenet-F)"},
		{ID: "en-US-Wavenet-A", Label: "Male Voice 2 (Wavenet-A)"},
		{ID: "en-US-Wavenet-C", Label: "Female Voice 2 (Wavenet-C)"},
		{ID: "en-US-Neural2-D", Label: "Male Voice 3 (Neural2-D)"},
		{ID: "en-US-Neural2-F", Label: "Female Voice 3 (Neural2-F)"},
	},
	ServiceOpenAI: {
		{ID: "alloy", Label: "Alloy"},
		{ID: "echo", Label: "Echo"},
		{ID: "fable", Label: "Fable"},
		{ID: "onyx", Label: "Onyx"},
		{ID: "nova", Label: "Nova"},
		{ID: "shimmer", Label: "Shimmer"},
	},
}

// DTOs for API requests and responses

type AudioURLResponse struct {
	AudioURL string `json:"audio_url"`
}

type NonceResponse struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SettingsExport is the portable settings document. API keys are never exported.
type SettingsExport struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Settings  JSONB     `json:"settings"`
}

type UpdatePostAudioSettingsRequest struct {
	Enabled *bool   `json:"enabled,omitempty"`
	Service *string `json:"service,omitempty"`
	Voice   *string `json:"voice,omitempty"`
	Theme   *string `json:"theme,omitempty"`
}
