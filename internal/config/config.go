package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bobarin/readaloud/internal/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	APIPort            string
	PublicBaseURL      string // Prefix for artifact URLs, e.g. https://blog.example.com
	BackendAPIKey      string // API key for admin routes (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database (host CMS)
	DatabaseURL string

	// Redis (anti-forgery tokens)
	RedisURL string
	NonceTTL time.Duration

	// Storage
	StorageBackend        string // "local" or "supabase"
	AudioDir              string
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Provider credentials; seed the persisted settings when those are empty
	GoogleTTSKey string
	OpenAIKey    string

	// Optional YAML file with initial plugin settings
	SettingsFile string

	// Logging
	LogLevel string
	LogFile  string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		NonceTTL:              getEnvDuration("NONCE_TTL", 24*time.Hour),
		StorageBackend:        getEnv("STORAGE_BACKEND", "local"),
		AudioDir:              getEnv("AUDIO_DIR", "uploads/ai-audio"),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "ai-audio"),
		GoogleTTSKey:          getEnv("GOOGLE_TTS_API_KEY", ""),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		SettingsFile:          getEnv("SETTINGS_FILE", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFile:               getEnv("LOG_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and backend-specific requirements.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.StorageBackend {
	case "local":
		if c.AudioDir == "" {
			return fmt.Errorf("AUDIO_DIR is required for local storage")
		}
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase storage")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be local or supabase, got %q", c.StorageBackend)
	}

	if c.NonceTTL <= 0 {
		return fmt.Errorf("NONCE_TTL must be positive")
	}

	return nil
}

// SeedSettings builds the settings a fresh install starts with: defaults,
// then the optional YAML file, then provider keys from the environment.
func (c *Config) SeedSettings() (models.Settings, error) {
	s := models.DefaultSettings()

	if c.SettingsFile != "" {
		data, err := os.ReadFile(c.SettingsFile)
		if err != nil {
			return s, fmt.Errorf("failed to read settings file %s: %w", c.SettingsFile, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &s); err != nil {
			return s, fmt.Errorf("failed to parse settings file %s: %w", c.SettingsFile, err)
		}
	}

	if s.GoogleAPIKey == "" {
		s.GoogleAPIKey = c.GoogleTTSKey
	}
	if s.OpenAIAPIKey == "" {
		s.OpenAIAPIKey = c.OpenAIKey
	}

	return s.WithDefaults(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
