package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
// Passed from main.go so the router can configure CORS and auth from env vars.
type RouterConfig struct {
	// BackendAPIKey is the key that must be provided in X-API-Key or Authorization: Bearer <key>.
	// If empty, admin auth is skipped (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// AudioDir is served under /audio when set (local storage backend).
	AudioDir string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS: restrict origins when configured, otherwise allow all (dev mode)
	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Audio-Nonce"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check, public
	r.Get("/health", h.Health)

	// Generated audio files
	if cfg.AudioDir != "" {
		fs := http.StripPrefix("/audio/", http.FileServer(http.Dir(cfg.AudioDir)))
		r.Get("/audio/*", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			fs.ServeHTTP(w, r)
		})
	}

	r.Route("/v1", func(r chi.Router) {
		// Public routes used by the player
		r.Get("/nonce", h.IssueNonce)
		r.Get("/posts/{id}/player", h.GetPlayer)

		r.Group(func(r chi.Router) {
			r.Use(RequireNonce(h.nonces))
			r.Post("/audio/generate", h.GenerateAudio)
			r.Post("/audio/check", h.CheckAudio)
		})

		// Admin routes, protected by API key auth
		r.Route("/admin", func(r chi.Router) {
			if cfg.BackendAPIKey != "" {
				r.Use(APIKeyAuth(cfg.BackendAPIKey))
			}

			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
			r.Get("/settings/export", h.ExportSettings)
			r.Post("/settings/import", h.ImportSettings)

			r.Get("/posts/{id}/audio-settings", h.GetPostAudioSettings)
			r.Put("/posts/{id}/audio-settings", h.UpdatePostAudioSettings)

			r.Get("/voices", h.ListVoices)
		})
	})

	return r
}
