package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bobarin/readaloud/internal/logger"
	"github.com/bobarin/readaloud/internal/models"
	"github.com/bobarin/readaloud/internal/narrator"
)

// Narrator is the audio pipeline behind the public routes.
type Narrator interface {
	Generate(ctx context.Context, req models.AudioRequest) (*models.AudioArtifact, error)
	Lookup(ctx context.Context, req models.AudioRequest) (*models.AudioArtifact, bool, error)
}

// NonceStore issues and verifies anti-forgery tokens.
type NonceStore interface {
	NonceVerifier
	Issue(ctx context.Context) (string, time.Time, error)
}

// Repository is the database surface the handlers use.
type Repository interface {
	narrator.PostRepository
	narrator.SettingsRepository
	SaveSettings(ctx context.Context, s models.Settings) error
	UpsertPostAudioSettings(ctx context.Context, s *models.PostAudioSettings) error
}

type Handler struct {
	narrator Narrator
	repo     Repository
	nonces   NonceStore
	apiBase  string // public URL of /v1, rendered into the widget
}

func NewHandler(n Narrator, repo Repository, nonces NonceStore, publicBaseURL string) *Handler {
	return &Handler{
		narrator: n,
		repo:     repo,
		nonces:   nonces,
		apiBase:  strings.TrimRight(publicBaseURL, "/") + "/v1",
	}
}

// writeNarratorError maps the pipeline's error categories to status codes.
// Provider details stay in the server log.
func writeNarratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, narrator.ErrConfiguration):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, narrator.ErrEmptyContent):
		respondError(w, http.StatusUnprocessableEntity, "Post has no readable content")
	case errors.Is(err, narrator.ErrNotFound):
		respondError(w, http.StatusNotFound, "Invalid post ID")
	case errors.Is(err, narrator.ErrValidation):
		respondError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, narrator.ErrProvider):
		respondError(w, http.StatusBadGateway, "Failed to generate audio")
	default:
		logger.Errorf("[API] Audio request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to generate audio")
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), narrator.ErrValidation.Error()+": ")
	if msg == "" {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
