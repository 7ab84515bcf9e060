package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobarin/readaloud/internal/logger"
	"github.com/bobarin/readaloud/internal/models"
	"github.com/bobarin/readaloud/internal/narrator"
	"github.com/bobarin/readaloud/internal/widget"
	"github.com/go-chi/chi/v5"
)

// audioForm is the body of the generate and check routes, sent either as
// form values or as JSON. post_id may be a JSON number or string.
type audioForm struct {
	PostID    json.Number `json:"post_id"`
	AIService string      `json:"ai_service"`
	Voice     string      `json:"voice"`
}

func decodeAudioRequest(r *http.Request) (models.AudioRequest, string) {
	var f audioForm
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			return models.AudioRequest{}, "Invalid request body"
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return models.AudioRequest{}, "Invalid request body"
		}
		f.PostID = json.Number(strings.TrimSpace(r.PostForm.Get("post_id")))
		f.AIService = r.PostForm.Get("ai_service")
		f.Voice = r.PostForm.Get("voice")
	}

	postID, err := strconv.ParseInt(f.PostID.String(), 10, 64)
	if err != nil || postID <= 0 {
		return models.AudioRequest{}, "Invalid post ID"
	}

	return models.AudioRequest{
		PostID:  postID,
		Service: models.Service(strings.TrimSpace(f.AIService)),
		Voice:   strings.TrimSpace(f.Voice),
	}, ""
}

// GenerateAudio handles POST /v1/audio/generate
func (h *Handler) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeAudioRequest(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	art, err := h.narrator.Generate(r.Context(), req)
	if err != nil {
		writeNarratorError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.AudioURLResponse{AudioURL: art.URL})
}

// CheckAudio handles POST /v1/audio/check
func (h *Handler) CheckAudio(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeAudioRequest(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	art, ok, err := h.narrator.Lookup(r.Context(), req)
	if err != nil {
		writeNarratorError(w, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "audio not found")
		return
	}

	respondJSON(w, http.StatusOK, models.AudioURLResponse{AudioURL: art.URL})
}

// IssueNonce handles GET /v1/nonce
func (h *Handler) IssueNonce(w http.ResponseWriter, r *http.Request) {
	token, expiresAt, err := h.nonces.Issue(r.Context())
	if err != nil {
		logger.Errorf("[API] Failed to issue nonce: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to issue nonce")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, models.NonceResponse{Nonce: token, ExpiresAt: expiresAt})
}

// GetPlayer handles GET /v1/posts/{id}/player
// Responds 204 when narration is disabled for the post.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || postID <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	ctx := r.Context()

	settings, err := h.repo.GetSettings(ctx)
	if err != nil {
		logger.Errorf("[API] Failed to load settings: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	post, err := h.repo.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Post not found")
			return
		}
		logger.Errorf("[API] Failed to load post %d: %v", postID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load post")
		return
	}
	if !post.Published() {
		respondError(w, http.StatusNotFound, "Post not found")
		return
	}

	override, err := h.repo.GetPostAudioSettings(ctx, postID)
	if err != nil {
		logger.Errorf("[API] Failed to load post audio settings: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to load post settings")
		return
	}

	if !settings.AlwaysEnable && !override.Enabled {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	service, voice, theme := narrator.ResolveSettings(settings, override)

	token, _, err := h.nonces.Issue(ctx)
	if err != nil {
		logger.Errorf("[API] Failed to issue nonce: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to issue nonce")
		return
	}

	html, err := widget.RenderString(widget.Player{
		PostID:   postID,
		Service:  service,
		Voice:    voice,
		Theme:    theme,
		Label:    settings.PlayerText,
		Endpoint: h.apiBase,
		Nonce:    token,
		Palette:  widget.PaletteFor(theme, settings),
	})
	if err != nil {
		logger.Errorf("[API] %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to render player")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}
