package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/bobarin/readaloud/internal/logger"
	"github.com/bobarin/readaloud/internal/models"
	"github.com/go-chi/chi/v5"
)

const (
	settingsExportVersion = "1.0.0"

	// apiKeyMask replaces stored credentials in responses. Sending it back
	// unchanged keeps the stored key.
	apiKeyMask = "********"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// Keys never written to or read from an export file.
var secretSettingKeys = map[string]bool{
	"google_api_key":  true,
	"openai_api_key":  true,
	"chatgpt_api_key": true,
}

// Older exports used these names.
var legacySettingKeys = map[string]string{
	"default_ai": "default_service",
}

func redactSettings(s models.Settings) models.Settings {
	if s.GoogleAPIKey != "" {
		s.GoogleAPIKey = apiKeyMask
	}
	if s.OpenAIAPIKey != "" {
		s.OpenAIAPIKey = apiKeyMask
	}
	return s
}

// validateSettings normalizes s and returns a user-facing message when it is invalid.
func validateSettings(s *models.Settings) string {
	svc, err := models.ParseService(string(s.DefaultService))
	if err != nil {
		return fmt.Sprintf("Invalid default service: %s", s.DefaultService)
	}
	s.DefaultService = svc

	if !s.DefaultTheme.Valid() {
		return fmt.Sprintf("Invalid default theme: %s", s.DefaultTheme)
	}
	for name, c := range map[string]string{
		"primary_color":    s.PrimaryColor,
		"text_color":       s.TextColor,
		"background_color": s.BackgroundColor,
	} {
		if !hexColorPattern.MatchString(c) {
			return fmt.Sprintf("Invalid %s: %q", name, c)
		}
	}
	if s.WordLimit < 0 {
		return "word_limit must not be negative"
	}
	return ""
}

// GetSettings handles GET /v1/admin/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	respondJSON(w, http.StatusOK, redactSettings(s))
}

// UpdateSettings handles PUT /v1/admin/settings
// The body replaces the settings document. Empty or masked API keys keep the stored value.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.repo.GetSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	var next models.Settings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if next.GoogleAPIKey == "" || next.GoogleAPIKey == apiKeyMask {
		next.GoogleAPIKey = current.GoogleAPIKey
	}
	if next.OpenAIAPIKey == "" || next.OpenAIAPIKey == apiKeyMask {
		next.OpenAIAPIKey = current.OpenAIAPIKey
	}

	next = next.WithDefaults()
	if msg := validateSettings(&next); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.repo.SaveSettings(r.Context(), next); err != nil {
		logger.Errorf("[API] Failed to save settings: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	logger.Infof("[API] Settings updated (service=%s, voice=%s)", next.DefaultService, next.DefaultVoice)
	respondJSON(w, http.StatusOK, redactSettings(next))
}

// ExportSettings handles GET /v1/admin/settings/export
func (h *Handler) ExportSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	doc, err := s.ToJSONB()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to export settings")
		return
	}
	for k := range secretSettingKeys {
		delete(doc, k)
	}

	now := time.Now().UTC()
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="ai-audio-settings-%s.json"`, now.Format("2006-01-02")))
	respondJSON(w, http.StatusOK, models.SettingsExport{
		Timestamp: now,
		Version:   settingsExportVersion,
		Settings:  doc,
	})
}

// ImportSettings handles POST /v1/admin/settings/import
// Fields present in the file overwrite the stored ones; API keys are ignored.
func (h *Handler) ImportSettings(w http.ResponseWriter, r *http.Request) {
	var doc models.SettingsExport
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc.Settings == nil {
		respondError(w, http.StatusBadRequest, "Invalid settings file format.")
		return
	}

	current, err := h.repo.GetSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	merged, err := current.ToJSONB()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to import settings")
		return
	}
	for k, v := range doc.Settings {
		if name, ok := legacySettingKeys[k]; ok {
			k = name
		}
		if secretSettingKeys[k] || v == nil {
			continue
		}
		merged[k] = v
	}

	next, err := models.SettingsFromJSONB(merged)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid settings file format.")
		return
	}
	next = next.WithDefaults()
	if msg := validateSettings(&next); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.repo.SaveSettings(r.Context(), next); err != nil {
		logger.Errorf("[API] Failed to save imported settings: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	logger.Infof("[API] Imported settings (version %s, %d fields)", doc.Version, len(doc.Settings))
	respondJSON(w, http.StatusOK, redactSettings(next))
}

// GetPostAudioSettings handles GET /v1/admin/posts/{id}/audio-settings
func (h *Handler) GetPostAudioSettings(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.postIDParam(w, r)
	if !ok {
		return
	}

	s, err := h.repo.GetPostAudioSettings(r.Context(), postID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load post settings")
		return
	}

	respondJSON(w, http.StatusOK, s)
}

// UpdatePostAudioSettings handles PUT /v1/admin/posts/{id}/audio-settings
// Omitted fields are left unchanged; an empty string resets a field to inherit.
func (h *Handler) UpdatePostAudioSettings(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.postIDParam(w, r)
	if !ok {
		return
	}

	var req models.UpdatePostAudioSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.repo.GetPostAudioSettings(r.Context(), postID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load post settings")
		return
	}

	if req.Enabled != nil {
		s.Enabled = *req.Enabled
	}
	if req.Service != nil {
		s.Service = *req.Service
		if s.Service != "" {
			svc, err := models.ParseService(s.Service)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid service. Allowed: google, openai")
				return
			}
			s.Service = string(svc)
		}
	}
	if req.Voice != nil {
		s.Voice = *req.Voice
	}
	if req.Theme != nil {
		s.Theme = *req.Theme
		if s.Theme != "" && !models.Theme(s.Theme).Valid() {
			respondError(w, http.StatusBadRequest, "Invalid theme. Allowed: light, dark")
			return
		}
	}

	if err := h.repo.UpsertPostAudioSettings(r.Context(), s); err != nil {
		logger.Errorf("[API] Failed to save audio settings for post %d: %v", postID, err)
		respondError(w, http.StatusInternalServerError, "Failed to save post settings")
		return
	}

	respondJSON(w, http.StatusOK, s)
}

// ListVoices handles GET /v1/admin/voices?service=google
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("service")
	if name == "" {
		respondJSON(w, http.StatusOK, models.Voices)
		return
	}

	svc, err := models.ParseService(name)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid service. Allowed: google, openai")
		return
	}

	respondJSON(w, http.StatusOK, models.Voices[svc])
}

// postIDParam parses {id} and checks that the post exists.
func (h *Handler) postIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || postID <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid post ID")
		return 0, false
	}

	if _, err := h.repo.GetPost(r.Context(), postID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Post not found")
		} else {
			respondError(w, http.StatusInternalServerError, "Failed to load post")
		}
		return 0, false
	}

	return postID, true
}
