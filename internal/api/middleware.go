package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/bobarin/readaloud/internal/logger"
)

// maxFormBytes bounds request bodies on the public audio routes.
const maxFormBytes = 64 << 10

// APIKeyAuth is middleware that validates requests against a backend API key.
// It checks the X-API-Key header first, then falls back to Authorization: Bearer <key>.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Try X-API-Key header first (preferred for backend-to-backend calls)
			key := r.Header.Get("X-API-Key")

			// Fall back to Authorization: Bearer <key>
			if key == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					key = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if key == "" {
				respondError(w, http.StatusUnauthorized, "Missing API key. Provide X-API-Key header or Authorization: Bearer <key>")
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				respondError(w, http.StatusForbidden, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NonceVerifier checks anti-forgery tokens.
type NonceVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// RequireNonce rejects requests without a valid anti-forgery token. The token
// is read from the X-Audio-Nonce header, then from a "nonce" form field or
// JSON property. JSON bodies are restored for the handler.
func RequireNonce(nonces NonceVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

			token, err := nonceFromRequest(r)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			ok, err := nonces.Verify(r.Context(), token)
			if err != nil {
				logger.Errorf("[API] Nonce check failed: %v", err)
				respondError(w, http.StatusInternalServerError, "Failed to verify request")
				return
			}
			if !ok {
				respondError(w, http.StatusForbidden, "Invalid or expired nonce")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func nonceFromRequest(r *http.Request) (string, error) {
	if token := r.Header.Get("X-Audio-Nonce"); token != "" {
		return token, nil
	}

	if isJSON(r) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var payload struct {
			Nonce string `json:"nonce"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", err
			}
		}
		return payload.Nonce, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("nonce"), nil
}

func isJSON(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/json"
}
