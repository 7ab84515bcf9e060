package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/bobarin/readaloud/internal/models"
)

const (
	artifactPrefix    = "audio_"
	artifactExtension = ".mp3"
	audioContentType  = "audio/mpeg"
)

// Store persists synthesized audio keyed by fingerprint. Artifacts are never
// deleted or versioned; a new (text, voice) pair simply produces a new key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (*models.AudioArtifact, error)
	Exists(ctx context.Context, key string) (bool, error)
	URLFor(key string) string
}

// Fingerprint identifies the artifact for a normalized text and voice.
func Fingerprint(text, voice string) string {
	sum := sha256.Sum256([]byte(text + voice))
	return hex.EncodeToString(sum[:])
}

// ArtifactName is the file name for a key, e.g. audio_<key>.mp3.
func ArtifactName(key string) string {
	return artifactPrefix + key + artifactExtension
}

// validKey rejects anything that could escape the storage root.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	return !strings.ContainsAny(key, `/\.`)
}
