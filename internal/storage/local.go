package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobarin/readaloud/internal/logger"
	"github.com/bobarin/readaloud/internal/models"
)

// LocalStore keeps artifacts in a directory served under BaseURL.
type LocalStore struct {
	Root    string // created on first Put
	BaseURL string // public prefix, e.g. https://blog.example.com/audio
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{
		Root:    root,
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Put writes data via a temp file and rename so readers never see a partial
// file. Concurrent writers of the same key race; the last rename wins.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (*models.AudioArtifact, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("invalid artifact key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory %s: %w", s.Root, err)
	}

	path := s.path(key)
	tmp, err := os.CreateTemp(s.Root, ".tmp-"+key+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close audio file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to set audio permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to move audio into place: %w", err)
	}

	logger.Infof("[Storage] Wrote %s (%d bytes)", filepath.Base(path), len(data))

	return &models.AudioArtifact{
		Key:         key,
		FilePath:    path,
		URL:         s.URLFor(key),
		GeneratedAt: time.Now(),
	}, nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if !validKey(key) {
		return false, nil
	}
	info, err := os.Stat(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

func (s *LocalStore) URLFor(key string) string {
	return s.BaseURL + "/" + ArtifactName(key)
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.Root, ArtifactName(key))
}
