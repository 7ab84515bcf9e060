package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bobarin/readaloud/internal/logger"
	"github.com/bobarin/readaloud/internal/models"
)

const (
	// Upload timeout per attempt
	uploadTimeout = 60 * time.Second

	// Download and existence-check timeout
	downloadTimeout = 30 * time.Second

	// Retry configuration
	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
)

// SupabaseStore keeps artifacts in a public Supabase Storage bucket.
type SupabaseStore struct {
	url        string
	serviceKey string
	Bucket     string
	Prefix     string // folder inside the bucket, may be empty
	client     *http.Client

	// retryDelay is swapped out in tests
	retryDelay func(attempt int) time.Duration
}

var _ Store = (*SupabaseStore)(nil)

func NewSupabaseStore(url, serviceKey, bucket, prefix string) *SupabaseStore {
	return &SupabaseStore{
		url:        strings.TrimRight(url, "/"),
		serviceKey: serviceKey,
		Bucket:     bucket,
		Prefix:     strings.Trim(prefix, "/"),
		client: &http.Client{
			Timeout: uploadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryDelay: retryDelay,
	}
}

// Put uploads the artifact with retries and exponential backoff.
// x-upsert makes a racing second upload overwrite the first.
func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte) (*models.AudioArtifact, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("invalid artifact key %q", key)
	}

	objectPath := s.objectPath(key)
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, objectPath)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay(attempt)
			logger.Warnf("[Storage] Upload retry %d/%d for %s (waiting %v)...", attempt, maxRetries, objectPath, delay)

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)

		req, err := http.NewRequestWithContext(uploadCtx, "PUT", url, bytes.NewReader(data))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("Content-Type", audioContentType)
		req.Header.Set("x-upsert", "true")
		req.ContentLength = int64(len(data))

		resp, err := s.client.Do(req)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("failed to upload: %w", err)
			if isRetryableError(err) {
				logger.Warnf("[Storage] Upload attempt %d failed (retryable): %v", attempt+1, err)
				continue
			}
			return nil, lastErr
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			if attempt > 0 {
				logger.Infof("[Storage] Upload succeeded on attempt %d for %s", attempt+1, objectPath)
			}
			return &models.AudioArtifact{
				Key:         key,
				FilePath:    path.Join(s.Bucket, objectPath),
				URL:         s.URLFor(key),
				GeneratedAt: time.Now(),
			}, nil
		}

		lastErr = fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))

		if isRetryableStatus(resp.StatusCode) {
			logger.Warnf("[Storage] Upload attempt %d returned status %d (retryable)", attempt+1, resp.StatusCode)
			continue
		}

		// Non-retryable status (400, 401, 403, 413, ...)
		return nil, lastErr
	}

	return nil, fmt.Errorf("upload failed after %d attempts: %w", maxRetries+1, lastErr)
}

// Exists issues a HEAD against the object; 404 (or 400, which Supabase
// returns for missing objects) means absent.
func (s *SupabaseStore) Exists(ctx context.Context, key string) (bool, error) {
	if !validKey(key) {
		return false, nil
	}

	headCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, s.objectPath(key))
	req, err := http.NewRequestWithContext(headCtx, "HEAD", url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check object: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return false, nil
	default:
		return false, fmt.Errorf("object check failed with status %d", resp.StatusCode)
	}
}

// Get downloads an artifact's bytes. Serving goes through the public URL;
// Get is for checking what was uploaded.
func (s *SupabaseStore) Get(ctx context.Context, key string) ([]byte, error) {
	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, s.objectPath(key))
	req, err := http.NewRequestWithContext(dlCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return io.ReadAll(resp.Body)
}

// URLFor returns the public URL for an artifact
func (s *SupabaseStore) URLFor(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, s.objectPath(key))
}

func (s *SupabaseStore) objectPath(key string) string {
	if s.Prefix == "" {
		return ArtifactName(key)
	}
	return s.Prefix + "/" + ArtifactName(key)
}

// retryDelay calculates exponential backoff with jitter: base * 2^attempt + random jitter
func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
