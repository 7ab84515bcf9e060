// Package nonce issues and verifies the anti-forgery tokens the player sends
// with every audio request.
package nonce

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "nonce:"

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Issue creates a token valid for the store's TTL. Tokens may be reused
// until they expire, so one page view can check and then generate.
func (s *Store) Issue(ctx context.Context) (string, time.Time, error) {
	token := uuid.NewString()
	expiresAt := time.Now().Add(s.ttl)

	if err := s.client.Set(ctx, keyPrefix+token, expiresAt.Unix(), s.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	return token, expiresAt, nil
}

// Verify reports whether token was issued and has not expired.
func (s *Store) Verify(ctx context.Context, token string) (bool, error) {
	if _, err := uuid.Parse(token); err != nil {
		return false, nil
	}

	n, err := s.client.Exists(ctx, keyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check nonce: %w", err)
	}

	return n == 1, nil
}
