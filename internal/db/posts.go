package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/readaloud/internal/models"
)

// GetPost retrieves a post by ID.
func (db *DB) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	query := `
		SELECT id, title, content, status
		FROM posts
		WHERE id = $1
	`

	post := &models.Post{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&post.ID, &post.Title, &post.Content, &post.Status,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("post %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}
