package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/hundredk/challenge-tracker/internal/models"
)

// PostRepository handles stored social posts.
type PostRepository struct {
	db *DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

// BulkInsert stores posts, skipping any (user_id, tweet_id) already present.
// It returns the number of rows inserted.
func (r *PostRepository) BulkInsert(ctx context.Context, posts []models.SocialPost) (int64, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "tweet_id"}},
			DoNothing: true,
		}).
		CreateInBatches(posts, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to store posts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListByUser returns the user's stored posts, newest first.
func (r *PostRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.SocialPost, error) {
	posts := []models.SocialPost{}
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("posted_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}
