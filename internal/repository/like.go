package repository

import (
	"context"

	"potential/internal/cache"
	"potential/internal/models"

	"gorm.io/gorm"
)

// LikeRepository handles polymorphic like rows for posts and comments.
type LikeRepository interface {
	IsLiked(ctx context.Context, userID uint, likeableType string, likeableID uint) (bool, error)
	Like(ctx context.Context, userID uint, likeableType string, likeableID uint) error
	Unlike(ctx context.Context, userID uint, likeableType string, likeableID uint) error
	Count(ctx context.Context, likeableType string, likeableID uint) (int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) IsLiked(ctx context.Context, userID uint, likeableType string, likeableID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND likeable_type = ? AND likeable_id = ?", userID, likeableType, likeableID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *likeRepository) Like(ctx context.Context, userID uint, likeableType string, likeableID uint) error {
	// INSERT ... ON CONFLICT DO NOTHING so a racing double-like collapses
	// to a no-op instead of a unique violation.
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO likes (user_id, likeable_type, likeable_id, created_at)
		 VALUES (?, ?, ?, NOW())
		 ON CONFLICT (user_id, likeable_type, likeable_id) DO NOTHING`,
		userID, likeableType, likeableID,
	)
	if result.Error == nil && likeableType == models.LikeablePost {
		cache.InvalidatePost(ctx, likeableID)
		cache.InvalidateFeed(ctx)
	}
	return result.Error
}

func (r *likeRepository) Unlike(ctx context.Context, userID uint, likeableType string, likeableID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND likeable_type = ? AND likeable_id = ?", userID, likeableType, likeableID).
		Delete(&models.Like{}).Error
	if err == nil && likeableType == models.LikeablePost {
		cache.InvalidatePost(ctx, likeableID)
		cache.InvalidateFeed(ctx)
	}
	return err
}

func (r *likeRepository) Count(ctx context.Context, likeableType string, likeableID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("likeable_type = ? AND likeable_id = ?", likeableType, likeableID).
		Count(&count).Error
	return count, err
}
