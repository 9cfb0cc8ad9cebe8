package repository

import (
	"context"

	"potential/internal/cache"
	"potential/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, currentUserID uint, includeHidden bool) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	SetHidden(ctx context.Context, id uint, hidden bool) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// applyCommentDetails adds subqueries to fetch the like count and liked flag in a single query.
func (r *commentRepository) applyCommentDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "comments.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.likeable_type = 'comment' AND likes.likeable_id = comments.id) as like_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+
			", EXISTS(SELECT 1 FROM likes WHERE likes.likeable_type = 'comment' AND likes.likeable_id = comments.id AND likes.user_id = ?) as liked",
			currentUserID)
	}

	return db.Select(selectQuery + ", false as liked")
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Create(comment).Error
	if err == nil {
		// Comment counts are computed from the comments table, so the cached
		// post row is stale the moment a comment lands.
		cache.InvalidatePost(ctx, comment.PostID)
		cache.InvalidateFeed(ctx)
	}
	return err
}

func (r *commentRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.applyCommentDetails(r.db.WithContext(ctx), currentUserID).
		Preload("Author").
		First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, currentUserID uint, includeHidden bool) ([]*models.Comment, error) {
	var comments []*models.Comment
	base := r.applyCommentDetails(r.db.WithContext(ctx), currentUserID).
		Preload("Author").
		Where("post_id = ?", postID)

	if !includeHidden {
		if currentUserID != 0 {
			base = base.Where("comments.is_hidden = false OR comments.author_id = ?", currentUserID)
		} else {
			base = base.Where("comments.is_hidden = false")
		}
	}

	err := base.Order("created_at ASC").Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Save(comment).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

func (r *commentRepository) SetHidden(ctx context.Context, id uint, hidden bool) error {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return err
	}
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", id).
		Update("is_hidden", hidden).Error
	if err == nil {
		cache.InvalidatePost(ctx, comment.PostID)
		cache.InvalidateFeed(ctx)
	}
	return err
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return err
	}
	// Hard delete, including likes on the comment.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("likeable_type = ? AND likeable_id = ?", models.LikeableComment, id).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Comment{}, id).Error
	})
	if err == nil {
		cache.InvalidatePost(ctx, comment.PostID)
		cache.InvalidateFeed(ctx)
	}
	return err
}
