package repository

import (
	"context"

	"potential/internal/models"

	"gorm.io/gorm"
)

// BookmarkRepository handles polymorphic bookmark rows for posts, support
// programs and expert profiles.
type BookmarkRepository interface {
	IsBookmarked(ctx context.Context, userID uint, bookmarkableType string, bookmarkableID uint) (bool, error)
	Bookmark(ctx context.Context, userID uint, bookmarkableType string, bookmarkableID uint) error
	Unbookmark(ctx context.Context, userID uint, bookmarkableType string, bookmarkableID uint) error
	ListByUser(ctx context.Context, userID uint, bookmarkableType string, limit, offset int) ([]*models.Bookmark, error)
}

type bookmarkRepository struct {
	db *gorm.DB
}

// NewBookmarkRepository creates a new bookmark repository
func NewBookmarkRepository(db *gorm.DB) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

func (r *bookmarkRepository) IsBookmarked(ctx context.Context, userID uint, bookmarkableType string, bookmarkableID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Bookmark{}).
		Where("user_id = ? AND bookmarkable_type = ? AND bookmarkable_id = ?", userID, bookmarkableType, bookmarkableID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *bookmarkRepository) Bookmark(ctx context.Context, userID uint, bookmarkableType string, bookmarkableID uint) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO bookmarks (user_id, bookmarkable_type, bookmarkable_id, created_at)
		 VALUES (?, ?, ?, NOW())
		 ON CONFLICT (user_id, bookmarkable_type, bookmarkable_id) DO NOTHING`,
		userID, bookmarkableType, bookmarkableID,
	).Error
}

func (r *bookmarkRepository) Unbookmark(ctx context.Context, userID uint, bookmarkableType string, bookmarkableID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND bookmarkable_type = ? AND bookmarkable_id = ?", userID, bookmarkableType, bookmarkableID).
		Delete(&models.Bookmark{}).Error
}

func (r *bookmarkRepository) ListByUser(ctx context.Context, userID uint, bookmarkableType string, limit, offset int) ([]*models.Bookmark, error) {
	var bookmarks []*models.Bookmark
	base := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if bookmarkableType != "" {
		base = base.Where("bookmarkable_type = ?", bookmarkableType)
	}
	err := base.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bookmarks).Error
	return bookmarks, err
}
